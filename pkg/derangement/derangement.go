// pkg/derangement/derangement.go
package derangement

import (
	"github.com/samber/lo"

	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

// MaxRepairPasses bounds the repair loop before falling back to Sattolo's algorithm
const MaxRepairPasses = 4

// Build returns a bijection over the distinct elements of values in which no
// element maps to itself. Duplicates in values are ignored. A single-element
// domain has no derangement and is mapped to itself; callers surface that case
// through IsSingleton.
func Build[T comparable](values []T, src transform.Source) map[T]T {
	domain := lo.Uniq(values)
	mapping := make(map[T]T, len(domain))

	switch len(domain) {
	case 0:
		return mapping
	case 1:
		mapping[domain[0]] = domain[0]
		return mapping
	}

	targets := make([]T, len(domain))
	copy(targets, domain)
	src.Shuffle(len(targets), func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})

	for pass := 0; pass < MaxRepairPasses && hasCollision(domain, targets); pass++ {
		repair(domain, targets)
	}

	if hasCollision(domain, targets) {
		// Cyclic permutations never have fixed points
		copy(targets, domain)
		sattolo(targets, src)
	}

	for i, v := range domain {
		mapping[v] = targets[i]
	}
	return mapping
}

// repair swaps every colliding target with its successor, wrapping the last
// position onto the first. Swaps keep targets a permutation of domain.
func repair[T comparable](domain, targets []T) {
	n := len(targets)
	for i := range targets {
		if targets[i] == domain[i] {
			next := (i + 1) % n
			targets[i], targets[next] = targets[next], targets[i]
		}
	}
}

func hasCollision[T comparable](domain, targets []T) bool {
	for i := range domain {
		if domain[i] == targets[i] {
			return true
		}
	}
	return false
}

// sattolo permutes items into a single cycle of length len(items)
func sattolo[T any](items []T, src transform.Source) {
	for i := len(items) - 1; i > 0; i-- {
		j := src.IntN(i)
		items[i], items[j] = items[j], items[i]
	}
}

// IsSingleton reports whether the mapping covers exactly one value, the only
// domain for which a value is mapped to itself.
func IsSingleton[T comparable](mapping map[T]T) bool {
	return len(mapping) == 1
}

// FixedPoints returns the values mapped to themselves
func FixedPoints[T comparable](mapping map[T]T) []T {
	var fixed []T
	for k, v := range mapping {
		if k == v {
			fixed = append(fixed, k)
		}
	}
	return fixed
}

// IsBijection reports whether mapping is a permutation of its own key set
func IsBijection[T comparable](mapping map[T]T) bool {
	seen := make(map[T]struct{}, len(mapping))
	for _, v := range mapping {
		if _, ok := mapping[v]; !ok {
			return false
		}
		if _, dup := seen[v]; dup {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}
