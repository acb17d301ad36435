// pkg/aggregator/aggregator.go
package aggregator

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

// Mode selects how occurrences of a column are compared
type Mode string

const (
	// ModeSet compares the distinct non-null values of each occurrence
	ModeSet Mode = "set"
	// ModeMultiset compares sorted non-null sequences, so repetition counts matter
	ModeMultiset Mode = "multiset"
)

// ParseMode converts a configuration value into a Mode
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "", ModeSet:
		return ModeSet, nil
	case ModeMultiset:
		return ModeMultiset, nil
	default:
		return "", fmt.Errorf("unknown consistency mode %q", raw)
	}
}

// Occurrence is one place a column name appears
type Occurrence struct {
	Dataset string
	Sheet   string
	Column  *model.Column
}

// Location returns "dataset/sheet" for messages and audit caveats
func (o Occurrence) Location() string {
	return fmt.Sprintf("%s/%s", o.Dataset, o.Sheet)
}

// keys returns the text form of every non-null value, in column order
func (o Occurrence) keys() []string {
	keys := make([]string, 0, len(o.Column.Values))
	for _, v := range o.Column.Values {
		if model.IsNull(v) {
			continue
		}
		keys = append(keys, transform.ToText(v))
	}
	return keys
}

// Domain is the set of distinct non-null values observed for a column.
// Keys are sorted text forms; Values holds the first typed value seen per key.
type Domain struct {
	Keys   []string
	Values map[string]interface{}
}

// Len returns the number of distinct values
func (d Domain) Len() int {
	return len(d.Keys)
}

// Aggregator indexes every column occurrence across a set of datasets
type Aggregator struct {
	mode        Mode
	order       []string
	occurrences map[string][]Occurrence
}

// New indexes the columns of datasets. A zero mode means ModeSet.
func New(datasets []*model.Dataset, mode Mode) *Aggregator {
	if mode == "" {
		mode = ModeSet
	}

	a := &Aggregator{
		mode:        mode,
		occurrences: make(map[string][]Occurrence),
	}

	for _, ds := range datasets {
		for _, sheet := range ds.Sheets {
			for _, col := range sheet.Columns {
				if _, seen := a.occurrences[col.Name]; !seen {
					a.order = append(a.order, col.Name)
				}
				a.occurrences[col.Name] = append(a.occurrences[col.Name], Occurrence{
					Dataset: ds.Name,
					Sheet:   sheet.Name,
					Column:  col,
				})
			}
		}
	}

	return a
}

// Mode returns the comparison mode in use
func (a *Aggregator) Mode() Mode {
	return a.mode
}

// Columns returns every column name in first-seen order
func (a *Aggregator) Columns() []string {
	return slices.Clone(a.order)
}

// Occurrences returns where a column name appears
func (a *Aggregator) Occurrences(column string) []Occurrence {
	return a.occurrences[column]
}

// SharedColumns returns the column names that appear in more than one sheet or dataset
func (a *Aggregator) SharedColumns() []string {
	return lo.Filter(a.order, func(name string, _ int) bool {
		return len(a.occurrences[name]) > 1
	})
}

// Aggregate returns the union of distinct non-null values of column across all occurrences
func (a *Aggregator) Aggregate(column string) Domain {
	domain := Domain{Values: make(map[string]interface{})}

	for _, occ := range a.occurrences[column] {
		for _, v := range occ.Column.Values {
			if model.IsNull(v) {
				continue
			}
			key := transform.ToText(v)
			if _, seen := domain.Values[key]; seen {
				continue
			}
			domain.Values[key] = v
			domain.Keys = append(domain.Keys, key)
		}
	}

	slices.Sort(domain.Keys)
	return domain
}

// ValidateConsistency compares every occurrence of column against the first one.
// It returns a *ConsistencyError listing every differing occurrence, or nil.
func (a *Aggregator) ValidateConsistency(column string) error {
	occs := a.occurrences[column]
	if len(occs) < 2 {
		return nil
	}

	reference := a.comparable(occs[0])
	var mismatches []Mismatch

	for _, occ := range occs[1:] {
		current := a.comparable(occ)
		if slices.Equal(reference, current) {
			continue
		}

		missing, extra := a.difference(reference, current)
		mismatches = append(mismatches, Mismatch{
			Reference: occs[0].Location(),
			Location:  occ.Location(),
			Missing:   missing,
			Extra:     extra,
		})
	}

	if len(mismatches) == 0 {
		return nil
	}
	return &ConsistencyError{Column: column, Mismatches: mismatches}
}

// ValidateAll checks every shared column and returns all consistency errors found
func (a *Aggregator) ValidateAll() []*ConsistencyError {
	var errs []*ConsistencyError
	for _, column := range a.SharedColumns() {
		if err := a.ValidateConsistency(column); err != nil {
			errs = append(errs, err.(*ConsistencyError))
		}
	}
	return errs
}

// comparable returns the sorted values an occurrence is compared on
func (a *Aggregator) comparable(occ Occurrence) []string {
	keys := occ.keys()
	if a.mode == ModeSet {
		keys = lo.Uniq(keys)
	}
	slices.Sort(keys)
	return keys
}

// difference reports values of reference absent from current and the reverse.
// In multiset mode a value is listed once per missing repetition.
func (a *Aggregator) difference(reference, current []string) (missing, extra []string) {
	if a.mode == ModeSet {
		return lo.Difference(reference, current)
	}

	counts := lo.CountValues(reference)
	for _, v := range current {
		counts[v]--
	}
	for _, v := range lo.Uniq(append(slices.Clone(reference), current...)) {
		for n := counts[v]; n > 0; n-- {
			missing = append(missing, v)
		}
		for n := counts[v]; n < 0; n++ {
			extra = append(extra, v)
		}
	}
	slices.Sort(missing)
	slices.Sort(extra)
	return missing, extra
}
