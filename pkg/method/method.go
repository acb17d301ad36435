// pkg/method/method.go
package method

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

// Method is a resolved per-column transform. Implementations are safe for
// concurrent use by the sheets of one run.
type Method interface {
	// ID returns the method actually applied
	ID() model.MethodID
	// Params returns the effective parameters for the audit record
	Params() map[string]string
	// Apply transforms one non-null cell value
	Apply(value interface{}) (interface{}, error)
}

// Identity leaves values unchanged
type Identity struct{}

func (Identity) ID() model.MethodID { return model.MethodNone }

func (Identity) Params() map[string]string { return nil }

func (Identity) Apply(value interface{}) (interface{}, error) { return value, nil }

// Hash replaces values with the hex digest of their text form
type Hash struct {
	Algorithm transform.Algorithm
}

func (h Hash) ID() model.MethodID {
	if h.Algorithm == transform.MD5 {
		return model.MethodHashMD5
	}
	return model.MethodHashSHA256
}

func (h Hash) Params() map[string]string {
	return map[string]string{"algorithm": string(h.Algorithm)}
}

func (h Hash) Apply(value interface{}) (interface{}, error) {
	return transform.HashDigest(value, h.Algorithm)
}

// RandomToken gives every distinct value one random token, reused for each
// occurrence of that value in the run.
type RandomToken struct {
	Length int

	src    transform.Source
	mu     sync.Mutex
	tokens map[string]string
	issued map[string]struct{}
}

// NewRandomToken creates a token method with an empty cache
func NewRandomToken(length int, src transform.Source) *RandomToken {
	if length <= 0 {
		length = transform.DefaultTokenLength
	}
	return &RandomToken{
		Length: length,
		src:    src,
		tokens: make(map[string]string),
		issued: make(map[string]struct{}),
	}
}

func (t *RandomToken) ID() model.MethodID { return model.MethodRandomToken }

func (t *RandomToken) Params() map[string]string {
	return map[string]string{model.ParamTokenLength: strconv.Itoa(t.Length)}
}

func (t *RandomToken) Apply(value interface{}) (interface{}, error) {
	key := transform.ToText(value)

	t.mu.Lock()
	defer t.mu.Unlock()

	if token, ok := t.tokens[key]; ok {
		return token, nil
	}

	// Redraw on the rare collision so distinct values keep distinct tokens
	token := transform.RandomToken(t.src, t.Length)
	for attempts := 0; ; attempts++ {
		if _, taken := t.issued[token]; !taken {
			break
		}
		if attempts >= 100 {
			return nil, fmt.Errorf("failed to issue a unique token of length %d after %d attempts", t.Length, attempts)
		}
		token = transform.RandomToken(t.src, t.Length)
	}

	t.tokens[key] = token
	t.issued[token] = struct{}{}
	return token, nil
}

// Issued returns the number of distinct values that received a token
func (t *RandomToken) Issued() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tokens)
}

// RangeGeneralize replaces numeric values with a range label. Non-numeric
// values pass through and are counted, or rejected when Strict is set.
type RangeGeneralize struct {
	Size   int
	Strict bool

	passThrough atomic.Int64
}

// NewRangeGeneralize creates a range method; sizes <= 0 use the default
func NewRangeGeneralize(size int, strict bool) *RangeGeneralize {
	if size <= 0 {
		size = transform.DefaultRangeSize
	}
	return &RangeGeneralize{Size: size, Strict: strict}
}

func (g *RangeGeneralize) ID() model.MethodID { return model.MethodRangeGeneralize }

func (g *RangeGeneralize) Params() map[string]string {
	return map[string]string{model.ParamRangeSize: strconv.Itoa(g.Size)}
}

func (g *RangeGeneralize) Apply(value interface{}) (interface{}, error) {
	label, ok := transform.RangeGeneralize(value, g.Size)
	if !ok {
		if g.Strict {
			return nil, fmt.Errorf("value %q is not numeric", transform.ToText(value))
		}
		g.passThrough.Add(1)
	}
	return label, nil
}

// PassThrough returns how many values were left unchanged because they were not numeric
func (g *RangeGeneralize) PassThrough() int {
	return int(g.passThrough.Load())
}

// Swap substitutes values through a column's derangement mapping. Values
// missing from the mapping pass through unchanged.
type Swap struct {
	mapping map[string]interface{}
	misses  atomic.Int64
}

// NewSwap wraps a mapping keyed by the text form of each source value
func NewSwap(mapping map[string]interface{}) *Swap {
	return &Swap{mapping: mapping}
}

func (s *Swap) ID() model.MethodID { return model.MethodSwap }

func (s *Swap) Params() map[string]string {
	return map[string]string{"domain_size": strconv.Itoa(len(s.mapping))}
}

func (s *Swap) Apply(value interface{}) (interface{}, error) {
	if target, ok := s.mapping[transform.ToText(value)]; ok {
		return target, nil
	}
	s.misses.Add(1)
	return value, nil
}

// DomainSize returns the number of values in the mapping
func (s *Swap) DomainSize() int {
	return len(s.mapping)
}

// Misses returns how many values were not found in the mapping
func (s *Swap) Misses() int {
	return int(s.misses.Load())
}
