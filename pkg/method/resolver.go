// pkg/method/resolver.go
package method

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

// UnknownPolicy decides what happens to a column whose method is not recognized
type UnknownPolicy string

const (
	UnknownIdentity UnknownPolicy = "identity"
	UnknownReject   UnknownPolicy = "reject"
)

// RangePolicy decides what happens to non-numeric cells under range generalization
type RangePolicy string

const (
	RangePassThrough RangePolicy = "passthrough"
	RangeReject      RangePolicy = "reject"
)

// Options configures a Resolver
type Options struct {
	DefaultRangeSize   int
	DefaultTokenLength int
	UnknownPolicy      UnknownPolicy
	RangePolicy        RangePolicy
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		DefaultRangeSize:   transform.DefaultRangeSize,
		DefaultTokenLength: transform.DefaultTokenLength,
		UnknownPolicy:      UnknownIdentity,
		RangePolicy:        RangePassThrough,
	}
}

// Resolution describes how a column's requested method was resolved
type Resolution struct {
	Column    string
	Requested string
	Method    Method
	Fallback  bool // requested method was unknown, identity applies
}

// UnknownMethodError is returned under UnknownReject
type UnknownMethodError struct {
	Column    string
	Requested string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown anonymization method %q for column %q", e.Requested, e.Column)
}

// Resolver binds method selections to Method values for one run. Each column
// resolves once, so every sheet sharing a column name shares its Method.
type Resolver struct {
	opts     Options
	src      transform.Source
	logger   *zap.Logger
	mu       sync.Mutex
	mappings map[string]map[string]interface{}
	resolved map[string]Resolution
}

// NewResolver creates a resolver that draws tokens from src
func NewResolver(opts Options, src transform.Source, logger *zap.Logger) (*Resolver, error) {
	if src == nil {
		return nil, fmt.Errorf("random source cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	defaults := DefaultOptions()
	if opts.DefaultRangeSize <= 0 {
		opts.DefaultRangeSize = defaults.DefaultRangeSize
	}
	if opts.DefaultTokenLength <= 0 {
		opts.DefaultTokenLength = defaults.DefaultTokenLength
	}
	if opts.UnknownPolicy == "" {
		opts.UnknownPolicy = defaults.UnknownPolicy
	}
	if opts.RangePolicy == "" {
		opts.RangePolicy = defaults.RangePolicy
	}

	return &Resolver{
		opts:     opts,
		src:      src,
		logger:   logger,
		mappings: make(map[string]map[string]interface{}),
		resolved: make(map[string]Resolution),
	}, nil
}

// SetMapping registers the swap mapping for a column. It must be called
// before the column is resolved.
func (r *Resolver) SetMapping(column string, mapping map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings[column] = mapping
}

// Resolve binds the selection for column to a Method. Repeated calls for the
// same column return the first resolution.
func (r *Resolver) Resolve(column string, sel model.MethodSelection) (Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.resolved[column]; ok {
		return res, nil
	}

	res := Resolution{Column: column, Requested: string(sel.Method)}
	id, known := model.ParseMethodID(string(sel.Method))

	if !known {
		if r.opts.UnknownPolicy == UnknownReject {
			return Resolution{}, &UnknownMethodError{Column: column, Requested: res.Requested}
		}
		r.logger.Warn("Unknown anonymization method, column left unchanged",
			zap.String("column", column),
			zap.String("requested", res.Requested))
		res.Method = Identity{}
		res.Fallback = true
		r.resolved[column] = res
		return res, nil
	}

	switch id {
	case model.MethodNone:
		res.Method = Identity{}
	case model.MethodHashSHA256:
		res.Method = Hash{Algorithm: transform.SHA256}
	case model.MethodHashMD5:
		res.Method = Hash{Algorithm: transform.MD5}
	case model.MethodRandomToken:
		length := intParam(sel.Params, model.ParamTokenLength, r.opts.DefaultTokenLength)
		res.Method = NewRandomToken(length, r.src)
	case model.MethodRangeGeneralize:
		size := intParam(sel.Params, model.ParamRangeSize, r.opts.DefaultRangeSize)
		res.Method = NewRangeGeneralize(size, r.opts.RangePolicy == RangeReject)
	case model.MethodSwap:
		mapping, ok := r.mappings[column]
		if !ok {
			return Resolution{}, fmt.Errorf("no swap mapping built for column %q", column)
		}
		res.Method = NewSwap(mapping)
	}

	r.logger.Debug("Resolved anonymization method",
		zap.String("column", column),
		zap.String("method", string(res.Method.ID())))

	r.resolved[column] = res
	return res, nil
}

// Resolutions returns every resolution made so far, keyed by column
func (r *Resolver) Resolutions() map[string]Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Resolution, len(r.resolved))
	for k, v := range r.resolved {
		out[k] = v
	}
	return out
}

// intParam reads a positive integer parameter, returning def when it is
// missing or unparsable.
func intParam(params map[string]interface{}, key string, def int) int {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def
	}

	f, err := transform.ToFloat(raw)
	if err != nil || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return def
	}
	return int(f)
}
