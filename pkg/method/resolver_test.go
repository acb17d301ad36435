package method

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/transform"
)

func newTestResolver(t *testing.T, opts Options) (*Resolver, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	r, err := NewResolver(opts, transform.NewSeededSource(42), zap.New(core))
	require.NoError(t, err)
	return r, logs
}

func sel(id model.MethodID, params map[string]interface{}) model.MethodSelection {
	return model.MethodSelection{Method: id, Params: params}
}

func TestNewResolverRejectsNilDependencies(t *testing.T) {
	_, err := NewResolver(Options{}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewResolver(Options{}, transform.NewSeededSource(1), nil)
	assert.Error(t, err)
}

func TestResolveIdentity(t *testing.T) {
	r, _ := newTestResolver(t, DefaultOptions())

	res, err := r.Resolve("Notes", sel(model.MethodNone, nil))
	require.NoError(t, err)

	out, err := res.Method.Apply("keep me")
	require.NoError(t, err)
	assert.Equal(t, "keep me", out)
	assert.False(t, res.Fallback)
}

func TestResolveHashAliases(t *testing.T) {
	r, _ := newTestResolver(t, DefaultOptions())

	sha, err := r.Resolve("Email", sel("sha256", nil))
	require.NoError(t, err)
	assert.Equal(t, model.MethodHashSHA256, sha.Method.ID())

	md5, err := r.Resolve("Phone", sel("md5", nil))
	require.NoError(t, err)
	assert.Equal(t, model.MethodHashMD5, md5.Method.ID())

	out, err := md5.Method.Apply("abc")
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", out)
}

func TestRandomTokenReusedForRepeatedValue(t *testing.T) {
	r, _ := newTestResolver(t, DefaultOptions())

	res, err := r.Resolve("Name", sel(model.MethodRandomToken, map[string]interface{}{model.ParamTokenLength: 8}))
	require.NoError(t, err)

	var tokens []interface{}
	for _, v := range []string{"Alice", "Bob", "Alice", "Alice"} {
		out, err := res.Method.Apply(v)
		require.NoError(t, err)
		tokens = append(tokens, out)
	}

	assert.Len(t, tokens[0], 8)
	assert.Equal(t, tokens[0], tokens[2])
	assert.Equal(t, tokens[0], tokens[3])
	assert.NotEqual(t, tokens[0], tokens[1])
	assert.Equal(t, 2, res.Method.(*RandomToken).Issued())
}

func TestRandomTokenSharedAcrossResolveCalls(t *testing.T) {
	r, _ := newTestResolver(t, DefaultOptions())

	first, err := r.Resolve("Name", sel("random_string", nil))
	require.NoError(t, err)
	second, err := r.Resolve("Name", sel("random_string", nil))
	require.NoError(t, err)

	a, _ := first.Method.Apply("Alice")
	b, _ := second.Method.Apply("Alice")
	assert.Equal(t, a, b)
	assert.Len(t, a, transform.DefaultTokenLength)
}

func TestRangeGeneralizeParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
		want   int
	}{
		{"missing", nil, 10},
		{"int", map[string]interface{}{model.ParamRangeSize: 5}, 5},
		{"json number", map[string]interface{}{model.ParamRangeSize: 20.0}, 20},
		{"string", map[string]interface{}{model.ParamRangeSize: "25"}, 25},
		{"unparsable", map[string]interface{}{model.ParamRangeSize: "wide"}, 10},
		{"zero", map[string]interface{}{model.ParamRangeSize: 0}, 10},
		{"fraction", map[string]interface{}{model.ParamRangeSize: 2.5}, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestResolver(t, DefaultOptions())
			res, err := r.Resolve("Age", sel(model.MethodRangeGeneralize, tc.params))
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Method.(*RangeGeneralize).Size)
		})
	}
}

func TestRangeGeneralizeCountsPassThrough(t *testing.T) {
	r, _ := newTestResolver(t, DefaultOptions())
	res, err := r.Resolve("Age", sel("generalize", nil))
	require.NoError(t, err)

	out, err := res.Method.Apply(55)
	require.NoError(t, err)
	assert.Equal(t, "50-59", out)

	out, err = res.Method.Apply("unknown")
	require.NoError(t, err)
	assert.Equal(t, "unknown", out)
	assert.Equal(t, 1, res.Method.(*RangeGeneralize).PassThrough())
	assert.Equal(t, map[string]string{model.ParamRangeSize: "10"}, res.Method.Params())
}

func TestRangeGeneralizeStrictRejects(t *testing.T) {
	opts := DefaultOptions()
	opts.RangePolicy = RangeReject
	r, _ := newTestResolver(t, opts)

	res, err := r.Resolve("Age", sel(model.MethodRangeGeneralize, nil))
	require.NoError(t, err)

	_, err = res.Method.Apply("unknown")
	assert.Error(t, err)
}

func TestSwapUsesMapping(t *testing.T) {
	r, _ := newTestResolver(t, DefaultOptions())
	r.SetMapping("Country", map[string]interface{}{"US": "UK", "UK": "US"})

	res, err := r.Resolve("Country", sel(model.MethodSwap, nil))
	require.NoError(t, err)

	out, _ := res.Method.Apply("US")
	assert.Equal(t, "UK", out)

	out, _ = res.Method.Apply("FR")
	assert.Equal(t, "FR", out)
	assert.Equal(t, 1, res.Method.(*Swap).Misses())
	assert.Equal(t, 2, res.Method.(*Swap).DomainSize())
}

func TestSwapWithoutMappingFails(t *testing.T) {
	r, _ := newTestResolver(t, DefaultOptions())

	_, err := r.Resolve("Country", sel(model.MethodSwap, nil))
	assert.Error(t, err)
}

func TestUnknownMethodFallsBackAndLogs(t *testing.T) {
	r, logs := newTestResolver(t, DefaultOptions())

	res, err := r.Resolve("Salary", sel("scramble", nil))
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, "scramble", res.Requested)
	out, _ := res.Method.Apply(1000)
	assert.Equal(t, 1000, out)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "Salary", warnings[0].ContextMap()["column"])
	assert.Equal(t, "scramble", warnings[0].ContextMap()["requested"])
}

func TestUnknownMethodRejected(t *testing.T) {
	opts := DefaultOptions()
	opts.UnknownPolicy = UnknownReject
	r, _ := newTestResolver(t, opts)

	_, err := r.Resolve("Salary", sel("scramble", nil))

	var uerr *UnknownMethodError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "Salary", uerr.Column)
}

func TestResolutions(t *testing.T) {
	r, _ := newTestResolver(t, DefaultOptions())
	_, err := r.Resolve("A", sel(model.MethodNone, nil))
	require.NoError(t, err)
	_, err = r.Resolve("B", sel(model.MethodHashSHA256, nil))
	require.NoError(t, err)

	assert.Len(t, r.Resolutions(), 2)
}
