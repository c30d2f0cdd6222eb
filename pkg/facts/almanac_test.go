package facts

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/types"
)

func TestFactValueReturnsNilForUndefinedFact(t *testing.T) {
	a := New(types.FileData{FilePath: "main.go"}, nil, NewSharedState(), NewMetricsStore(nil), zerolog.Nop())
	v, err := a.FactValue(context.Background(), "unknown", nil, "")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFactValueMemoizesIterativeFunctionPerCall(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
		calls++
		return calls, nil
	}
	facts := map[string]registry.Fact{"count": {Name: "count", Fn: fn}}
	a := New(types.FileData{FilePath: "main.go"}, facts, NewSharedState(), NewMetricsStore(nil), zerolog.Nop())

	v1, err := a.FactValue(context.Background(), "count", nil, "")
	require.NoError(t, err)
	v2, err := a.FactValue(context.Background(), "count", nil, "")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)
}

func TestFactValueDistinguishesParams(t *testing.T) {
	fn := func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
		return params["n"], nil
	}
	facts := map[string]registry.Fact{"echo": {Name: "echo", Fn: fn}}
	a := New(types.FileData{}, facts, NewSharedState(), NewMetricsStore(nil), zerolog.Nop())

	v1, _ := a.FactValue(context.Background(), "echo", map[string]any{"n": 1}, "")
	v2, _ := a.FactValue(context.Background(), "echo", map[string]any{"n": 2}, "")
	assert.EqualValues(t, 1, v1)
	assert.EqualValues(t, 2, v2)
}

func TestFactValueAppliesPathExtraction(t *testing.T) {
	fn := func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
		return map[string]any{"a": map[string]any{"b": "deep"}}, nil
	}
	facts := map[string]registry.Fact{"nested": {Name: "nested", Fn: fn}}
	a := New(types.FileData{}, facts, NewSharedState(), NewMetricsStore(nil), zerolog.Nop())

	v, err := a.FactValue(context.Background(), "nested", nil, "$.a.b")
	require.NoError(t, err)
	assert.Equal(t, "deep", v)
}

func TestAddRuntimeFactOverridesRegisteredFact(t *testing.T) {
	fn := func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
		return "original", nil
	}
	facts := map[string]registry.Fact{"thing": {Name: "thing", Fn: fn}}
	a := New(types.FileData{}, facts, NewSharedState(), NewMetricsStore(nil), zerolog.Nop())

	a.AddRuntimeFact("thing", "overridden")
	v, err := a.FactValue(context.Background(), "thing", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "overridden", v)
}

func TestGlobalFactReadsFromSharedState(t *testing.T) {
	shared := NewSharedState()
	shared.SetGlobal("repoInfo", map[string]any{"url": "https://example.com/acme"})

	facts := map[string]registry.Fact{"repoInfo": {Name: "repoInfo", Type: registry.Global}}
	a := New(types.FileData{}, facts, shared, NewMetricsStore(nil), zerolog.Nop())

	v, err := a.FactValue(context.Background(), "repoInfo", nil, "$.url")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/acme", v)
}

func TestFactValueResolvesToNullAndMemoizesOnFactError(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
		calls++
		return nil, errors.New("boom")
	}
	facts := map[string]registry.Fact{"flaky": {Name: "flaky", Fn: fn}}
	a := New(types.FileData{FilePath: "main.go"}, facts, NewSharedState(), NewMetricsStore(nil), zerolog.Nop())

	v1, err := a.FactValue(context.Background(), "flaky", nil, "")
	require.NoError(t, err)
	assert.Nil(t, v1)

	v2, err := a.FactValue(context.Background(), "flaky", nil, "")
	require.NoError(t, err)
	assert.Nil(t, v2)

	assert.Equal(t, 1, calls, "a failing iterative fact must be invoked at most once per file")
}

func TestGlobalFunctionFactMemoizedAcrossAlmanacs(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
		calls++
		return "computed", nil
	}
	shared := NewSharedState()
	facts := map[string]registry.Fact{"whole": {Name: "whole", Type: registry.GlobalFunction, Fn: fn}}

	a1 := New(types.FileData{FilePath: "a.go"}, facts, shared, NewMetricsStore(nil), zerolog.Nop())
	a2 := New(types.FileData{FilePath: "b.go"}, facts, shared, NewMetricsStore(nil), zerolog.Nop())

	_, err := a1.FactValue(context.Background(), "whole", nil, "")
	require.NoError(t, err)
	_, err = a2.FactValue(context.Background(), "whole", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
