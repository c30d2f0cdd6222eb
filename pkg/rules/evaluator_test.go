package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archkit/archkit/pkg/plugins/baseoperators"
	"github.com/archkit/archkit/pkg/types"
	"github.com/archkit/archkit/pkg/xjson"
)

type fakeAlmanac struct {
	values map[string]any
}

func (f *fakeAlmanac) FactValue(ctx context.Context, name string, params map[string]any, path string) (any, error) {
	return xjson.ExtractPath(f.values[name], path)
}

func newEvaluator() *Evaluator {
	return New(baseoperators.New().Operators())
}

func TestEvaluateLeafDispatchesOperator(t *testing.T) {
	e := newEvaluator()
	almanac := &fakeAlmanac{values: map[string]any{"x": map[string]any{"v": 7.0}}}

	tree := types.ConditionTree{Kind: types.KindLeaf, Leaf: &types.Leaf{Fact: "x", Path: "$.v", Operator: "greaterThan", Value: 5.0}}
	ok, err := e.Evaluate(context.Background(), almanac, tree)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateEmptyAllIsVacuouslyTrue(t *testing.T) {
	e := newEvaluator()
	ok, err := e.Evaluate(context.Background(), &fakeAlmanac{}, types.ConditionTree{Kind: types.KindAll})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateEmptyAnyIsVacuouslyFalse(t *testing.T) {
	e := newEvaluator()
	ok, err := e.Evaluate(context.Background(), &fakeAlmanac{}, types.ConditionTree{Kind: types.KindAny})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateAllShortCircuitsOnFirstFalse(t *testing.T) {
	e := newEvaluator()
	almanac := &fakeAlmanac{values: map[string]any{"a": 1.0, "b": 2.0}}
	tree := types.ConditionTree{
		Kind: types.KindAll,
		All: []types.ConditionTree{
			{Kind: types.KindLeaf, Leaf: &types.Leaf{Fact: "a", Operator: "equal", Value: 999.0}},
			{Kind: types.KindLeaf, Leaf: &types.Leaf{Fact: "b", Operator: "equal", Value: 2.0}},
		},
	}
	ok, err := e.Evaluate(context.Background(), almanac, tree)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateNestedAnyWithinAll(t *testing.T) {
	e := newEvaluator()
	almanac := &fakeAlmanac{values: map[string]any{"a": 1.0, "b": 2.0, "c": 3.0}}
	tree := types.ConditionTree{
		Kind: types.KindAll,
		All: []types.ConditionTree{
			{Kind: types.KindLeaf, Leaf: &types.Leaf{Fact: "a", Operator: "equal", Value: 1.0}},
			{Kind: types.KindAny, Any: []types.ConditionTree{
				{Kind: types.KindLeaf, Leaf: &types.Leaf{Fact: "b", Operator: "equal", Value: 999.0}},
				{Kind: types.KindLeaf, Leaf: &types.Leaf{Fact: "c", Operator: "equal", Value: 3.0}},
			}},
		},
	}
	ok, err := e.Evaluate(context.Background(), almanac, tree)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateLeafUnknownOperatorErrors(t *testing.T) {
	e := newEvaluator()
	tree := types.ConditionTree{Kind: types.KindLeaf, Leaf: &types.Leaf{Fact: "a", Operator: "bogus", Value: 1.0}}
	_, err := e.Evaluate(context.Background(), &fakeAlmanac{}, tree)
	require.Error(t, err)
}
