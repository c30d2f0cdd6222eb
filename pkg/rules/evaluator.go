// Package rules implements the rule evaluator (C6): walking a
// ConditionTree's All/Any/Leaf structure with short-circuit evaluation,
// dispatching Leaf comparisons to operators, and returning an evaluation
// failure to the caller as an error (pkg/engine turns it into an
// engine-error finding rather than aborting the file).
package rules

import (
	"context"
	"fmt"

	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/types"
)

// Almanac is the subset of registry.Almanac the evaluator needs.
type Almanac interface {
	FactValue(ctx context.Context, name string, params map[string]any, path string) (any, error)
}

// Evaluator holds the operator table rules dispatch Leaf comparisons
// through.
type Evaluator struct {
	operators map[string]registry.OperatorFn
}

// New builds an Evaluator from the flattened operator list.
func New(operators []registry.Operator) *Evaluator {
	table := make(map[string]registry.OperatorFn, len(operators))
	for _, op := range operators {
		table[op.Name] = op.Fn
	}
	return &Evaluator{operators: table}
}

// Evaluate walks tree, returning whether it is satisfied. All/Any
// evaluate their children left-to-right and short-circuit on the first
// determining result, matching the condition tree's source-textual
// order; a Leaf's declared priority affects only fact *scheduling*
// (which facts a caller may choose to precompute first), never which
// order conditions are evaluated in.
func (e *Evaluator) Evaluate(ctx context.Context, almanac Almanac, tree types.ConditionTree) (bool, error) {
	switch tree.Kind {
	case types.KindAll:
		return e.evaluateAll(ctx, almanac, tree.All)
	case types.KindAny:
		return e.evaluateAny(ctx, almanac, tree.Any)
	case types.KindLeaf:
		return e.evaluateLeaf(ctx, almanac, tree.Leaf)
	default:
		return false, fmt.Errorf("condition tree has no kind set")
	}
}

// evaluateAll is vacuously true for an empty slice, per spec.md §3.
func (e *Evaluator) evaluateAll(ctx context.Context, almanac Almanac, children []types.ConditionTree) (bool, error) {
	for _, child := range children {
		ok, err := e.Evaluate(ctx, almanac, child)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// evaluateAny is vacuously false for an empty slice, per spec.md §3.
func (e *Evaluator) evaluateAny(ctx context.Context, almanac Almanac, children []types.ConditionTree) (bool, error) {
	for _, child := range children {
		ok, err := e.Evaluate(ctx, almanac, child)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *Evaluator) evaluateLeaf(ctx context.Context, almanac Almanac, leaf *types.Leaf) (bool, error) {
	if leaf == nil {
		return false, fmt.Errorf("leaf condition is nil")
	}
	value, err := almanac.FactValue(ctx, leaf.Fact, leaf.Params, leaf.Path)
	if err != nil {
		return false, fmt.Errorf("resolving fact %q: %w", leaf.Fact, err)
	}
	op, ok := e.operators[leaf.Operator]
	if !ok {
		return false, fmt.Errorf("unknown operator %q", leaf.Operator)
	}
	return op(value, leaf.Value), nil
}
