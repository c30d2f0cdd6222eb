// Package registry implements the plugin registry (C1): registration,
// async initialization tracking, and the flat aggregated views over
// facts/operators that the engine and orchestrator consume.
package registry

import (
	"context"

	"github.com/archkit/archkit/pkg/xjson"
)

// Scope classifies how often a fact's function conceptually runs.
type Scope string

const (
	// Global facts run exactly once per run; their result is attached as
	// static data.
	Global Scope = "global"
	// GlobalFunction facts address the whole repo but may be invoked
	// multiple times with different params; memoized per run.
	GlobalFunction Scope = "global-function"
	// IterativeFunction facts are invoked once per file; memoized per
	// file. This is the default scope when unspecified.
	IterativeFunction Scope = "iterative-function"
)

// Almanac is the per-file (or per-run, for global facts) evaluation
// context a Fact's function is handed. It is implemented by pkg/facts.
type Almanac interface {
	FactValue(ctx context.Context, name string, params map[string]any, path string) (xjson.Value, error)
	AddRuntimeFact(name string, value xjson.Value)
}

// FactFn computes a fact's value given params and a handle back into the
// almanac for cross-fact lookups.
type FactFn func(ctx context.Context, params map[string]any, almanac Almanac) (xjson.Value, error)

// Fact is a named, possibly memoized function from (params, almanac) to a
// JSON value.
type Fact struct {
	Name     string
	Fn       FactFn
	Priority int // default 1 when zero
	Type     Scope
}

// EffectivePriority returns Priority, defaulting to 1.
func (f Fact) EffectivePriority() int {
	if f.Priority == 0 {
		return 1
	}
	return f.Priority
}

// EffectiveScope returns Type, defaulting to IterativeFunction.
func (f Fact) EffectiveScope() Scope {
	if f.Type == "" {
		return IterativeFunction
	}
	return f.Type
}

// OperatorFn compares a fact value against an expected value.
type OperatorFn func(factValue, expected xjson.Value) bool

// Operator is a named pure comparison function, with no side effects.
type Operator struct {
	Name string
	Fn   OperatorFn
}

// Plugin is the contract every fact/operator provider implements.
type Plugin interface {
	Name() string
	Version() string
	Facts() []Fact
	Operators() []Operator
}

// Initializer is an optional capability: a plugin needing asynchronous
// setup (connecting to a service, warming a cache) implements it. The
// returned channel must be closed, or send at most one error and then
// close, when initialization settles.
type Initializer interface {
	Initialize(ctx context.Context) <-chan error
}

// Cleaner is an optional capability for releasing resources at shutdown.
type Cleaner interface {
	Cleanup() error
}
