// Package facts implements the Fact Runtime (C5): the Almanac that
// memoizes fact evaluations for one file (or, for global/global-function
// facts, for the whole run), plus the metrics store that tracks
// execution counts and timing per fact name.
package facts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/types"
	"github.com/archkit/archkit/pkg/xjson"
)

// SharedState holds the run-scoped memoization the Almanac needs beyond
// its own per-file cache: precomputed `global` values, and the
// run-lifetime cache for `global-function` facts (which address the
// whole repo but are invoked lazily, possibly with different params from
// different files' Almanacs running concurrently).
type SharedState struct {
	mu               sync.Mutex
	globals          map[string]xjson.Value // precomputed, read-only after Step 7
	globalFuncCache  map[string]xjson.Value // keyed by factName + "\x00" + canonical(params)
}

// NewSharedState builds an empty SharedState.
func NewSharedState() *SharedState {
	return &SharedState{
		globals:         make(map[string]xjson.Value),
		globalFuncCache: make(map[string]xjson.Value),
	}
}

// SetGlobal records the precomputed value of a `global` fact.
func (s *SharedState) SetGlobal(name string, value xjson.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals[name] = value
}

func (s *SharedState) getGlobal(name string) (xjson.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.globals[name]
	return v, ok
}

func (s *SharedState) getGlobalFunc(key string) (xjson.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.globalFuncCache[key]
	return v, ok
}

func (s *SharedState) setGlobalFunc(key string, value xjson.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFuncCache[key] = value
}

// Almanac is the per-file evaluation context handed to a rule's Leaf
// dispatch and to fact functions that look up other facts. Each worker
// in the orchestrator's pool owns its own Almanac, isolating the
// per-file cache; the SharedState it wraps is shared across the run.
type Almanac struct {
	file    types.FileData
	facts   map[string]registry.Fact
	shared  *SharedState
	metrics *MetricsStore
	log     zerolog.Logger

	mu      sync.Mutex
	cache   map[string]xjson.Value // iterative-function, per-file
	runtime map[string]xjson.Value // addRuntimeFact overrides, checked first
}

// New builds an Almanac for a single file.
func New(file types.FileData, facts map[string]registry.Fact, shared *SharedState, metrics *MetricsStore, log zerolog.Logger) *Almanac {
	return &Almanac{
		file:    file,
		facts:   facts,
		shared:  shared,
		metrics: metrics,
		log:     log,
		cache:   make(map[string]xjson.Value),
		runtime: make(map[string]xjson.Value),
	}
}

// AddRuntimeFact implements registry.Almanac: injects a value that
// subsequent FactValue lookups for name will return unconditionally,
// bypassing the registered fact function.
func (a *Almanac) AddRuntimeFact(name string, value xjson.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtime[name] = value
}

// FactValue implements registry.Almanac: resolves name (optionally
// narrowed by path), memoizing per its declared scope. Undefined facts
// resolve to nil rather than an error, per spec.md §4.4's "allow
// undefined facts" policy extended to fact lookups generally.
func (a *Almanac) FactValue(ctx context.Context, name string, params map[string]any, path string) (xjson.Value, error) {
	value, err := a.resolve(ctx, name, params)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return value, nil
	}
	return xjson.ExtractPath(value, path)
}

func (a *Almanac) resolve(ctx context.Context, name string, params map[string]any) (xjson.Value, error) {
	a.mu.Lock()
	if v, ok := a.runtime[name]; ok {
		a.mu.Unlock()
		return v, nil
	}
	a.mu.Unlock()

	fact, ok := a.facts[name]
	if !ok {
		return nil, nil // undefined fact resolves to null
	}

	switch fact.EffectiveScope() {
	case registry.Global:
		v, _ := a.shared.getGlobal(name)
		return v, nil

	case registry.GlobalFunction:
		key := name + "\x00" + xjson.Canonical(params)
		if v, ok := a.shared.getGlobalFunc(key); ok {
			return v, nil
		}
		v := a.Run(ctx, fact, params)
		a.shared.setGlobalFunc(key, v)
		return v, nil

	default: // IterativeFunction
		key := name + "\x00" + xjson.Canonical(params)
		a.mu.Lock()
		if v, ok := a.cache[key]; ok {
			a.mu.Unlock()
			return v, nil
		}
		a.mu.Unlock()

		v := a.Run(ctx, fact, params)
		a.mu.Lock()
		a.cache[key] = v
		a.mu.Unlock()
		return v, nil
	}
}

// Run executes fact.Fn, recording its duration in the metrics store. Per
// the almanac's failure policy, a fact function's error is caught here
// rather than propagated: it is logged and the fact resolves to a null
// value, so one flaky fact degrades to null for every rule that
// references it instead of aborting the run or surfacing as a
// rule-evaluation failure. PrecomputeGlobals calls this directly for
// `global` facts so that one-off invocation is still timed and counted.
func (a *Almanac) Run(ctx context.Context, fact registry.Fact, params map[string]any) xjson.Value {
	start := time.Now()
	v, err := fact.Fn(ctx, params, a)
	a.metrics.Record(fact.Name, time.Since(start))
	if err != nil {
		a.log.Warn().Err(err).Str("fact", fact.Name).Msg("fact execution failed; resolving to null")
		return nil
	}
	return v
}

// File returns the FileData this Almanac was built for.
func (a *Almanac) File() types.FileData {
	return a.file
}
