// Package engine implements Engine Setup (C4): wiring a registry's
// facts/operators into a fresh Engine, attaching rules (rewriting
// exempt ones), and running the per-file rule pass via pkg/rules.
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/archkit/archkit/pkg/exempt"
	"github.com/archkit/archkit/pkg/facts"
	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/rules"
	"github.com/archkit/archkit/pkg/types"
	"github.com/archkit/archkit/pkg/xjson"
)

// Engine is a fully configured evaluation instance for one run: its
// facts/operators are fixed at construction, and rules are attached one
// at a time via AttachRule.
type Engine struct {
	factsByName map[string]registry.Fact
	evaluator   *rules.Evaluator
	shared      *facts.SharedState
	metrics     *facts.MetricsStore
	log         zerolog.Logger

	// ruleConditions and ruleEvents are explicit side-tables keyed by
	// attached rule name. The underlying evaluator only walks a
	// ConditionTree value it's handed; nothing here relies on reaching
	// into evaluator-private state to recover a rule's original shape.
	ruleOrder      []string
	ruleConditions map[string]types.ConditionTree
	ruleEvents     map[string]types.Event
}

// New builds an Engine from a flattened fact/operator set (normally
// registry.Registry.Facts()/Operators()).
func New(factList []registry.Fact, operators []registry.Operator, metrics *facts.MetricsStore, log zerolog.Logger) *Engine {
	byName := make(map[string]registry.Fact, len(factList))
	for _, f := range factList {
		if _, dup := byName[f.Name]; dup {
			log.Warn().Str("fact", f.Name).Msg("duplicate fact name, last registration wins")
		}
		byName[f.Name] = f
	}

	return &Engine{
		factsByName:    byName,
		evaluator:      rules.New(operators),
		shared:         facts.NewSharedState(),
		metrics:        metrics,
		log:            log,
		ruleConditions: make(map[string]types.ConditionTree),
		ruleEvents:     make(map[string]types.Event),
	}
}

// AttachRule registers rule for evaluation. If matcher reports the rule
// exempt for the current repo, a clone with event.type rewritten to
// "exempt" is attached instead of the original — the original passed in
// by the caller is never mutated. Re-attaching a name overwrites the
// previous attachment (last write wins), matching the engine's general
// duplicate-name policy.
func (e *Engine) AttachRule(rule types.Rule, matcher *exempt.Matcher) {
	final := rule
	if matcher != nil && matcher.IsExempt(rule.Name) {
		final = rule.Clone()
		final.Event.Type = types.Exempt
	}

	if _, exists := e.ruleConditions[final.Name]; !exists {
		e.ruleOrder = append(e.ruleOrder, final.Name)
	}
	e.ruleConditions[final.Name] = final.Conditions
	e.ruleEvents[final.Name] = final.Event
}

// PrecomputeGlobals evaluates every `global`-scoped fact exactly once
// against repoAlmanac (conventionally an Almanac built for the
// REPO_GLOBAL_CHECK pseudo-file) and stores the results as static data, so
// later per-file lookups of a global fact are O(1) map reads. Per spec.md
// §4.5, a global fact that errors does not abort the run: the error is
// logged and the fact is stored as a null value instead, exactly like any
// other scope's failure policy.
func (e *Engine) PrecomputeGlobals(ctx context.Context, repoAlmanac registry.Almanac) {
	for name, fact := range e.factsByName {
		if fact.EffectiveScope() != registry.Global || fact.Fn == nil {
			continue
		}
		e.shared.SetGlobal(name, e.runGlobal(ctx, repoAlmanac, fact))
	}
}

// runGlobal invokes fact through repoAlmanac's own Run method when
// available, so the execution is timed and counted in the run's
// FactMetrics like any other fact call; callers that hand in a minimal
// Almanac implementation (tests, noop stand-ins) fall back to calling
// fact.Fn directly and simply forgo metrics for that call.
func (e *Engine) runGlobal(ctx context.Context, repoAlmanac registry.Almanac, fact registry.Fact) xjson.Value {
	if runner, ok := repoAlmanac.(interface {
		Run(ctx context.Context, fact registry.Fact, params map[string]any) xjson.Value
	}); ok {
		return runner.Run(ctx, fact, nil)
	}
	v, err := fact.Fn(ctx, nil, repoAlmanac)
	if err != nil {
		e.log.Warn().Err(err).Str("fact", fact.Name).Msg("fact execution failed; resolving to null")
		return nil
	}
	return v
}

// NewAlmanac builds a fresh, per-file Almanac sharing this Engine's
// global/global-function state and metrics store, seeded with the
// current file's own metadata as runtime facts (spec.md §4.6: "construct
// an Almanac seeded with ... the current fileData") so rules can
// reference fileName/filePath/fileContent directly as fact names.
func (e *Engine) NewAlmanac(file types.FileData) *facts.Almanac {
	almanac := facts.New(file, e.factsByName, e.shared, e.metrics, e.log)
	almanac.AddRuntimeFact("fileName", file.FileName)
	almanac.AddRuntimeFact("filePath", file.FilePath)
	almanac.AddRuntimeFact("fileContent", file.FileContent)
	return almanac
}

// EvaluateFile runs every attached rule against file's Almanac, isolating
// a failing rule (unknown operator, unparsable fact path, malformed
// condition tree) to a single engine-error RuleError rather than aborting
// the rest of the file. A fact function's error does not reach this point:
// the Almanac resolves it to null.
func (e *Engine) EvaluateFile(ctx context.Context, file types.FileData) types.RuleFailure {
	almanac := e.NewAlmanac(file)
	failure := types.RuleFailure{FilePath: file.FilePath}

	for _, name := range e.ruleOrder {
		tree := e.ruleConditions[name]
		matched, err := e.evaluator.Evaluate(ctx, almanac, tree)
		if err != nil {
			failure.Errors = append(failure.Errors, types.RuleError{
				RuleFailure: name,
				Level:       types.Error,
				Details:     map[string]any{"engineError": err.Error()},
			})
			continue
		}
		if !matched {
			continue
		}

		event := e.ruleEvents[name]
		resolved := substitutePlaceholders(ctx, almanac, event.Params)
		failure.Errors = append(failure.Errors, types.RuleError{
			RuleFailure: name,
			Level:       event.Type,
			Details:     resolved,
		})
	}
	return failure
}

// RuleNames returns attached rule names in attachment order.
func (e *Engine) RuleNames() []string {
	return append([]string(nil), e.ruleOrder...)
}
