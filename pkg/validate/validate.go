// Package validate checks archetype and rule documents against structural
// rules beyond what JSON unmarshaling alone enforces: required fields, name
// patterns, and the conditions: {all|any} XOR that a bare struct tag can't
// express. The repo-local config file is not validated here.
package validate

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/archkit/archkit/internal/xerrors"
	"github.com/archkit/archkit/pkg/types"
)

// Validator wraps a configured go-playground/validator instance.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with the conditions-XOR struct rule registered.
func New() *Validator {
	v := validator.New()
	v.RegisterStructValidation(conditionTreeValidation, types.ConditionTree{})
	return &Validator{v: v}
}

// conditionTreeValidation enforces that a ConditionTree sets exactly one
// of All, Any, or Leaf, matching the tagged-union wire format.
func conditionTreeValidation(sl validator.StructLevel) {
	ct := sl.Current().Interface().(types.ConditionTree)

	set := 0
	if ct.All != nil {
		set++
	}
	if ct.Any != nil {
		set++
	}
	if ct.Leaf != nil {
		set++
	}
	if set != 1 {
		sl.ReportError(ct.Kind, "Kind", "Kind", "condition_xor", "")
	}
}

// Rule validates a single rule document, including its condition tree.
func (val *Validator) Rule(r *types.Rule) error {
	if r.Name == "" {
		return xerrors.New(xerrors.InvalidRule, "rule name must not be empty")
	}
	if !r.Event.Type.Valid() {
		return xerrors.New(xerrors.InvalidRule, fmt.Sprintf("rule %q: invalid event type %q", r.Name, r.Event.Type))
	}
	if err := val.v.Struct(r.Conditions); err != nil {
		return xerrors.Wrap(err, xerrors.InvalidRule, fmt.Sprintf("rule %q", r.Name))
	}
	return nil
}

// Archetype validates the top-level archetype document's own shape: a
// valid name and well-formed exemption refs. It does not recurse into
// a.Rules — rule-level validity is checked separately by Rule, one rule
// at a time, so a single malformed rule can be dropped without failing
// the whole archetype (spec.md §4.2 step 4's "invalid rules are dropped
// with an error; the run continues" vs. §4.2 step 2's archetype-level
// "schema-invalid response ... -> ConfigFetchFailed").
func (val *Validator) Archetype(a *types.Archetype) error {
	if !types.ArchetypeNamePattern.MatchString(a.Name) {
		return xerrors.New(xerrors.BadArchetypeName, fmt.Sprintf("archetype name %q does not match %s", a.Name, types.ArchetypeNamePattern.String()))
	}
	for _, ex := range a.ExemptionRefs {
		if ex.RuleName == "" {
			return xerrors.New(xerrors.BadConfig, "exemption missing ruleName")
		}
		if ex.RepoURL == "" && ex.Pattern == "" {
			return xerrors.New(xerrors.BadConfig, "exemption must set repoUrl, pattern, or both")
		}
	}
	return nil
}
