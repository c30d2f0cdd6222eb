package types

import "regexp"

// ArchetypeNamePattern is the allowed shape for an archetype name,
// enforced by the resolver before any I/O is attempted.
var ArchetypeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ArchetypeConfig holds the free-form policy knobs an archetype carries
// alongside its rule/fact/operator/plugin references.
type ArchetypeConfig struct {
	MinimumDependencyVersions map[string]string `json:"minimumDependencyVersions,omitempty"`
	StandardStructure         any                `json:"standardStructure,omitempty"`
	BlacklistPatterns         []string           `json:"blacklistPatterns,omitempty"`
	WhitelistPatterns         []string           `json:"whitelistPatterns,omitempty"`
}

// Archetype is a named, immutable-after-load bundle of rules, operators,
// facts, plugins and configuration describing an expected repository shape.
//
// Rules may be embedded objects (Rules) or bare string references (RuleRefs)
// resolved by the Config Resolver against "<dir>/rules/<name>-rule.json" or
// the remote equivalent. When Rules is non-empty, RuleRefs is ignored.
type Archetype struct {
	Name          string          `json:"name" validate:"required"`
	RuleRefs      []string        `json:"ruleRefs,omitempty"`
	Rules         []Rule          `json:"rules,omitempty"`
	OperatorRefs  []string        `json:"operatorRefs,omitempty"`
	FactRefs      []string        `json:"factRefs,omitempty"`
	PluginRefs    []string        `json:"pluginRefs,omitempty"`
	Config        ArchetypeConfig `json:"config,omitempty"`
	ExemptionRefs []Exemption     `json:"exemptions,omitempty"`
}
