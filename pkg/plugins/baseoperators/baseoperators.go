// Package baseoperators ships the small set of comparison operators
// every archetype can rely on without declaring an operatorRef: equality,
// ordering, membership, and regex matching over tagged JSON values.
package baseoperators

import (
	"regexp"
	"strings"

	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/xjson"
)

// Plugin exposes the base operator set. It has no facts and never fails
// to initialize.
type Plugin struct{}

// New returns a Plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string               { return "baseOperators" }
func (p *Plugin) Version() string            { return "1.0.0" }
func (p *Plugin) Facts() []registry.Fact     { return nil }

func (p *Plugin) Operators() []registry.Operator {
	return []registry.Operator{
		{Name: "equal", Fn: equal},
		{Name: "notEqual", Fn: func(a, b xjson.Value) bool { return !equal(a, b) }},
		{Name: "greaterThan", Fn: numeric(func(a, b float64) bool { return a > b })},
		{Name: "lessThan", Fn: numeric(func(a, b float64) bool { return a < b })},
		{Name: "greaterThanInclusive", Fn: numeric(func(a, b float64) bool { return a >= b })},
		{Name: "lessThanInclusive", Fn: numeric(func(a, b float64) bool { return a <= b })},
		{Name: "contains", Fn: contains},
		{Name: "in", Fn: in},
		{Name: "matchesRegex", Fn: matchesRegex},
		{Name: "undefined", Fn: func(a, _ xjson.Value) bool { return a == nil }},
		{Name: "defined", Fn: func(a, _ xjson.Value) bool { return a != nil }},
	}
}

func equal(a, b xjson.Value) bool {
	return xjson.Equal(a, b)
}

func toFloat(v xjson.Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func numeric(cmp func(a, b float64) bool) registry.OperatorFn {
	return func(factValue, expected xjson.Value) bool {
		a, ok1 := toFloat(factValue)
		b, ok2 := toFloat(expected)
		if !ok1 || !ok2 {
			return false
		}
		return cmp(a, b)
	}
}

func contains(factValue, expected xjson.Value) bool {
	switch haystack := factValue.(type) {
	case string:
		needle, ok := expected.(string)
		if !ok {
			return false
		}
		return strings.Contains(haystack, needle)
	case []any:
		for _, item := range haystack {
			if xjson.Equal(item, expected) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func in(factValue, expected xjson.Value) bool {
	list, ok := expected.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if xjson.Equal(item, factValue) {
			return true
		}
	}
	return false
}

func matchesRegex(factValue, expected xjson.Value) bool {
	str, ok := factValue.(string)
	if !ok {
		return false
	}
	pattern, ok := expected.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(str)
}
