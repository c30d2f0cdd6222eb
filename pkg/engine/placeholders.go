package engine

import (
	"context"
	"strings"

	"github.com/archkit/archkit/pkg/registry"
)

// substitutePlaceholders walks params recursively, replacing any string
// value of the exact form "$factName" with that fact's current value
// from almanac, per spec.md §4.4's "replace facts-in-event-params". A
// string that merely contains a "$" elsewhere is left untouched.
func substitutePlaceholders(ctx context.Context, almanac registry.Almanac, params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = substituteValue(ctx, almanac, v)
	}
	return out
}

func substituteValue(ctx context.Context, almanac registry.Almanac, v any) any {
	switch t := v.(type) {
	case string:
		if !strings.HasPrefix(t, "$") || len(t) == 1 {
			return t
		}
		name := t[1:]
		resolved, err := almanac.FactValue(ctx, name, nil, "")
		if err != nil {
			return t
		}
		return resolved
	case map[string]any:
		return substitutePlaceholders(ctx, almanac, t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = substituteValue(ctx, almanac, item)
		}
		return out
	default:
		return v
	}
}
