// Package xjson defines the tagged JSON value used throughout archkit's
// fact/operator runtime and provides the stable canonicalization and
// dotted-path extraction helpers the rule evaluator relies on.
//
// Design note: a hand-rolled "enum of null, bool, number, string, array,
// object" would just reimplement what encoding/json already produces when
// you unmarshal into `any` (nil, bool, float64, string, []any,
// map[string]any). Using Value = any here is the idiomatic Go rendering of
// that tagged union — it keeps facts and operators polymorphic without any
// of them needing type switches on a custom enum, and it round-trips
// through encoding/json for free.
package xjson

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Value is any well-formed JSON value, exactly as produced by
// json.Unmarshal into an `any` target.
type Value = any

// Canonical produces a stable string encoding of v such that two
// structurally-equal values always produce identical strings, regardless of
// map key insertion order. It is used as the memoization key component for
// fact parameters (fact name + canonical(params)).
func Canonical(v Value) string {
	var buf []byte
	buf = appendCanonical(buf, v)
	return string(buf)
}

func appendCanonical(buf []byte, v Value) []byte {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = appendCanonical(buf, t[k])
		}
		return append(buf, '}')
	case []any:
		buf = append(buf, '[')
		for i, item := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCanonical(buf, item)
		}
		return append(buf, ']')
	default:
		b, err := json.Marshal(t)
		if err != nil {
			// Unreachable for values produced by json.Unmarshal into `any`,
			// but keep canonicalization total rather than panicking.
			return append(buf, fmt.Sprintf("%q", fmt.Sprint(t))...)
		}
		return append(buf, b...)
	}
}

// Equal reports whether two values are structurally equal, i.e. whether
// Canonical(a) == Canonical(b).
func Equal(a, b Value) bool {
	return Canonical(a) == Canonical(b)
}
