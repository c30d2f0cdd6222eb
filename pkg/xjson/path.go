package xjson

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// ExtractPath applies a JsonPath expression (e.g. "$.v", "$.a.b") to v and
// returns the first matching value. An empty path returns v unchanged. A
// path that yields nothing, or whose lookup fails at run time (such as
// indexing into a string), returns nil rather than an error — consistent
// with the almanac's "missing facts resolve to null" policy extended to
// path lookups. A path that does not parse returns an error.
//
// archkit translates the leading "$" into gojq's implicit root and otherwise
// passes the dotted remainder straight through, since gojq's query language
// is a superset of the dotted-path subset rule authors use.
func ExtractPath(v Value, path string) (Value, error) {
	if path == "" {
		return v, nil
	}

	query, err := parseQuery(path)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}

	iter := query.Run(v)
	result, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, ok := result.(error); ok {
		return nil, nil //nolint:nilerr // malformed lookups resolve to null, not a hard error
	}
	return result, nil
}

func parseQuery(path string) (*gojq.Code, error) {
	expr := path
	if len(expr) > 0 && expr[0] == '$' {
		expr = expr[1:]
		if expr == "" {
			expr = "."
		}
	}

	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, err
	}
	return gojq.Compile(parsed)
}
