package baseoperators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/archkit/archkit/pkg/registry"
)

func operatorFn(t *testing.T, name string) registry.OperatorFn {
	t.Helper()
	for _, op := range New().Operators() {
		if op.Name == name {
			return op.Fn
		}
	}
	t.Fatalf("operator %q not registered", name)
	return nil
}

func TestEqualAndNotEqual(t *testing.T) {
	assert.True(t, operatorFn(t, "equal")(float64(1), float64(1)))
	assert.False(t, operatorFn(t, "equal")("a", "b"))
	assert.True(t, operatorFn(t, "notEqual")("a", "b"))
}

func TestNumericComparisons(t *testing.T) {
	assert.True(t, operatorFn(t, "greaterThan")(float64(3), float64(2)))
	assert.False(t, operatorFn(t, "greaterThan")(float64(2), float64(2)))
	assert.True(t, operatorFn(t, "greaterThanInclusive")(float64(2), float64(2)))
	assert.True(t, operatorFn(t, "lessThan")(float64(1), float64(2)))
	assert.True(t, operatorFn(t, "lessThanInclusive")(float64(2), float64(2)))
	assert.False(t, operatorFn(t, "greaterThan")("nope", float64(2)))
}

func TestContainsStringAndSlice(t *testing.T) {
	contains := operatorFn(t, "contains")
	assert.True(t, contains("hello world", "world"))
	assert.False(t, contains("hello world", "xyz"))
	assert.True(t, contains([]any{"a", "b"}, "b"))
	assert.False(t, contains(42, "b"))
}

func TestInChecksMembershipOfExpectedList(t *testing.T) {
	in := operatorFn(t, "in")
	assert.True(t, in("b", []any{"a", "b"}))
	assert.False(t, in("z", []any{"a", "b"}))
	assert.False(t, in("a", "not-a-list"))
}

func TestMatchesRegex(t *testing.T) {
	matches := operatorFn(t, "matchesRegex")
	assert.True(t, matches("index.test.ts", `\.test\.ts$`))
	assert.False(t, matches("index.ts", `\.test\.ts$`))
	assert.False(t, matches("index.ts", `(`))
	assert.False(t, matches(42, `.*`))
}

func TestUndefinedAndDefined(t *testing.T) {
	assert.True(t, operatorFn(t, "undefined")(nil, nil))
	assert.False(t, operatorFn(t, "undefined")("x", nil))
	assert.True(t, operatorFn(t, "defined")("x", nil))
	assert.False(t, operatorFn(t, "defined")(nil, nil))
}

func TestPluginIdentity(t *testing.T) {
	p := New()
	assert.Equal(t, "baseOperators", p.Name())
	assert.Equal(t, "1.0.0", p.Version())
	assert.Nil(t, p.Facts())
}
