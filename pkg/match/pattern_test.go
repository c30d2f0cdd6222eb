package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHiddenPatternExcludesDotfiles(t *testing.T) {
	p := NewHiddenPattern(true)
	assert.True(t, p.Matches(".env", false))
	assert.False(t, p.Matches("main.go", false))
	assert.False(t, p.Matches(".", true))
}

func TestCompositeFilterOrsPatterns(t *testing.T) {
	filter := NewCompositeFilter(NewShellPattern("*.log"), NewHiddenPattern(true))
	assert.True(t, filter.ShouldExclude("debug.log", false))
	assert.True(t, filter.ShouldExclude(".git", true))
	assert.False(t, filter.ShouldExclude("main.go", false))
}

func TestFilterBuilderBuiltinIgnores(t *testing.T) {
	filter := NewFilterBuilder().AddBuiltinIgnores(true).Build()
	assert.True(t, filter.ShouldExclude("node_modules", true))
	assert.True(t, filter.ShouldExclude("debug.log", false))
}

func TestFilterBuilderDisabledBuiltinIgnores(t *testing.T) {
	filter := NewFilterBuilder().AddBuiltinIgnores(false).Build()
	assert.False(t, filter.ShouldExclude("node_modules", true))
}
