package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellPatternBasenameMatch(t *testing.T) {
	p := NewShellPattern("*.tmp")
	assert.True(t, p.Matches("build/output.tmp", false))
	assert.False(t, p.Matches("build/output.go", false))
}

func TestShellPatternFullPathGlob(t *testing.T) {
	p := NewShellPattern("src/**/generated.go")
	assert.True(t, p.Matches("src/a/b/generated.go", false))
	assert.False(t, p.Matches("src/a/b/real.go", false))
}

func TestShellPatternString(t *testing.T) {
	assert.Equal(t, "shell-glob:*.log", NewShellPattern("*.log").String())
}
