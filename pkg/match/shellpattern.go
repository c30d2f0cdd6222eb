package match

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ShellPattern matches paths using doublestar glob semantics (supports **).
type ShellPattern struct {
	pattern string
}

// NewShellPattern builds a glob pattern matcher.
func NewShellPattern(pattern string) *ShellPattern {
	return &ShellPattern{pattern: pattern}
}

// Matches implements Pattern.
func (sp *ShellPattern) Matches(path string, _ bool) bool {
	if matched, err := doublestar.PathMatch(sp.pattern, path); err == nil && matched {
		return true
	}
	if !strings.Contains(sp.pattern, "/") {
		if matched, err := doublestar.Match(sp.pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}

func (sp *ShellPattern) String() string {
	return fmt.Sprintf("shell-glob:%s", sp.pattern)
}
