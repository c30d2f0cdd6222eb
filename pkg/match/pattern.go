// Package match provides the composable path-exclusion filters used by the
// reference filesystem fact plugin to decide which repository paths even
// reach the archetype's regex blacklist/whitelist stage. Adapted from the
// teacher's pattern-matching package: a Pattern interface plus a
// CompositeFilter that ORs several exclusion mechanisms together (built-in
// VCS/build-artifact ignores, user globs, .gitignore, hidden files).
package match

import (
	"path/filepath"
	"strings"
)

// Pattern decides whether a path should be excluded from file collection.
type Pattern interface {
	Matches(path string, isDir bool) bool
	String() string
}

// CompositeFilter ORs together any number of Patterns.
type CompositeFilter struct {
	patterns []Pattern
}

// NewCompositeFilter builds a filter from the given patterns.
func NewCompositeFilter(patterns ...Pattern) *CompositeFilter {
	return &CompositeFilter{patterns: patterns}
}

// ShouldExclude reports whether any pattern excludes path.
func (cf *CompositeFilter) ShouldExclude(path string, isDir bool) bool {
	for _, p := range cf.patterns {
		if p.Matches(path, isDir) {
			return true
		}
	}
	return false
}

// AddPattern appends a pattern to the filter.
func (cf *CompositeFilter) AddPattern(p Pattern) {
	cf.patterns = append(cf.patterns, p)
}

// HiddenPattern matches dotfiles/dotdirs.
type HiddenPattern struct {
	exclude bool
}

// NewHiddenPattern builds a hidden-file pattern; exclude=true means hidden
// paths are excluded from collection.
func NewHiddenPattern(exclude bool) *HiddenPattern {
	return &HiddenPattern{exclude: exclude}
}

// Matches implements Pattern.
func (hp *HiddenPattern) Matches(path string, _ bool) bool {
	base := filepath.Base(path)
	isHidden := strings.HasPrefix(base, ".") && base != "." && base != ".."
	return hp.exclude && isHidden
}

func (hp *HiddenPattern) String() string {
	if hp.exclude {
		return "hidden:exclude"
	}
	return "hidden:include"
}

// BuiltinIgnorePatterns are excluded from file collection by default:
// version-control metadata, dependency caches, and common build/log noise
// that no archetype rule should ever need to see.
var BuiltinIgnorePatterns = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"__pycache__",
	".DS_Store",
	"vendor",
	"*.tmp",
	"*.log",
	".xfiResults",
}

// FilterBuilder composes a CompositeFilter from file-collection options.
type FilterBuilder struct {
	filter *CompositeFilter
}

// NewFilterBuilder starts a new, empty builder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{filter: NewCompositeFilter()}
}

// AddBuiltinIgnores appends BuiltinIgnorePatterns when enabled.
func (fb *FilterBuilder) AddBuiltinIgnores(enabled bool) *FilterBuilder {
	if !enabled {
		return fb
	}
	for _, p := range BuiltinIgnorePatterns {
		fb.filter.AddPattern(NewShellPattern(p))
	}
	return fb
}

// AddHiddenFilter controls hidden-file visibility.
func (fb *FilterBuilder) AddHiddenFilter(includeHidden bool) *FilterBuilder {
	fb.filter.AddPattern(NewHiddenPattern(!includeHidden))
	return fb
}

// Build returns the constructed filter.
func (fb *FilterBuilder) Build() *CompositeFilter {
	return fb.filter
}
