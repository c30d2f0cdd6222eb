package match

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/spf13/afero"
)

// IgnorefilePattern wraps go-git's gitignore parser so the reference
// filesystem fact plugin can honor a repository's own .gitignore during
// collection, the same mechanism the teacher uses for tree rendering.
type IgnorefilePattern struct {
	matcher gitignore.Matcher
}

// NewIgnorefilePattern loads patterns from a .gitignore file.
func NewIgnorefilePattern(fs afero.Fs, path string) (*IgnorefilePattern, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading gitignore %s: %w", path, err)
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	return &IgnorefilePattern{matcher: gitignore.NewMatcher(patterns)}, nil
}

// Matches implements Pattern.
func (ip *IgnorefilePattern) Matches(path string, isDir bool) bool {
	clean := strings.TrimPrefix(path, "/")
	return ip.matcher.Match(strings.Split(clean, "/"), isDir)
}

func (ip *IgnorefilePattern) String() string {
	return "gitignore"
}
