// Package exempt implements the exemption matcher (C8): deciding whether
// a rule is covered, for a given repository, by an unexpired exemption.
// The matcher only answers yes or no; pkg/engine rewrites an exempt
// rule's event type to "exempt".
package exempt

import (
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/archkit/archkit/pkg/types"
)

// Matcher checks rule failures against a fixed set of exemptions for one
// run (one repoURL).
type Matcher struct {
	repoURL    string
	exemptions []types.Exemption
	now        func() time.Time
}

// New builds a Matcher for repoURL against the given exemptions.
func New(repoURL string, exemptions []types.Exemption) *Matcher {
	return &Matcher{repoURL: repoURL, exemptions: exemptions, now: time.Now}
}

// IsExempt reports whether ruleName is covered by an unexpired exemption
// matching the matcher's repoURL.
func (m *Matcher) IsExempt(ruleName string) bool {
	for _, ex := range m.exemptions {
		if ex.RuleName != ruleName {
			continue
		}
		if !m.matchesRepo(ex) {
			continue
		}
		expiry, hasExpiry, err := ex.ParsedExpiration()
		if err != nil {
			continue // malformed date: don't grant the exemption
		}
		if hasExpiry && m.now().After(expiry) {
			continue // expired
		}
		return true
	}
	return false
}

// matchesRepo reports whether ex covers the matcher's repoURL, per
// spec.md §4.8: an exact match against ex.RepoURL, OR a doublestar glob
// match against ex.Pattern. Either field alone is sufficient; when both
// are set, an exact RepoURL match grants the exemption even if Pattern
// happens not to glob-match.
func (m *Matcher) matchesRepo(ex types.Exemption) bool {
	if ex.RepoURL != "" && ex.RepoURL == m.repoURL {
		return true
	}
	if ex.Pattern == "" {
		return false
	}
	matched, err := doublestar.Match(ex.Pattern, m.repoURL)
	return err == nil && matched
}
