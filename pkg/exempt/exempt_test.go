package exempt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/archkit/archkit/pkg/types"
)

func TestIsExemptMatchesGlobPatternAgainstRepoURL(t *testing.T) {
	m := New("https://github.com/acme/widgets", []types.Exemption{
		{RuleName: "no-console-log", Pattern: "https://github.com/acme/*"},
	})
	assert.True(t, m.IsExempt("no-console-log"))
	assert.False(t, m.IsExempt("other-rule"))
}

func TestIsExemptFalseWhenExpired(t *testing.T) {
	m := New("https://github.com/acme/widgets", []types.Exemption{
		{RuleName: "no-console-log", Pattern: "https://github.com/acme/*", ExpirationDate: "2000-01-01"},
	})
	assert.False(t, m.IsExempt("no-console-log"))
}

func TestIsExemptTrueWhenNotYetExpired(t *testing.T) {
	future := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	m := New("https://github.com/acme/widgets", []types.Exemption{
		{RuleName: "no-console-log", Pattern: "https://github.com/acme/*", ExpirationDate: future},
	})
	assert.True(t, m.IsExempt("no-console-log"))
}

func TestIsExemptFalseWhenPatternDoesNotMatch(t *testing.T) {
	m := New("https://github.com/other/widgets", []types.Exemption{
		{RuleName: "no-console-log", Pattern: "https://github.com/acme/*"},
	})
	assert.False(t, m.IsExempt("no-console-log"))
}

func TestIsExemptFallsBackToRepoURLWhenPatternEmpty(t *testing.T) {
	m := New("https://github.com/acme/widgets", []types.Exemption{
		{RuleName: "no-console-log", RepoURL: "https://github.com/acme/widgets"},
	})
	assert.True(t, m.IsExempt("no-console-log"))
}

func TestIsExemptGrantedOnExactRepoURLEvenWhenPatternDoesNotMatch(t *testing.T) {
	m := New("https://github.com/acme/widgets", []types.Exemption{
		{RuleName: "no-console-log", RepoURL: "https://github.com/acme/widgets", Pattern: "https://github.com/other/*"},
	})
	assert.True(t, m.IsExempt("no-console-log"))
}
