package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/resolver"
	"github.com/archkit/archkit/pkg/types"
)

// fakeRepoPlugin ships two facts exercising both scopes the orchestrator
// treats specially: a global "fileCount" fact computed once, and an
// iterative "lineCount" fact memoized per file. "repoFilesystemFacts"
// stands in for the reference fsplugin without requiring a real
// filesystem walk.
type fakeRepoPlugin struct {
	files []types.FileData
}

func (p *fakeRepoPlugin) Name() string    { return "fakeRepo" }
func (p *fakeRepoPlugin) Version() string { return "1.0.0" }

func (p *fakeRepoPlugin) Facts() []registry.Fact {
	return []registry.Fact{
		{
			Name: "repoFilesystemFacts",
			Type: registry.IterativeFunction,
			Fn: func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
				return p.files, nil
			},
		},
		{
			Name: "fileCount",
			Type: registry.Global,
			Fn: func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
				return len(p.files), nil
			},
		},
		{
			Name: "lineCount",
			Type: registry.IterativeFunction,
			Fn: func(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
				content, _ := almanac.FactValue(ctx, "fileContent", nil, "")
				s, _ := content.(string)
				if s == "" {
					return 0, nil
				}
				return len(strings.Split(s, "\n")), nil
			},
		},
	}
}

func (p *fakeRepoPlugin) Operators() []registry.Operator {
	return []registry.Operator{
		{
			Name: "greaterThan",
			Fn: func(factValue, expected any) bool {
				fv, ok1 := toFloat(factValue)
				ev, ok2 := toFloat(expected)
				return ok1 && ok2 && fv > ev
			},
		},
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func embeddedArchetype(t *testing.T, name string, rules []types.Rule, exemptions []types.Exemption) []byte {
	t.Helper()
	arch := types.Archetype{
		Name:          name,
		Rules:         rules,
		ExemptionRefs: exemptions,
		PluginRefs:    []string{"fakeRepo"},
	}
	data, err := json.Marshal(arch)
	require.NoError(t, err)
	return data
}

func lineCountRule(name string) types.Rule {
	return types.Rule{
		Name: name,
		Conditions: types.ConditionTree{
			Kind: types.KindLeaf,
			Leaf: &types.Leaf{Fact: "lineCount", Operator: "greaterThan", Value: float64(0)},
		},
		Event: types.Event{Type: types.Warning},
	}
}

func newTestOrchestrator(t *testing.T, fs afero.Fs, files []types.FileData, rules []types.Rule, exemptions []types.Exemption) *Orchestrator {
	t.Helper()
	data := embeddedArchetype(t, "test-arch", rules, exemptions)
	require.NoError(t, afero.WriteFile(fs, "/configs/test-arch.json", data, 0o644))

	reg := registry.New(zerolog.Nop())
	res := resolver.New(resolver.Options{
		LocalConfigPath: "/configs",
		AllowedBaseDirs: []string{"/configs"},
		RepoPath:        "/repo",
	}, zerolog.Nop(), fs)

	return New(Options{
		Registry: reg,
		Resolver: res,
		PluginFactories: map[string]PluginFactory{
			"fakeRepo": func(string) registry.Plugin { return &fakeRepoPlugin{files: files} },
		},
	})
}

func TestRunProducesWarningForMatchingRule(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := []types.FileData{{FileName: "a.go", FilePath: "a.go", FileContent: "line1\nline2"}}
	orch := newTestOrchestrator(t, fs, files, []types.Rule{lineCountRule("hasLines")}, nil)

	rc := types.NewRunContext(context.Background(), zerolog.Nop())
	result, err := orch.Run(rc, RunOptions{ArchetypeName: "test-arch", RepoPath: "/repo", RepoURL: "git@example.com:owner/repo"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.Equal(t, result.WarningCount+result.ErrorCount+result.FatalityCount+result.ExemptCount, result.TotalIssues)
}

func TestRunRewritesExemptRuleToExemptSeverity(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := []types.FileData{{FileName: "a.go", FilePath: "a.go", FileContent: "line1\nline2"}}
	exemptions := []types.Exemption{{RepoURL: "git@example.com:owner/repo", RuleName: "hasLines"}}
	orch := newTestOrchestrator(t, fs, files, []types.Rule{lineCountRule("hasLines")}, exemptions)

	rc := types.NewRunContext(context.Background(), zerolog.Nop())
	result, err := orch.Run(rc, RunOptions{ArchetypeName: "test-arch", RepoPath: "/repo", RepoURL: "git@example.com:owner/repo"})
	require.NoError(t, err)

	assert.Equal(t, 0, result.WarningCount)
	assert.Equal(t, 1, result.ExemptCount)
	for _, failure := range result.IssueDetails {
		for _, e := range failure.Errors {
			assert.Equal(t, types.Exempt, e.Level)
		}
	}
}

func TestRunAppendsRepoGlobalCheckLast(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := []types.FileData{
		{FileName: "b.go", FilePath: "b.go", FileContent: "x"},
		{FileName: "a.go", FilePath: "a.go", FileContent: "x"},
	}
	orch := newTestOrchestrator(t, fs, files, []types.Rule{lineCountRule("hasLines")}, nil)

	rc := types.NewRunContext(context.Background(), zerolog.Nop())
	result, err := orch.Run(rc, RunOptions{ArchetypeName: "test-arch", RepoPath: "/repo", RepoURL: "repo"})
	require.NoError(t, err)

	require.Len(t, result.IssueDetails, 3)
	assert.Equal(t, "a.go", result.IssueDetails[0].FilePath)
	assert.Equal(t, "b.go", result.IssueDetails[1].FilePath)
	assert.Equal(t, types.RepoGlobalCheck, result.IssueDetails[2].FilePath)
}

func TestRunEmptyArchetypeProducesNoIssues(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := []types.FileData{{FileName: "a.go", FilePath: "a.go", FileContent: "x"}}
	orch := newTestOrchestrator(t, fs, files, nil, nil)

	rc := types.NewRunContext(context.Background(), zerolog.Nop())
	result, err := orch.Run(rc, RunOptions{ArchetypeName: "test-arch", RepoPath: "/repo", RepoURL: "repo"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalIssues)
}

func TestRunZapFilesRestrictsToListedFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := []types.FileData{
		{FileName: "a.go", FilePath: "a.go", FileContent: "x"},
		{FileName: "b.go", FilePath: "b.go", FileContent: "x"},
	}
	orch := newTestOrchestrator(t, fs, files, []types.Rule{lineCountRule("hasLines")}, nil)

	rc := types.NewRunContext(context.Background(), zerolog.Nop())
	result, err := orch.Run(rc, RunOptions{
		ArchetypeName: "test-arch",
		RepoPath:      "/repo",
		RepoURL:       "repo",
		ZapFiles:      []string{"a.go", "missing.go"},
	})
	require.NoError(t, err)

	// a.go, missing.go (zero findings, warning logged), plus REPO_GLOBAL_CHECK.
	require.Len(t, result.IssueDetails, 3)
	var sawMissing bool
	for _, failure := range result.IssueDetails {
		if failure.FilePath == "missing.go" {
			sawMissing = true
			assert.Empty(t, failure.Errors)
		}
	}
	assert.True(t, sawMissing)
}
