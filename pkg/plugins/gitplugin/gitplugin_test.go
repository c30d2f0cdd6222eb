package gitplugin

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoInfoFactOnNonRepoReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	p := New(dir)

	val, err := p.repoInfoFact(context.Background(), nil, nil)
	require.NoError(t, err)
	info, ok := val.(RepoInfo)
	require.True(t, ok)
	assert.Equal(t, "", info.URL)
	assert.Equal(t, "", info.Branch)
}

func TestRepoInfoFactReadsBranchAndRemote(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		require.NoError(t, cmd.Run())
	}
	run("init", "-q", "-b", "main")
	run("remote", "add", "origin", "https://example.com/acme/widgets.git")
	require.NoError(t, os.WriteFile(dir+"/README.md", []byte("hi"), 0o644))
	run("add", ".")
	run("commit", "-q", "-m", "initial")

	p := New(dir)
	val, err := p.repoInfoFact(context.Background(), nil, nil)
	require.NoError(t, err)
	info := val.(RepoInfo)
	assert.Equal(t, "main", info.Branch)
	assert.Equal(t, "https://example.com/acme/widgets.git", info.URL)
	assert.NotEmpty(t, info.CommitSHA)
}
