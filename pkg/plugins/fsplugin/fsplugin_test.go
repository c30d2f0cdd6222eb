package fsplugin

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, fs afero.Fs) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, "/repo/main.go", []byte("package main"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/.env", []byte("SECRET=1"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/node_modules/left-pad/index.js", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/build/output.tmp", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/repo/.gitignore", []byte("build/\n"), 0o644))
}

func TestCollectAppliesBuiltinAndHiddenIgnores(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs)

	p := New(fs, "/repo", Options{})
	files, err := p.Collect()
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}
	assert.Contains(t, paths, "main.go")
	assert.NotContains(t, paths, ".env")
	assert.NotContains(t, paths, "node_modules/left-pad/index.js")
}

func TestCollectHonorsGitignoreWhenEnabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs)
	// build/app.js matches no builtin ignore, so only .gitignore excludes it.
	require.NoError(t, afero.WriteFile(fs, "/repo/build/app.js", []byte("x"), 0o644))

	p := New(fs, "/repo", Options{UseGitignore: true})
	files, err := p.Collect()
	require.NoError(t, err)

	for _, f := range files {
		assert.NotEqual(t, "build/output.tmp", f.FilePath)
		assert.NotEqual(t, "build/app.js", f.FilePath)
	}
}

func TestCollectIncludeHiddenOption(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs)

	p := New(fs, "/repo", Options{IncludeHidden: true})
	files, err := p.Collect()
	require.NoError(t, err)

	var sawEnv bool
	for _, f := range files {
		if f.FilePath == ".env" {
			sawEnv = true
		}
	}
	assert.True(t, sawEnv)
}

func TestRepoFilesystemFactsFnDelegatesToCollect(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTree(t, fs)

	p := New(fs, "/repo", Options{})
	val, err := p.repoFilesystemFactsFn(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, val)
}
