// Package fsplugin ships the reference "repoFilesystemFacts" fact: a
// filtered walk of the repository producing the FileData list the
// orchestrator's per-file loop iterates over. Filtering is built on
// pkg/match, itself adapted from the teacher's treex/pattern package.
package fsplugin

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/archkit/archkit/pkg/match"
	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/types"
)

// Options controls how the repo is walked.
type Options struct {
	IncludeHidden       bool
	UseGitignore        bool
	ExtraIgnorePatterns []string
}

// Plugin walks a repository root on an afero.Fs, applying the builtin
// ignore list plus an optional .gitignore and caller-supplied extra
// glob patterns.
type Plugin struct {
	fs   afero.Fs
	root string
	opts Options
}

// New returns a Plugin rooted at root on fs.
func New(fs afero.Fs, root string, opts Options) *Plugin {
	return &Plugin{fs: fs, root: root, opts: opts}
}

func (p *Plugin) Name() string    { return "filesystem" }
func (p *Plugin) Version() string { return "1.0.0" }

func (p *Plugin) Facts() []registry.Fact {
	return []registry.Fact{
		{
			Name:     "repoFilesystemFacts",
			Type:     registry.Global,
			Priority: 1,
			Fn:       p.repoFilesystemFactsFn,
		},
	}
}

func (p *Plugin) Operators() []registry.Operator { return nil }

func (p *Plugin) repoFilesystemFactsFn(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
	return p.Collect()
}

func (p *Plugin) buildFilter() *match.CompositeFilter {
	builder := match.NewFilterBuilder().
		AddBuiltinIgnores(true).
		AddHiddenFilter(p.opts.IncludeHidden)

	filter := builder.Build()
	for _, pattern := range p.opts.ExtraIgnorePatterns {
		filter.AddPattern(match.NewShellPattern(pattern))
	}
	if p.opts.UseGitignore {
		if ignore, err := match.NewIgnorefilePattern(p.fs, filepath.Join(p.root, ".gitignore")); err == nil {
			filter.AddPattern(ignore)
		}
	}
	return filter
}

// Collect walks the repository, returning every non-excluded regular
// file as FileData with its content already read, sorted by path for
// deterministic downstream iteration order.
func (p *Plugin) Collect() ([]types.FileData, error) {
	filter := p.buildFilter()

	var files []types.FileData
	err := afero.Walk(p.fs, p.root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if filter.ShouldExclude(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		content, err := afero.ReadFile(p.fs, path)
		if err != nil {
			return nil
		}
		files = append(files, types.FileData{
			FileName:    info.Name(),
			FilePath:    rel,
			FileContent: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })
	return files, nil
}
