// Package gitplugin ships the reference "repoInfo" global fact, exposing
// the repository's remote URL, current branch, and latest commit via
// go-git, the same library the teacher uses to inspect working-tree
// status.
package gitplugin

import (
	"context"
	"fmt"

	gogit "github.com/go-git/go-git/v5"

	"github.com/archkit/archkit/pkg/registry"
)

// RepoInfo is the shape of the "repoInfo" fact's value.
type RepoInfo struct {
	URL      string `json:"url"`
	Branch   string `json:"branch"`
	CommitSHA string `json:"commitSha"`
	Detached bool   `json:"detached"`
}

// Plugin exposes a single repository's metadata as a global fact, opening
// the repository each time the fact is evaluated. It carries no async initialization: a
// failure to open the repo is not fatal, since archkit also runs against
// plain directories that aren't git working trees.
type Plugin struct {
	repoPath string
}

// New returns a Plugin rooted at repoPath.
func New(repoPath string) *Plugin {
	return &Plugin{repoPath: repoPath}
}

func (p *Plugin) Name() string    { return "git" }
func (p *Plugin) Version() string { return "1.0.0" }

func (p *Plugin) Facts() []registry.Fact {
	return []registry.Fact{
		{
			Name:     "repoInfo",
			Type:     registry.Global,
			Priority: 1,
			Fn:       p.repoInfoFact,
		},
	}
}

func (p *Plugin) Operators() []registry.Operator { return nil }

func (p *Plugin) repoInfoFact(ctx context.Context, params map[string]any, almanac registry.Almanac) (any, error) {
	info, err := p.inspect()
	if err != nil {
		// Not a git repository, or a corrupted one: return an empty,
		// non-error value so rules checking repoInfo.url simply see "".
		return RepoInfo{}, nil
	}
	return info, nil
}

// DiscoverRemoteURL opens repoPath as a git working tree and returns its
// origin remote URL, or "" if repoPath isn't a git repository or has no
// remote configured. Used by the CLI to populate RunOptions.RepoURL
// without requiring the caller to pass it explicitly.
func DiscoverRemoteURL(repoPath string) string {
	info, err := (&Plugin{repoPath: repoPath}).inspect()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *Plugin) inspect() (RepoInfo, error) {
	repo, err := gogit.PlainOpenWithOptions(p.repoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return RepoInfo{}, fmt.Errorf("opening repository: %w", err)
	}

	info := RepoInfo{}

	head, err := repo.Head()
	if err == nil {
		info.CommitSHA = head.Hash().String()
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		} else {
			info.Detached = true
		}
	}

	remotes, err := repo.Remotes()
	if err == nil {
		for _, remote := range remotes {
			if remote.Config().Name == "origin" && len(remote.Config().URLs) > 0 {
				info.URL = remote.Config().URLs[0]
				break
			}
		}
		if info.URL == "" && len(remotes) > 0 && len(remotes[0].Config().URLs) > 0 {
			info.URL = remotes[0].Config().URLs[0]
		}
	}

	return info, nil
}
