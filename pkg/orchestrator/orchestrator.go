// Package orchestrator implements the Analyzer Orchestrator (C7): the
// nine-step sequence tying the registry, resolver, engine, cache, and
// report writer together into one run.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/archkit/archkit/internal/xerrors"
	"github.com/archkit/archkit/pkg/cache"
	"github.com/archkit/archkit/pkg/engine"
	"github.com/archkit/archkit/pkg/exempt"
	"github.com/archkit/archkit/pkg/facts"
	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/report"
	"github.com/archkit/archkit/pkg/resolver"
	"github.com/archkit/archkit/pkg/types"
)

// PluginFactory builds a named plugin on demand, rooted at the given repo
// path. The orchestrator calls these lazily, only for plugin names an
// archetype or repo config actually references.
type PluginFactory func(repoPath string) registry.Plugin

// Options configures one Orchestrator. Registry, Resolver and Cache are
// long-lived across runs when the caller wants cache/registry reuse;
// ReportWriter may be nil to skip persistence (tests).
type Options struct {
	Registry       *registry.Registry
	Resolver       *resolver.Resolver
	Cache          *cache.Cache
	ReportWriter   *report.Writer
	PluginFactories map[string]PluginFactory
	MaxWorkers     int
}

// Orchestrator runs one or more analyses against a resolved archetype.
type Orchestrator struct {
	reg      *registry.Registry
	res      *resolver.Resolver
	cache    *cache.Cache
	reporter *report.Writer
	plugins  map[string]PluginFactory
	maxWorkers int
}

// New builds an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Orchestrator{
		reg:        opts.Registry,
		res:        opts.Resolver,
		cache:      opts.Cache,
		reporter:   opts.ReportWriter,
		plugins:    opts.PluginFactories,
		maxWorkers: workers,
	}
}

// RunOptions parameterizes a single run.
type RunOptions struct {
	ArchetypeName string
	RepoPath      string
	RepoURL       string
	ZapFiles      []string
	ExtraPlugins  []string
}

// Run executes the full nine-step sequence against rc's context and
// returns the assembled result. rc.Logger and rc.Ctx must already be set
// (conventionally via types.NewRunContext).
func (o *Orchestrator) Run(rc *types.RunContext, opts RunOptions) (*types.ExecutionResult, error) {
	ctx := rc.Ctx
	log := rc.Logger

	// Step 2: load archetype, auto-load base plugins + CLI extras.
	resolved, err := o.res.Resolve(ctx, opts.ArchetypeName)
	if err != nil {
		return nil, err
	}

	pluginNames := dedupeStrings(append(append([]string{}, resolved.Archetype.PluginRefs...), opts.ExtraPlugins...))
	pluginNames = dedupeStrings(append(pluginNames, resolved.RepoConfig.AdditionalPlugins...))
	for _, name := range pluginNames {
		factory, ok := o.plugins[name]
		if !ok {
			log.Warn().Str("plugin", name).Msg("no factory registered for referenced plugin; skipping")
			continue
		}
		if err := o.reg.Register(ctx, factory(opts.RepoPath)); err != nil {
			log.Warn().Err(err).Str("plugin", name).Msg("plugin registration failed")
		}
	}
	if err := o.reg.WaitForAll(ctx); err != nil {
		log.Warn().Err(err).Msg("one or more plugins failed to initialize")
	}

	factList := o.reg.Facts()
	operators := o.reg.Operators()
	metrics := facts.NewMetricsStore(nil)
	eng := engine.New(factList, operators, metrics, log)

	matcher := exempt.New(opts.RepoURL, resolved.Exemptions)
	for _, rule := range resolved.Rules {
		eng.AttachRule(rule, matcher)
	}

	// Step 3: collect files via the repoFilesystemFacts fact, then apply
	// blacklist/whitelist and zapFiles.
	allFiles, err := o.collectFiles(ctx, factList)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.FactExecutionFailed, "collecting repository files")
	}
	files := applyPatternFilters(allFiles, resolved.Archetype.Config.BlacklistPatterns, resolved.Archetype.Config.WhitelistPatterns, log)
	if len(opts.ZapFiles) > 0 {
		files = restrictToZapFiles(allFiles, opts.ZapFiles, log)
	}

	// Step 4: fingerprint cache. Unchanged files still participate in
	// the per-file loop (so global facts that read file content see a
	// consistent repo snapshot); only cached findings are reused.
	type workItem struct {
		file    types.FileData
		cached  types.RuleFailure
		isCache bool
	}
	items := make([]workItem, len(files))
	for i, f := range files {
		item := workItem{file: f}
		if o.cache != nil {
			sum := cache.Fingerprint(f.FileContent)
			if found, ok := o.cache.Lookup(f.FilePath, sum); ok {
				item.cached, item.isCache = found, true
			}
		}
		items[i] = item
	}

	// Step 7: precompute global facts, against the REPO_GLOBAL_CHECK
	// pseudo-file's Almanac. A global fact that errors does not abort the
	// run; Engine logs it and stores a null value for that fact instead.
	globalAlmanac := eng.NewAlmanac(types.GlobalCheckFile())
	eng.PrecomputeGlobals(ctx, globalAlmanac)

	// Step 8: bounded worker pool over per-file evaluation; cooperative
	// cancellation checked before each file is scheduled.
	results := make([]types.RuleFailure, len(items))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, o.maxWorkers)
	cancelled := false
	scheduled := 0

	for i, item := range items {
		if rc.Cancelled() {
			cancelled = true
			break
		}
		scheduled++
		i, item := i, item
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			if item.isCache {
				results[i] = item.cached
				return nil
			}
			failure := eng.EvaluateFile(gctx, item.file)
			results[i] = failure
			if o.cache != nil {
				sum := cache.Fingerprint(item.file.FileContent)
				o.cache.Store(item.file.FilePath, sum, failure)
			}
			return nil
		})
	}
	_ = g.Wait()

	issueDetails := make([]types.RuleFailure, scheduled)
	copy(issueDetails, results[:scheduled])

	// REPO_GLOBAL_CHECK always runs last, outside the pool, unless the
	// run was cancelled before reaching it.
	if !cancelled {
		globalFailure := eng.EvaluateFile(ctx, types.GlobalCheckFile())
		issueDetails = append(issueDetails, globalFailure)
	}

	sort.SliceStable(issueDetails, func(i, j int) bool {
		// REPO_GLOBAL_CHECK is appended last above and must stay last
		// regardless of lexical order against real paths.
		if issueDetails[i].FilePath == types.RepoGlobalCheck {
			return false
		}
		if issueDetails[j].FilePath == types.RepoGlobalCheck {
			return true
		}
		return issueDetails[i].FilePath < issueDetails[j].FilePath
	})

	// Step 9: assemble the result.
	finish := time.Now()
	result := &types.ExecutionResult{
		Archetype:       opts.ArchetypeName,
		RepoPath:        opts.RepoPath,
		RepoURL:         opts.RepoURL,
		FileCount:       scheduled,
		IssueDetails:    issueDetails,
		StartTime:       rc.StartTime,
		FinishTime:      finish,
		DurationSeconds: finish.Sub(rc.StartTime).Seconds(),
		FactMetrics:     metrics.Snapshot(),
		Cancelled:       cancelled,
	}
	result.Tally()

	if o.cache != nil {
		o.cache.Prune()
		if err := o.cache.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to persist fingerprint cache")
		}
	}
	if o.reporter != nil {
		doc := types.ResultDocument{XFIResult: *result}
		if err := o.reporter.Write(doc, finish, opts.RepoPath); err != nil {
			log.Warn().Err(err).Msg("failed to persist report")
		}
	}
	return result, nil
}

// collectFiles invokes the repoFilesystemFacts fact function directly
// (bypassing Almanac scope memoization, since globals aren't precomputed
// yet at this point in the sequence) to obtain the raw file list.
func (o *Orchestrator) collectFiles(ctx context.Context, factList []registry.Fact) ([]types.FileData, error) {
	for _, f := range factList {
		if f.Name != "repoFilesystemFacts" || f.Fn == nil {
			continue
		}
		v, err := f.Fn(ctx, nil, noopAlmanac{})
		if err != nil {
			return nil, err
		}
		files, ok := v.([]types.FileData)
		if !ok {
			return nil, fmt.Errorf("repoFilesystemFacts returned unexpected type %T", v)
		}
		return files, nil
	}
	return nil, nil
}

type noopAlmanac struct{}

func (noopAlmanac) FactValue(ctx context.Context, name string, params map[string]any, path string) (any, error) {
	return nil, nil
}
func (noopAlmanac) AddRuntimeFact(name string, value any) {}

func applyPatternFilters(files []types.FileData, blacklist, whitelist []string, log zerolog.Logger) []types.FileData {
	blacklistRe := compileAll(blacklist, log)
	whitelistRe := compileAll(whitelist, log)

	var out []types.FileData
	for _, f := range files {
		if anyMatch(blacklistRe, f.FilePath) {
			continue
		}
		if len(whitelistRe) > 0 && !anyMatch(whitelistRe, f.FilePath) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func compileAll(patterns []string, log zerolog.Logger) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Warn().Err(err).Str("pattern", p).Msg("dropping invalid archetype pattern")
			continue
		}
		out = append(out, re)
	}
	return out
}

func anyMatch(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// restrictToZapFiles narrows allFiles to the entries named or glob-matched
// by zapFiles. A zapFiles entry matching nothing in the repo still
// produces a FileData placeholder (empty content), which evaluates to
// zero findings, plus a logged warning.
func restrictToZapFiles(allFiles []types.FileData, zapFiles []string, log zerolog.Logger) []types.FileData {
	byPath := make(map[string]types.FileData, len(allFiles))
	for _, f := range allFiles {
		byPath[f.FilePath] = f
	}

	var out []types.FileData
	for _, zf := range zapFiles {
		if fd, ok := byPath[zf]; ok {
			out = append(out, fd)
			continue
		}
		matched := false
		for _, f := range allFiles {
			if ok, _ := doublestar.Match(zf, f.FilePath); ok {
				out = append(out, f)
				matched = true
			}
		}
		if !matched {
			log.Warn().Str("zapFile", zf).Msg("zapFiles entry not found in repository; producing zero findings")
			out = append(out, types.FileData{FileName: filepath.Base(zf), FilePath: zf})
		}
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
