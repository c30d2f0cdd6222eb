// Package cli implements the command-line surface described by spec.md §6:
// a thin cobra wrapper translating flags into an orchestrator.RunOptions,
// printing a summary, and mapping the result to a process exit code.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/archkit/archkit/internal/localconfig"
	"github.com/archkit/archkit/internal/logging"
	"github.com/archkit/archkit/pkg/cache"
	"github.com/archkit/archkit/pkg/orchestrator"
	"github.com/archkit/archkit/pkg/plugins/baseoperators"
	"github.com/archkit/archkit/pkg/plugins/fsplugin"
	"github.com/archkit/archkit/pkg/plugins/gitplugin"
	"github.com/archkit/archkit/pkg/registry"
	"github.com/archkit/archkit/pkg/report"
	"github.com/archkit/archkit/pkg/resolver"
	"github.com/archkit/archkit/pkg/types"
)

// Version information, set by main from build-time ldflags, mirroring the
// teacher's cmd.Version/Commit/BuildDate pattern.
var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	archetypeName   string
	configServerURL string
	localConfigPath string
	zapFiles        []string
	extraPlugins    []string
	logPrefix       string
	verbosity       int
	noColor         bool
	maxWorkers      int
)

var rootCmd = &cobra.Command{
	Use:   "archkit [repo-path]",
	Short: "Evaluate a repository against a named archetype",
	Long: `archkit is a policy-driven static analysis engine. It evaluates a
repository against a named archetype -- a bundle of rules, exemptions,
required facts and operators -- and emits a severity-tagged result document.`,
	Example: `  archkit --archetype node-style .
  archkit --archetype node-style --config-server https://config.example.com /repo
  archkit --archetype node-style --zap-file src/index.js .`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.Flags().StringVar(&archetypeName, "archetype", "", "archetype name to evaluate against (required)")
	rootCmd.Flags().StringVar(&configServerURL, "config-server", "", "remote config server base URL")
	rootCmd.Flags().StringVar(&localConfigPath, "local-config-path", "", "local directory holding <archetype>.json and rules/")
	rootCmd.Flags().StringSliceVar(&zapFiles, "zap-file", nil, "restrict evaluation to these repo-relative files (repeatable)")
	rootCmd.Flags().StringSliceVar(&extraPlugins, "extra-plugin", nil, "additional plugin names to load beyond the archetype's pluginRefs (repeatable)")
	rootCmd.Flags().StringVar(&logPrefix, "log-prefix", "", "prefix attached to log lines (not applied with -v; not sent to the config server)")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv, -vvv)")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output (with -v, console log lines stay colored)")
	rootCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "bounded worker pool size for the per-file loop (0 = GOMAXPROCS)")
	_ = rootCmd.MarkFlagRequired("archetype")
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	repoPath := "."
	if len(args) > 0 {
		repoPath = args[0]
	}
	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return fmt.Errorf("resolving repo path %q: %w", repoPath, err)
	}
	if _, err := os.Stat(absRepo); err != nil {
		return fmt.Errorf("repo path does not exist: %s", repoPath)
	}

	localCfg, err := localconfig.Load(filepath.Join(absRepo, ".archkit.yaml"))
	if err != nil {
		return fmt.Errorf("loading local config: %w", err)
	}

	var log zerolog.Logger
	if verbosity > 0 {
		log, err = logging.NewFromVerbosity(verbosity)
	} else {
		logCfg := logging.DefaultConfig()
		logCfg.NoColor = noColor || (localCfg.Display != nil && localCfg.Display.NoColor)
		logCfg.LogPrefix = logPrefix
		log, err = logging.New(logCfg)
	}
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc := types.NewRunContext(ctx, log)
	rc.RepoPath = absRepo
	rc.Archetype = archetypeName
	rc.LogPrefix = logPrefix

	repoURL := gitplugin.DiscoverRemoteURL(absRepo)
	rc.RepoURL = repoURL

	fs := afero.NewOsFs()

	workers := maxWorkers
	if workers == 0 && localCfg.Run != nil {
		workers = localCfg.Run.MaxWorkers
	}

	reg := registry.New(log)
	res := resolver.New(resolver.Options{
		ServerURL:       configServerURL,
		AllowedDomains:  nil,
		LocalConfigPath: localConfigPath,
		AllowedBaseDirs: []string{localConfigPath, absRepo},
		RepoPath:        absRepo,
	}, log, fs)

	ttl := 24 * time.Hour
	if localCfg.Run != nil && localCfg.Run.FingerprintTTLSec > 0 {
		ttl = time.Duration(localCfg.Run.FingerprintTTLSec) * time.Second
	}
	cachePath := filepath.Join(absRepo, ".xfiResults", "fingerprint-cache.json")
	fpCache, err := cache.Load(fs, cachePath, ttl)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load fingerprint cache; continuing without it")
		fpCache = nil
	}

	reportWriter := report.New(fs, filepath.Join(absRepo, ".xfiResults"))

	orch := orchestrator.New(orchestrator.Options{
		Registry:     reg,
		Resolver:     res,
		Cache:        fpCache,
		ReportWriter: reportWriter,
		MaxWorkers:   workers,
		PluginFactories: map[string]orchestrator.PluginFactory{
			"filesystem": func(root string) registry.Plugin {
				return fsplugin.New(fs, root, fsplugin.Options{IncludeHidden: true, UseGitignore: true})
			},
			"git": func(root string) registry.Plugin {
				return gitplugin.New(root)
			},
			"baseOperators": func(string) registry.Plugin {
				return baseoperators.New()
			},
		},
	})

	result, err := orch.Run(rc, orchestrator.RunOptions{
		ArchetypeName: archetypeName,
		RepoPath:      absRepo,
		RepoURL:       repoURL,
		ZapFiles:      zapFiles,
		ExtraPlugins:  dedupeDefaultPlugins(extraPlugins),
	})
	if err != nil {
		return err
	}

	printSummary(cmd, result)

	if result.FatalityCount > 0 {
		os.Exit(1)
	}
	return nil
}

// dedupeDefaultPlugins ensures the reference plugins are always available
// even when an archetype's pluginRefs omits them, without double-loading
// when the archetype already lists them (the registry's own dedup, via
// name collision, handles that case too).
func dedupeDefaultPlugins(extra []string) []string {
	have := map[string]bool{}
	for _, e := range extra {
		have[e] = true
	}
	out := append([]string{}, extra...)
	for _, d := range []string{"filesystem", "git", "baseOperators"} {
		if !have[d] {
			out = append(out, d)
		}
	}
	return out
}

func printSummary(cmd *cobra.Command, result *types.ExecutionResult) {
	out := cmd.OutOrStdout()
	styles := newSeverityStyles(!noColor)
	fmt.Fprintf(out, "archkit: %s against %d file(s) in %.2fs\n", result.Archetype, result.FileCount, result.DurationSeconds)
	fmt.Fprintf(out, "  warnings=%d errors=%d fatalities=%d exempt=%d total=%d\n",
		result.WarningCount, result.ErrorCount, result.FatalityCount, result.ExemptCount, result.TotalIssues)
	if result.Cancelled {
		fmt.Fprintln(out, "  run was cancelled before completion; counts reflect a partial result")
	}
	for _, failure := range result.IssueDetails {
		for _, e := range failure.Errors {
			line := fmt.Sprintf("[%s] %s: %s", e.Level, failure.FilePath, e.RuleFailure)
			fmt.Fprintln(out, "  "+styles.forLevel(e.Level).Render(line))
		}
	}
}
