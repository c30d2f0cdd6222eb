// Package resolver implements the archetype/rule/exemption resolver
// (C2): remote-server-first resolution with SSRF-hardened retries,
// falling back to a local config directory, then merging a repo-local
// override file.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/archkit/archkit/internal/xerrors"
	"github.com/archkit/archkit/pkg/types"
	"github.com/archkit/archkit/pkg/validate"
)

// Options configures a single Resolver instance.
type Options struct {
	ServerURL       string
	AllowedDomains  []string
	LocalConfigPath string
	AllowedBaseDirs []string
	RepoPath        string
}

// Resolved bundles everything a run needs from the archetype chain.
type Resolved struct {
	Archetype  types.Archetype
	Rules      []types.Rule
	Exemptions []types.Exemption
	RepoConfig RepoConfig
}

// RepoConfig is the repo-local `.xfi-config.json` override document.
type RepoConfig struct {
	Archetype                   string       `json:"archetype,omitempty"`
	SensitiveFileFalsePositives []string     `json:"sensitiveFileFalsePositives,omitempty"`
	AdditionalRules             []types.Rule `json:"additionalRules,omitempty"`
	AdditionalFacts             []string     `json:"additionalFacts,omitempty"`
	AdditionalOperators         []string     `json:"additionalOperators,omitempty"`
	AdditionalPlugins           []string     `json:"additionalPlugins,omitempty"`
}

// Resolver resolves an archetype name to its rules, exemptions, and
// repo-local overrides, caching the result for the process lifetime.
type Resolver struct {
	opts      Options
	log       zerolog.Logger
	fs        afero.Fs
	client    *http.Client
	validator *validate.Validator

	mu    sync.Mutex
	cache map[string]*Resolved
}

// New builds a Resolver.
func New(opts Options, log zerolog.Logger, fs afero.Fs) *Resolver {
	return &Resolver{
		opts:      opts,
		log:       log,
		fs:        fs,
		client:    newHardenedClient(opts.AllowedDomains),
		validator: validate.New(),
		cache:     make(map[string]*Resolved),
	}
}

// Resolve resolves name from the config server when ServerURL is set,
// otherwise from the local config directory, and merges the repo-local
// override file when present. A remote failure is not retried against the
// local directory, and there is no built-in fallback archetype.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Resolved, error) {
	if !types.ArchetypeNamePattern.MatchString(name) {
		return nil, xerrors.New(xerrors.BadArchetypeName, fmt.Sprintf("archetype name %q must match %s", name, types.ArchetypeNamePattern.String()))
	}

	r.mu.Lock()
	if cached, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	arch, err := r.loadArchetype(ctx, name)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{Archetype: *arch}
	resolved.Rules = r.loadRules(ctx, arch)
	resolved.Exemptions = r.loadExemptions(ctx, arch)

	if repoCfg, ok := r.loadRepoConfig(); ok {
		r.mergeRepoConfig(resolved, repoCfg)
	}

	r.mu.Lock()
	r.cache[name] = resolved
	r.mu.Unlock()
	return resolved, nil
}

func (r *Resolver) loadArchetype(ctx context.Context, name string) (*types.Archetype, error) {
	if r.opts.ServerURL != "" {
		arch, err := r.fetchRemoteArchetype(ctx, name)
		if err != nil {
			return nil, err
		}
		if err := r.validator.Archetype(arch); err != nil {
			return nil, xerrors.Wrap(err, xerrors.ConfigFetchFailed, fmt.Sprintf("validating archetype %q", name))
		}
		return arch, nil
	}
	arch, err := r.loadLocalArchetype(name)
	if err != nil {
		return nil, err
	}
	if err := r.validator.Archetype(arch); err != nil {
		return nil, xerrors.Wrap(err, xerrors.BadConfig, fmt.Sprintf("validating archetype %q", name))
	}
	return arch, nil
}

func (r *Resolver) fetchRemoteArchetype(ctx context.Context, name string) (*types.Archetype, error) {
	path := fmt.Sprintf("archetypes/%s", name)
	body, err := r.fetchWithRetry(ctx, path)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.ConfigFetchFailed, fmt.Sprintf("fetching archetype %q", name))
	}
	var arch types.Archetype
	if err := json.Unmarshal(body, &arch); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ConfigFetchFailed, fmt.Sprintf("decoding archetype %q", name))
	}
	return &arch, nil
}

// fetchWithRetry performs the GET against <ServerURL>/<relPath>, retrying
// up to 3 attempts total with exponential backoff starting at 1s and
// doubling, per spec.md §4.2.
func (r *Resolver) fetchWithRetry(ctx context.Context, relPath string) ([]byte, error) {
	base := strings.TrimSuffix(r.opts.ServerURL, "/")
	raw := base + "/" + strings.TrimPrefix(relPath, "/")

	u, err := validateConfigServerURL(raw, r.opts.AllowedDomains)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.PathOutsideAllowList, "validating config server URL")
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("config server rate-limited the request (429)")
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("config server returned status %d", resp.StatusCode))
		}

		limited := io.LimitReader(resp.Body, maxConfigResponseBytes+1)
		data, err := io.ReadAll(limited)
		if err != nil {
			return err
		}
		if len(data) > maxConfigResponseBytes {
			return backoff.Permanent(fmt.Errorf("config server response exceeds %d bytes", maxConfigResponseBytes))
		}
		body = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	bounded := backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx)

	if err := backoff.Retry(op, bounded); err != nil {
		return nil, err
	}
	return body, nil
}

func (r *Resolver) loadLocalArchetype(name string) (*types.Archetype, error) {
	dir, err := r.resolveLocalDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name+".json")
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.BadConfig, fmt.Sprintf("reading archetype file %s", path))
	}
	var arch types.Archetype
	if err := json.Unmarshal(data, &arch); err != nil {
		return nil, xerrors.Wrap(err, xerrors.BadConfig, fmt.Sprintf("parsing archetype file %s", path))
	}
	return &arch, nil
}

// resolveLocalDir validates opts.LocalConfigPath against the allow-list of
// base directories, rejecting any path that escapes them.
func (r *Resolver) resolveLocalDir() (string, error) {
	dir := r.opts.LocalConfigPath
	if dir == "" {
		return "", xerrors.New(xerrors.BadConfig, "no local config path configured")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", xerrors.Wrap(err, xerrors.BadConfig, "resolving local config path")
	}
	if len(r.opts.AllowedBaseDirs) == 0 {
		return abs, nil
	}
	for _, base := range r.opts.AllowedBaseDirs {
		absBase, err := filepath.Abs(base)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absBase, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", xerrors.New(xerrors.PathOutsideAllowList, fmt.Sprintf("local config path %q escapes allowed base directories", dir))
}

// loadRules resolves the archetype's rule refs to full Rule documents,
// dropping (logging, not failing) any that fail to load or that violate
// the rule schema (spec.md §4.2 step 4 / §4.3: "invalid rules are dropped
// with an error; the run continues"). The same validation applies whether
// the rule came from an embedded object or a resolved ruleRef.
func (r *Resolver) loadRules(ctx context.Context, arch *types.Archetype) []types.Rule {
	if len(arch.Rules) > 0 {
		return r.dropInvalidRules(arch.Rules)
	}
	var out []types.Rule
	for _, name := range arch.RuleRefs {
		rule, err := r.loadRule(ctx, arch.Name, name)
		if err != nil {
			r.log.Warn().Err(err).Str("rule", name).Msg("dropping rule that failed to resolve")
			continue
		}
		if err := r.validator.Rule(rule); err != nil {
			r.log.Warn().Err(err).Str("rule", name).Msg("dropping rule that failed schema validation")
			continue
		}
		out = append(out, *rule)
	}
	return out
}

// dropInvalidRules filters rules down to the ones that pass schema
// validation, logging each dropped entry.
func (r *Resolver) dropInvalidRules(rules []types.Rule) []types.Rule {
	out := make([]types.Rule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		if err := r.validator.Rule(&rule); err != nil {
			r.log.Warn().Err(err).Str("rule", rule.Name).Msg("dropping embedded rule that failed schema validation")
			continue
		}
		out = append(out, rule)
	}
	return out
}

func (r *Resolver) loadRule(ctx context.Context, archetypeName, ruleName string) (*types.Rule, error) {
	var data []byte
	var err error
	if r.opts.ServerURL != "" {
		data, err = r.fetchWithRetry(ctx, fmt.Sprintf("archetype/%s/rule/%s", archetypeName, ruleName))
	} else {
		dir, dirErr := r.resolveLocalDir()
		if dirErr != nil {
			return nil, dirErr
		}
		path := filepath.Join(dir, "rules", ruleName+"-rule.json")
		data, err = afero.ReadFile(r.fs, path)
	}
	if err != nil {
		return nil, err
	}
	var rule types.Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *Resolver) loadExemptions(ctx context.Context, arch *types.Archetype) []types.Exemption {
	if len(arch.ExemptionRefs) > 0 {
		return arch.ExemptionRefs
	}
	dir, err := r.resolveLocalDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(dir, "exemptions", arch.Name+"-exemptions.json")
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil
	}
	var exemptions []types.Exemption
	if err := json.Unmarshal(data, &exemptions); err != nil {
		r.log.Warn().Err(err).Msg("dropping malformed exemptions file")
		return nil
	}
	return exemptions
}

// loadRepoConfig loads `.xfi-config.json` from the repo root, if present.
func (r *Resolver) loadRepoConfig() (*RepoConfig, bool) {
	if r.opts.RepoPath == "" {
		return nil, false
	}
	path := filepath.Join(r.opts.RepoPath, ".xfi-config.json")
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, false
	}
	var cfg RepoConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		r.log.Warn().Err(err).Msg("ignoring malformed .xfi-config.json")
		return nil, false
	}
	return &cfg, true
}

// mergeRepoConfig folds the repo-local overrides into resolved, dropping
// any additional rule whose Leaf path contains ".." per spec.md §6.
func (r *Resolver) mergeRepoConfig(resolved *Resolved, cfg *RepoConfig) {
	resolved.RepoConfig = *cfg
	for _, rule := range cfg.AdditionalRules {
		if ruleHasTraversalPath(rule.Conditions) {
			r.log.Warn().Str("rule", rule.Name).Msg("dropping additional rule with '..' in its path")
			continue
		}
		resolved.Rules = append(resolved.Rules, rule)
	}
}

func ruleHasTraversalPath(ct types.ConditionTree) bool {
	switch ct.Kind {
	case types.KindLeaf:
		return ct.Leaf != nil && strings.Contains(ct.Leaf.Path, "..")
	case types.KindAll:
		for _, child := range ct.All {
			if ruleHasTraversalPath(child) {
				return true
			}
		}
	case types.KindAny:
		for _, child := range ct.Any {
			if ruleHasTraversalPath(child) {
				return true
			}
		}
	}
	return false
}
