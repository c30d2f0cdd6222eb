package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/archkit/archkit/internal/xerrors"
)

// state is the lifecycle of a single plugin's initialization.
type state int

const (
	initializing state = iota
	completed
	failed
)

type entry struct {
	plugin Plugin
	done   chan struct{}
	mu     sync.Mutex
	state  state
	err    error
}

// Registry tracks registered plugins and the async completion of their
// Initialize calls, and exposes the flattened, stable-order views of
// facts and operators the engine attaches to a run.
type Registry struct {
	log zerolog.Logger

	mu      sync.Mutex
	order   []string
	entries map[string]*entry
}

// New builds an empty Registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		log:     log,
		entries: make(map[string]*entry),
	}
}

// Register adds a plugin. If the plugin implements Initializer,
// initialization runs in the background and Register returns immediately;
// callers observe completion via WaitForAll or WaitFor. Malformed facts or
// operators (empty name, nil function) are dropped with a logged warning
// rather than failing the whole plugin.
func (r *Registry) Register(ctx context.Context, p Plugin) error {
	name := p.Name()
	if name == "" {
		return xerrors.New(xerrors.InvalidPlugin, "plugin name must not be empty")
	}
	if p.Version() == "" {
		return xerrors.New(xerrors.InvalidPlugin, fmt.Sprintf("plugin %q: version must not be empty", name))
	}

	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		r.mu.Unlock()
		r.log.Warn().Str("plugin", name).Msg("duplicate plugin registration ignored")
		return nil
	}
	e := &entry{plugin: p, done: make(chan struct{})}
	r.entries[name] = e
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.validateContributions(p)

	init, ok := p.(Initializer)
	if !ok {
		e.settle(nil)
		return nil
	}

	errCh := init.Initialize(ctx)
	go func() {
		var initErr error
		select {
		case err, readOpen := <-errCh:
			if readOpen && err != nil {
				initErr = err
			}
		case <-ctx.Done():
			initErr = ctx.Err()
		}
		if initErr != nil {
			r.log.Error().Err(initErr).Str("plugin", name).Msg("plugin initialization failed")
		}
		e.settle(initErr)
	}()
	return nil
}

func (e *entry) settle(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.done:
		return // already settled
	default:
	}
	if err != nil {
		e.state = failed
		e.err = err
	} else {
		e.state = completed
	}
	close(e.done)
}

func (r *Registry) validateContributions(p Plugin) {
	for _, f := range p.Facts() {
		if f.Name == "" || f.Fn == nil {
			r.log.Warn().Str("plugin", p.Name()).Msg("dropping malformed fact: missing name or function")
		}
	}
	for _, op := range p.Operators() {
		if op.Name == "" || op.Fn == nil {
			r.log.Warn().Str("plugin", p.Name()).Msg("dropping malformed operator: missing name or function")
		}
	}
}

// WaitFor blocks until the named plugin's initialization settles, or ctx is
// done. Returns xerrors.PluginInitFailed if the plugin failed to initialize,
// or nil for an unknown plugin name (treated as "nothing to wait for").
func (r *Registry) WaitFor(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-e.done:
		if e.state == failed {
			return xerrors.Wrap(e.err, xerrors.PluginInitFailed, fmt.Sprintf("plugin %q", name))
		}
		return nil
	case <-ctx.Done():
		return xerrors.Wrap(ctx.Err(), xerrors.Cancelled, "waiting for plugin initialization")
	}
}

// WaitForAll blocks until every registered plugin has settled, returning
// the first initialization failure encountered (others are still logged).
func (r *Registry) WaitForAll(ctx context.Context) error {
	r.mu.Lock()
	names := append([]string(nil), r.order...)
	r.mu.Unlock()

	var g errgroup.Group
	for _, name := range names {
		name := name
		g.Go(func() error {
			return r.WaitFor(ctx, name)
		})
	}
	return g.Wait()
}

// Get returns the plugin registered under name, if any.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// Facts returns every fact contributed by every registered plugin, in
// registration order, so fact resolution is deterministic across runs.
func (r *Registry) Facts() []Fact {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Fact
	for _, name := range r.order {
		for _, f := range r.entries[name].plugin.Facts() {
			if f.Name == "" || f.Fn == nil {
				continue
			}
			out = append(out, f)
		}
	}
	return out
}

// Operators returns every operator contributed by every registered plugin,
// in registration order. When two plugins define the same operator name,
// the later registration wins and takes the earlier one's position. Facts,
// by contrast, keeps every duplicate; engine.New resolves duplicate fact
// names last-write-wins.
func (r *Registry) Operators() []Operator {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]int)
	var out []Operator
	for _, name := range r.order {
		for _, op := range r.entries[name].plugin.Operators() {
			if op.Name == "" || op.Fn == nil {
				continue
			}
			if idx, ok := seen[op.Name]; ok {
				out[idx] = op
				continue
			}
			seen[op.Name] = len(out)
			out = append(out, op)
		}
	}
	return out
}

// Names returns registered plugin names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// CleanupAll invokes Cleanup on every plugin implementing Cleaner,
// collecting (not short-circuiting on) errors.
func (r *Registry) CleanupAll() error {
	r.mu.Lock()
	names := append([]string(nil), r.order...)
	r.mu.Unlock()

	var errs []error
	for _, name := range names {
		r.mu.Lock()
		p := r.entries[name].plugin
		r.mu.Unlock()
		if c, ok := p.(Cleaner); ok {
			if err := c.Cleanup(); err != nil {
				r.log.Error().Err(err).Str("plugin", name).Msg("plugin cleanup failed")
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("plugin cleanup errors: %v", errs)
	}
	return nil
}
