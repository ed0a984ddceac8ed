package service

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"decentrakyc/internal/demo/metrics"
	dErrors "decentrakyc/pkg/domain-errors"
)

const (
	// DefaultIdleTTL is how long a profile may go unseen before its provider is evicted.
	DefaultIdleTTL = 30 * time.Minute
	// DefaultMaxProfiles caps the registry; the least recently seen profile goes first.
	DefaultMaxProfiles = 10000
)

// Factory builds an unmounted provider for a browser profile.
type Factory func(profile string) *Provider

// EvictFunc runs after a provider has been dropped from the registry.
type EvictFunc func(ctx context.Context, profile string) error

type entry struct {
	profile  string
	provider *Provider
	lastSeen time.Time
}

// Registry holds one Provider per browser profile. Profiles unseen for longer
// than the idle TTL, and the least recently seen ones once the registry is
// full, are evicted and their pending timers cancelled.
type Registry struct {
	factory     Factory
	logger      *slog.Logger
	metrics     *metrics.Metrics
	clock       func() time.Time
	idleTTL     time.Duration
	maxProfiles int
	onEvict     EvictFunc

	mu      sync.Mutex
	entries map[string]*list.Element
	// recency orders entries most recently seen first.
	recency *list.List
}

type RegistryOption func(*Registry)

func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithRegistryClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithIdleTTL sets the idle eviction age. Zero or less keeps the default.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// WithMaxProfiles caps the number of live providers. Zero or less keeps the default.
func WithMaxProfiles(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxProfiles = n
		}
	}
}

// WithEvictHook runs fn for every evicted profile, e.g. to clear records a
// backend would otherwise keep forever.
func WithEvictHook(fn EvictFunc) RegistryOption {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

func NewRegistry(factory Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:     factory,
		logger:      slog.Default(),
		clock:       time.Now,
		idleTTL:     DefaultIdleTTL,
		maxProfiles: DefaultMaxProfiles,
		entries:     make(map[string]*list.Element),
		recency:     list.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the mounted provider for profile, creating it on first use.
func (r *Registry) Get(ctx context.Context, profile string) (*Provider, error) {
	if profile == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "profile is required")
	}

	r.mu.Lock()
	now := r.clock()
	var p *Provider
	var evicted []*entry
	if elem, ok := r.entries[profile]; ok {
		p = r.touchLocked(elem, now).provider
	} else {
		p = r.factory(profile)
		r.entries[profile] = r.recency.PushFront(&entry{profile: profile, provider: p, lastSeen: now})
		evicted = r.evictLocked(now)
		r.metrics.SetActiveSessions(len(r.entries))
	}
	r.mu.Unlock()

	r.release(ctx, evicted)
	p.Mount(ctx)
	return p, nil
}

// Lookup returns the provider for profile without creating or mounting it.
// A hit counts as activity.
func (r *Registry) Lookup(profile string) (*Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	elem, ok := r.entries[profile]
	if !ok {
		return nil, false
	}
	return r.touchLocked(elem, r.clock()).provider, true
}

// DemoActive reports whether profile has a mounted demo session.
func (r *Registry) DemoActive(profile string) bool {
	p, ok := r.Lookup(profile)
	return ok && p.IsDemo()
}

// Len returns the number of live profiles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts every profile idle past the TTL and returns how many went.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	evicted := r.evictLocked(r.clock())
	if len(evicted) > 0 {
		r.metrics.SetActiveSessions(len(r.entries))
	}
	r.mu.Unlock()

	r.release(ctx, evicted)
	return len(evicted)
}

// Shutdown cancels the pending timers of every provider.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	providers := make([]*Provider, 0, len(r.entries))
	for _, elem := range r.entries {
		providers = append(providers, elem.Value.(*entry).provider)
	}
	r.mu.Unlock()

	cancelled := 0
	for _, p := range providers {
		cancelled += p.Close()
	}
	r.logger.InfoContext(ctx, "demo sessions shut down",
		"profiles", len(providers),
		"cancelled_timers", cancelled,
	)
}

func (r *Registry) touchLocked(elem *list.Element, now time.Time) *entry {
	e := elem.Value.(*entry)
	e.lastSeen = now
	r.recency.MoveToFront(elem)
	return e
}

// evictLocked drops entries from the back of the recency list while they are
// idle past the TTL or the registry is over capacity.
func (r *Registry) evictLocked(now time.Time) []*entry {
	var evicted []*entry
	for back := r.recency.Back(); back != nil; back = r.recency.Back() {
		e := back.Value.(*entry)
		if now.Sub(e.lastSeen) < r.idleTTL && len(r.entries) <= r.maxProfiles {
			break
		}
		r.recency.Remove(back)
		delete(r.entries, e.profile)
		evicted = append(evicted, e)
	}
	return evicted
}

func (r *Registry) release(ctx context.Context, evicted []*entry) {
	if len(evicted) == 0 {
		return
	}
	cancelled := 0
	for _, e := range evicted {
		cancelled += e.provider.Close()
		if r.onEvict == nil {
			continue
		}
		if err := r.onEvict(ctx, e.profile); err != nil {
			r.logger.WarnContext(ctx, "failed to release evicted demo session",
				"profile", e.profile,
				"error", err,
			)
		}
	}
	r.logger.DebugContext(ctx, "evicted demo sessions",
		"profiles", len(evicted),
		"cancelled_timers", cancelled,
	)
}
