// Package probe provides a guarded asynchronous read of remote state,
// protected by a TTL cache, a minimum-interval throttle, an authorization
// gate, and a per-call kill switch. Probe failures are absorbed: dependent
// callers always receive a value or an explicit unknown sentinel, never an
// error from the remote path.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stratlab-sync/internal/errors"
	"stratlab-sync/internal/logging"
	"stratlab-sync/internal/store"
)

// Source identifies the provenance of a probe result so callers can
// distinguish degraded-mode fallback data from live data.
type Source string

const (
	// SourceRemote means the value came from the remote service, either on
	// this call or within the cache TTL.
	SourceRemote Source = "remote"
	// SourceLocal means the value is last-known-good: a stale cache entry or
	// a fact restored from the fallback store.
	SourceLocal Source = "local"
	// SourceUnknown means no value is available at all.
	SourceUnknown Source = "unknown"
)

// Result is the outcome of a probe read.
type Result[T any] struct {
	Value     T
	Source    Source
	FetchedAt time.Time
}

// Known reports whether the result carries a usable value.
func (r Result[T]) Known() bool {
	return r.Source != SourceUnknown
}

// CachedFact is a value with the time it was fetched. A fact is fresh while
// now-Timestamp < TTL; stale facts may still be served as last-known-good.
type CachedFact[T any] struct {
	Value     T         `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	source    Source
}

// FetchFunc performs the underlying remote read.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Options configures a Probe.
type Options struct {
	// TTL is how long a fetched fact stays fresh.
	TTL time.Duration
	// MinInterval is the minimum time between remote attempts, successful or
	// not. Refresh bypasses it; Get never does.
	MinInterval time.Duration
	// Timeout bounds each remote attempt so a hung call cannot occupy the
	// single-flight slot indefinitely. Zero means no extra bound.
	Timeout time.Duration
	// Enabled is the kill switch, checked on every call. Nil means enabled.
	Enabled func() bool
	// IsAuthorized gates the remote path entirely; while false no remote
	// attempt is made. Nil means authorized.
	IsAuthorized func() bool
	// Clock supplies the current time. Nil means time.Now.
	Clock func() time.Time
	// Store, when set together with StoreKey, persists each fetched fact and
	// hydrates the cache on construction.
	Store    store.Store
	StoreKey string
}

// Probe wraps a remote operation with caching, throttling and gating.
type Probe[T any] struct {
	name  string
	fetch FetchFunc[T]
	opts  Options
	log   zerolog.Logger

	mu          sync.Mutex
	cached      *CachedFact[T]
	lastAttempt time.Time
	inflight    *call[T]
}

// call is a single in-flight remote attempt shared by overlapping callers.
type call[T any] struct {
	done   chan struct{}
	result Result[T]
}

// New creates a probe named name around fetch. If a persisted fact exists in
// the configured store it seeds the cache as local-provenance data.
func New[T any](name string, fetch FetchFunc[T], opts Options, logger zerolog.Logger) *Probe[T] {
	p := &Probe[T]{
		name:  name,
		fetch: fetch,
		opts:  opts,
		log:   logger.With().Str("component", "probe").Str("probe", name).Logger(),
	}
	p.hydrate()
	return p
}

func (p *Probe[T]) hydrate() {
	if p.opts.Store == nil || p.opts.StoreKey == "" {
		return
	}
	var fact CachedFact[T]
	if store.GetJSON(p.opts.Store, p.opts.StoreKey, &fact) {
		fact.source = SourceLocal
		p.cached = &fact
	}
}

func (p *Probe[T]) now() time.Time {
	if p.opts.Clock != nil {
		return p.opts.Clock()
	}
	return time.Now()
}

func (p *Probe[T]) enabled() bool {
	return p.opts.Enabled == nil || p.opts.Enabled()
}

func (p *Probe[T]) authorized() bool {
	return p.opts.IsAuthorized == nil || p.opts.IsAuthorized()
}

// Get returns the probe's current value under full protection: a fresh cache
// hit short-circuits, and the throttle, authorization gate and kill switch
// each suppress the remote path in favor of last-known-good data.
func (p *Probe[T]) Get(ctx context.Context) Result[T] {
	res := p.get(ctx, false)
	logging.LogProbe(p.log, p.name, string(res.Source), res.Known())
	return res
}

// Refresh behaves like Get but bypasses the minimum-interval throttle and the
// TTL freshness check. The authorization gate and kill switch still apply.
func (p *Probe[T]) Refresh(ctx context.Context) Result[T] {
	res := p.get(ctx, true)
	logging.LogProbe(p.log, p.name, string(res.Source), res.Known())
	return res
}

func (p *Probe[T]) get(ctx context.Context, force bool) Result[T] {
	p.mu.Lock()

	now := p.now()

	// Fresh cache hit needs no remote call.
	if !force && p.cached != nil && now.Sub(p.cached.Timestamp) < p.opts.TTL {
		res := p.cachedResult()
		p.mu.Unlock()
		return res
	}

	// Join an in-flight attempt instead of duplicating the remote call.
	if p.inflight != nil {
		c := p.inflight
		p.mu.Unlock()
		return p.await(ctx, c)
	}

	// Suppressed remote path: serve whatever we have.
	if reason := p.suppressed(now, force); reason != nil {
		p.log.Debug().AnErr("reason", reason).Msg("Probe remote path suppressed")
		res := p.fallbackResult()
		p.mu.Unlock()
		return res
	}

	// The throttle stamp advances at the start of every attempt, whether or
	// not it ends up succeeding.
	p.lastAttempt = now
	c := &call[T]{done: make(chan struct{})}
	p.inflight = c
	p.mu.Unlock()

	c.result = p.attempt(ctx)

	p.mu.Lock()
	p.inflight = nil
	p.mu.Unlock()
	close(c.done)

	return c.result
}

// attemptPermitted reports whether the throttle allows a new remote attempt.
func (p *Probe[T]) attemptPermitted(now time.Time) bool {
	return p.lastAttempt.IsZero() || now.Sub(p.lastAttempt) >= p.opts.MinInterval
}

// suppressed returns why the remote path may not be taken right now, or nil.
// Callers must hold p.mu.
func (p *Probe[T]) suppressed(now time.Time, force bool) error {
	switch {
	case !p.enabled():
		return errors.ErrProbeDisabled
	case !p.authorized():
		return errors.ErrNotAuthenticated
	case !force && !p.attemptPermitted(now):
		return errors.ErrThrottled
	}
	return nil
}

func (p *Probe[T]) attempt(ctx context.Context) Result[T] {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	value, err := p.fetch(ctx)
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		// Absorbed: probe failures must not crash dependent callers.
		p.log.Warn().Err(err).Msg("Probe fetch failed, serving fallback")
		return p.fallbackResult()
	}

	p.cached = &CachedFact[T]{Value: value, Timestamp: now, source: SourceRemote}
	if p.opts.Store != nil && p.opts.StoreKey != "" {
		store.SetJSON(p.opts.Store, p.opts.StoreKey, p.cached)
	}

	p.log.Debug().Msg("Probe fetch succeeded")
	return Result[T]{Value: value, Source: SourceRemote, FetchedAt: now}
}

// await blocks until the shared in-flight attempt completes or the waiting
// caller's context is cancelled, in which case it falls back to cached data.
func (p *Probe[T]) await(ctx context.Context, c *call[T]) Result[T] {
	select {
	case <-c.done:
		return c.result
	case <-ctx.Done():
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.fallbackResult()
	}
}

// cachedResult returns the cached fact with its recorded provenance.
// Callers must hold p.mu.
func (p *Probe[T]) cachedResult() Result[T] {
	src := p.cached.source
	if src == "" {
		src = SourceRemote
	}
	return Result[T]{Value: p.cached.Value, Source: src, FetchedAt: p.cached.Timestamp}
}

// fallbackResult returns the last cached value regardless of freshness, as
// local-provenance data, or the unknown sentinel if nothing is cached.
// Callers must hold p.mu.
func (p *Probe[T]) fallbackResult() Result[T] {
	if p.cached != nil {
		return Result[T]{Value: p.cached.Value, Source: SourceLocal, FetchedAt: p.cached.Timestamp}
	}
	return Result[T]{Source: SourceUnknown}
}

// Reset clears the cache, the throttle state and any persisted fact.
func (p *Probe[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
	p.lastAttempt = time.Time{}
	if p.opts.Store != nil && p.opts.StoreKey != "" {
		p.opts.Store.Remove(p.opts.StoreKey)
	}
}
