// internal/factory/registry.go
package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rovshanmuradov/kappa-sdk/internal/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL = 5 * time.Minute
	// DefaultFetchTimeout bounds a shared remote lookup, which outlives the
	// caller that started it.
	DefaultFetchTimeout = 30 * time.Second

	fetchAttempts = 3
	fetchDelay    = 200 * time.Millisecond
)

// Fetcher reads factory records from a remote source.
type Fetcher interface {
	GetFactory(ctx context.Context, address string) (*api.FactoryRecord, error)
	ListFactories(ctx context.Context) ([]api.FactoryRecord, error)
}

// Recorder counts resolutions by source.
type Recorder interface {
	RecordFactoryResolution(source string)
}

type cacheEntry struct {
	config    Config
	expiresAt time.Time
}

// Registry resolves factory addresses to configs: static table, then TTL
// cache, then the remote source, then the default.
type Registry struct {
	static   map[string]Config // by lowercased package address
	aliases  map[string]Config // by lowercased alias
	fallback Config

	fetcher  Fetcher
	recorder Recorder
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group

	fetches atomic.Uint64
	logger  *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets cache entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithFetchTimeout sets the deadline of a shared remote lookup.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithFallback replaces the default config used when resolution fails.
func WithFallback(cfg Config) Option {
	return func(r *Registry) { r.fallback = cfg.WithDefaults() }
}

// WithStatic adds entries to the static table.
func WithStatic(cfgs ...Config) Option {
	return func(r *Registry) {
		for _, c := range cfgs {
			r.addStatic(c)
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

// NewRegistry creates a registry. fetcher may be nil, in which case only
// the static table and fallback are used.
func NewRegistry(fetcher Fetcher, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		static:   make(map[string]Config),
		aliases:  make(map[string]Config),
		fallback: defaultFactory,
		fetcher:  fetcher,
		ttl:      DefaultTTL,
		timeout:  DefaultFetchTimeout,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
		logger:   logger.Named("factory_registry"),
	}
	for _, c := range staticFactories() {
		r.addStatic(c)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) addStatic(c Config) {
	c = c.WithDefaults()
	r.static[normalizeKey(c.BondingContractAddress)] = c
	if c.Alias != "" {
		r.aliases[normalizeKey(c.Alias)] = c
	}
}

// Fallback returns the config substituted on failure.
func (r *Registry) Fallback() Config {
	return r.fallback
}

// Resolve maps a factory address to its config. It never fails: on error
// the fallback is returned with Source set to SourceFallback and Err set.
func (r *Registry) Resolve(ctx context.Context, address string) Resolution {
	key := normalizeKey(address)
	if key == "" {
		return r.fallbackResolution(ErrEmptyAddress)
	}

	if cfg, ok := r.static[key]; ok {
		return r.resolved(cfg, SourceStatic)
	}
	if cfg, ok := r.cached(key); ok {
		return r.resolved(cfg, SourceCache)
	}
	if r.fetcher == nil {
		return r.fallbackResolution(fmt.Errorf("%w: %s", ErrFactoryNotFound, address))
	}

	// The fetch is shared, so it runs detached from any one caller's
	// cancellation; each caller still stops waiting on its own ctx.
	ch := r.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		cfg, err := r.fetchRemote(fctx, key)
		if err != nil {
			return nil, err
		}
		r.store(key, cfg)
		return cfg, nil
	})

	var (
		v      interface{}
		err    error
		shared bool
	)
	select {
	case res := <-ch:
		v, err, shared = res.Val, res.Err, res.Shared
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		r.logger.Warn("Factory resolution failed, using fallback",
			zap.String("address", address),
			zap.String("fallback", r.fallback.Alias),
			zap.Error(err))
		return r.fallbackResolution(err)
	}
	if shared {
		r.logger.Debug("Shared in-flight factory fetch", zap.String("address", key))
	}
	return r.resolved(v.(Config), SourceRemote)
}

// GetDefaultFactory resolves by alias or by address. An empty key returns
// the fallback config as a successful static resolution.
func (r *Registry) GetDefaultFactory(ctx context.Context, aliasOrAddress string) Resolution {
	key := normalizeKey(aliasOrAddress)
	if key == "" {
		return r.resolved(r.fallback, SourceStatic)
	}
	if cfg, ok := r.aliases[key]; ok {
		return r.resolved(cfg, SourceStatic)
	}
	return r.Resolve(ctx, aliasOrAddress)
}

// ClearCache drops every cached entry.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
}

// CleanupStale removes expired cache entries and returns how many went.
func (r *Registry) CleanupStale() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for k, e := range r.cache {
		if !now.Before(e.expiresAt) {
			delete(r.cache, k)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("Cleaned up stale factories",
			zap.Int("removed", removed),
			zap.Int("remaining", len(r.cache)))
	}
	return removed
}

// Fetches returns how many remote lookups have been started.
func (r *Registry) Fetches() uint64 {
	return r.fetches.Load()
}

func (r *Registry) cached(key string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[key]
	if !ok || !r.now().Before(e.expiresAt) {
		return Config{}, false
	}
	return e.config, true
}

func (r *Registry) store(key string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cacheEntry{config: cfg, expiresAt: r.now().Add(r.ttl)}
}

// fetchRemote tries the single-record endpoint and, when the API does not
// know the address, the list endpoint filtered by package id or alias.
func (r *Registry) fetchRemote(ctx context.Context, key string) (Config, error) {
	r.fetches.Add(1)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = fetchDelay
	policy.MaxInterval = fetchDelay * 10

	retry := func(op func() (Config, error)) (Config, error) {
		return backoff.Retry(ctx, func() (Config, error) {
			cfg, err := op()
			if err != nil && (api.IsClientError(err) || errors.Is(err, ErrIncompleteFactory) || errors.Is(err, ErrFactoryNotFound)) {
				return Config{}, backoff.Permanent(err)
			}
			return cfg, err
		}, backoff.WithBackOff(policy), backoff.WithMaxTries(fetchAttempts))
	}

	cfg, err := retry(func() (Config, error) {
		rec, err := r.fetcher.GetFactory(ctx, key)
		if err != nil {
			return Config{}, err
		}
		return FromRecord(*rec)
	})
	if err == nil {
		return cfg, nil
	}
	if !api.IsNotFound(err) {
		return Config{}, fmt.Errorf("fetch factory %s: %w", key, err)
	}

	policy.Reset()
	return retry(func() (Config, error) {
		records, err := r.fetcher.ListFactories(ctx)
		if err != nil {
			return Config{}, err
		}
		for _, rec := range records {
			if normalizeKey(rec.PackageID) == key || normalizeKey(rec.Alias) == key {
				return FromRecord(rec)
			}
		}
		return Config{}, fmt.Errorf("%w: %s", ErrFactoryNotFound, key)
	})
}

func (r *Registry) resolved(cfg Config, src Source) Resolution {
	if r.recorder != nil {
		r.recorder.RecordFactoryResolution(string(src))
	}
	return Resolution{Config: cfg, Source: src}
}

func (r *Registry) fallbackResolution(err error) Resolution {
	res := r.resolved(r.fallback, SourceFallback)
	res.Err = err
	return res
}
