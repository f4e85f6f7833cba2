package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/target/grant-portal/internal/observability/statsd"
	"github.com/target/grant-portal/internal/ports"
)

// Registry defaults.
const (
	DefaultRegistryIdleTTL       = 30 * time.Minute
	DefaultRegistrySweepInterval = time.Minute
	DefaultStoreInitTimeout      = 5 * time.Second
	profileCacheKeyPrefix        = "profile:"
)

// ErrClientIDRequired is returned when a store is requested without a client ID.
var ErrClientIDRequired = errors.New("client ID is required")

// ProviderFactory returns the identity provider scoped to one client.
type ProviderFactory func(clientID string) ports.IdentityProvider

// SessionRegistryOptions groups dependencies for SessionRegistry.
type SessionRegistryOptions struct {
	Providers ProviderFactory          // Required
	Records   ports.ProfileRecordStore // Required
	Cache     ports.CacheRepository    // Optional: persisted profile slot per client
	CacheTTL  time.Duration
	Audit     AuditRecorder
	Metrics   statsd.Sink
	Logger    *slog.Logger

	IdleTTL       time.Duration
	SweepInterval time.Duration
	InitTimeout   time.Duration
	FlashCapacity int

	// Now is overridable for tests.
	Now func() time.Time
}

type registryEntry struct {
	store    *SessionStore
	flash    *FlashQueue
	lastUsed atomic.Int64
}

// SessionRegistry owns one initialized SessionStore per browser client.
type SessionRegistry struct {
	opts    SessionRegistryOptions
	logger  *slog.Logger
	now     func() time.Time
	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]*registryEntry
}

// NewSessionRegistry constructs a SessionRegistry.
func NewSessionRegistry(opts SessionRegistryOptions) (*SessionRegistry, error) {
	if opts.Providers == nil {
		return nil, errors.New("provider factory is required")
	}
	if opts.Records == nil {
		return nil, errors.New("profile record store is required")
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultRegistryIdleTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultRegistrySweepInterval
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultStoreInitTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionRegistry{
		opts:    opts,
		logger:  logger.With("component", "session_registry"),
		now:     now,
		entries: make(map[string]*registryEntry),
	}, nil
}

// Get returns the client's initialized store, creating it on first use.
// Concurrent first requests for the same client share one store.
func (r *SessionRegistry) Get(ctx context.Context, clientID string) (*SessionStore, error) {
	if clientID == "" {
		return nil, ErrClientIDRequired
	}
	if e := r.lookup(clientID); e != nil {
		return e.store, nil
	}

	v, err, _ := r.group.Do(clientID, func() (any, error) {
		if e := r.lookup(clientID); e != nil {
			return e, nil
		}
		e := r.build(clientID)

		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.InitTimeout)
		defer cancel()
		if initErr := e.store.Initialize(initCtx); initErr != nil {
			// The store is ready and signed out; keep it so the client is not re-initialized every request.
			r.logger.WarnContext(ctx, "session store initialized with error", "client_id", clientID, "error", initErr)
		}

		r.mu.Lock()
		r.entries[clientID] = e
		r.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	e, ok := v.(*registryEntry)
	if !ok {
		return nil, errors.New("unexpected registry entry type")
	}
	return e.store, nil
}

// Flash returns the client's notification queue, or nil when the client has no store.
func (r *SessionRegistry) Flash(clientID string) *FlashQueue {
	if e := r.lookup(clientID); e != nil {
		return e.flash
	}
	return nil
}

// Len reports the number of live stores.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *SessionRegistry) lookup(clientID string) *registryEntry {
	r.mu.Lock()
	e := r.entries[clientID]
	r.mu.Unlock()
	if e != nil {
		e.lastUsed.Store(r.now().UnixNano())
	}
	return e
}

func (r *SessionRegistry) build(clientID string) *registryEntry {
	flash := NewFlashQueue(r.opts.FlashCapacity, r.logger)
	resolver := NewProfileResolver(ProfileResolverOptions{
		Records:  r.opts.Records,
		Cache:    r.opts.Cache,
		CacheKey: profileCacheKeyPrefix + clientID,
		CacheTTL: r.opts.CacheTTL,
		Metrics:  r.opts.Metrics,
		Logger:   r.logger,
	})
	store := NewSessionStore(SessionStoreOptions{
		ClientID: clientID,
		Provider: r.opts.Providers(clientID),
		Profiles: resolver,
		Notifier: flash,
		Audit:    r.opts.Audit,
		Metrics:  r.opts.Metrics,
		Logger:   r.logger,
		Now:      r.now,
	})
	e := &registryEntry{store: store, flash: flash}
	e.lastUsed.Store(r.now().UnixNano())
	return e
}

// Sweep closes and forgets stores idle for longer than idle. It returns the number removed.
func (r *SessionRegistry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle).UnixNano()

	r.mu.Lock()
	var stale []*registryEntry
	for id, e := range r.entries {
		if e.lastUsed.Load() < cutoff {
			stale = append(stale, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.store.Close()
	}
	if len(stale) > 0 {
		r.logger.Debug("swept idle session stores", "count", len(stale))
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.Gauge("session_registry.size", float64(r.Len()), nil)
	}
	return len(stale)
}

// Run sweeps idle stores until ctx is canceled, then closes every store.
// Returns nil on graceful shutdown.
func (r *SessionRegistry) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting session registry sweeper",
		"interval", r.opts.SweepInterval,
		"idle_ttl", r.opts.IdleTTL,
	)
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session registry sweeper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(r.opts.IdleTTL)
		}
	}
}

// Close closes every store.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.store.Close()
	}
}
