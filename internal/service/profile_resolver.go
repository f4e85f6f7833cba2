package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/observability/metrics"
	"github.com/target/grant-portal/internal/observability/statsd"
	"github.com/target/grant-portal/internal/ports"
)

// DefaultProfileCacheTTL bounds how long a persisted profile slot outlives its client.
const DefaultProfileCacheTTL = 24 * time.Hour

// ProfileResolverOptions groups dependencies for ProfileResolver.
type ProfileResolverOptions struct {
	Records ports.ProfileRecordStore
	Cache   ports.CacheRepository // optional
	// CacheKey is the single persisted slot owned by this resolver.
	CacheKey string
	CacheTTL time.Duration
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// ProfileResolver turns an Identity into a Profile. It never fails: when the
// record store is unavailable or has no row, a fallback profile is derived
// from the identity alone.
type ProfileResolver struct {
	records  ports.ProfileRecordStore
	cache    ports.CacheRepository
	cacheKey string
	cacheTTL time.Duration
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewProfileResolver constructs a ProfileResolver.
func NewProfileResolver(opts ProfileResolverOptions) *ProfileResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultProfileCacheTTL
	}
	return &ProfileResolver{
		records:  opts.Records,
		cache:    opts.Cache,
		cacheKey: opts.CacheKey,
		cacheTTL: ttl,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "profile_resolver"),
	}
}

// Resolve returns the Profile for id, or nil when id carries no user ID.
// The persisted slot is cleared first and rewritten with the result.
func (r *ProfileResolver) Resolve(ctx context.Context, id domainauth.Identity) *domainauth.Profile {
	r.ClearCache(ctx)

	if id.ID == "" {
		return nil
	}

	start := time.Now()
	profile := FallbackProfile(id)
	source := metrics.SourceFallback

	rec, err := r.fetch(ctx, id.ID)
	switch {
	case err == nil:
		profile = mergeProfileRecord(profile, rec)
		source = metrics.SourceRecord
	case errors.Is(err, ports.ErrNotFound):
		r.logger.DebugContext(ctx, "no profile record, using fallback", "user_id", id.ID)
		err = nil
	default:
		r.logger.WarnContext(ctx, "profile record fetch failed, using fallback", "user_id", id.ID, "error", err)
	}

	metrics.EmitProfileResolution(r.metrics, metrics.ProfileResolutionMetric{
		Source:   source,
		Duration: time.Since(start),
		Err:      err,
	})

	r.persist(ctx, profile)
	return &profile
}

// ClearCache removes the persisted profile slot. Failures are logged only.
func (r *ProfileResolver) ClearCache(ctx context.Context) {
	if r.cache == nil || r.cacheKey == "" {
		return
	}
	if _, err := r.cache.Delete(ctx, r.cacheKey); err != nil {
		r.logger.WarnContext(ctx, "clear profile cache failed", "key", r.cacheKey, "error", err)
	}
}

// Cached returns the persisted profile slot, if any.
func (r *ProfileResolver) Cached(ctx context.Context) (*domainauth.Profile, error) {
	if r.cache == nil || r.cacheKey == "" {
		return nil, nil
	}
	data, err := r.cache.Get(ctx, r.cacheKey)
	if err != nil || data == nil {
		return nil, err
	}
	var p domainauth.Profile
	if unmarshalErr := json.Unmarshal(data, &p); unmarshalErr != nil {
		return nil, unmarshalErr
	}
	return &p, nil
}

func (r *ProfileResolver) fetch(ctx context.Context, userID string) (domainauth.ProfileRecord, error) {
	if r.records == nil {
		return domainauth.ProfileRecord{}, ports.ErrNotFound
	}
	return r.records.GetProfileByID(ctx, userID)
}

func (r *ProfileResolver) persist(ctx context.Context, p domainauth.Profile) {
	if r.cache == nil || r.cacheKey == "" {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		r.logger.WarnContext(ctx, "encode profile for cache failed", "error", err)
		return
	}
	if setErr := r.cache.Set(ctx, r.cacheKey, data, r.cacheTTL); setErr != nil {
		r.logger.WarnContext(ctx, "persist profile cache failed", "key", r.cacheKey, "error", setErr)
	}
}

// FallbackProfile derives a Profile from the identity alone.
// Name prefers the metadata full name, then the email local-part, then the ID.
func FallbackProfile(id domainauth.Identity) domainauth.Profile {
	return domainauth.Profile{
		ID:    id.ID,
		Name:  fallbackName(id),
		Email: id.Email,
		Role:  domainauth.RoleOrDefault(id.Metadata.Role),
	}
}

func fallbackName(id domainauth.Identity) string {
	if name := strings.TrimSpace(id.Metadata.FullName); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(id.Email, "@"); strings.TrimSpace(local) != "" {
		return local
	}
	return id.ID
}

// mergeProfileRecord lays the stored record over the fallback values.
func mergeProfileRecord(p domainauth.Profile, rec domainauth.ProfileRecord) domainauth.Profile {
	if name := strings.TrimSpace(rec.FullName); name != "" {
		p.Name = name
	}
	if email := strings.TrimSpace(rec.Email); email != "" {
		p.Email = email
	}
	if role, err := domainauth.ParseRole(rec.Role); err == nil {
		p.Role = role
	}
	p.Institution = optionalString(rec.Institution)
	p.Department = optionalString(rec.Department)
	return p
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
