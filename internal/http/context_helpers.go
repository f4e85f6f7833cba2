package httpx

import (
	"context"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
)

// Unexported context key types avoid collisions across packages.
type (
	clientIDKey struct{}
	sessionKey  struct{}
	profileKey  struct{}
)

// SetClientIDInContext returns a child context carrying the browser client ID.
func SetClientIDInContext(ctx context.Context, clientID string) context.Context {
	if clientID == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientIDFromContext returns the client ID assigned by ClientBinding.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey{}).(string)
	return id, ok && id != ""
}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the session placed by RequireSession, or nil.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	if s, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok {
		return s
	}
	return nil
}

// SetProfileInContext returns a child context that carries the given profile.
func SetProfileInContext(ctx context.Context, profile *domainauth.Profile) context.Context {
	if profile == nil {
		return ctx
	}
	return context.WithValue(ctx, profileKey{}, profile)
}

// GetProfileFromContext returns the profile placed by RequireSession, or nil.
func GetProfileFromContext(ctx context.Context) *domainauth.Profile {
	if p, ok := ctx.Value(profileKey{}).(*domainauth.Profile); ok {
		return p
	}
	return nil
}
