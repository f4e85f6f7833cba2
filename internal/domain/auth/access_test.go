package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var accessNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func authedSnapshot(role Role) Snapshot {
	return Snapshot{
		User:            &Profile{ID: "u1", Name: "a", Email: "a@x.com", Role: role},
		Session:         &Session{ID: "s1", ExpiresAt: accessNow.Add(time.Hour)},
		IsAuthenticated: true,
	}
}

func expiredSnapshot(role Role) Snapshot {
	snap := authedSnapshot(role)
	snap.Session.ExpiresAt = accessNow.Add(-time.Second)
	return snap
}

func TestEvaluateAccess(t *testing.T) {
	tests := []struct {
		name    string
		snap    Snapshot
		ready   bool
		allowed RoleSet
		want    AccessDecision
	}{
		{
			name:  "not ready is checking",
			snap:  authedSnapshot(RoleAdmin),
			ready: false,
			want:  AccessDecision{IsChecking: true, Outcome: OutcomeChecking},
		},
		{
			name:  "no session is unauthenticated",
			snap:  Snapshot{},
			ready: true,
			want:  AccessDecision{Outcome: OutcomeUnauthenticated},
		},
		{
			name:  "session without profile is unauthenticated",
			snap:  Snapshot{Session: &Session{ID: "s1"}},
			ready: true,
			want:  AccessDecision{Outcome: OutcomeUnauthenticated},
		},
		{
			name:  "expired session is unauthenticated",
			snap:  expiredSnapshot(RoleAdmin),
			ready: true,
			want:  AccessDecision{Outcome: OutcomeUnauthenticated},
		},
		{
			name:    "expired session is not denied either",
			snap:    expiredSnapshot(RoleReviewer),
			ready:   true,
			allowed: NewRoleSet(RoleAdmin),
			want:    AccessDecision{Outcome: OutcomeUnauthenticated},
		},
		{
			name:  "session expiring exactly now is unauthenticated",
			snap:  func() Snapshot { s := authedSnapshot(RoleAdmin); s.Session.ExpiresAt = accessNow; return s }(),
			ready: true,
			want:  AccessDecision{Outcome: OutcomeUnauthenticated},
		},
		{
			name:  "no restriction authorizes",
			snap:  authedSnapshot(RoleResearcher),
			ready: true,
			want:  AccessDecision{IsAuthenticated: true, HasAccess: true, Outcome: OutcomeAuthorized},
		},
		{
			name:    "reviewer denied from admin view",
			snap:    authedSnapshot(RoleReviewer),
			ready:   true,
			allowed: NewRoleSet(RoleAdmin),
			want:    AccessDecision{IsAuthenticated: true, Outcome: OutcomeDenied},
		},
		{
			name:    "admin allowed into admin view",
			snap:    authedSnapshot(RoleAdmin),
			ready:   true,
			allowed: NewRoleSet(RoleAdmin, RoleInstitutionalAdmin),
			want:    AccessDecision{IsAuthenticated: true, HasAccess: true, Outcome: OutcomeAuthorized},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateAccess(tt.snap, tt.ready, tt.allowed, accessNow))
		})
	}
}

func TestAuthErrorKinds(t *testing.T) {
	v := ValidationError("Email and password are required", ErrMissingCredentials)
	assert.True(t, IsValidation(v))
	assert.False(t, IsProvider(v))
	assert.ErrorIs(t, v, ErrMissingCredentials)
	assert.Equal(t, "Email and password are required", v.Error())

	p := ProviderError(ErrInvalidCredentials)
	assert.True(t, IsProvider(p))
	assert.ErrorIs(t, p, ErrInvalidCredentials)
	assert.Equal(t, ErrInvalidCredentials.Error(), p.Error())

	assert.False(t, IsValidation(errors.New("plain")))
}

func TestFederatedIdentityFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", FederatedIdentity{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada", FederatedIdentity{FirstName: "Ada"}.FullName())
	assert.Equal(t, "Lovelace", FederatedIdentity{LastName: "Lovelace"}.FullName())
	assert.Empty(t, FederatedIdentity{}.FullName())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Session{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
	assert.False(t, Session{}.Expired(now))
}
