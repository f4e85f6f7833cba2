package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

func TestMockFederatedProvider_Begin_Defaults(t *testing.T) {
	provider := NewMockFederatedProvider()
	ctx := context.Background()

	input := ports.BeginInput{RedirectURL: "http://localhost:8080/auth/oidc/callback"}
	authURL, state, nonce, err := provider.Begin(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", authURL)
	assert.Equal(t, "state-1", state)
	assert.Equal(t, "nonce-1", nonce)

	// Second call should increment counters
	_, state2, nonce2, err2 := provider.Begin(ctx, input)
	require.NoError(t, err2)
	assert.Equal(t, "state-2", state2)
	assert.Equal(t, "nonce-2", nonce2)
}

func TestMockFederatedProvider_Exchange_Default(t *testing.T) {
	provider := &MockFederatedProvider{}
	id, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)
	assert.Equal(t, "mock-user-1", id.Subject)
	assert.False(t, id.ExpiresAt.IsZero())
}

func TestFakeIdentityProvider_SignInDispatchesEvent(t *testing.T) {
	p := NewFakeIdentityProvider()
	p.AddAccount("a@x.com", "pw", domainauth.Identity{ID: "u1"})

	var got []domainauth.AuthEvent
	sub := p.OnStateChange(func(ev domainauth.AuthEvent) { got = append(got, ev) })

	require.ErrorIs(t, p.SignIn(context.Background(), "a@x.com", "wrong"), domainauth.ErrInvalidCredentials)
	require.NoError(t, p.SignIn(context.Background(), "a@x.com", "pw"))
	require.Len(t, got, 1)
	assert.Equal(t, domainauth.EventSignedIn, got[0].Kind)
	assert.Equal(t, "u1", got[0].Session.Identity.ID)

	sub.Unsubscribe()
	assert.Equal(t, 0, p.Subscribers())
	require.NoError(t, p.SignOut(context.Background()))
	assert.Len(t, got, 1)
	assert.Equal(t, 2, p.Calls("SignIn"))
}

func TestFakeIdentityProvider_SignUpRejectsDuplicates(t *testing.T) {
	p := NewFakeIdentityProvider()
	ctx := context.Background()
	require.NoError(t, p.SignUp(ctx, "a@x.com", "pw", domainauth.IdentityMetadata{Role: "admin"}))
	assert.ErrorIs(t, p.SignUp(ctx, "A@x.com", "pw", domainauth.IdentityMetadata{}), domainauth.ErrEmailTaken)

	sess, err := p.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "admin", sess.Identity.Metadata.Role)
}

func TestFakeIdentityProvider_CountsReentrantCalls(t *testing.T) {
	p := NewFakeIdentityProvider()
	p.OnStateChange(func(domainauth.AuthEvent) {
		_, _ = p.CurrentSession(context.Background())
	})
	p.Emit(domainauth.AuthEvent{Kind: domainauth.EventUserUpdated})
	assert.Equal(t, 1, p.ReentrantCalls())
}

func TestMemoryAccountRepository(t *testing.T) {
	repo := NewMemoryAccountRepository()
	ctx := context.Background()

	acct, err := repo.CreateWithProfile(ctx, ports.NewAccountInput{
		Email:    "a@x.com",
		FullName: "Ada",
		Role:     domainauth.RoleReviewer,
	})
	require.NoError(t, err)

	_, err = repo.CreateWithProfile(ctx, ports.NewAccountInput{Email: "A@X.com"})
	assert.ErrorIs(t, err, domainauth.ErrEmailTaken)

	rec, err := repo.GetProfileByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "reviewer", rec.Role)

	require.NoError(t, repo.SetRole(ctx, "a@x.com", domainauth.RoleAdmin))
	rec, err = repo.GetProfileByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", rec.Role)

	_, err = repo.GetProfileByID(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestStaticRoleMapper(t *testing.T) {
	m := StaticRoleMapper{AdminGroup: "admins", ReviewerGroup: "reviewers"}
	assert.Equal(t, domainauth.RoleAdmin, m.Map(domainauth.FederatedIdentity{Groups: []string{"reviewers", "admins"}}))
	assert.Equal(t, domainauth.RoleReviewer, m.Map(domainauth.FederatedIdentity{Groups: []string{"reviewers"}}))
	assert.Equal(t, domainauth.RoleResearcher, m.Map(domainauth.FederatedIdentity{}))
}
