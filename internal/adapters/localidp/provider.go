// Package localidp is the portal's own identity provider: bcrypt password
// accounts in Postgres, JWT session tokens, and session records in Redis.
package localidp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

// ProviderOptions groups dependencies for Provider.
type ProviderOptions struct {
	Accounts ports.AccountRepository       // Required
	Sessions ports.SessionRepository       // Required
	Bindings ports.ClientBindingRepository // Required
	Tokens   *TokenIssuer                  // Required
	Logger   *slog.Logger
}

// Provider hands out client-scoped identity providers sharing one set of repositories.
type Provider struct {
	accounts ports.AccountRepository
	sessions ports.SessionRepository
	bindings ports.ClientBindingRepository
	tokens   *TokenIssuer
	logger   *slog.Logger
}

// NewProvider constructs a Provider.
func NewProvider(opts ProviderOptions) (*Provider, error) {
	if opts.Accounts == nil {
		return nil, errors.New("account repository is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session repository is required")
	}
	if opts.Bindings == nil {
		return nil, errors.New("client binding repository is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		accounts: opts.Accounts,
		sessions: opts.Sessions,
		bindings: opts.Bindings,
		tokens:   opts.Tokens,
		logger:   logger.With("component", "localidp"),
	}, nil
}

// ForClient returns the identity provider for one browser client.
// Subscribers registered on it only see that client's state changes.
func (p *Provider) ForClient(clientID string) ports.IdentityProvider {
	return &ClientProvider{
		idp:      p,
		clientID: clientID,
		subs:     make(map[uint64]func(domainauth.AuthEvent)),
	}
}

// ClientProvider implements ports.IdentityProvider for a single client.
// Callbacks run synchronously in the goroutine that caused the change.
type ClientProvider struct {
	idp      *Provider
	clientID string

	mu      sync.Mutex
	subs    map[uint64]func(domainauth.AuthEvent)
	nextSub uint64
}

var _ ports.IdentityProvider = (*ClientProvider)(nil)

// SignIn verifies email and password and starts a session.
func (c *ClientProvider) SignIn(ctx context.Context, email, password string) error {
	acct, err := c.idp.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domainauth.ErrInvalidCredentials
		}
		return fmt.Errorf("look up account: %w", err)
	}
	if !CheckPassword(password, acct.PasswordHash) {
		return domainauth.ErrInvalidCredentials
	}
	return c.startSession(ctx, acct.Identity(), domainauth.EventSignedIn)
}

// SignUp creates a password account and its profile row, then signs the client in.
func (c *ClientProvider) SignUp(ctx context.Context, email, password string, meta domainauth.IdentityMetadata) error {
	if err := ValidatePasswordStrength(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	acct, err := c.idp.accounts.CreateWithProfile(ctx, ports.NewAccountInput{
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(meta.FullName),
		Role:         domainauth.RoleOrDefault(meta.Role),
	})
	if err != nil {
		if errors.Is(err, domainauth.ErrEmailTaken) {
			return domainauth.ErrEmailTaken
		}
		return fmt.Errorf("create account: %w", err)
	}
	c.idp.logger.InfoContext(ctx, "account created", "account_id", acct.ID, "role", acct.Metadata.Role)
	return c.startSession(ctx, acct.Identity(), domainauth.EventSignedIn)
}

// SignInWithIdentity finds or creates the account for a federated identity and signs in.
func (c *ClientProvider) SignInWithIdentity(ctx context.Context, id domainauth.FederatedIdentity) error {
	acct, err := c.idp.accounts.UpsertFederated(ctx, id)
	if err != nil {
		return fmt.Errorf("upsert federated account: %w", err)
	}
	return c.startSession(ctx, acct.Identity(), domainauth.EventSignedIn)
}

// SignOut revokes the client's session. A client without a session signs out successfully.
func (c *ClientProvider) SignOut(ctx context.Context) error {
	sessionID, err := c.idp.bindings.Lookup(ctx, c.clientID)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("look up client binding: %w", err)
	}

	var errs []error
	if sessionID != "" {
		if delErr := c.idp.sessions.Delete(ctx, sessionID); delErr != nil {
			errs = append(errs, fmt.Errorf("delete session: %w", delErr))
		}
	}
	if unbindErr := c.idp.bindings.Unbind(ctx, c.clientID); unbindErr != nil {
		errs = append(errs, fmt.Errorf("unbind client: %w", unbindErr))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.dispatch(domainauth.AuthEvent{Kind: domainauth.EventSignedOut})
	return nil
}

// CurrentSession returns the client's live session, or nil. Expired or revoked
// sessions are cleaned up and reported as nil.
func (c *ClientProvider) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	return c.loadSession(ctx)
}

// RefreshSession reissues the client's token. When the session is gone the
// client is signed out and ErrNoSession is returned.
func (c *ClientProvider) RefreshSession(ctx context.Context) (*domainauth.Session, error) {
	sess, err := c.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		c.dispatch(domainauth.AuthEvent{Kind: domainauth.EventSignedOut})
		return nil, domainauth.ErrNoSession
	}

	token, exp, err := c.idp.tokens.Issue(sess.ID, sess.Identity.ID, sess.Identity.Email)
	if err != nil {
		return nil, err
	}
	sess.AccessToken = token
	sess.ExpiresAt = exp
	if persistErr := c.persist(ctx, *sess); persistErr != nil {
		return nil, persistErr
	}

	out := *sess
	c.dispatch(domainauth.AuthEvent{Kind: domainauth.EventTokenRefreshed, Session: &out})
	return sess, nil
}

// OnStateChange registers cb for this client's state changes.
func (c *ClientProvider) OnStateChange(cb func(domainauth.AuthEvent)) ports.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = cb
	return ports.SubscriptionFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	})
}

func (c *ClientProvider) startSession(ctx context.Context, id domainauth.Identity, kind domainauth.EventKind) error {
	previous, err := c.idp.bindings.Lookup(ctx, c.clientID)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("look up client binding: %w", err)
	}

	sessionID := uuid.NewString()
	token, exp, err := c.idp.tokens.Issue(sessionID, id.ID, id.Email)
	if err != nil {
		return err
	}
	sess := domainauth.Session{
		ID:          sessionID,
		AccessToken: token,
		ExpiresAt:   exp,
		Identity:    id,
	}
	if persistErr := c.persist(ctx, sess); persistErr != nil {
		return persistErr
	}

	if previous != "" && previous != sessionID {
		if delErr := c.idp.sessions.Delete(ctx, previous); delErr != nil {
			c.idp.logger.WarnContext(ctx, "failed to revoke replaced session", "client_id", c.clientID, "error", delErr)
		}
	}

	c.dispatch(domainauth.AuthEvent{Kind: kind, Session: &sess})
	return nil
}

func (c *ClientProvider) persist(ctx context.Context, sess domainauth.Session) error {
	if err := c.idp.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := c.idp.bindings.Bind(ctx, c.clientID, sess.ID, time.Until(sess.ExpiresAt)); err != nil {
		return fmt.Errorf("bind client: %w", err)
	}
	return nil
}

func (c *ClientProvider) loadSession(ctx context.Context) (*domainauth.Session, error) {
	sessionID, err := c.idp.bindings.Lookup(ctx, c.clientID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("look up client binding: %w", err)
	}

	sess, err := c.idp.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			c.discard(ctx, "")
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	claims, err := c.idp.tokens.Verify(sess.AccessToken)
	if err != nil || claims.ID != sess.ID || claims.Subject != sess.Identity.ID {
		c.idp.logger.InfoContext(ctx, "discarding session with invalid token", "client_id", c.clientID, "error", err)
		c.discard(ctx, sess.ID)
		return nil, nil
	}
	return &sess, nil
}

func (c *ClientProvider) discard(ctx context.Context, sessionID string) {
	if sessionID != "" {
		if err := c.idp.sessions.Delete(ctx, sessionID); err != nil {
			c.idp.logger.WarnContext(ctx, "failed to delete session", "client_id", c.clientID, "error", err)
		}
	}
	if err := c.idp.bindings.Unbind(ctx, c.clientID); err != nil {
		c.idp.logger.WarnContext(ctx, "failed to unbind client", "client_id", c.clientID, "error", err)
	}
}

func (c *ClientProvider) dispatch(ev domainauth.AuthEvent) {
	c.mu.Lock()
	cbs := make([]func(domainauth.AuthEvent), 0, len(c.subs))
	for _, cb := range c.subs {
		cbs = append(cbs, cb)
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(ev)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
