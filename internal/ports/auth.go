package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
)

// ErrNotFound is returned by repositories when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Subscription is returned by IdentityProvider.OnStateChange.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// IdentityProvider is the client-scoped identity backend the session store talks to.
// Successful state changes are reported to subscribers; callbacks may run
// synchronously in the caller's goroutine, so subscribers must not block or call back in.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string, meta domainauth.IdentityMetadata) error
	SignInWithIdentity(ctx context.Context, id domainauth.FederatedIdentity) error
	SignOut(ctx context.Context) error

	// CurrentSession returns the active session, or nil when signed out.
	CurrentSession(ctx context.Context) (*domainauth.Session, error)

	// RefreshSession reissues the access token for the active session.
	RefreshSession(ctx context.Context) (*domainauth.Session, error)

	OnStateChange(cb func(domainauth.AuthEvent)) Subscription
}

// ProfileRecordStore reads stored profile rows.
type ProfileRecordStore interface {
	// GetProfileByID returns ErrNotFound when no row exists.
	GetProfileByID(ctx context.Context, id string) (domainauth.ProfileRecord, error)
}

// CacheRepository is the small key/value surface used for the persisted profile slot.
type CacheRepository interface {
	// Set stores a value. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns nil, nil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete reports whether a key was removed.
	Delete(ctx context.Context, key string) (bool, error)

	Health(ctx context.Context) error
}

// NotificationLevel classifies a user-facing notification.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
	NotificationInfo    NotificationLevel = "info"
)

// Notification is a short user-facing message.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
}

// Notifier receives user-facing notifications. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	if f != nil {
		f(ctx, n)
	}
}

// SessionRepository persists issued sessions so they can be revoked.
type SessionRepository interface {
	Save(ctx context.Context, sess domainauth.Session) error
	// Get returns ErrNotFound for missing or expired sessions.
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// ClientBindingRepository maps a browser client to its current session ID.
type ClientBindingRepository interface {
	Bind(ctx context.Context, clientID, sessionID string, ttl time.Duration) error
	// Lookup returns ErrNotFound when the client has no binding.
	Lookup(ctx context.Context, clientID string) (string, error)
	Unbind(ctx context.Context, clientID string) error
}

// NewAccountInput groups parameters for creating a password account together with its profile row.
type NewAccountInput struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         domainauth.Role
}

// AccountRepository persists local accounts.
type AccountRepository interface {
	// GetByEmail returns ErrNotFound when no account uses the email.
	GetByEmail(ctx context.Context, email string) (domainauth.Account, error)
	GetByID(ctx context.Context, id string) (domainauth.Account, error)

	// CreateWithProfile inserts the account and its profile row atomically.
	// A duplicate email yields domainauth.ErrEmailTaken.
	CreateWithProfile(ctx context.Context, in NewAccountInput) (domainauth.Account, error)

	// UpsertFederated finds or creates a password-less account for an OIDC subject.
	UpsertFederated(ctx context.Context, id domainauth.FederatedIdentity) (domainauth.Account, error)

	SetRole(ctx context.Context, email string, role domainauth.Role) error
}

// BeginInput carries inputs for initiating a federated auth flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// FederatedProvider initiates and completes an authentication flow against an external IdP.
type FederatedProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the verified identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.FederatedIdentity, error)
}

// RoleMapper maps a federated identity's groups and claims to an application role.
type RoleMapper interface {
	Map(id domainauth.FederatedIdentity) domainauth.Role
}
