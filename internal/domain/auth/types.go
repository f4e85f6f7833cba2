package auth

// Package auth contains domain-level types for identities, sessions and profiles.
// It is pure and free of framework/adapter concerns.

import "time"

// IdentityMetadata carries optional provider-supplied hints captured at sign-up
// or from a federated provider. Empty strings mean "not supplied".
type IdentityMetadata struct {
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Identity is the provider-level authenticated principal.
type Identity struct {
	ID       string           `json:"id"`
	Email    string           `json:"email"`
	Metadata IdentityMetadata `json:"metadata"`
}

// Session proves an Identity is currently authenticated.
// AccessToken is opaque to everything except the issuing provider.
type Session struct {
	ID          string    `json:"id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Identity    Identity  `json:"identity"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Profile is the application-level view of an Identity used for display and authorization.
// Name is never empty and Role is always a member of the closed role set.
type Profile struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Role        Role    `json:"role"`
	Institution *string `json:"institution"`
	Department  *string `json:"department"`
}

// ProfileRecord is the stored profile row as returned by the profile record store.
// Empty strings mean the column was NULL or blank.
type ProfileRecord struct {
	ID          string
	FullName    string
	Email       string
	Role        string
	Institution string
	Department  string
}

// FederatedIdentity is an identity verified by an external OIDC provider.
type FederatedIdentity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	Groups    []string
	Claims    map[string]any
	Role      Role
	ExpiresAt time.Time
}

// FullName joins the first and last name, skipping blanks.
func (f FederatedIdentity) FullName() string {
	switch {
	case f.FirstName != "" && f.LastName != "":
		return f.FirstName + " " + f.LastName
	case f.FirstName != "":
		return f.FirstName
	default:
		return f.LastName
	}
}

// EventKind names an identity-provider state change.
type EventKind string

const (
	EventInitialSession EventKind = "initial_session"
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
	EventUserUpdated    EventKind = "user_updated"
)

// AuthEvent is delivered by the identity provider whenever its state changes.
// Session is nil for EventSignedOut.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// Snapshot is the read-only view of a session store handed to downstream consumers.
type Snapshot struct {
	User            *Profile
	Session         *Session
	IsAuthenticated bool
}

// Account is a locally stored credential. PasswordHash is empty for federated accounts.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Subject      string
	Metadata     IdentityMetadata
	CreatedAt    time.Time
}

// Identity returns the provider-level principal for the account.
func (a Account) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email, Metadata: a.Metadata}
}
