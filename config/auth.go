package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinJWTSecretLength matches the HS256 key size.
const MinJWTSecretLength = 32

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModePassword uses local email/password accounts only.
	AuthModePassword AuthMode = "password"
	// AuthModeOAuth adds OIDC sign-in next to password accounts.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock adds a fixed dev identity next to password accounts (development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "password", "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: password, oauth, mock)", v)
	}
}

// Federated reports whether the mode exposes the OIDC login routes.
func (a AuthMode) Federated() bool {
	return a == AuthModeOAuth || a == AuthModeMock
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/oidc/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email groups"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// DevAuthConfig controls the mock identity used when AUTH_MODE=mock.
type DevAuthConfig struct {
	Subject   string   `env:"SUBJECT"    envDefault:"dev-user"`
	Email     string   `env:"EMAIL"      envDefault:"dev@example.edu"`
	FirstName string   `env:"FIRST_NAME" envDefault:"Dev"`
	LastName  string   `env:"LAST_NAME"  envDefault:"User"`
	Groups    []string `env:"GROUPS"     envDefault:"grants-admins" envSeparator:";"`
}

// SessionConfig controls the portal's own session tokens.
type SessionConfig struct {
	// JWTSecret signs session tokens (HS256). At least MinJWTSecretLength bytes.
	JWTSecret string `env:"JWT_SECRET"`
	// Issuer is the iss claim of issued tokens.
	Issuer string `env:"JWT_ISSUER" envDefault:"grant-portal"`
	// TTL is how long a session token stays valid.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"8h"`
	// RefreshWithin reissues a token when a guarded request arrives this close to expiry. 0 disables.
	RefreshWithin time.Duration `env:"SESSION_REFRESH_WITHIN" envDefault:"15m"`
}

// GuardConfig controls the route guard.
type GuardConfig struct {
	// ReadyTimeout bounds how long a request waits for the client's session store to settle.
	ReadyTimeout time.Duration `env:"GUARD_READY_TIMEOUT" envDefault:"3s"`
	// DeniedRedirectDelay is how long the access-denied page shows before redirecting.
	DeniedRedirectDelay time.Duration `env:"GUARD_DENIED_REDIRECT_DELAY" envDefault:"2s"`
	LoginPath           string        `env:"GUARD_LOGIN_PATH"            envDefault:"/auth/login"`
	LandingPath         string        `env:"GUARD_LANDING_PATH"          envDefault:"/grants"`
	// PolicyFile optionally points at a YAML route policy overriding the built-in role rules.
	PolicyFile string `env:"GUARD_POLICY_FILE"`
}

// RoleMappingConfig maps federated groups and claims to portal roles.
type RoleMappingConfig struct {
	AdminGroup              string `env:"ADMIN_GROUP"               envDefault:"grants-admins"`
	InstitutionalAdminGroup string `env:"INSTITUTIONAL_ADMIN_GROUP" envDefault:"grants-institutional-admins"`
	ReviewerGroup           string `env:"REVIEWER_GROUP"            envDefault:"grants-reviewers"`
	// ClaimExpression is an optional JMESPath expression over ID-token claims yielding a role name.
	ClaimExpression string `env:"ROLE_CLAIM_EXPRESSION"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"password"`

	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	Session SessionConfig
	Guard   GuardConfig
	Roles   RoleMappingConfig
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	a.Session.Issuer = strings.TrimSpace(a.Session.Issuer)
	if a.Session.Issuer == "" {
		a.Session.Issuer = "grant-portal"
	}
	if a.Session.TTL <= 0 {
		a.Session.TTL = 8 * time.Hour
	}
	if a.Session.RefreshWithin < 0 || a.Session.RefreshWithin >= a.Session.TTL {
		a.Session.RefreshWithin = 0
	}

	if a.Guard.ReadyTimeout <= 0 {
		a.Guard.ReadyTimeout = 3 * time.Second
	}
	if a.Guard.DeniedRedirectDelay < 0 {
		a.Guard.DeniedRedirectDelay = 0
	}
	a.Guard.LoginPath = normalizePath(a.Guard.LoginPath, "/auth/login")
	a.Guard.LandingPath = normalizePath(a.Guard.LandingPath, "/grants")
	a.Guard.PolicyFile = strings.TrimSpace(a.Guard.PolicyFile)

	a.Roles.ClaimExpression = strings.TrimSpace(a.Roles.ClaimExpression)
}

// Validate checks settings that have no safe default. Dev mode tolerates a missing JWT secret.
func (a *AuthConfig) Validate(isDev bool) error {
	var errs []error
	if n := len(a.Session.JWTSecret); n < MinJWTSecretLength && (n > 0 || !isDev) {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength))
	}
	switch a.Mode {
	case AuthModeOAuth:
		if a.OAuth.ClientID == "" || a.OAuth.ClientSecret == "" || a.OAuth.DiscoveryURL == "" {
			errs = append(errs, errors.New("AUTH_MODE=oauth requires OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET and OAUTH_DISCOVERY_URL"))
		}
	case AuthModeMock:
		if !isDev {
			errs = append(errs, errors.New("AUTH_MODE=mock is only allowed in development"))
		}
	case AuthModePassword, "":
	}
	return errors.Join(errs...)
}

func normalizePath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return fallback
	}
	return p
}
