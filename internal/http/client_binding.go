package httpx

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultClientCookieName names the long-lived cookie identifying a browser client.
	DefaultClientCookieName = "portal_client"
	// DefaultClientCookieMaxAge keeps the client cookie for a year.
	DefaultClientCookieMaxAge = 365 * 24 * time.Hour
)

// ClientBindingConfig configures the ClientBinding middleware.
type ClientBindingConfig struct {
	CookieName   string
	CookieDomain string
	// Secure forces the Secure attribute even on plain HTTP requests.
	Secure bool
	MaxAge time.Duration
	// NewID generates client IDs; defaults to uuid.NewString.
	NewID func() string
}

// ClientBinding assigns every request a client ID taken from the client cookie,
// issuing a fresh UUID when the cookie is missing or malformed. The ID is placed
// in the request context for RequireSession and the auth handlers.
func ClientBinding(cfg ClientBindingConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultClientCookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultClientCookieMaxAge
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIDFromCookie(r, cfg.CookieName)
			if clientID == "" {
				clientID = cfg.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    clientID,
					Path:     "/",
					Domain:   cfg.CookieDomain,
					HttpOnly: true,
					Secure:   cfg.Secure || isSecureRequest(r),
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(cfg.MaxAge.Seconds()),
				})
			}
			next.ServeHTTP(w, r.WithContext(SetClientIDInContext(r.Context(), clientID)))
		})
	}
}

func clientIDFromCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}

// isSecureRequest reports whether the request arrived over TLS, directly or via a proxy.
func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || isForwardedHTTPS(r)
}
