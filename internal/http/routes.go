package httpx

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	grantportal "github.com/target/grant-portal"
	domainauth "github.com/target/grant-portal/internal/domain/auth"
)

// PortalSessions is what the router needs from the session registry.
type PortalSessions interface {
	SessionStores
	FlashSource
}

// RouterOptions holds everything the HTTP router wires together.
type RouterOptions struct {
	Sessions  PortalSessions // Required
	Federated FederatedLogin // Optional: enables /auth/oidc/*
	Accounts  AccountLister  // Optional: admin listing
	Policy    RolePolicy     // Optional: per-prefix role overrides

	// Guard carries timeouts, paths and observability for RequireSession.
	// Stores, Allowed, Policy, Route and Renderer are filled per route.
	Guard GuardOptions

	Renderer      *TemplateRenderer // Optional: parsed from the embedded templates when nil
	CookieDomain  string
	SecureCookies bool
	LogoutURL     string
	HealthChecks  map[string]HealthChecker
	// CompressionLevel enables gzip when between 1 and 9.
	CompressionLevel int
	// IsDev serves templates and static files from disk.
	IsDev  bool
	Logger *slog.Logger
}

// NewRouter builds the portal's handler tree.
func NewRouter(opts RouterOptions) (http.Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		templateFS, err := templateFS(opts.IsDev)
		if err != nil {
			return nil, err
		}
		renderer, err = NewTemplateRenderer(TemplateRendererConfig{TemplateFS: templateFS, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("parse templates: %w", err)
		}
	}
	static, err := staticHandler(opts.IsDev)
	if err != nil {
		return nil, err
	}

	landing := opts.Guard.LandingPath
	if landing == "" {
		landing = DefaultLandingPath
	}
	auth := &AuthHandlers{
		Stores:       opts.Sessions,
		Federated:    opts.Federated,
		Renderer:     renderer,
		CookieDomain: opts.CookieDomain,
		LandingPath:  landing,
		LoginPath:    opts.Guard.LoginPath,
		LogoutURL:    opts.LogoutURL,
		Logger:       logger,
	}
	pages := &PortalPages{Renderer: renderer, Accounts: opts.Accounts, Policy: opts.Policy, Logger: logger}

	guard := func(route string, allowed domainauth.RoleSet) func(http.Handler) http.Handler {
		g := opts.Guard
		g.Stores = opts.Sessions
		g.Allowed = allowed
		g.Policy = opts.Policy
		g.Route = route
		g.Renderer = renderer
		if g.Logger == nil {
			g.Logger = logger
		}
		return RequireSession(g)
	}

	mux := http.NewServeMux()
	registerAuthRoutes(mux, auth)
	mux.Handle("GET /grants", guard(PageGrants, nil)(http.HandlerFunc(pages.Grants)))
	mux.Handle("GET /reviews", guard(PageReviews,
		domainauth.NewRoleSet(domainauth.RoleReviewer, domainauth.RoleAdmin))(http.HandlerFunc(pages.Reviews)))
	mux.Handle("GET /admin", guard(PageAdmin,
		domainauth.NewRoleSet(domainauth.RoleAdmin, domainauth.RoleInstitutionalAdmin))(http.HandlerFunc(pages.Admin)))
	mux.Handle("GET /{$}", http.RedirectHandler(landing, http.StatusFound))

	mux.Handle("GET /api/notifications", NotificationsHandler(opts.Sessions))
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	mux.Handle("GET /readyz", readyHandler(opts.HealthChecks, logger))
	mux.Handle("GET /static/", static)
	mux.HandleFunc("/", pages.NotFound)

	var h http.Handler = mux
	h = CSRFProtection(CSRFConfig{CookieDomain: opts.CookieDomain, Secure: opts.SecureCookies})(h)
	h = BrowserDetection()(h)
	if opts.CompressionLevel > 0 {
		h = Compression(CompressionConfig{Level: opts.CompressionLevel, Logger: logger})(h)
	}
	h = Logging(logger)(h)
	h = ClientBinding(ClientBindingConfig{CookieDomain: opts.CookieDomain, Secure: opts.SecureCookies})(h)
	h = Recover(logger)(h)
	return h, nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.LoginPage)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("GET /auth/signup", h.SignUpPage)
	mux.HandleFunc("POST /auth/signup", h.SignUp)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
	if h.Federated != nil {
		mux.HandleFunc("GET /auth/oidc/login", h.OIDCLogin)
		mux.HandleFunc("GET /auth/oidc/callback", h.OIDCCallback)
	}
}

// templateFS reads templates from disk in dev mode so edits show up without a rebuild.
func templateFS(isDev bool) (fs.FS, error) {
	if isDev {
		if _, err := os.Stat("web/templates"); err == nil {
			return os.DirFS("web/templates"), nil
		}
	}
	sub, err := fs.Sub(grantportal.TemplateFS, "web/templates")
	if err != nil {
		return nil, fmt.Errorf("template filesystem: %w", err)
	}
	return sub, nil
}

func staticHandler(isDev bool) (http.Handler, error) {
	if isDev {
		if _, err := os.Stat("web/static"); err == nil {
			return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))), false), nil
		}
	}
	sub, err := fs.Sub(grantportal.StaticFS, "web/static")
	if err != nil {
		return nil, fmt.Errorf("static filesystem: %w", err)
	}
	return staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServerFS(sub)), true), nil
}

// staticWithCacheHeaders lets browsers cache embedded assets for an hour; disk assets are never cached.
func staticWithCacheHeaders(handler http.Handler, cacheable bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cacheable {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		} else {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		handler.ServeHTTP(w, r)
	})
}
