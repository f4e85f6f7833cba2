package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/observability/metrics"
	"github.com/target/grant-portal/internal/observability/notify"
	"github.com/target/grant-portal/internal/observability/statsd"
	"github.com/target/grant-portal/internal/service"
)

// Guard defaults.
const (
	DefaultGuardReadyTimeout   = 3 * time.Second
	DefaultDeniedRedirectDelay = 3 * time.Second
	DefaultLoginPath           = "/auth/login"
	DefaultLandingPath         = "/grants"
	checkingRetryAfter         = 2 * time.Second
	guardAuditTimeout          = 10 * time.Second
)

// RolePolicy maps a request path to the roles allowed to open it.
type RolePolicy interface {
	Match(path string) (domainauth.RoleSet, bool)
}

// SessionStores hands out the initialized session store of a client.
type SessionStores interface {
	Get(ctx context.Context, clientID string) (*service.SessionStore, error)
}

// Error codes of guard JSON responses.
const (
	errCodeSessionChecking = "session_checking"
	errCodeUnauthenticated = "unauthenticated"
	errCodeForbidden       = "forbidden"
)

// GuardOptions configures RequireSession.
type GuardOptions struct {
	Stores SessionStores // Required

	// Allowed applies when Policy has no rule for the path. Empty means any role.
	Allowed domainauth.RoleSet
	Policy  RolePolicy

	ReadyTimeout        time.Duration
	DeniedRedirectDelay time.Duration
	LoginPath           string
	LandingPath         string
	// RefreshWithin refreshes sessions that expire sooner than this before deciding. Zero disables it.
	RefreshWithin time.Duration

	Renderer *TemplateRenderer // nil answers browsers with plain text
	Audit    service.AuditRecorder
	Metrics  statsd.Sink
	// Route tags guard metrics; defaults to "other".
	Route  string
	Logger *slog.Logger
	Now    func() time.Time
}

type guard struct {
	opts   GuardOptions
	logger *slog.Logger
}

// RequireSession returns middleware that renders children only for authenticated
// users whose role the route allows. The decision is made once per request.
func RequireSession(opts GuardOptions) func(http.Handler) http.Handler {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultGuardReadyTimeout
	}
	if opts.DeniedRedirectDelay <= 0 {
		opts.DeniedRedirectDelay = DefaultDeniedRedirectDelay
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.LandingPath == "" {
		opts.LandingPath = DefaultLandingPath
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &guard{opts: opts, logger: logger.With("component", "route_guard")}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

func (g *guard) allowedFor(path string) domainauth.RoleSet {
	if g.opts.Policy != nil {
		if set, ok := g.opts.Policy.Match(path); ok {
			return set
		}
	}
	return g.opts.Allowed
}

func (g *guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	start := time.Now()

	var (
		store *service.SessionStore
		snap  domainauth.Snapshot
		ready = true
	)
	if clientID, ok := ClientIDFromContext(ctx); ok {
		var err error
		store, err = g.settle(ctx, clientID)
		switch {
		case err == nil:
			snap = g.refreshIfExpiring(ctx, store, store.Snapshot())
		case ctx.Err() != nil:
			// Client went away while we waited.
			return
		case errors.Is(err, context.DeadlineExceeded):
			ready = false
		default:
			g.logger.WarnContext(ctx, "session store unavailable", "client_id", clientID, "error", err)
			ready = false
		}
	}

	decision := domainauth.EvaluateAccess(snap, ready, g.allowedFor(r.URL.Path), g.opts.Now())
	metrics.EmitGuardDecision(g.opts.Metrics, metrics.GuardMetric{
		Outcome: string(decision.Outcome),
		Route:   g.routeLabel(),
		Wait:    time.Since(start),
	})

	switch decision.Outcome {
	case domainauth.OutcomeChecking:
		g.checking(w, r)
	case domainauth.OutcomeUnauthenticated:
		g.unauthenticated(w, r)
	case domainauth.OutcomeDenied:
		g.denied(w, r, snap)
	case domainauth.OutcomeAuthorized:
		ctx = SetSessionInContext(ctx, snap.Session)
		ctx = SetProfileInContext(ctx, snap.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	default:
		g.logger.ErrorContext(ctx, "unknown guard outcome", "outcome", decision.Outcome)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// settle fetches the client's store and waits until its pending resolutions are
// applied, bounded by ReadyTimeout.
func (g *guard) settle(ctx context.Context, clientID string) (*service.SessionStore, error) {
	waitCtx, cancel := context.WithTimeout(ctx, g.opts.ReadyTimeout)
	defer cancel()

	type result struct {
		store *service.SessionStore
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := g.opts.Stores.Get(waitCtx, clientID)
		ch <- result{store: s, err: err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-waitCtx.Done():
		return nil, waitCtx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}
	if err := res.store.WaitSettled(waitCtx); err != nil {
		return nil, err
	}
	return res.store, nil
}

func (g *guard) checking(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(int(checkingRetryAfter/time.Second)))
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: errCodeSessionChecking,
			Err:     errors.New("session is still being checked, retry shortly"),
		})
		return
	}
	retry := r.URL.RequestURI()
	data := NewTemplateData(r, PageMeta{Title: "Checking session", CurrentPage: PageChecking}).
		WithRefresh(checkingRetryAfter, retry).
		With("RetryURL", retry).
		Build()
	g.render(w, r, http.StatusServiceUnavailable, data)
}

func (g *guard) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:       http.StatusUnauthorized,
			ErrCode:    errCodeUnauthenticated,
			Err:        domainauth.ErrNoSession,
			RedirectTo: g.opts.LoginPath,
		})
		return
	}
	redirectToLogin(w, r, g.opts.LoginPath)
}

func (g *guard) denied(w http.ResponseWriter, r *http.Request, snap domainauth.Snapshot) {
	ctx := r.Context()
	user := snap.User
	g.logger.InfoContext(ctx, "access denied",
		"path", r.URL.Path,
		"user_id", user.ID,
		"role", user.Role,
	)
	if g.opts.Audit != nil {
		clientID, _ := ClientIDFromContext(ctx)
		g.opts.Audit.NotifyAuditAsync(ctx, notify.AuditEvent{
			Action:   notify.ActionAccessDenied,
			UserID:   user.ID,
			Email:    user.Email,
			Role:     string(user.Role),
			Path:     r.URL.Path,
			ClientID: clientID,
			Severity: notify.SeverityWarning,
		}, guardAuditTimeout)
	}

	landing := g.opts.LandingPath
	if !IsBrowserRequest(r) {
		WriteError(w, ErrorParams{
			Code:       http.StatusForbidden,
			ErrCode:    errCodeForbidden,
			Err:        errors.New("your role does not have access to this resource"),
			RedirectTo: landing,
		})
		return
	}
	if IsHTMX(r) {
		// htmx does not swap 4xx bodies; load the denial page in full instead.
		SetHXRedirect(w, r.URL.RequestURI())
	}
	delay := g.opts.DeniedRedirectDelay
	data := NewTemplateData(r, PageMeta{Title: "Access denied", CurrentPage: PageDenied}).
		WithUser(user, g.opts.Policy).
		WithRefresh(delay, landing).
		With("RedirectTo", landing).
		With("RedirectSeconds", newPageRefresh(delay, landing).Seconds).
		Build()
	g.render(w, nil, http.StatusForbidden, data)
}

// refreshIfExpiring refreshes a session that expires within RefreshWithin, or
// already has, and returns the settled snapshot the decision must use. A
// failed refresh of an expired session signs the client out.
func (g *guard) refreshIfExpiring(ctx context.Context, store *service.SessionStore, snap domainauth.Snapshot) domainauth.Snapshot {
	sess := snap.Session
	if g.opts.RefreshWithin <= 0 || sess == nil || sess.ExpiresAt.IsZero() {
		return snap
	}
	if sess.ExpiresAt.Sub(g.opts.Now()) > g.opts.RefreshWithin {
		return snap
	}
	if err := store.Refresh(ctx); err != nil {
		g.logger.WarnContext(ctx, "near-expiry refresh failed", "error", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, g.opts.ReadyTimeout)
	defer cancel()
	if err := store.WaitSettled(waitCtx); err != nil {
		g.logger.WarnContext(ctx, "session did not settle after refresh", "error", err)
	}
	return store.Snapshot()
}

func (g *guard) render(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	if g.opts.Renderer == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		title, _ := data["Title"].(string)
		_, _ = w.Write([]byte(title + "\n"))
		return
	}
	g.opts.Renderer.Render(w, r, status, data)
}

func (g *guard) routeLabel() string {
	if g.opts.Route != "" {
		return g.opts.Route
	}
	return "other"
}
