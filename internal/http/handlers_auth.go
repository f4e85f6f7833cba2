package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/http/validation"
	"github.com/target/grant-portal/internal/service"
)

// Cookies of the federated login round trip.
const (
	cookieOAuthState        = "oauth_state"
	cookieOAuthNonce        = "oauth_nonce"
	cookiePostLoginRedirect = "post_login_redirect"
	oauthCookieMaxAge       = 600
)

const defaultSettleTimeout = 5 * time.Second

// Sign-up field limits.
const (
	maxFullNameLen = 120
	maxEmailLen    = 254
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var errClientBindingMissing = errors.New("client binding cookie is missing")

// FederatedLogin runs the authorization-code flow of an external identity provider.
type FederatedLogin interface {
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (domainauth.FederatedIdentity, error)
}

// AuthHandlers serves sign-in, sign-up, sign-out and session status for the
// client bound to the request.
type AuthHandlers struct {
	Stores    SessionStores
	Federated FederatedLogin // nil disables /auth/oidc/*
	Renderer  *TemplateRenderer

	CookieDomain string
	LandingPath  string
	LoginPath    string
	// LogoutURL, when set, is where the browser goes after a federated session is cleared.
	LogoutURL string
	// SettleTimeout bounds how long a successful login waits for the profile before redirecting.
	SettleTimeout time.Duration
	Logger        *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) landing() string {
	if h.LandingPath != "" {
		return h.LandingPath
	}
	return DefaultLandingPath
}

func (h *AuthHandlers) loginPath() string {
	if h.LoginPath != "" {
		return h.LoginPath
	}
	return DefaultLoginPath
}

// postLoginTarget validates a requested destination, defaulting to the landing page.
func (h *AuthHandlers) postLoginTarget(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "/" {
		return h.landing()
	}
	target := safeRedirectPath(raw)
	if target == "/" || strings.HasPrefix(target, "/auth/") {
		return h.landing()
	}
	return target
}

// store returns the request client's session store, writing the error response itself.
func (h *AuthHandlers) store(w http.ResponseWriter, r *http.Request) (*service.SessionStore, bool) {
	clientID, ok := ClientIDFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_client", Err: errClientBindingMissing})
		return nil, false
	}
	store, err := h.Stores.Get(r.Context(), clientID)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "session store unavailable", "client_id", clientID, "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "session_unavailable",
			Err:     errors.New("session service unavailable"),
		})
		return nil, false
	}
	return store, true
}

// settle waits for queued profile work so the next guarded page sees the new state.
func (h *AuthHandlers) settle(ctx context.Context, store *service.SessionStore) domainauth.Snapshot {
	timeout := h.SettleTimeout
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := store.WaitSettled(waitCtx); err != nil {
		h.logger().WarnContext(ctx, "session did not settle before redirect", "error", err)
	}
	return store.Snapshot()
}

func (h *AuthHandlers) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMX(r) {
		SetHXRedirect(w, target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// LoginPage renders the sign-in form. Signed-in clients go straight to their destination.
// GET /auth/login?redirect_uri=<path>.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	redirectURI := r.URL.Query().Get("redirect_uri")
	if store, ok := h.existingStore(r); ok {
		if snap := h.settle(r.Context(), store); snap.IsAuthenticated {
			h.redirect(w, r, h.postLoginTarget(redirectURI))
			return
		}
	}
	h.renderLogin(w, r, http.StatusOK, loginForm{RedirectURI: redirectURI})
}

// existingStore is store without error responses, for pages that work signed out.
func (h *AuthHandlers) existingStore(r *http.Request) (*service.SessionStore, bool) {
	clientID, ok := ClientIDFromContext(r.Context())
	if !ok {
		return nil, false
	}
	store, err := h.Stores.Get(r.Context(), clientID)
	if err != nil {
		return nil, false
	}
	return store, true
}

type loginForm struct {
	Email       string
	RedirectURI string
	Error       string
}

func (h *AuthHandlers) renderLogin(w http.ResponseWriter, r *http.Request, status int, f loginForm) {
	b := NewTemplateData(r, PageMeta{Title: "Sign in", PageTitle: "Sign in", CurrentPage: PageLogin}).
		With("Email", f.Email).
		With("RedirectURI", f.RedirectURI).
		With("FederatedLogin", h.Federated != nil)
	if f.Error != "" {
		b.WithError(f.Error)
	}
	h.Renderer.Render(w, r, status, b.Build())
}

// Login signs the client in with email and password.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	email := r.PostFormValue("email")
	redirectURI := r.PostFormValue("redirect_uri")

	if err := store.Login(r.Context(), email, r.PostFormValue("password")); err != nil {
		failure := classifyAuthError(err)
		h.logger().InfoContext(r.Context(), "login failed", "code", failure.Code, "error", err)
		if !IsBrowserRequest(r) {
			WriteError(w, ErrorParams{Code: failure.Status, ErrCode: failure.Code, Err: errors.New(failure.Message)})
			return
		}
		h.renderLogin(w, r, failure.Status, loginForm{Email: email, RedirectURI: redirectURI, Error: failure.Message})
		return
	}

	h.settle(r.Context(), store)
	h.redirect(w, r, h.postLoginTarget(redirectURI))
}

type signUpForm struct {
	FullName    string
	Email       string
	Role        string
	Error       string
	FieldErrors map[string]string
}

// fieldErrors checks the shape of the form; presence and role are left to the session store.
func (f signUpForm) fieldErrors() map[string]string {
	return validation.New().
		Validate("full_name", f.FullName, validation.Optional("Full name", maxFullNameLen)).
		Validate("email", f.Email, validation.Optional("Email", maxEmailLen), validation.Pattern("Email", emailPattern)).
		Errors()
}

func (h *AuthHandlers) renderSignUp(w http.ResponseWriter, r *http.Request, status int, f signUpForm) {
	selected := f.Role
	if selected == "" {
		selected = string(domainauth.DefaultRole)
	}
	b := NewTemplateData(r, PageMeta{Title: "Create account", PageTitle: "Create account", CurrentPage: PageSignUp}).
		With("FullName", f.FullName).
		With("Email", f.Email).
		With("Roles", domainauth.Roles()).
		With("SelectedRole", selected).
		With("FieldErrors", f.FieldErrors)
	if f.Error != "" {
		b.WithError(f.Error)
	}
	h.Renderer.Render(w, r, status, b.Build())
}

// SignUpPage renders the registration form.
// GET /auth/signup.
func (h *AuthHandlers) SignUpPage(w http.ResponseWriter, r *http.Request) {
	h.renderSignUp(w, r, http.StatusOK, signUpForm{})
}

// SignUp creates a password account and signs the client in.
// POST /auth/signup.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	form := signUpForm{
		FullName: r.PostFormValue("full_name"),
		Email:    r.PostFormValue("email"),
		Role:     r.PostFormValue("role"),
	}
	if errs := form.fieldErrors(); len(errs) > 0 {
		if !IsBrowserRequest(r) {
			WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "validation", "fields": errs})
			return
		}
		form.Error = "Please correct the highlighted fields."
		form.FieldErrors = errs
		h.renderSignUp(w, r, http.StatusBadRequest, form)
		return
	}
	err := store.SignUp(r.Context(), service.SignUpInput{
		Email:    form.Email,
		Password: r.PostFormValue("password"),
		Role:     form.Role,
		FullName: form.FullName,
	})
	if err != nil {
		failure := classifyAuthError(err)
		h.logger().InfoContext(r.Context(), "sign up failed", "code", failure.Code, "error", err)
		if !IsBrowserRequest(r) {
			WriteError(w, ErrorParams{Code: failure.Status, ErrCode: failure.Code, Err: errors.New(failure.Message)})
			return
		}
		form.Error = failure.Message
		h.renderSignUp(w, r, failure.Status, form)
		return
	}

	h.settle(r.Context(), store)
	h.redirect(w, r, h.landing())
}

// Logout clears the client's session. It always succeeds from the user's point of view.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	target := h.loginPath()
	if store, ok := h.existingStore(r); ok {
		hadSession := store.Snapshot().Session != nil
		store.Logout(r.Context())
		if hadSession && h.LogoutURL != "" {
			target = h.LogoutURL
		}
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out", "redirect_to": target})
		return
	}
	h.redirect(w, r, target)
}

// Status reports the client's session as JSON.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	store, ok := h.existingStore(r)
	if !ok {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	snap := h.settle(r.Context(), store)
	if !snap.IsAuthenticated {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          snap.User,
		"expires_at":    snap.Session.ExpiresAt,
	})
}

// OIDCLogin starts the federated flow.
// GET /auth/oidc/login?redirect_uri=<path>.
func (h *AuthHandlers) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.Federated == nil {
		http.NotFound(w, r)
		return
	}
	target := h.postLoginTarget(r.URL.Query().Get("redirect_uri"))
	result, err := h.Federated.BeginLogin(r.Context(), target)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin federated login failed", "error", err)
		h.renderLogin(w, r, http.StatusBadGateway, loginForm{RedirectURI: target, Error: msgProviderUnavailable})
		return
	}

	h.setCookie(w, r, cookieOAuthState, result.State, oauthCookieMaxAge)
	h.setCookie(w, r, cookieOAuthNonce, result.Nonce, oauthCookieMaxAge)
	h.setCookie(w, r, cookiePostLoginRedirect, target, oauthCookieMaxAge)
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// OIDCCallback completes the federated flow and signs the client in.
// GET /auth/oidc/callback?code=<code>&state=<state>.
func (h *AuthHandlers) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.Federated == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger().InfoContext(r.Context(), "identity provider returned an error", "error", providerErr)
		h.renderLogin(w, r, http.StatusUnauthorized, loginForm{Error: "Sign-in was cancelled or rejected by your institution."})
		return
	}
	if code == "" || state == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_code", Err: errors.New("code and state are required")})
		return
	}
	stateCookie, err := r.Cookie(cookieOAuthState)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_state", Err: errors.New("invalid or missing state parameter")})
		return
	}
	nonceCookie, err := r.Cookie(cookieOAuthNonce)
	if err != nil || nonceCookie.Value == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_nonce", Err: errors.New("missing nonce")})
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}
	identity, err := h.Federated.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err == nil {
		err = store.LoginFederated(r.Context(), identity)
	}
	h.clearCookie(w, r, cookieOAuthState)
	h.clearCookie(w, r, cookieOAuthNonce)
	if err != nil {
		h.logger().WarnContext(r.Context(), "federated login failed", "error", err)
		h.renderLogin(w, r, http.StatusUnauthorized, loginForm{Error: "We could not sign you in with your institution."})
		return
	}

	h.settle(r.Context(), store)
	http.Redirect(w, r, h.postLoginRedirect(w, r), http.StatusFound)
}

// postLoginRedirect reads and clears the destination stored by OIDCLogin.
func (h *AuthHandlers) postLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(cookiePostLoginRedirect)
	if err != nil {
		return h.landing()
	}
	h.clearCookie(w, r, cookiePostLoginRedirect)
	return h.postLoginTarget(c.Value)
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}
