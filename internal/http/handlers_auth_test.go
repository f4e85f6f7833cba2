package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	mockauth "github.com/target/grant-portal/internal/mocks/auth"
	"github.com/target/grant-portal/internal/ports"
	"github.com/target/grant-portal/internal/service"
)

func newAuthHandlers(t *testing.T, f *portalFixture, fed FederatedLogin) *AuthHandlers {
	t.Helper()
	return &AuthHandlers{
		Stores:        f.registry,
		Federated:     fed,
		Renderer:      requireTemplateRenderer(t),
		LandingPath:   "/grants",
		LoginPath:     "/auth/login",
		SettleTimeout: time.Second,
		Logger:        discardLogger(),
	}
}

func formRequest(target, clientID string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if clientID != "" {
		r = r.WithContext(SetClientIDInContext(r.Context(), clientID))
	}
	return r
}

func snapshotOf(t *testing.T, f *portalFixture, clientID string) domainauth.Snapshot {
	t.Helper()
	store, err := f.registry.Get(context.Background(), clientID)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, store.WaitSettled(ctx))
	return store.Snapshot()
}

func adaRecord() domainauth.ProfileRecord {
	return domainauth.ProfileRecord{ID: "u-ada", FullName: "Ada Admin", Role: "admin"}
}

func TestAuthHandlers_LoginSuccessRedirects(t *testing.T) {
	f := newPortalFixture(t)
	f.addAccount("ada@uni.edu", "s3cret-pass", adaRecord())
	h := newAuthHandlers(t, f, nil)

	rec := httptest.NewRecorder()
	h.Login(rec, formRequest("/auth/login", "client-1", url.Values{
		"email":        {"ada@uni.edu"},
		"password":     {"s3cret-pass"},
		"redirect_uri": {"/admin?page=2"},
	}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin?page=2", rec.Header().Get("Location"))

	snap := snapshotOf(t, f, "client-1")
	require.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, domainauth.RoleAdmin, snap.User.Role)
	assert.Equal(t, "Ada Admin", snap.User.Name)
}

func TestAuthHandlers_LoginHTMXUsesHxRedirect(t *testing.T) {
	f := newPortalFixture(t)
	f.addAccount("ada@uni.edu", "s3cret-pass", adaRecord())
	h := newAuthHandlers(t, f, nil)

	req := formRequest("/auth/login", "client-1", url.Values{"email": {"ada@uni.edu"}, "password": {"s3cret-pass"}})
	req.Header.Set("Hx-Request", "true")
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/grants", rec.Header().Get("Hx-Redirect"))
}

func TestAuthHandlers_LoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
		wantText   string
	}{
		{
			name:       "wrong password",
			email:      "ada@uni.edu",
			password:   "nope",
			wantStatus: http.StatusUnauthorized,
			wantText:   "Invalid email or password.",
		},
		{
			name:       "unknown email",
			email:      "ghost@uni.edu",
			password:   "whatever",
			wantStatus: http.StatusUnauthorized,
			wantText:   "Invalid email or password.",
		},
		{
			name:       "missing password",
			email:      "ada@uni.edu",
			wantStatus: http.StatusBadRequest,
			wantText:   "Email and password are required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPortalFixture(t)
			f.addAccount("ada@uni.edu", "s3cret-pass", adaRecord())
			h := newAuthHandlers(t, f, nil)

			rec := httptest.NewRecorder()
			h.Login(rec, formRequest("/auth/login", "client-1", url.Values{
				"email":    {tt.email},
				"password": {tt.password},
			}))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantText)
			assert.Contains(t, rec.Body.String(), `value="`+tt.email+`"`)
			assert.False(t, snapshotOf(t, f, "client-1").IsAuthenticated)
		})
	}
}

func TestAuthHandlers_LoginFailureJSON(t *testing.T) {
	f := newPortalFixture(t)
	h := newAuthHandlers(t, f, nil)

	req := formRequest("/auth/login", "client-1", url.Values{"email": {"ada@uni.edu"}, "password": {"nope"}})
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_credentials", body["error"])
	assert.Equal(t, "Invalid email or password.", body["message"])
}

func TestAuthHandlers_ProviderOutageHidesDetails(t *testing.T) {
	f := newPortalFixture(t)
	f.provider("client-1").SignInErr = errors.New("dial tcp 10.0.0.7:6379: connection refused")
	h := newAuthHandlers(t, f, nil)

	rec := httptest.NewRecorder()
	h.Login(rec, formRequest("/auth/login", "client-1", url.Values{"email": {"ada@uni.edu"}, "password": {"pw"}}))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "We could not reach the sign-in service.")
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestAuthHandlers_LoginRequiresClientBinding(t *testing.T) {
	f := newPortalFixture(t)
	h := newAuthHandlers(t, f, nil)

	rec := httptest.NewRecorder()
	h.Login(rec, formRequest("/auth/login", "", url.Values{"email": {"a@b.c"}, "password": {"pw"}}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_client")
}

func TestAuthHandlers_PostLoginTarget(t *testing.T) {
	h := &AuthHandlers{LandingPath: "/grants"}
	tests := map[string]string{
		"":                  "/grants",
		"/":                 "/grants",
		"/reviews?tab=open": "/reviews?tab=open",
		"//evil.example":    "/grants",
		"https://evil.test": "/grants",
		"/auth/login":       "/grants",
		`/\evil`:            "/grants",
	}
	for raw, want := range tests {
		assert.Equal(t, want, h.postLoginTarget(raw), "input %q", raw)
	}
}

func TestAuthHandlers_LoginPage(t *testing.T) {
	f := newPortalFixture(t)
	f.signedIn("client-in", reviewerRecord(), time.Hour)
	h := newAuthHandlers(t, f, nil)

	t.Run("signed out renders the form", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.LoginPage(rec, guardRequest(http.MethodGet, "/auth/login?redirect_uri=/reviews", "client-out"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, containsAll(rec.Body.String(), "Sign in", `name="redirect_uri" value="/reviews"`))
	})

	t.Run("signed in goes to the destination", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.LoginPage(rec, guardRequest(http.MethodGet, "/auth/login?redirect_uri=/reviews", "client-in"))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/reviews", rec.Header().Get("Location"))
	})
}

func TestAuthHandlers_SignUp(t *testing.T) {
	f := newPortalFixture(t)
	h := newAuthHandlers(t, f, nil)

	rec := httptest.NewRecorder()
	h.SignUp(rec, formRequest("/auth/signup", "client-new", url.Values{
		"full_name": {"Nia Newcomer"},
		"email":     {"nia@uni.edu"},
		"password":  {"long-enough-pass"},
		"role":      {"reviewer"},
	}))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/grants", rec.Header().Get("Location"))

	snap := snapshotOf(t, f, "client-new")
	require.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, domainauth.RoleReviewer, snap.User.Role)
	assert.Equal(t, "Nia Newcomer", snap.User.Name)
}

func TestAuthHandlers_SignUpFailures(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantText   string
	}{
		{
			name:       "email taken",
			form:       url.Values{"email": {"ada@uni.edu"}, "password": {"long-enough-pass"}},
			wantStatus: http.StatusConflict,
			wantText:   "An account with this email already exists.",
		},
		{
			name:       "unknown role",
			form:       url.Values{"email": {"new@uni.edu"}, "password": {"long-enough-pass"}, "role": {"superuser"}},
			wantStatus: http.StatusBadRequest,
			wantText:   "Please choose a valid role",
		},
		{
			name:       "malformed email",
			form:       url.Values{"email": {"not-an-email"}, "password": {"long-enough-pass"}},
			wantStatus: http.StatusBadRequest,
			wantText:   "Email has an invalid format.",
		},
		{
			name:       "missing email",
			form:       url.Values{"password": {"long-enough-pass"}},
			wantStatus: http.StatusBadRequest,
			wantText:   "Email and password are required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPortalFixture(t)
			f.addAccount("ada@uni.edu", "s3cret-pass", adaRecord())
			h := newAuthHandlers(t, f, nil)

			rec := httptest.NewRecorder()
			h.SignUp(rec, formRequest("/auth/signup", "client-1", tt.form))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantText)
			assert.Contains(t, rec.Body.String(), "Create account")
		})
	}
}

func TestAuthHandlers_Logout(t *testing.T) {
	t.Run("browser returns to login", func(t *testing.T) {
		f := newPortalFixture(t)
		f.signedIn("client-r", reviewerRecord(), time.Hour)
		h := newAuthHandlers(t, f, nil)
		require.True(t, snapshotOf(t, f, "client-r").IsAuthenticated)

		rec := httptest.NewRecorder()
		h.Logout(rec, formRequest("/auth/logout", "client-r", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
		assert.False(t, snapshotOf(t, f, "client-r").IsAuthenticated)
		assert.Equal(t, 1, f.provider("client-r").Calls("SignOut"))
	})

	t.Run("provider logout url", func(t *testing.T) {
		f := newPortalFixture(t)
		f.signedIn("client-r", reviewerRecord(), time.Hour)
		h := newAuthHandlers(t, f, nil)
		h.LogoutURL = "https://idp.example.edu/logout"
		require.True(t, snapshotOf(t, f, "client-r").IsAuthenticated)

		req := formRequest("/auth/logout", "client-r", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		h.Logout(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "signed_out", body["status"])
		assert.Equal(t, "https://idp.example.edu/logout", body["redirect_to"])
	})

	t.Run("sign out failure still clears the client", func(t *testing.T) {
		f := newPortalFixture(t)
		f.signedIn("client-r", reviewerRecord(), time.Hour)
		h := newAuthHandlers(t, f, nil)
		require.True(t, snapshotOf(t, f, "client-r").IsAuthenticated)
		f.provider("client-r").SignOutErr = errors.New("provider down")

		rec := httptest.NewRecorder()
		h.Logout(rec, formRequest("/auth/logout", "client-r", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.False(t, snapshotOf(t, f, "client-r").IsAuthenticated)
	})
}

func TestAuthHandlers_Status(t *testing.T) {
	f := newPortalFixture(t)
	f.signedIn("client-r", reviewerRecord(), time.Hour)
	h := newAuthHandlers(t, f, nil)

	tests := []struct {
		name     string
		clientID string
		wantAuth bool
	}{
		{name: "signed in", clientID: "client-r", wantAuth: true},
		{name: "signed out", clientID: "client-x"},
		{name: "no client"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Status(rec, guardRequest(http.MethodGet, "/auth/status", tt.clientID))

			assert.Equal(t, http.StatusOK, rec.Code)
			var body struct {
				Authenticated bool                `json:"authenticated"`
				User          *domainauth.Profile `json:"user"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantAuth, body.Authenticated)
			if tt.wantAuth {
				require.NotNil(t, body.User)
				assert.Equal(t, "rita@uni.edu", body.User.Email)
			}
		})
	}
}

func newFederated(provider ports.FederatedProvider) *service.FederatedAuthService {
	return service.NewFederatedAuthService(service.FederatedAuthServiceOptions{
		Provider: provider,
		Roles:    mockauth.StaticRoleMapper{ReviewerGroup: "researchers"},
		Logger:   discardLogger(),
	})
}

func withCookies(r *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return r
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestAuthHandlers_OIDCRoundTrip(t *testing.T) {
	f := newPortalFixture(t)
	h := newAuthHandlers(t, f, newFederated(mockauth.NewMockFederatedProvider()))

	rec := httptest.NewRecorder()
	h.OIDCLogin(rec, guardRequest(http.MethodGet, "/auth/oidc/login?redirect_uri=/reviews", "client-fed"))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://mock-idp/auth", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	assert.Equal(t, "state-1", cookieValue(cookies, cookieOAuthState))
	assert.Equal(t, "nonce-1", cookieValue(cookies, cookieOAuthNonce))
	assert.Equal(t, "/reviews", cookieValue(cookies, cookiePostLoginRedirect))

	cb := withCookies(guardRequest(http.MethodGet, "/auth/oidc/callback?code=abc&state=state-1", "client-fed"), cookies)
	rec = httptest.NewRecorder()
	h.OIDCCallback(rec, cb)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/reviews", rec.Header().Get("Location"))

	snap := snapshotOf(t, f, "client-fed")
	require.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, "mock.user@example.edu", snap.User.Email)
	assert.Equal(t, domainauth.RoleReviewer, snap.User.Role)
}

func TestAuthHandlers_OIDCCallbackRejections(t *testing.T) {
	goodCookies := []*http.Cookie{
		{Name: cookieOAuthState, Value: "state-1"},
		{Name: cookieOAuthNonce, Value: "nonce-1"},
	}
	tests := []struct {
		name       string
		target     string
		cookies    []*http.Cookie
		wantStatus int
		wantText   string
	}{
		{
			name:       "state mismatch",
			target:     "/auth/oidc/callback?code=abc&state=forged",
			cookies:    goodCookies,
			wantStatus: http.StatusBadRequest,
			wantText:   "invalid_state",
		},
		{
			name:       "missing state cookie",
			target:     "/auth/oidc/callback?code=abc&state=state-1",
			wantStatus: http.StatusBadRequest,
			wantText:   "invalid_state",
		},
		{
			name:       "missing nonce cookie",
			target:     "/auth/oidc/callback?code=abc&state=state-1",
			cookies:    goodCookies[:1],
			wantStatus: http.StatusBadRequest,
			wantText:   "missing_nonce",
		},
		{
			name:       "missing code",
			target:     "/auth/oidc/callback?state=state-1",
			cookies:    goodCookies,
			wantStatus: http.StatusBadRequest,
			wantText:   "missing_code",
		},
		{
			name:       "provider error",
			target:     "/auth/oidc/callback?error=access_denied",
			wantStatus: http.StatusUnauthorized,
			wantText:   "Sign-in was cancelled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPortalFixture(t)
			h := newAuthHandlers(t, f, newFederated(mockauth.NewMockFederatedProvider()))

			rec := httptest.NewRecorder()
			h.OIDCCallback(rec, withCookies(guardRequest(http.MethodGet, tt.target, "client-fed"), tt.cookies))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantText)
			assert.False(t, snapshotOf(t, f, "client-fed").IsAuthenticated)
		})
	}
}

func TestAuthHandlers_OIDCExchangeFailure(t *testing.T) {
	f := newPortalFixture(t)
	idp := mockauth.NewMockFederatedProvider()
	idp.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.FederatedIdentity, error) {
		return domainauth.FederatedIdentity{}, errors.New("token endpoint returned 500")
	}
	h := newAuthHandlers(t, f, newFederated(idp))

	req := withCookies(guardRequest(http.MethodGet, "/auth/oidc/callback?code=abc&state=s", "client-fed"), []*http.Cookie{
		{Name: cookieOAuthState, Value: "s"},
		{Name: cookieOAuthNonce, Value: "n"},
	})
	rec := httptest.NewRecorder()
	h.OIDCCallback(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "We could not sign you in with your institution.")
	assert.NotContains(t, rec.Body.String(), "token endpoint")
}

func TestAuthHandlers_OIDCDisabled(t *testing.T) {
	f := newPortalFixture(t)
	h := newAuthHandlers(t, f, nil)

	rec := httptest.NewRecorder()
	h.OIDCLogin(rec, guardRequest(http.MethodGet, "/auth/oidc/login", "client-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
