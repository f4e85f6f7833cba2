package httpx

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserDetection(t *testing.T) {
	var seen bool
	h := BrowserDetection()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = IsBrowserRequest(r)
	}))

	tests := []struct {
		name    string
		path    string
		accept  string
		htmx    bool
		browser bool
	}{
		{name: "api json", path: "/api/notifications", accept: "application/json"},
		{name: "api html is still api", path: "/api/notifications", accept: "text/html"},
		{name: "static asset", path: "/static/css/portal.css", accept: "text/css"},
		{name: "page html", path: "/grants", accept: "text/html,application/xhtml+xml", browser: true},
		{name: "htmx", path: "/reviews", accept: "*/*", htmx: true, browser: true},
		{name: "no accept header", path: "/admin", browser: true},
		{name: "json client on page route", path: "/grants", accept: "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if tt.htmx {
				req.Header.Set("Hx-Request", "true")
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.browser, seen)
		})
	}
}

func TestSafeRedirectPath(t *testing.T) {
	tests := map[string]string{
		"":                        "/",
		"/reviews?tab=open":       "/reviews?tab=open",
		"https://evil.example/x":  "/",
		"//evil.example/x":        "/",
		`/\evil.example`:          "/",
		"relative/path":           "/",
		"javascript:alert(1)":     "/",
		"/admin#users":            "/admin#users",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeRedirectPath(in), "input %q", in)
	}
}

func TestRedirectToLogin(t *testing.T) {
	t.Run("browser gets 303 with original uri", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reviews?page=2", nil)
		rec := httptest.NewRecorder()
		redirectToLogin(rec, req, "/auth/login")

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth/login?redirect_uri=%2Freviews%3Fpage%3D2", rec.Header().Get("Location"))
	})

	t.Run("htmx uses current url", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reviews/fragment", nil)
		req.Header.Set("Hx-Request", "true")
		req.Header.Set("Hx-Current-Url", "https://grants.example.edu/reviews?page=3")
		rec := httptest.NewRecorder()
		redirectToLogin(rec, req, "/auth/login")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/auth/login?redirect_uri=%2Freviews%3Fpage%3D3", rec.Header().Get("Hx-Redirect"))
	})
}

func TestRecover(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grants", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "boom")
}

func TestLogging_IncludesClientID(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req = req.WithContext(SetClientIDInContext(req.Context(), "client-9"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, logs.String(), `"status":418`)
	assert.Contains(t, logs.String(), `"client_id":"client-9"`)
}

func TestCompression(t *testing.T) {
	body := strings.Repeat("grant portal ", 500)
	handlerFor := func(contentType string, status int) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		})
	}

	tests := []struct {
		name     string
		ctype    string
		status   int
		accept   string
		method   string
		wantGzip bool
	}{
		{name: "html accepted", ctype: "text/html; charset=utf-8", status: 200, accept: "gzip, deflate", wantGzip: true},
		{name: "json accepted", ctype: "application/json", status: 403, accept: "gzip", wantGzip: true},
		{name: "no accept-encoding", ctype: "text/html", status: 200},
		{name: "gzip disabled by q=0", ctype: "text/html", status: 200, accept: "gzip;q=0, br"},
		{name: "binary type", ctype: "image/png", status: 200, accept: "gzip"},
		{name: "head request", ctype: "text/html", status: 200, accept: "gzip", method: http.MethodHead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, "/grants", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Encoding", tt.accept)
			}
			rec := httptest.NewRecorder()
			Compression(CompressionConfig{Level: 6})(handlerFor(tt.ctype, tt.status)).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if !tt.wantGzip {
				assert.Empty(t, rec.Header().Get("Content-Encoding"))
				return
			}
			assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
			zr, err := gzip.NewReader(rec.Body)
			require.NoError(t, err)
			plain, err := io.ReadAll(zr)
			require.NoError(t, err)
			assert.Equal(t, body, string(plain))
		})
	}
}

func TestAcceptsGzip(t *testing.T) {
	assert.True(t, acceptsGzip("gzip"))
	assert.True(t, acceptsGzip("br, GZIP;q=0.5"))
	assert.False(t, acceptsGzip(""))
	assert.False(t, acceptsGzip("x-gzip"))
	assert.False(t, acceptsGzip("gzip; q=0"))
}
