package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/grant-portal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DEV", "true")
	t.Setenv("AUTH_MODE", "mock")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REGISTRY_IDLE_TTL", "10m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsDev)
	assert.Equal(t, config.AuthModeMock, cfg.Auth.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.Registry.IdleTTL)
	assert.Equal(t, "/auth/login", cfg.Auth.Guard.LoginPath)
}

func TestLoadConfigRejectsIncompleteOAuth(t *testing.T) {
	t.Setenv("DEV", "true")
	t.Setenv("AUTH_MODE", "oauth")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "OAUTH_CLIENT_ID")
}

func TestEnsureSessionSecret(t *testing.T) {
	t.Run("generates in dev", func(t *testing.T) {
		cfg := config.AppConfig{IsDev: true}
		require.NoError(t, EnsureSessionSecret(&cfg, discardLogger()))
		assert.GreaterOrEqual(t, len(cfg.Auth.Session.JWTSecret), config.MinJWTSecretLength)
	})
	t.Run("keeps configured secret", func(t *testing.T) {
		cfg := config.AppConfig{}
		cfg.Auth.Session.JWTSecret = "configured"
		require.NoError(t, EnsureSessionSecret(&cfg, nil))
		assert.Equal(t, "configured", cfg.Auth.Session.JWTSecret)
	})
	t.Run("required outside dev", func(t *testing.T) {
		cfg := config.AppConfig{}
		require.Error(t, EnsureSessionSecret(&cfg, nil))
	})
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestBuildObservability(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		obs := BuildObservability(config.ObservabilityConfig{}, discardLogger())
		assert.Nil(t, obs.Metrics)
		assert.Nil(t, obs.MetricsSink())
		assert.False(t, obs.Audit.Enabled())
		assert.NoError(t, obs.Close())
	})
	t.Run("slack sink", func(t *testing.T) {
		cfg := config.ObservabilityConfig{}
		cfg.Notifications.Enabled = true
		cfg.Notifications.Slack.Enabled = true
		cfg.Notifications.Slack.WebhookURL = "https://hooks.slack.invalid/services/T000"
		obs := BuildObservability(cfg, discardLogger())
		assert.True(t, obs.Audit.Enabled())
	})
	t.Run("statsd over udp", func(t *testing.T) {
		cfg := config.ObservabilityConfig{}
		cfg.Metrics.Enabled = true
		cfg.Metrics.StatsdAddress = "127.0.0.1:8125"
		obs := BuildObservability(cfg, discardLogger())
		require.NotNil(t, obs.Metrics)
		assert.NotNil(t, obs.MetricsSink())
		assert.NoError(t, obs.Close())
	})
}

func testAppConfig() *config.AppConfig {
	cfg := &config.AppConfig{Auth: testAuthConfig(config.AuthModePassword)}
	cfg.Auth.Guard = config.GuardConfig{ReadyTimeout: time.Second, LoginPath: "/auth/login", LandingPath: "/grants"}
	cfg.HTTP = config.HTTPConfig{Addr: "127.0.0.1:0", CompressionEnabled: true, CompressionLevel: 5}
	return cfg
}

func TestNewHTTPServer(t *testing.T) {
	db, client := lazyBackends(t)
	cfg := testAppConfig()
	stack, err := BuildAuthStack(AuthConfig{Auth: cfg.Auth, DB: db, RedisClient: client, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(stack.Registry.Close)

	server, err := NewHTTPServer(HTTPServerConfig{
		Config:  cfg,
		Auth:    stack,
		Policy:  config.DefaultRoutePolicy(),
		Metrics: BuildObservability(config.ObservabilityConfig{}, discardLogger()),
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", server.Addr)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// No federated service in password mode.
	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/oidc/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewHTTPServerRequiresStack(t *testing.T) {
	_, err := NewHTTPServer(HTTPServerConfig{Config: testAppConfig()})
	require.Error(t, err)
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	server := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeHTTP(ctx, server, time.Second, discardLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("ServeHTTP did not return after cancel")
	}
}

func TestHealthChecks(t *testing.T) {
	assert.Empty(t, HealthChecks(nil, nil))

	db, client := lazyBackends(t)
	cfg := testAppConfig()
	stack, err := BuildAuthStack(AuthConfig{Auth: cfg.Auth, DB: db, RedisClient: client, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(stack.Registry.Close)

	checks := HealthChecks(db, stack)
	assert.Contains(t, checks, "postgres")
	assert.Contains(t, checks, "redis")
}
