package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/grant-portal/config"
	httpx "github.com/target/grant-portal/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config       *config.AppConfig
	Auth         *AuthStack
	Policy       *config.RoutePolicy
	Metrics      ObservabilityContainer
	HealthChecks map[string]httpx.HealthChecker
	Logger       *slog.Logger
}

// NewHTTPServer builds the portal router and wraps it in an http.Server. The
// server is not started.
func NewHTTPServer(cfg HTTPServerConfig) (*http.Server, error) {
	if cfg.Config == nil || cfg.Auth == nil {
		return nil, errors.New("config and auth stack are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	opts := httpx.RouterOptions{
		Sessions: cfg.Auth.Registry,
		Accounts: cfg.Auth.Accounts,
		Guard: httpx.GuardOptions{
			ReadyTimeout:        appCfg.Auth.Guard.ReadyTimeout,
			DeniedRedirectDelay: appCfg.Auth.Guard.DeniedRedirectDelay,
			LoginPath:           appCfg.Auth.Guard.LoginPath,
			LandingPath:         appCfg.Auth.Guard.LandingPath,
			RefreshWithin:       appCfg.Auth.Session.RefreshWithin,
			Audit:               cfg.Metrics.Audit,
			Metrics:             cfg.Metrics.MetricsSink(),
			Logger:              logger,
		},
		CookieDomain:  appCfg.HTTP.CookieDomain,
		SecureCookies: appCfg.HTTP.CookieSecure,
		LogoutURL:     cfg.Auth.LogoutURL,
		HealthChecks:  cfg.HealthChecks,
		IsDev:         appCfg.IsDev,
		Logger:        logger,
	}
	// Typed nils must not become non-nil interfaces.
	if cfg.Policy != nil {
		opts.Policy = cfg.Policy
	}
	if cfg.Auth.Federated != nil {
		opts.Federated = cfg.Auth.Federated
	}
	if appCfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", appCfg.HTTP.CompressionLevel)
		opts.CompressionLevel = appCfg.HTTP.CompressionLevel
	}

	handler, err := httpx.NewRouter(opts)
	if err != nil {
		return nil, err
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      appCfg.HTTP.WriteTimeout,
		IdleTimeout:       appCfg.HTTP.IdleTimeout,
	}, nil
}

// ServeHTTP runs server until ctx is cancelled, then shuts it down within timeout.
func ServeHTTP(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("HTTP server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
