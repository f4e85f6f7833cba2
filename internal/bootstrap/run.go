package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/grant-portal/config"
	httpx "github.com/target/grant-portal/internal/http"
)

// PortalDeps are the connected dependencies RunPortal needs.
type PortalDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// RunPortal wires the portal and serves until ctx is cancelled. The HTTP
// server and the session registry sweeper share one errgroup; either failing
// stops both.
func RunPortal(ctx context.Context, deps PortalDeps) error {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := config.LoadRoutePolicyOrDefault(cfg.Auth.Guard.PolicyFile)
	if err != nil {
		return fmt.Errorf("load route policy: %w", err)
	}

	obs := BuildObservability(cfg.Observability, logger)
	defer func() {
		if cerr := obs.Close(); cerr != nil {
			logger.Error("close metrics client failed", "error", cerr)
		}
	}()

	stack, err := BuildAuthStack(AuthConfig{
		Auth:        cfg.Auth,
		Registry:    cfg.Registry,
		KeyPrefix:   cfg.Redis.KeyPrefix,
		DB:          deps.DB,
		RedisClient: deps.RedisClient,
		Audit:       obs.Audit,
		Metrics:     obs.MetricsSink(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	server, err := NewHTTPServer(HTTPServerConfig{
		Config:       cfg,
		Auth:         stack,
		Policy:       policy,
		Metrics:      obs,
		HealthChecks: HealthChecks(deps.DB, stack),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ServeHTTP(gctx, server, cfg.HTTP.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		return stack.Registry.Run(gctx)
	})
	return g.Wait()
}

// HealthChecks returns the readiness probes for the portal's backing stores.
func HealthChecks(db *sql.DB, stack *AuthStack) map[string]httpx.HealthChecker {
	checks := make(map[string]httpx.HealthChecker, 2)
	if db != nil {
		checks["postgres"] = httpx.HealthCheckFunc(db.PingContext)
	}
	if stack != nil && stack.Cache != nil {
		checks["redis"] = stack.Cache
	}
	return checks
}
