package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/grant-portal/config"
	"github.com/target/grant-portal/internal/adapters/authroles"
	"github.com/target/grant-portal/internal/adapters/devauth"
	"github.com/target/grant-portal/internal/adapters/localidp"
	"github.com/target/grant-portal/internal/adapters/oidc"
	redisadapter "github.com/target/grant-portal/internal/adapters/redis"
	"github.com/target/grant-portal/internal/data"
	"github.com/target/grant-portal/internal/observability/statsd"
	"github.com/target/grant-portal/internal/ports"
	"github.com/target/grant-portal/internal/service"
)

// AuthConfig contains what BuildAuthStack needs.
type AuthConfig struct {
	Auth        config.AuthConfig
	Registry    config.RegistryConfig
	KeyPrefix   string
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Audit       service.AuditRecorder
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// AuthStack is the wired identity layer.
type AuthStack struct {
	Registry  *service.SessionRegistry
	Federated *service.FederatedAuthService // nil in password mode
	Accounts  *data.AccountRepo
	Cache     *data.RedisCacheRepo
	LogoutURL string
}

// BuildAuthStack wires the local identity provider, the per-client session
// registry and, in oauth or mock mode, the federated login service.
func BuildAuthStack(cfg AuthConfig) (*AuthStack, error) {
	if cfg.DB == nil {
		return nil, errors.New("database is required")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := localidp.NewTokenIssuer(
		[]byte(cfg.Auth.Session.JWTSecret), cfg.Auth.Session.Issuer, cfg.Auth.Session.TTL, nil)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	accounts := data.NewAccountRepo(cfg.DB)
	idp, err := localidp.NewProvider(localidp.ProviderOptions{
		Accounts: accounts,
		Sessions: redisadapter.NewSessionRepositoryWithPrefix(cfg.RedisClient, cfg.KeyPrefix+"session:"),
		Bindings: redisadapter.NewBindingRepositoryWithPrefix(cfg.RedisClient, cfg.KeyPrefix+"client:"),
		Tokens:   tokens,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("local identity provider: %w", err)
	}

	cache := data.NewRedisCacheRepoWithPrefix(cfg.RedisClient, cfg.KeyPrefix)
	registry, err := service.NewSessionRegistry(service.SessionRegistryOptions{
		Providers:     idp.ForClient,
		Records:       data.NewProfileRepo(cfg.DB),
		Cache:         cache,
		CacheTTL:      cfg.Registry.ProfileCacheTTL,
		Audit:         cfg.Audit,
		Metrics:       cfg.Metrics,
		Logger:        logger,
		IdleTTL:       cfg.Registry.IdleTTL,
		SweepInterval: cfg.Registry.SweepInterval,
		FlashCapacity: cfg.Registry.NotificationCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("session registry: %w", err)
	}

	stack := &AuthStack{Registry: registry, Accounts: accounts, Cache: cache}
	if !cfg.Auth.Mode.Federated() {
		return stack, nil
	}

	roles, err := BuildRoleMapper(cfg.Auth.Roles, logger)
	if err != nil {
		return nil, err
	}
	provider, err := buildFederatedProvider(cfg.Auth)
	if err != nil {
		return nil, err
	}
	if lp, ok := provider.(interface{ LogoutURL() string }); ok {
		stack.LogoutURL = lp.LogoutURL()
	}
	stack.Federated = service.NewFederatedAuthService(service.FederatedAuthServiceOptions{
		Provider: provider,
		Roles:    roles,
		Logger:   logger,
	})
	logger.Info("federated login enabled", "mode", cfg.Auth.Mode)
	return stack, nil
}

// BuildRoleMapper returns the group-based mapper, wrapped by the claim
// expression mapper when one is configured.
//
//nolint:ireturn // the concrete mapper depends on configuration.
func BuildRoleMapper(cfg config.RoleMappingConfig, logger *slog.Logger) (ports.RoleMapper, error) {
	static := authroles.StaticRoleMapper{
		AdminGroup:              cfg.AdminGroup,
		InstitutionalAdminGroup: cfg.InstitutionalAdminGroup,
		ReviewerGroup:           cfg.ReviewerGroup,
	}
	if cfg.ClaimExpression == "" {
		return static, nil
	}
	mapper, err := authroles.NewClaimsRoleMapper(cfg.ClaimExpression, static, logger)
	if err != nil {
		return nil, fmt.Errorf("role mapper: %w", err)
	}
	return mapper, nil
}

//nolint:ireturn // oidc or devauth depending on mode.
func buildFederatedProvider(cfg config.AuthConfig) (ports.FederatedProvider, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			Subject:         cfg.DevAuth.Subject,
			Email:           cfg.DevAuth.Email,
			FirstName:       cfg.DevAuth.FirstName,
			LastName:        cfg.DevAuth.LastName,
			Groups:          cfg.DevAuth.Groups,
			SessionDuration: cfg.Session.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("dev auth provider: %w", err)
		}
		return prov, nil
	case config.AuthModeOAuth:
		prov, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scope:        cfg.OAuth.Scope,
			DiscoveryURL: cfg.OAuth.DiscoveryURL,
			LogoutURL:    cfg.OAuth.LogoutURL,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		return prov, nil
	case config.AuthModePassword:
	}
	return nil, fmt.Errorf("auth mode %q has no federated provider", cfg.Mode)
}
