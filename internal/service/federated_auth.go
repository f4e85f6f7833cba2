package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

// FederatedAuthServiceOptions groups dependencies for FederatedAuthService.
type FederatedAuthServiceOptions struct {
	Provider ports.FederatedProvider
	Roles    ports.RoleMapper
	Logger   *slog.Logger
}

// FederatedAuthService runs the authorization-code flow against an external IdP and
// maps the verified identity to an application role. Signing the client in is left
// to the client's SessionStore.
type FederatedAuthService struct {
	provider ports.FederatedProvider
	roles    ports.RoleMapper
	logger   *slog.Logger
}

var errFederatedIdentityExpired = errors.New("federated identity already expired")

// NewFederatedAuthService constructs a new FederatedAuthService.
func NewFederatedAuthService(opts FederatedAuthServiceOptions) *FederatedAuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FederatedAuthService{
		provider: opts.Provider,
		roles:    opts.Roles,
		logger:   logger.With("component", "federated_auth"),
	}
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL with state and nonce.
func (s *FederatedAuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	input := ports.BeginInput{RedirectURL: redirectURL}
	authURL, state, nonce, err := s.provider.Begin(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLogin exchanges the code for a verified identity and maps its role.
func (s *FederatedAuthService) CompleteLogin(
	ctx context.Context,
	input CompleteLoginInput,
) (domainauth.FederatedIdentity, error) {
	if input.Code == "" {
		return domainauth.FederatedIdentity{}, errors.New("authorization code is required")
	}
	if input.State == "" {
		return domainauth.FederatedIdentity{}, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return domainauth.FederatedIdentity{}, errors.New("nonce parameter is required")
	}

	exchangeInput := ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	}
	identity, err := s.provider.Exchange(ctx, exchangeInput)
	if err != nil {
		return domainauth.FederatedIdentity{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	if !identity.ExpiresAt.IsZero() && time.Now().After(identity.ExpiresAt) {
		return domainauth.FederatedIdentity{}, errFederatedIdentityExpired
	}

	identity.Role = domainauth.DefaultRole
	if s.roles != nil {
		identity.Role = s.roles.Map(identity)
	}
	s.logger.DebugContext(ctx, "federated identity verified",
		"subject", identity.Subject,
		"role", identity.Role,
		"groups", len(identity.Groups),
	)

	return identity, nil
}
