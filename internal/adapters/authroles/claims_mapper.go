package authroles

import (
	"errors"
	"fmt"
	"log/slog"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

var _ ports.RoleMapper = (*ClaimsRoleMapper)(nil)

// ClaimsRoleMapper evaluates a JMESPath expression over the raw ID-token claims.
// The expression must yield a role name, or a list whose first valid entry is
// used. Anything else falls through to Fallback.
//
// Example: `contains(groups, 'grants-admins') && 'admin' || tenant_role`.
type ClaimsRoleMapper struct {
	expr     string
	fallback ports.RoleMapper
	logger   *slog.Logger
}

// NewClaimsRoleMapper validates expr and returns a mapper. fallback is required.
func NewClaimsRoleMapper(expr string, fallback ports.RoleMapper, logger *slog.Logger) (*ClaimsRoleMapper, error) {
	if expr == "" {
		return nil, errors.New("role claim expression is required")
	}
	if fallback == nil {
		return nil, errors.New("fallback role mapper is required")
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid role claim expression: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimsRoleMapper{expr: expr, fallback: fallback, logger: logger}, nil
}

func (m *ClaimsRoleMapper) Map(id domainauth.FederatedIdentity) domainauth.Role {
	if len(id.Claims) > 0 {
		out, err := jmespath.Search(m.expr, id.Claims)
		if err != nil {
			m.logger.Warn("role claim expression failed", "subject", id.Subject, "error", err)
		} else if role, ok := roleFromResult(out); ok {
			return role
		}
	}
	return m.fallback.Map(id)
}

func roleFromResult(v any) (domainauth.Role, bool) {
	switch t := v.(type) {
	case string:
		r, err := domainauth.ParseRole(t)
		return r, err == nil
	case []any:
		for _, item := range t {
			if r, ok := roleFromResult(item); ok {
				return r, true
			}
		}
	}
	return "", false
}
