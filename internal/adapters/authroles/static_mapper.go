package authroles

import (
	"slices"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
	"github.com/target/grant-portal/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps group membership to a role. When an identity is in
// several mapped groups the most privileged role wins.
type StaticRoleMapper struct {
	AdminGroup              string
	InstitutionalAdminGroup string
	ReviewerGroup           string
}

func (m StaticRoleMapper) Map(id domainauth.FederatedIdentity) domainauth.Role {
	switch {
	case m.member(id.Groups, m.AdminGroup):
		return domainauth.RoleAdmin
	case m.member(id.Groups, m.InstitutionalAdminGroup):
		return domainauth.RoleInstitutionalAdmin
	case m.member(id.Groups, m.ReviewerGroup):
		return domainauth.RoleReviewer
	}
	return domainauth.DefaultRole
}

func (StaticRoleMapper) member(groups []string, group string) bool {
	return group != "" && slices.Contains(groups, group)
}
