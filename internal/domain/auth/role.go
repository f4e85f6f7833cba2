package auth

import (
	"fmt"
	"strings"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleResearcher         Role = "researcher"
	RoleAdmin              Role = "admin"
	RoleReviewer           Role = "reviewer"
	RoleInstitutionalAdmin Role = "institutional_admin"
)

// DefaultRole is assigned when neither the profile record nor identity metadata names a valid role.
const DefaultRole = RoleResearcher

// Roles returns every member of the closed role set.
func Roles() []Role {
	return []Role{RoleResearcher, RoleAdmin, RoleReviewer, RoleInstitutionalAdmin}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleResearcher, RoleAdmin, RoleReviewer, RoleInstitutionalAdmin:
		return true
	}
	return false
}

// Label returns a human-readable name for display.
func (r Role) Label() string {
	switch r {
	case RoleResearcher:
		return "Researcher"
	case RoleAdmin:
		return "Administrator"
	case RoleReviewer:
		return "Reviewer"
	case RoleInstitutionalAdmin:
		return "Institutional Administrator"
	}
	return "Unknown"
}

// ParseRole converts a raw string into a Role. Hyphens and case are normalised,
// so "Institutional-Admin" parses as RoleInstitutionalAdmin.
func ParseRole(raw string) (Role, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, "-", "_")
	r := Role(v)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", raw)
	}
	return r, nil
}

// RoleOrDefault parses raw and falls back to DefaultRole when raw is empty or invalid.
func RoleOrDefault(raw string) Role {
	if r, err := ParseRole(raw); err == nil {
		return r
	}
	return DefaultRole
}

// RoleSet is an allow-list of roles. A nil or empty set means "no role restriction".
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet, dropping invalid members.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// ParseRoleSet parses a list of raw role names. Any invalid entry is an error.
func ParseRoleSet(raw []string) (RoleSet, error) {
	set := make(RoleSet, len(raw))
	for _, s := range raw {
		r, err := ParseRole(s)
		if err != nil {
			return nil, err
		}
		set[r] = struct{}{}
	}
	return set, nil
}

// Restricted reports whether the set limits access at all.
func (s RoleSet) Restricted() bool { return len(s) > 0 }

// Allows reports whether r may access a view guarded by s.
func (s RoleSet) Allows(r Role) bool {
	if !s.Restricted() {
		return true
	}
	if !r.Valid() {
		return false
	}
	_, ok := s[r]
	return ok
}

// List returns the members in the canonical order of Roles().
func (s RoleSet) List() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range Roles() {
		if _, ok := s[r]; ok {
			out = append(out, r)
		}
	}
	return out
}
