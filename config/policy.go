package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	domainauth "github.com/target/grant-portal/internal/domain/auth"
)

// RouteRule restricts every path under Prefix to Roles. An empty Roles list
// means any authenticated user.
type RouteRule struct {
	Prefix string   `yaml:"prefix"`
	Roles  []string `yaml:"roles"`
}

// RoutePolicy is the set of role rules for guarded pages.
type RoutePolicy struct {
	Routes []RouteRule `yaml:"routes"`

	compiled []compiledRule
}

type compiledRule struct {
	prefix string
	roles  domainauth.RoleSet
}

// DefaultRoutePolicy returns the built-in rules for the portal's pages.
func DefaultRoutePolicy() *RoutePolicy {
	p := &RoutePolicy{Routes: []RouteRule{
		{Prefix: "/grants"},
		{Prefix: "/reviews", Roles: []string{"reviewer", "admin"}},
		{Prefix: "/admin", Roles: []string{"admin", "institutional_admin"}},
	}}
	if err := p.compile(); err != nil {
		panic(err) // built-in rules are static
	}
	return p
}

// LoadRoutePolicy reads a RoutePolicy from a YAML file:
//
//	routes:
//	  - prefix: /reviews
//	    roles: [reviewer, admin]
func LoadRoutePolicy(path string) (*RoutePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route policy: %w", err)
	}
	return ParseRoutePolicy(data)
}

// ParseRoutePolicy decodes and validates YAML policy bytes.
func ParseRoutePolicy(data []byte) (*RoutePolicy, error) {
	var p RoutePolicy
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("unmarshal route policy: %w", err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadRoutePolicyOrDefault loads path, or returns the default policy when path is empty.
func LoadRoutePolicyOrDefault(path string) (*RoutePolicy, error) {
	if path == "" {
		return DefaultRoutePolicy(), nil
	}
	return LoadRoutePolicy(path)
}

func (p *RoutePolicy) compile() error {
	if len(p.Routes) == 0 {
		return errors.New("route policy has no routes")
	}
	seen := make(map[string]struct{}, len(p.Routes))
	out := make([]compiledRule, 0, len(p.Routes))
	for i, r := range p.Routes {
		prefix := "/" + strings.Trim(strings.TrimSpace(r.Prefix), "/")
		if _, dup := seen[prefix]; dup {
			return fmt.Errorf("route %d: duplicate prefix %q", i, prefix)
		}
		seen[prefix] = struct{}{}
		roles, err := domainauth.ParseRoleSet(r.Roles)
		if err != nil {
			return fmt.Errorf("route %d (%s): %w", i, prefix, err)
		}
		out = append(out, compiledRule{prefix: prefix, roles: roles})
	}
	// Longest prefix first.
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].prefix) > len(out[j].prefix) })
	p.compiled = out
	return nil
}

// Match returns the allowed roles for path and whether any rule covers it.
func (p *RoutePolicy) Match(path string) (domainauth.RoleSet, bool) {
	for _, r := range p.compiled {
		if r.prefix == "/" || path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r.roles, true
		}
	}
	return nil, false
}

// Prefixes lists the guarded prefixes, longest first.
func (p *RoutePolicy) Prefixes() []string {
	out := make([]string, 0, len(p.compiled))
	for _, r := range p.compiled {
		out = append(out, r.prefix)
	}
	return out
}
