package rbac

import (
	"context"
	"sort"
	"strings"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// Service resolves effective permissions from the caller's role.
type Service struct {
	grants map[shared.Role][]string
}

// NewService constructs a Service with the built-in role grants.
func NewService() *Service {
	grants := map[shared.Role][]string{}
	for _, role := range []shared.Role{shared.RoleAdmin, shared.RoleSeller} {
		grants[role] = normalizePermissions(shared.ScopesForRole(role))
	}
	return &Service{grants: grants}
}

// EffectivePermissions returns the sorted permissions held by actor.
func (s *Service) EffectivePermissions(_ context.Context, actor shared.Actor) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	perms := append([]string(nil), s.grants[actor.Role]...)
	sort.Strings(perms)
	return perms, nil
}

// Grants lists every role with its permissions.
func (s *Service) Grants() []Grant {
	out := make([]Grant, 0, len(s.grants))
	for role, perms := range s.grants {
		sorted := append([]string(nil), perms...)
		sort.Strings(sorted)
		out = append(out, Grant{Role: role, Permissions: sorted})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}
