package rbac

import (
	"context"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// Grant lists the permissions carried by a role.
type Grant struct {
	Role        shared.Role `json:"role"`
	Permissions []string    `json:"permissions"`
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*shared.Claims, error)
}
