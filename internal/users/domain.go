package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// User represents an operator account.
type User struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	Name         string      `json:"name"`
	Role         shared.Role `json:"role"`
	IsActive     bool        `json:"isActive"`
	PasswordHash string      `json:"-"`
	LastLoginAt  *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Actor returns the request identity of u.
func (u User) Actor() shared.Actor {
	return shared.Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

// CreateInput describes a new account.
type CreateInput struct {
	Username string      `json:"username" validate:"required,min=3,max=64"`
	Name     string      `json:"name" validate:"required,max=120"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Role     shared.Role `json:"role" validate:"required"`
}

// UpdateInput changes selected fields of an account.
type UpdateInput struct {
	Name     *string      `json:"name" validate:"omitempty,max=120"`
	Role     *shared.Role `json:"role"`
	IsActive *bool        `json:"isActive"`
	Password *string      `json:"password" validate:"omitempty,min=8,max=72"`
}

const minPasswordLength = 8

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (in CreateInput) validate() error {
	if len(normalizeUsername(in.Username)) < 3 {
		return fmt.Errorf("users: %w: username must have at least 3 characters", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("users: %w: name required", shared.ErrValidation)
	}
	if len(in.Password) < minPasswordLength {
		return fmt.Errorf("users: %w: password must have at least %d characters", shared.ErrValidation, minPasswordLength)
	}
	if !in.Role.Valid() {
		return fmt.Errorf("users: %w: role must be admin or seller", shared.ErrValidation)
	}
	return nil
}

var (
	// ErrUserNotFound indicates an unknown account.
	ErrUserNotFound = fmt.Errorf("users: user %w", shared.ErrNotFound)
	// ErrUsernameTaken rejects duplicate usernames.
	ErrUsernameTaken = fmt.Errorf("users: %w: username already taken", shared.ErrConflict)
	// ErrSelfLockout prevents admins from demoting or deactivating themselves.
	ErrSelfLockout = fmt.Errorf("users: %w: cannot demote or deactivate your own account", shared.ErrConflict)
	// ErrAdminRequired rejects user management by non-admins.
	ErrAdminRequired = fmt.Errorf("users: %w: admin role required", shared.ErrForbidden)
)
