package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Insert(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	cost   int
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithHashCost overrides the bcrypt cost, used by tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context, actor shared.Actor) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminRequired
	}
	return s.repo.ListUsers(ctx)
}

// Create adds an account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in CreateInput) (User, error) {
	if !actor.IsAdmin() {
		return User{}, ErrAdminRequired
	}
	u, err := s.newUser(in)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user:create", u.ID, map[string]any{"username": u.Username, "role": string(u.Role)})
	s.logger.Info("user created", slog.String("user_id", u.ID.String()), slog.String("role", string(u.Role)))
	return u, nil
}

// Update applies in to the account id. Admins cannot demote or deactivate themselves.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id uuid.UUID, in UpdateInput) (User, error) {
	if !actor.IsAdmin() {
		return User{}, ErrAdminRequired
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if id == actor.ID {
		if (in.Role != nil && *in.Role != shared.RoleAdmin) || (in.IsActive != nil && !*in.IsActive) {
			return User{}, ErrSelfLockout
		}
	}
	changes := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return User{}, fmt.Errorf("users: %w: name required", shared.ErrValidation)
		}
		u.Name = name
		changes["name"] = name
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return User{}, fmt.Errorf("users: %w: role must be admin or seller", shared.ErrValidation)
		}
		u.Role = *in.Role
		changes["role"] = string(u.Role)
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
		changes["active"] = u.IsActive
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLength {
			return User{}, fmt.Errorf("users: %w: password must have at least %d characters", shared.ErrValidation, minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		u.PasswordHash = string(hash)
		changes["password"] = "changed"
	}
	u.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user:update", u.ID, changes)
	return u, nil
}

// EnsureAdmin creates the named admin account, or resets its password and
// reactivates it when it already exists. Used by operator tooling.
func (s *Service) EnsureAdmin(ctx context.Context, username, name, password string) (User, bool, error) {
	existing, err := s.repo.GetByUsername(ctx, normalizeUsername(username))
	switch {
	case err == nil:
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return User{}, false, fmt.Errorf("users: hash password: %w", err)
		}
		existing.PasswordHash = string(hash)
		existing.Role = shared.RoleAdmin
		existing.IsActive = true
		existing.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, existing); err != nil {
			return User{}, false, err
		}
		return existing, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return User{}, false, err
	}
	u, err := s.newUser(CreateInput{Username: username, Name: name, Password: password, Role: shared.RoleAdmin})
	if err != nil {
		return User{}, false, err
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func (s *Service) newUser(in CreateInput) (User, error) {
	if err := in.validate(); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	now := s.now().UTC()
	return User{
		ID:           uuid.New(),
		Username:     normalizeUsername(in.Username),
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		IsActive:     true,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
