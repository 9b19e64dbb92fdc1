package panconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Load(ctx context.Context) (Stored, error)
	Save(ctx context.Context, cfg Config, actorID uuid.UUID, at time.Time) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service reads and updates the bread pricing parameters.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	defaults Config
	now      func() time.Time
}

// NewService builds Service. defaults is returned until an admin stores a value.
func NewService(repo RepositoryPort, audit AuditPort, defaults Config) *Service {
	return &Service{repo: repo, audit: audit, defaults: defaults, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Current returns the configuration in force. It satisfies the shift engine's config port.
func (s *Service) Current(ctx context.Context) (Config, error) {
	stored, err := s.Get(ctx)
	if err != nil {
		return Config{}, err
	}
	return stored.Config, nil
}

// Get returns the configuration with provenance.
func (s *Service) Get(ctx context.Context) (Stored, error) {
	stored, err := s.repo.Load(ctx)
	if errors.Is(err, ErrConfigNotFound) {
		return Stored{Config: s.defaults, IsDefault: true}, nil
	}
	if err != nil {
		return Stored{}, err
	}
	return stored, nil
}

// Update replaces the configuration. Only admins may change pricing; existing
// shifts keep the snapshot taken when they opened.
func (s *Service) Update(ctx context.Context, actor shared.Actor, cfg Config) (Stored, error) {
	if !actor.IsAdmin() {
		return Stored{}, fmt.Errorf("panconfig: %w: admin role required", shared.ErrForbidden)
	}
	if err := cfg.Validate(); err != nil {
		return Stored{}, err
	}
	previous, err := s.Get(ctx)
	if err != nil {
		return Stored{}, err
	}
	now := s.now().UTC()
	if err := s.repo.Save(ctx, cfg, actor.ID, now); err != nil {
		return Stored{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "panconfig:update",
			Entity:   "app_config",
			EntityID: StorageKey,
			Meta: map[string]any{
				"previous_kilos_per_tray": previous.KilosPerTray.String(),
				"previous_price_per_kilo": previous.PricePerKilo.String(),
				"kilos_per_tray":          cfg.KilosPerTray.String(),
				"price_per_kilo":          cfg.PricePerKilo.String(),
			},
		})
	}
	id := actor.ID
	return Stored{Config: cfg, UpdatedAt: now, UpdatedBy: &id}, nil
}
