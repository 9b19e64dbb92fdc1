package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	DeactivateProduct(ctx context.Context, id uuid.UUID, at time.Time) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

var errAdminRequired = fmt.Errorf("catalog: %w: admin role required", shared.ErrForbidden)

// Service manages products and categories.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// ListProducts returns products matching filter.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListProducts(ctx, filter)
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct adds a product. New products are active unless the form says otherwise.
func (s *Service) CreateProduct(ctx context.Context, actor shared.Actor, form ProductForm) (Product, error) {
	if !actor.IsAdmin() {
		return Product{}, errAdminRequired
	}
	now := s.now().UTC()
	p := Product{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(form.Name),
		Price:      form.Price,
		Cost:       form.Cost,
		CategoryID: form.CategoryID,
		IsActive:   form.IsActive == nil || *form.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "product:create", p.ID, map[string]any{"name": p.Name, "price": p.Price.String(), "cost": p.Cost.String()})
	return p, nil
}

// UpdateProduct replaces the writable fields of a product. Existing sale items are unaffected.
func (s *Service) UpdateProduct(ctx context.Context, actor shared.Actor, id uuid.UUID, form ProductForm) (Product, error) {
	if !actor.IsAdmin() {
		return Product{}, errAdminRequired
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.Name = strings.TrimSpace(form.Name)
	p.Price = form.Price
	p.Cost = form.Cost
	p.CategoryID = form.CategoryID
	if form.IsActive != nil {
		p.IsActive = *form.IsActive
	}
	p.UpdatedAt = s.now().UTC()
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "product:update", p.ID, map[string]any{"price": p.Price.String(), "cost": p.Cost.String(), "active": p.IsActive})
	return p, nil
}

// DeactivateProduct removes a product from sale.
func (s *Service) DeactivateProduct(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return errAdminRequired
	}
	if err := s.repo.DeactivateProduct(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	s.record(ctx, actor, "product:deactivate", id, nil)
	return nil
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, actor shared.Actor, form CategoryForm) (Category, error) {
	if !actor.IsAdmin() {
		return Category{}, errAdminRequired
	}
	c := Category{ID: uuid.New(), Name: strings.TrimSpace(form.Name), CreatedAt: s.now().UTC()}
	if err := validateCategory(c); err != nil {
		return Category{}, err
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return Category{}, err
	}
	s.record(ctx, actor, "category:create", c.ID, map[string]any{"name": c.Name})
	return c, nil
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return errAdminRequired
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "category:delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entity, _, _ := strings.Cut(action, ":")
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
