package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

type memoryRepo struct {
	products   map[uuid.UUID]Product
	categories map[uuid.UUID]Category
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[uuid.UUID]Product{}, categories: map[uuid.UUID]Category{}}
}

func (m *memoryRepo) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepo) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *memoryRepo) CreateProduct(ctx context.Context, p Product) error {
	if p.CategoryID != nil {
		if _, ok := m.categories[*p.CategoryID]; !ok {
			return ErrCategoryNotFound
		}
	}
	m.products[p.ID] = p
	return nil
}

func (m *memoryRepo) UpdateProduct(ctx context.Context, p Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return ErrProductNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *memoryRepo) DeactivateProduct(ctx context.Context, id uuid.UUID, at time.Time) error {
	p, ok := m.products[id]
	if !ok {
		return ErrProductNotFound
	}
	p.IsActive = false
	p.UpdatedAt = at
	m.products[id] = p
	return nil
}

func (m *memoryRepo) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) CreateCategory(ctx context.Context, c Category) error {
	for _, existing := range m.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return ErrCategoryExists
		}
	}
	m.categories[c.ID] = c
	return nil
}

func (m *memoryRepo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

var (
	admin  = shared.Actor{ID: uuid.New(), Role: shared.RoleAdmin}
	seller = shared.Actor{ID: uuid.New(), Role: shared.RoleSeller}
)

func TestCreateProductRules(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	form := ProductForm{Name: " Empanada ", Price: decimal.NewFromInt(1500), Cost: decimal.NewFromInt(900)}

	_, err := svc.CreateProduct(ctx, seller, form)
	require.ErrorIs(t, err, shared.ErrForbidden)

	p, err := svc.CreateProduct(ctx, admin, form)
	require.NoError(t, err)
	require.Equal(t, "Empanada", p.Name)
	require.True(t, p.IsActive)
	require.True(t, p.Margin().Equal(decimal.NewFromInt(600)))

	bad := form
	bad.Cost = decimal.NewFromInt(-1)
	_, err = svc.CreateProduct(ctx, admin, bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	missing := uuid.New()
	withCategory := form
	withCategory.CategoryID = &missing
	_, err = svc.CreateProduct(ctx, admin, withCategory)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateAndDeactivateProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, admin, ProductForm{Name: "Kuchen", Price: decimal.NewFromInt(2000), Cost: decimal.NewFromInt(1100)})
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(ctx, admin, p.ID, ProductForm{Name: "Kuchen de nuez", Price: decimal.NewFromInt(2200), Cost: decimal.NewFromInt(1100)})
	require.NoError(t, err)
	require.True(t, updated.IsActive, "omitted isActive keeps the current value")
	require.True(t, updated.Price.Equal(decimal.NewFromInt(2200)))

	require.NoError(t, svc.DeactivateProduct(ctx, admin, p.ID))
	active, err := svc.ListProducts(ctx, ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Empty(t, active)

	_, err = svc.UpdateProduct(ctx, admin, uuid.New(), ProductForm{Name: "x"})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestCategories(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, admin, CategoryForm{Name: "Bebidas"})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, admin, CategoryForm{Name: "bebidas"})
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.CreateCategory(ctx, admin, CategoryForm{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.ErrorIs(t, svc.DeleteCategory(ctx, seller, c.ID), shared.ErrForbidden)
	require.NoError(t, svc.DeleteCategory(ctx, admin, c.ID))
	require.ErrorIs(t, svc.DeleteCategory(ctx, admin, c.ID), shared.ErrNotFound)
}

func TestCreateProductHandler(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(newMemoryRepo(), nil, nil), rbac.Middleware{})
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"name":"Alfajor","price":800,"cost":"350.5"}`))
	req = req.WithContext(shared.ContextWithActor(req.Context(), admin))
	rr := httptest.NewRecorder()

	h.createProduct(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"cost":"350.5"`)
	require.Contains(t, rr.Body.String(), `"isActive":true`)
}
