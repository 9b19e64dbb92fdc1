package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// Category groups products for display.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is a non-bread item sold through the sales ledger.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	CategoryID *uuid.UUID      `json:"categoryId"`
	IsActive   bool            `json:"isActive"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Margin is the unit profit of the product at current prices.
func (p Product) Margin() decimal.Decimal {
	return p.Price.Sub(p.Cost)
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search     string
	CategoryID *uuid.UUID
	ActiveOnly bool
	SortBy     string
	SortDir    string
}

var (
	// ErrProductNotFound indicates an unknown product id.
	ErrProductNotFound = fmt.Errorf("catalog: product %w", shared.ErrNotFound)
	// ErrCategoryNotFound indicates an unknown category id.
	ErrCategoryNotFound = fmt.Errorf("catalog: category %w", shared.ErrNotFound)
	// ErrCategoryExists rejects duplicate category names.
	ErrCategoryExists = fmt.Errorf("catalog: %w: category name already exists", shared.ErrConflict)
	// ErrProductInactive rejects sales of deactivated products.
	ErrProductInactive = fmt.Errorf("catalog: %w: product is inactive", shared.ErrValidation)
)
