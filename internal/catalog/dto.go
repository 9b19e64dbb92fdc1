package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductForm is the writable subset of a product.
type ProductForm struct {
	Name       string          `json:"name" validate:"required,max=120"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	CategoryID *uuid.UUID      `json:"categoryId"`
	IsActive   *bool           `json:"isActive"`
}

// CategoryForm creates a category.
type CategoryForm struct {
	Name string `json:"name" validate:"required,max=80"`
}
