package catalog

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

func validateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("catalog: %w: product name is required", shared.ErrValidation)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("catalog: %w: price must be >= 0", shared.ErrValidation)
	}
	if p.Cost.IsNegative() {
		return fmt.Errorf("catalog: %w: cost must be >= 0", shared.ErrValidation)
	}
	return nil
}

func validateCategory(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("catalog: %w: category name is required", shared.ErrValidation)
	}
	return nil
}
