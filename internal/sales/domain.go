package sales

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/catalog"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

// Sale is one non-bread sale recorded against a shift.
type Sale struct {
	ID         uuid.UUID       `json:"id"`
	ShiftID    uuid.UUID       `json:"shiftId"`
	Total      decimal.Decimal `json:"total"`
	SoldBy     uuid.UUID       `json:"soldBy"`
	SoldByName string          `json:"soldByName"`
	CreatedAt  time.Time       `json:"createdAt"`
	Items      []Item          `json:"items"`
}

// Item is a sale line. Price and cost are captured from the catalog at sale time.
type Item struct {
	ID          uuid.UUID       `json:"id"`
	SaleID      uuid.UUID       `json:"saleId"`
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	PriceAtSale decimal.Decimal `json:"priceAtSale"`
	CostAtSale  decimal.Decimal `json:"costAtSale"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Cost is the captured cost of the line.
func (i Item) Cost() decimal.Decimal {
	return i.CostAtSale.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemInput requests a quantity of a catalog product.
type ItemInput struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// RecordInput describes a new sale.
type RecordInput struct {
	Items []ItemInput `json:"items" validate:"required,min=1,max=100,dive"`
}

const maxItems = 100

// Validate checks the requested lines.
func (in RecordInput) Validate() error {
	if len(in.Items) == 0 {
		return ErrEmptySale
	}
	if len(in.Items) > maxItems {
		return fmt.Errorf("sales: %w: at most %d items per sale", shared.ErrValidation, maxItems)
	}
	for i, item := range in.Items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("sales: %w: item %d has no product", shared.ErrValidation, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("sales: %w: item %d quantity must be > 0", shared.ErrValidation, i)
		}
	}
	return nil
}

// ProductIDs returns the distinct products referenced by in.
func (in RecordInput) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(in.Items))
	ids := make([]uuid.UUID, 0, len(in.Items))
	for _, item := range in.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// BuildItems prices the requested lines from products. Unknown and inactive
// products are rejected. The returned total equals the sum of subtotals.
func BuildItems(saleID uuid.UUID, in RecordInput, products map[uuid.UUID]catalog.Product) ([]Item, decimal.Decimal, error) {
	items := make([]Item, 0, len(in.Items))
	total := decimal.Zero
	for _, req := range in.Items {
		p, ok := products[req.ProductID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("sales: product %s: %w", req.ProductID, catalog.ErrProductNotFound)
		}
		if !p.IsActive {
			return nil, decimal.Zero, fmt.Errorf("sales: %s: %w", p.Name, catalog.ErrProductInactive)
		}
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		items = append(items, Item{
			ID:          uuid.New(),
			SaleID:      saleID,
			ProductID:   p.ID,
			ProductName: p.Name,
			PriceAtSale: p.Price,
			CostAtSale:  p.Cost,
			Quantity:    req.Quantity,
			Subtotal:    subtotal,
		})
		total = total.Add(subtotal)
	}
	return items, total, nil
}

var (
	// ErrSaleNotFound indicates an unknown sale.
	ErrSaleNotFound = fmt.Errorf("sales: sale %w", shared.ErrNotFound)
	// ErrEmptySale rejects a sale without items.
	ErrEmptySale = fmt.Errorf("sales: %w: at least one item required", shared.ErrValidation)
	// ErrAdminRequired rejects sale deletion by non-admins.
	ErrAdminRequired = fmt.Errorf("sales: %w: admin role required", shared.ErrForbidden)
)
