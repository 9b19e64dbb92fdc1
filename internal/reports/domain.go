package reports

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

var (
	// ErrUnsupportedFormat rejects unknown export formats.
	ErrUnsupportedFormat = fmt.Errorf("reports: %w: format must be csv or xlsx", shared.ErrValidation)
	// ErrInvalidRange rejects a history filter whose bounds are reversed.
	ErrInvalidRange = fmt.Errorf("reports: %w: from must not be after to", shared.ErrValidation)
)

// SaleLine is one sold item as captured at sale time.
type SaleLine struct {
	ProductID   uuid.UUID
	ProductName string
	Price       decimal.Decimal
	Cost        decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
	Date        time.Time
}

// ProductSold groups the lines of one product.
type ProductSold struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Profit      decimal.Decimal `json:"profit"`
}

// ShiftReport is the full picture of one shift.
type ShiftReport struct {
	Shift      shifts.Shift      `json:"shift"`
	Aggregates shifts.Aggregates `json:"aggregates"`
	Products   []ProductSold     `json:"products"`
}

// PeriodTotals are the figures summed over closed shifts.
type PeriodTotals struct {
	ShiftCount       int             `json:"shiftCount"`
	TotalTrays       int             `json:"totalTrays"`
	BreadSales       decimal.Decimal `json:"breadSales"`
	NonBreadSales    decimal.Decimal `json:"nonBreadSales"`
	TotalSales       decimal.Decimal `json:"totalSales"`
	BreadExpenses    decimal.Decimal `json:"breadExpenses"`
	NonBreadExpenses decimal.Decimal `json:"nonBreadExpenses"`
	GeneralExpenses  decimal.Decimal `json:"generalExpenses"`
	NetProfit        decimal.Decimal `json:"netProfit"`
}

// DayRow is the slice of a period falling on one business day.
type DayRow struct {
	Date string `json:"date"`
	PeriodTotals
}

// PeriodReport summarises the closed shifts of a week or month.
type PeriodReport struct {
	Kind        shared.PeriodKind `json:"kind"`
	PeriodStart string            `json:"periodStart"`
	PeriodEnd   string            `json:"periodEnd"`
	PeriodTotals
	Days []DayRow `json:"days"`
}

// DailyQuantity is one weekday cell of the weekly product summary.
type DailyQuantity struct {
	Date     string          `json:"date"`
	Weekday  string          `json:"weekday"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// WeeklyProductRow holds the per-day sales of one product.
type WeeklyProductRow struct {
	ProductID     uuid.UUID       `json:"productId"`
	ProductName   string          `json:"productName"`
	Days          []DailyQuantity `json:"days"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalSubtotal decimal.Decimal `json:"totalSubtotal"`
}

// WeeklyProducts is the per-product breakdown of one Monday-start week.
type WeeklyProducts struct {
	WeekStart string             `json:"weekStart"`
	WeekEnd   string             `json:"weekEnd"`
	Products  []WeeklyProductRow `json:"products"`
}

// HistoryFilter narrows the closed shift history.
type HistoryFilter struct {
	OpenedBy *uuid.UUID
	From     time.Time
	To       time.Time
	Page     shared.Page
}
