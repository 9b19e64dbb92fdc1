package shifts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/panconfig"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

// Status enumerates shift lifecycle states.
type Status string

const (
	// StatusOpen accepts tray movements, sales and expenses.
	StatusOpen Status = "OPEN"
	// StatusClosed is terminal.
	StatusClosed Status = "CLOSED"
)

// Origin classifies an expense by the profit line it reduces.
type Origin string

const (
	// OriginGeneral is cash that left the register.
	OriginGeneral Origin = "GENERAL"
	// OriginBread is a cost of bread production.
	OriginBread Origin = "BREAD"
	// OriginNonBread is a cost of the non-bread product line.
	OriginNonBread Origin = "NON_BREAD"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	switch o {
	case OriginGeneral, OriginBread, OriginNonBread:
		return true
	}
	return false
}

// ParseOrigin normalises raw into an Origin.
func ParseOrigin(raw string) (Origin, error) {
	o := Origin(strings.ToUpper(strings.TrimSpace(raw)))
	if !o.Valid() {
		return "", fmt.Errorf("shifts: %w: origin must be GENERAL, BREAD or NON_BREAD", shared.ErrValidation)
	}
	return o, nil
}

// CashStatus classifies the closing difference.
type CashStatus string

const (
	CashBalanced CashStatus = "BALANCED"
	CashShort    CashStatus = "SHORT"
	CashOver     CashStatus = "OVER"
)

// Shift is one register-open-to-close working session.
type Shift struct {
	ID                 uuid.UUID        `json:"id"`
	Date               time.Time        `json:"date"`
	Status             Status           `json:"status"`
	OpeningCash        decimal.Decimal  `json:"openingCash"`
	OpenedBy           uuid.UUID        `json:"openedBy"`
	OpenedByName       string           `json:"openedByName"`
	OpenedAt           time.Time        `json:"openedAt"`
	TraysRemoved       int              `json:"traysRemoved"`
	NonBreadSalesTotal decimal.Decimal  `json:"nonBreadSalesTotal"`
	ConfigSnapshot     panconfig.Config `json:"configSnapshot"`
	ClosedBy           *uuid.UUID       `json:"closedBy,omitempty"`
	ClosedByName       string           `json:"closedByName,omitempty"`
	ClosedAt           *time.Time       `json:"closedAt"`
	ClosingData        *ClosingData     `json:"closingData"`
}

// IsOpen reports whether the shift still accepts mutations.
func (s Shift) IsOpen() bool {
	return s.Status == StatusOpen
}

// OwnedBy reports whether actorID opened the shift.
func (s Shift) OwnedBy(actorID uuid.UUID) bool {
	return s.OpenedBy == actorID
}

// ClosingData is the reconciliation record frozen when a shift closes.
type ClosingData struct {
	CountedCash          decimal.Decimal `json:"countedCash"`
	ExpectedCash         decimal.Decimal `json:"expectedCash"`
	Difference           decimal.Decimal `json:"difference"`
	CashStatus           CashStatus      `json:"cashStatus"`
	TrayAdjustment       int             `json:"trayAdjustment"`
	TrayAdjustmentReason string          `json:"trayAdjustmentReason"`
	FinalTrays           int             `json:"finalTrays"`
	BreadRevenue         decimal.Decimal `json:"breadRevenue"`
	BreadExpenses        decimal.Decimal `json:"breadExpenses"`
	NonBreadSales        decimal.Decimal `json:"nonBreadSales"`
	CogsNonBread         decimal.Decimal `json:"cogsNonBread"`
	NonBreadExpenses     decimal.Decimal `json:"nonBreadExpenses"`
	GrossBread           decimal.Decimal `json:"grossBread"`
	GrossNonBread        decimal.Decimal `json:"grossNonBread"`
	CashExpenses         decimal.Decimal `json:"cashExpenses"`
	NetProfit            decimal.Decimal `json:"netProfit"`
}

// ExpenseEntry is the slice of an expense the reconciliation needs.
type ExpenseEntry struct {
	Amount decimal.Decimal
	Origin Origin
}

// SaleLine is the slice of a sale item the reconciliation needs.
type SaleLine struct {
	ProductID  uuid.UUID
	CostAtSale decimal.Decimal
	Quantity   int
	Subtotal   decimal.Decimal
}

// Ledger collects the expense and sales side-effects of one shift.
type Ledger struct {
	Expenses   []ExpenseEntry
	Lines      []SaleLine
	SalesCount int
}

// Aggregates are the derived financial figures of a shift.
type Aggregates struct {
	TraysRemoved          int             `json:"traysRemoved"`
	Kilos                 decimal.Decimal `json:"kilos"`
	EstimatedBreadRevenue decimal.Decimal `json:"estimatedBreadRevenue"`
	CashExpenses          decimal.Decimal `json:"cashExpenses"`
	BreadExpenses         decimal.Decimal `json:"breadExpenses"`
	NonBreadExpenses      decimal.Decimal `json:"nonBreadExpenses"`
	TotalExpenses         decimal.Decimal `json:"totalExpenses"`
	NonBreadSales         decimal.Decimal `json:"nonBreadSales"`
	CogsNonBread          decimal.Decimal `json:"cogsNonBread"`
	ExpectedCash          decimal.Decimal `json:"expectedCash"`
	GrossBreadProfit      decimal.Decimal `json:"grossBreadProfit"`
	GrossNonBreadProfit   decimal.Decimal `json:"grossNonBreadProfit"`
	NetProfit             decimal.Decimal `json:"netProfit"`
	SalesCount            int             `json:"salesCount"`
	ExpenseCount          int             `json:"expenseCount"`
}

// OpenInput opens a shift.
type OpenInput struct {
	OpeningCash decimal.Decimal
}

// Validate checks the opening float.
func (in OpenInput) Validate() error {
	if in.OpeningCash.IsNegative() {
		return ErrNegativeOpeningCash
	}
	return nil
}

const maxReasonLength = 500

// CloseInput carries the operator's closing reconciliation.
type CloseInput struct {
	CountedCash          decimal.Decimal
	TrayAdjustment       int
	TrayAdjustmentReason string
}

// Validate checks the counted cash and reason.
func (in CloseInput) Validate() error {
	if in.CountedCash.IsNegative() {
		return ErrNegativeCountedCash
	}
	if len(in.TrayAdjustmentReason) > maxReasonLength {
		return fmt.Errorf("shifts: %w: adjustment reason too long", shared.ErrValidation)
	}
	return nil
}

// Direction selects a tray movement.
type Direction int

const (
	// Increment removes one more tray from the oven.
	Increment Direction = 1
	// Decrement undoes one tray.
	Decrement Direction = -1
)

func (d Direction) String() string {
	if d == Decrement {
		return "decrement"
	}
	return "increment"
}

const maxOperationIDLength = 128

// TrayOperation is one journaled tray movement.
type TrayOperation struct {
	ShiftID        uuid.UUID `json:"shiftId"`
	OperationID    string    `json:"operationId"`
	Delta          int       `json:"delta"`
	ResultingCount int       `json:"resultingCount"`
	ActorID        uuid.UUID `json:"actorId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TrayResult is returned by tray movements.
type TrayResult struct {
	ShiftID      uuid.UUID `json:"shiftId"`
	OperationID  string    `json:"operationId"`
	TraysRemoved int       `json:"traysRemoved"`
	Replayed     bool      `json:"replayed"`
}

// ListFilter narrows shift listings.
type ListFilter struct {
	Status   Status
	OpenedBy *uuid.UUID
	From     time.Time
	To       time.Time
	Page     shared.Page
}

// PurgeResult reports rows removed by a history reset.
type PurgeResult struct {
	SaleItems int64 `json:"saleItems"`
	Sales     int64 `json:"sales"`
	Expenses  int64 `json:"expenses"`
	Shifts    int64 `json:"shifts"`
}
