package expenses

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

// Expense is a cash outflow recorded against a shift.
type Expense struct {
	ID          uuid.UUID       `json:"id"`
	ShiftID     uuid.UUID       `json:"shiftId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Origin      shifts.Origin   `json:"origin"`
	CreatedBy   uuid.UUID       `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RecordInput describes a new expense.
type RecordInput struct {
	Description string
	Amount      decimal.Decimal
	Origin      shifts.Origin
}

const maxDescriptionLength = 200

// Validate checks amount, description and origin.
func (in RecordInput) Validate() error {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return ErrDescriptionRequired
	}
	if len(desc) > maxDescriptionLength {
		return fmt.Errorf("expenses: %w: description too long", shared.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !in.Origin.Valid() {
		return fmt.Errorf("expenses: %w: unknown origin %q", shared.ErrValidation, in.Origin)
	}
	return nil
}

// Totals sums a list of expenses per origin.
type Totals struct {
	General  decimal.Decimal `json:"general"`
	Bread    decimal.Decimal `json:"bread"`
	NonBread decimal.Decimal `json:"nonBread"`
	Total    decimal.Decimal `json:"total"`
}

// Summarize totals expenses by origin.
func Summarize(list []Expense) Totals {
	t := Totals{General: decimal.Zero, Bread: decimal.Zero, NonBread: decimal.Zero, Total: decimal.Zero}
	for _, e := range list {
		switch e.Origin {
		case shifts.OriginGeneral:
			t.General = t.General.Add(e.Amount)
		case shifts.OriginBread:
			t.Bread = t.Bread.Add(e.Amount)
		case shifts.OriginNonBread:
			t.NonBread = t.NonBread.Add(e.Amount)
		}
		t.Total = t.Total.Add(e.Amount)
	}
	return t
}
