package expenses

import (
	"fmt"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

var (
	// ErrExpenseNotFound covers missing expenses and expenses of shifts the caller cannot see.
	ErrExpenseNotFound = fmt.Errorf("expenses: expense %w", shared.ErrNotFound)
	// ErrDescriptionRequired rejects blank descriptions.
	ErrDescriptionRequired = fmt.Errorf("expenses: %w: description required", shared.ErrValidation)
	// ErrNonPositiveAmount rejects zero or negative amounts.
	ErrNonPositiveAmount = fmt.Errorf("expenses: %w: amount must be > 0", shared.ErrValidation)
)
