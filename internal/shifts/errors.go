package shifts

import (
	"fmt"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

var (
	// ErrShiftNotFound covers missing shifts, shifts owned by someone else and
	// shifts that are no longer open, so existence is not leaked.
	ErrShiftNotFound = fmt.Errorf("shifts: shift %w", shared.ErrNotFound)
	// ErrShiftAlreadyOpen indicates the caller already has an open shift.
	ErrShiftAlreadyOpen = fmt.Errorf("shifts: %w: an open shift already exists for this user", shared.ErrConflict)
	// ErrShiftAlreadyClosed indicates a second close attempt.
	ErrShiftAlreadyClosed = fmt.Errorf("shifts: %w: shift already closed", shared.ErrConflict)
	// ErrCloseInProgress indicates another close of the same shift holds the lock.
	// The losing caller sees it as an already closed shift.
	ErrCloseInProgress = fmt.Errorf("%w (close in progress)", ErrShiftAlreadyClosed)
	// ErrOperationMismatch indicates an operation id reused for the opposite direction.
	ErrOperationMismatch = fmt.Errorf("shifts: %w: operation id already used for a different movement", shared.ErrConflict)
	// ErrNegativeOpeningCash rejects a negative opening float.
	ErrNegativeOpeningCash = fmt.Errorf("shifts: %w: opening cash must be >= 0", shared.ErrValidation)
	// ErrNegativeCountedCash rejects a negative counted amount.
	ErrNegativeCountedCash = fmt.Errorf("shifts: %w: counted cash must be >= 0", shared.ErrValidation)
	// ErrTrayCountZero rejects a decrement when no trays are counted.
	ErrTrayCountZero = fmt.Errorf("shifts: %w: tray count is already zero", shared.ErrValidation)
	// ErrNegativeFinalTrays rejects an adjustment that would leave fewer than zero trays.
	ErrNegativeFinalTrays = fmt.Errorf("shifts: %w: adjusted tray count must be >= 0", shared.ErrValidation)
	// ErrInvalidOperationID rejects oversized client operation ids.
	ErrInvalidOperationID = fmt.Errorf("shifts: %w: operation id too long", shared.ErrValidation)
	// ErrTrayOperationNotFound is returned by repositories when an operation id is unknown.
	ErrTrayOperationNotFound = fmt.Errorf("shifts: tray operation %w", shared.ErrNotFound)
	// ErrAdminRequired rejects administrative operations from non-admins.
	ErrAdminRequired = fmt.Errorf("shifts: %w: admin role required", shared.ErrForbidden)
)
