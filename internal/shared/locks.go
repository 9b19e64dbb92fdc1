package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// ShiftCloseLockKey builds the redis key fencing concurrent closes of a shift.
func ShiftCloseLockKey(shiftID uuid.UUID) string {
	return fmt.Sprintf("lock:shift:%s:close", shiftID)
}

// RevokedTokenKey builds the redis key marking a token id as revoked.
func RevokedTokenKey(tokenID string) string {
	return fmt.Sprintf("auth:revoked:%s", tokenID)
}
