package panconfig

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// StorageKey is the app_config key holding the bread pricing parameters.
const StorageKey = "pan_config"

// Config holds the bread pricing parameters.
type Config struct {
	KilosPerTray decimal.Decimal `json:"kilosPerTray"`
	PricePerKilo decimal.Decimal `json:"pricePerKilo"`
}

// Validate ensures both parameters are strictly positive.
func (c Config) Validate() error {
	if !c.KilosPerTray.IsPositive() {
		return fmt.Errorf("panconfig: %w: kilos per tray must be > 0", shared.ErrValidation)
	}
	if !c.PricePerKilo.IsPositive() {
		return fmt.Errorf("panconfig: %w: price per kilo must be > 0", shared.ErrValidation)
	}
	return nil
}

// Equal reports whether both parameters match numerically.
func (c Config) Equal(other Config) bool {
	return c.KilosPerTray.Equal(other.KilosPerTray) && c.PricePerKilo.Equal(other.PricePerKilo)
}

// Stored is the persisted configuration with its provenance.
type Stored struct {
	Config
	UpdatedAt time.Time  `json:"updatedAt"`
	UpdatedBy *uuid.UUID `json:"updatedBy,omitempty"`
	IsDefault bool       `json:"isDefault"`
}
