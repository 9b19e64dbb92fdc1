package panconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/panaderia/internal/shared"
)

// ErrConfigNotFound indicates no configuration row has been stored yet.
var ErrConfigNotFound = fmt.Errorf("panconfig: config %w", shared.ErrNotFound)

// Repository persists the configuration in app_config.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load returns the stored configuration.
func (r *Repository) Load(ctx context.Context) (Stored, error) {
	var (
		raw       []byte
		updatedAt time.Time
		updatedBy *uuid.UUID
	)
	err := r.pool.QueryRow(ctx, `SELECT value, updated_at, updated_by FROM app_config WHERE key = $1`, StorageKey).
		Scan(&raw, &updatedAt, &updatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stored{}, ErrConfigNotFound
		}
		return Stored{}, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Stored{}, fmt.Errorf("panconfig: decode stored value: %w", err)
	}
	return Stored{Config: cfg, UpdatedAt: updatedAt, UpdatedBy: updatedBy}, nil
}

// Save upserts the configuration.
func (r *Repository) Save(ctx context.Context, cfg Config, actorID uuid.UUID, at time.Time) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO app_config (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
		StorageKey, raw, actorID, at)
	return err
}
