package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const timelineSelect = `SELECT l.occurred_at, l.actor_id, COALESCE(u.name, ''), l.action, l.entity, l.entity_id, l.meta
FROM audit_logs l
LEFT JOIN users u ON u.id = l.actor_id`

// Window returns one page of entries, newest first. Limit 0 returns everything.
func (r *Repository) Window(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !p.From.IsZero() {
		add("l.occurred_at >= $%d", p.From)
	}
	if !p.To.IsZero() {
		add("l.occurred_at < $%d", p.To)
	}
	if p.ActorID != nil {
		add("l.actor_id = $%d", *p.ActorID)
	}
	if p.Entity != "" {
		add("l.entity = $%d", p.Entity)
	}
	if p.Action != "" {
		add("l.action = $%d", p.Action)
	}
	query := timelineSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY l.occurred_at DESC, l.id DESC"
	if p.Limit > 0 {
		args = append(args, p.Limit, p.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRow)
}

func scanRow(row pgx.CollectableRow) (TimelineRow, error) {
	var (
		out   TimelineRow
		actor pgtype.UUID
		meta  []byte
	)
	if err := row.Scan(&out.At, &actor, &out.ActorName, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
		return TimelineRow{}, err
	}
	if actor.Valid {
		id := uuid.UUID(actor.Bytes)
		out.ActorID = &id
	}
	if len(meta) > 0 && string(meta) != "null" {
		if err := json.Unmarshal(meta, &out.Meta); err != nil {
			return TimelineRow{}, fmt.Errorf("audit: decode meta: %w", err)
		}
	}
	return out, nil
}
