package expenses

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/panaderia/internal/platform/db"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

const expenseColumns = `id, shift_id, description, amount, origin, created_by, created_at`

// Repository persists expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the writes that run under a shift row lock.
type TxRepository interface {
	LockShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error)
	Insert(ctx context.Context, e Expense) error
	Get(ctx context.Context, id uuid.UUID) (Expense, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type txRepo struct {
	q shifts.Querier
}

// WithTx runs fn inside a transaction that serialises on the locked shift row.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithRowLockTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

// GetShift loads the shift an expense belongs to.
func (r *Repository) GetShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error) {
	return shifts.ScanShift(r.pool.QueryRow(ctx, `SELECT `+shifts.ShiftColumns+` FROM shifts WHERE id = $1`, id))
}

// ListByShift returns the expenses of a shift, oldest first.
func (r *Repository) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE shift_id = $1 ORDER BY created_at, id`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *txRepo) LockShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error) {
	return shifts.LockShift(ctx, t.q, id)
}

func (t *txRepo) Insert(ctx context.Context, e Expense) error {
	_, err := t.q.Exec(ctx, `INSERT INTO expenses (`+expenseColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ShiftID, e.Description, e.Amount, string(e.Origin), e.CreatedBy, e.CreatedAt)
	return err
}

func (t *txRepo) Get(ctx context.Context, id uuid.UUID) (Expense, error) {
	e, err := scanExpense(t.q.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrExpenseNotFound
	}
	return e, err
}

func (t *txRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func scanExpense(row pgx.Row) (Expense, error) {
	var (
		e      Expense
		origin string
	)
	if err := row.Scan(&e.ID, &e.ShiftID, &e.Description, &e.Amount, &origin, &e.CreatedBy, &e.CreatedAt); err != nil {
		return Expense{}, err
	}
	e.Origin = shifts.Origin(origin)
	return e, nil
}
