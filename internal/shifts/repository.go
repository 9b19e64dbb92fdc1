package shifts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/panaderia/internal/platform/db"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

// ShiftColumns is the column list understood by ScanShift.
const ShiftColumns = `id, business_date, status, opening_cash, opened_by, opened_by_name, opened_at,
	trays_removed, non_bread_sales_total, config_snapshot, closed_by, closed_by_name, closed_at, closing_data`

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists shifts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	FindOpenShift(ctx context.Context, ownerID uuid.UUID) (Shift, error)
	InsertShift(ctx context.Context, shift Shift) error
	GetShiftForUpdate(ctx context.Context, id uuid.UUID) (Shift, error)
	UpdateTrays(ctx context.Context, id uuid.UUID, count int) error
	GetTrayOperation(ctx context.Context, shiftID uuid.UUID, operationID string) (TrayOperation, error)
	InsertTrayOperation(ctx context.Context, op TrayOperation) error
	LoadLedger(ctx context.Context, shiftID uuid.UUID) (Ledger, error)
	MarkClosed(ctx context.Context, id uuid.UUID, actor shared.Actor, closedAt time.Time, data ClosingData) error
	DeleteShift(ctx context.Context, id uuid.UUID) error
	PurgeHistory(ctx context.Context) (PurgeResult, error)
}

type txRepo struct {
	q Querier
}

// WithTx runs fn inside a transaction that serialises on the locked shift row.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithRowLockTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

// GetShift loads a shift by id.
func (r *Repository) GetShift(ctx context.Context, id uuid.UUID) (Shift, error) {
	return ScanShift(r.pool.QueryRow(ctx, `SELECT `+ShiftColumns+` FROM shifts WHERE id = $1`, id))
}

// FindOpenShift returns the open shift of ownerID.
func (r *Repository) FindOpenShift(ctx context.Context, ownerID uuid.UUID) (Shift, error) {
	return findOpenShift(ctx, r.pool, ownerID)
}

// ListShifts returns shifts newest first.
func (r *Repository) ListShifts(ctx context.Context, filter ListFilter) ([]Shift, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.OpenedBy != nil {
		add("opened_by = $%d", *filter.OpenedBy)
	}
	if !filter.From.IsZero() {
		add("business_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("business_date <= $%d", filter.To)
	}
	query := `SELECT ` + ShiftColumns + ` FROM shifts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	page := shared.NewPage(filter.Page.Limit, filter.Page.Offset)
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(" ORDER BY opened_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Shift
	for rows.Next() {
		shift, err := ScanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, shift)
	}
	return out, rows.Err()
}

// LoadLedger loads the expenses and sale lines of a shift.
func (r *Repository) LoadLedger(ctx context.Context, shiftID uuid.UUID) (Ledger, error) {
	return LoadLedger(ctx, r.pool, shiftID)
}

// ListTrayOperations returns the tray journal oldest first.
func (r *Repository) ListTrayOperations(ctx context.Context, shiftID uuid.UUID) ([]TrayOperation, error) {
	rows, err := r.pool.Query(ctx, `SELECT shift_id, operation_id, delta, resulting_count, actor_id, created_at
		FROM tray_operations WHERE shift_id = $1 ORDER BY created_at, resulting_count`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ops []TrayOperation
	for rows.Next() {
		var op TrayOperation
		if err := rows.Scan(&op.ShiftID, &op.OperationID, &op.Delta, &op.ResultingCount, &op.ActorID, &op.CreatedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (t *txRepo) FindOpenShift(ctx context.Context, ownerID uuid.UUID) (Shift, error) {
	return findOpenShift(ctx, t.q, ownerID)
}

func (t *txRepo) InsertShift(ctx context.Context, shift Shift) error {
	snapshot, err := json.Marshal(shift.ConfigSnapshot)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `INSERT INTO shifts (id, business_date, status, opening_cash, opened_by, opened_by_name, opened_at,
		trays_removed, non_bread_sales_total, config_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		shift.ID, shift.Date, string(shift.Status), shift.OpeningCash, shift.OpenedBy, shift.OpenedByName, shift.OpenedAt,
		shift.TraysRemoved, shift.NonBreadSalesTotal, snapshot)
	if db.IsUniqueViolation(err) {
		return ErrShiftAlreadyOpen
	}
	return err
}

func (t *txRepo) GetShiftForUpdate(ctx context.Context, id uuid.UUID) (Shift, error) {
	return LockShift(ctx, t.q, id)
}

func (t *txRepo) UpdateTrays(ctx context.Context, id uuid.UUID, count int) error {
	_, err := t.q.Exec(ctx, `UPDATE shifts SET trays_removed = $2 WHERE id = $1 AND status = 'OPEN'`, id, count)
	return err
}

func (t *txRepo) GetTrayOperation(ctx context.Context, shiftID uuid.UUID, operationID string) (TrayOperation, error) {
	var op TrayOperation
	err := t.q.QueryRow(ctx, `SELECT shift_id, operation_id, delta, resulting_count, actor_id, created_at
		FROM tray_operations WHERE shift_id = $1 AND operation_id = $2`, shiftID, operationID).
		Scan(&op.ShiftID, &op.OperationID, &op.Delta, &op.ResultingCount, &op.ActorID, &op.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TrayOperation{}, ErrTrayOperationNotFound
	}
	return op, err
}

func (t *txRepo) InsertTrayOperation(ctx context.Context, op TrayOperation) error {
	_, err := t.q.Exec(ctx, `INSERT INTO tray_operations (shift_id, operation_id, delta, resulting_count, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, op.ShiftID, op.OperationID, op.Delta, op.ResultingCount, op.ActorID, op.CreatedAt)
	return err
}

func (t *txRepo) LoadLedger(ctx context.Context, shiftID uuid.UUID) (Ledger, error) {
	return LoadLedger(ctx, t.q, shiftID)
}

func (t *txRepo) MarkClosed(ctx context.Context, id uuid.UUID, actor shared.Actor, closedAt time.Time, data ClosingData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx, `UPDATE shifts
		SET status = 'CLOSED', closed_by = $2, closed_by_name = $3, closed_at = $4, closing_data = $5
		WHERE id = $1 AND status = 'OPEN'`, id, actor.ID, actor.Name, closedAt, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftAlreadyClosed
	}
	return nil
}

func (t *txRepo) DeleteShift(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrShiftNotFound
	}
	return nil
}

func (t *txRepo) PurgeHistory(ctx context.Context) (PurgeResult, error) {
	var result PurgeResult
	steps := []struct {
		sql   string
		count *int64
	}{
		{`DELETE FROM sale_items`, &result.SaleItems},
		{`DELETE FROM sales`, &result.Sales},
		{`DELETE FROM expenses`, &result.Expenses},
		{`DELETE FROM tray_operations`, nil},
		{`DELETE FROM shifts`, &result.Shifts},
	}
	for _, step := range steps {
		tag, err := t.q.Exec(ctx, step.sql)
		if err != nil {
			return PurgeResult{}, err
		}
		if step.count != nil {
			*step.count = tag.RowsAffected()
		}
	}
	return result, nil
}

// LockShift loads a shift with a row lock held until the surrounding transaction ends.
func LockShift(ctx context.Context, q Querier, id uuid.UUID) (Shift, error) {
	return ScanShift(q.QueryRow(ctx, `SELECT `+ShiftColumns+` FROM shifts WHERE id = $1 FOR UPDATE`, id))
}

func findOpenShift(ctx context.Context, q Querier, ownerID uuid.UUID) (Shift, error) {
	return ScanShift(q.QueryRow(ctx, `SELECT `+ShiftColumns+` FROM shifts
		WHERE opened_by = $1 AND status = 'OPEN' ORDER BY opened_at DESC LIMIT 1`, ownerID))
}

// ScanShift reads one row selected with ShiftColumns. pgx.ErrNoRows maps to ErrShiftNotFound.
func ScanShift(row pgx.Row) (Shift, error) {
	var (
		s            Shift
		status       string
		snapshot     []byte
		closedByName *string
		closing      []byte
	)
	err := row.Scan(&s.ID, &s.Date, &status, &s.OpeningCash, &s.OpenedBy, &s.OpenedByName, &s.OpenedAt,
		&s.TraysRemoved, &s.NonBreadSalesTotal, &snapshot, &s.ClosedBy, &closedByName, &s.ClosedAt, &closing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shift{}, ErrShiftNotFound
		}
		return Shift{}, err
	}
	s.Status = Status(status)
	if closedByName != nil {
		s.ClosedByName = *closedByName
	}
	if err := json.Unmarshal(snapshot, &s.ConfigSnapshot); err != nil {
		return Shift{}, fmt.Errorf("shifts: decode config snapshot: %w", err)
	}
	if len(closing) > 0 {
		var data ClosingData
		if err := json.Unmarshal(closing, &data); err != nil {
			return Shift{}, fmt.Errorf("shifts: decode closing data: %w", err)
		}
		s.ClosingData = &data
	}
	return s, nil
}

// LoadLedger reads the expenses and sale lines of a shift through q.
func LoadLedger(ctx context.Context, q Querier, shiftID uuid.UUID) (Ledger, error) {
	var ledger Ledger
	rows, err := q.Query(ctx, `SELECT amount, origin FROM expenses WHERE shift_id = $1`, shiftID)
	if err != nil {
		return Ledger{}, err
	}
	for rows.Next() {
		var (
			e      ExpenseEntry
			origin string
		)
		if err := rows.Scan(&e.Amount, &origin); err != nil {
			rows.Close()
			return Ledger{}, err
		}
		e.Origin = Origin(origin)
		ledger.Expenses = append(ledger.Expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Ledger{}, err
	}

	rows, err = q.Query(ctx, `SELECT si.product_id, si.cost_at_sale, si.quantity, si.subtotal
		FROM sale_items si JOIN sales s ON s.id = si.sale_id
		WHERE s.shift_id = $1`, shiftID)
	if err != nil {
		return Ledger{}, err
	}
	for rows.Next() {
		var line SaleLine
		if err := rows.Scan(&line.ProductID, &line.CostAtSale, &line.Quantity, &line.Subtotal); err != nil {
			rows.Close()
			return Ledger{}, err
		}
		ledger.Lines = append(ledger.Lines, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Ledger{}, err
	}

	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE shift_id = $1`, shiftID).Scan(&ledger.SalesCount); err != nil {
		return Ledger{}, err
	}
	return ledger, nil
}
