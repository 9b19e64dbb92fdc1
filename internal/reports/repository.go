package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

const saleLineSelect = `SELECT si.product_id, si.product_name, si.price_at_sale, si.cost_at_sale, si.quantity, si.subtotal, sh.business_date
	FROM sale_items si
	JOIN sales s ON s.id = si.sale_id
	JOIN shifts sh ON sh.id = s.shift_id`

// Repository reads report inputs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetShift loads one shift.
func (r *Repository) GetShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error) {
	return shifts.ScanShift(r.pool.QueryRow(ctx, `SELECT `+shifts.ShiftColumns+` FROM shifts WHERE id = $1`, id))
}

// LoadLedger loads the expense and sale side of a shift.
func (r *Repository) LoadLedger(ctx context.Context, shiftID uuid.UUID) (shifts.Ledger, error) {
	return shifts.LoadLedger(ctx, r.pool, shiftID)
}

// ListSaleLines returns every item sold during a shift.
func (r *Repository) ListSaleLines(ctx context.Context, shiftID uuid.UUID) ([]SaleLine, error) {
	return r.querySaleLines(ctx, saleLineSelect+` WHERE s.shift_id = $1 ORDER BY s.created_at`, shiftID)
}

// ListClosedSaleLines returns items sold in closed shifts dated within [from, to].
func (r *Repository) ListClosedSaleLines(ctx context.Context, from, to time.Time) ([]SaleLine, error) {
	return r.querySaleLines(ctx, saleLineSelect+`
		WHERE sh.status = 'CLOSED' AND sh.business_date BETWEEN $1 AND $2
		ORDER BY sh.business_date, s.created_at`, from, to)
}

// ClosedShiftsBetween returns every closed shift dated within [from, to].
func (r *Repository) ClosedShiftsBetween(ctx context.Context, from, to time.Time) ([]shifts.Shift, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shifts.ShiftColumns+` FROM shifts
		WHERE status = 'CLOSED' AND business_date BETWEEN $1 AND $2
		ORDER BY business_date, opened_at`, from, to)
	if err != nil {
		return nil, err
	}
	return collectShifts(rows)
}

// ListClosedShifts pages through closed shifts newest first.
func (r *Repository) ListClosedShifts(ctx context.Context, filter HistoryFilter) ([]shifts.Shift, error) {
	conds := []string{"status = 'CLOSED'"}
	var args []any
	if filter.OpenedBy != nil {
		args = append(args, *filter.OpenedBy)
		conds = append(conds, fmt.Sprintf("opened_by = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("business_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("business_date <= $%d", len(args)))
	}
	page := shared.NewPage(filter.Page.Limit, filter.Page.Offset)
	args = append(args, page.Limit, page.Offset)
	query := `SELECT ` + shifts.ShiftColumns + ` FROM shifts WHERE ` + strings.Join(conds, " AND ") +
		fmt.Sprintf(" ORDER BY business_date DESC, closed_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectShifts(rows)
}

func (r *Repository) querySaleLines(ctx context.Context, query string, args ...any) ([]SaleLine, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []SaleLine
	for rows.Next() {
		var line SaleLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Price, &line.Cost, &line.Quantity, &line.Subtotal, &line.Date); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func collectShifts(rows pgx.Rows) ([]shifts.Shift, error) {
	defer rows.Close()
	out := make([]shifts.Shift, 0)
	for rows.Next() {
		shift, err := shifts.ScanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, shift)
	}
	return out, rows.Err()
}
