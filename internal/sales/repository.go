package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/catalog"
	"github.com/odyssey-erp/panaderia/internal/platform/db"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

const (
	saleColumns = `id, shift_id, total, sold_by, sold_by_name, created_at`
	itemColumns = `id, sale_id, product_id, product_name, price_at_sale, cost_at_sale, quantity, subtotal`

	itemColumnsPrefixed = `si.id, si.sale_id, si.product_id, si.product_name, si.price_at_sale, si.cost_at_sale, si.quantity, si.subtotal`
)

// Repository persists sales in PostgreSQL.
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
	LoadProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
	InsertSale(ctx context.Context, sale Sale) error
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
	DeleteSale(ctx context.Context, id uuid.UUID) error
	AdjustSalesTotal(ctx context.Context, shiftID uuid.UUID, delta decimal.Decimal) error
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

// GetShift loads the shift a sale belongs to.
func (r *Repository) GetShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error) {
	return shifts.ScanShift(r.pool.QueryRow(ctx, `SELECT `+shifts.ShiftColumns+` FROM shifts WHERE id = $1`, id))
}

// ListByShift returns the sales of a shift with their items, oldest first.
func (r *Repository) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales WHERE shift_id = $1 ORDER BY created_at, id`, shiftID)
	if err != nil {
		return nil, err
	}
	var (
		list  []Sale
		index = map[uuid.UUID]int{}
	)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[s.ID] = len(list)
		list = append(list, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	rows, err = r.pool.Query(ctx, `SELECT `+itemColumnsPrefixed+` FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.shift_id = $1 ORDER BY si.product_name, si.id`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[item.SaleID]; ok {
			list[i].Items = append(list[i].Items, item)
		}
	}
	return list, rows.Err()
}

func (t *txRepo) LockShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error) {
	return shifts.LockShift(ctx, t.q, id)
}

func (t *txRepo) LoadProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	rows, err := t.q.Query(ctx, `SELECT `+catalog.ProductColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]catalog.Product, len(ids))
	for rows.Next() {
		p, err := catalog.ScanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *txRepo) InsertSale(ctx context.Context, sale Sale) error {
	if _, err := t.q.Exec(ctx, `INSERT INTO sales (`+saleColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		sale.ID, sale.ShiftID, sale.Total, sale.SoldBy, sale.SoldByName, sale.CreatedAt); err != nil {
		return err
	}
	for _, item := range sale.Items {
		if _, err := t.q.Exec(ctx, `INSERT INTO sale_items (`+itemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.SaleID, item.ProductID, item.ProductName, item.PriceAtSale, item.CostAtSale, item.Quantity, item.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	s, err := scanSale(t.q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	return s, err
}

func (t *txRepo) DeleteSale(ctx context.Context, id uuid.UUID) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// AdjustSalesTotal moves the shift's running sales total by delta, floored at zero.
func (t *txRepo) AdjustSalesTotal(ctx context.Context, shiftID uuid.UUID, delta decimal.Decimal) error {
	_, err := t.q.Exec(ctx, `UPDATE shifts SET non_bread_sales_total = GREATEST(0, non_bread_sales_total + $1) WHERE id = $2`, delta, shiftID)
	return err
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.ShiftID, &s.Total, &s.SoldBy, &s.SoldByName, &s.CreatedAt)
	return s, err
}

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.SaleID, &i.ProductID, &i.ProductName, &i.PriceAtSale, &i.CostAtSale, &i.Quantity, &i.Subtotal)
	return i, err
}
