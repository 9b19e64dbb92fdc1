package sales

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/panaderia/internal/catalog"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

type memoryRepo struct {
	mu       sync.Mutex
	shifts   map[uuid.UUID]shifts.Shift
	products map[uuid.UUID]catalog.Product
	sales    map[uuid.UUID]Sale
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		shifts:   map[uuid.UUID]shifts.Shift{},
		products: map[uuid.UUID]catalog.Product{},
		sales:    map[uuid.UUID]Sale{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	shiftsBefore := make(map[uuid.UUID]shifts.Shift, len(r.shifts))
	for k, v := range r.shifts {
		shiftsBefore[k] = v
	}
	salesBefore := make(map[uuid.UUID]Sale, len(r.sales))
	for k, v := range r.sales {
		salesBefore[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.shifts, r.sales = shiftsBefore, salesBefore
		return err
	}
	return nil
}

func (r *memoryRepo) GetShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[id]
	if !ok {
		return shifts.Shift{}, shifts.ErrShiftNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sale
	for _, s := range r.sales {
		if s.ShiftID == shiftID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (tx *memoryTx) LockShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error) {
	s, ok := tx.repo.shifts[id]
	if !ok {
		return shifts.Shift{}, shifts.ErrShiftNotFound
	}
	return s, nil
}

func (tx *memoryTx) LoadProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := map[uuid.UUID]catalog.Product{}
	for _, id := range ids {
		if p, ok := tx.repo.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) error {
	tx.repo.sales[sale.ID] = sale
	return nil
}

func (tx *memoryTx) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	s, ok := tx.repo.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return s, nil
}

func (tx *memoryTx) DeleteSale(ctx context.Context, id uuid.UUID) error {
	delete(tx.repo.sales, id)
	return nil
}

func (tx *memoryTx) AdjustSalesTotal(ctx context.Context, shiftID uuid.UUID, delta decimal.Decimal) error {
	s := tx.repo.shifts[shiftID]
	s.NonBreadSalesTotal = decimal.Max(decimal.Zero, s.NonBreadSalesTotal.Add(delta))
	tx.repo.shifts[shiftID] = s
	return nil
}

type countingEvents struct {
	mu                sync.Mutex
	recorded, deleted int
}

func (c *countingEvents) HandleSaleRecorded(ctx context.Context, sale Sale) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorded++
	return nil
}

func (c *countingEvents) HandleSaleDeleted(ctx context.Context, sale Sale) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted++
	return nil
}

var (
	owner  = shared.Actor{ID: uuid.New(), Name: "Rosa", Role: shared.RoleSeller}
	helper = shared.Actor{ID: uuid.New(), Name: "Luis", Role: shared.RoleSeller}
	admin  = shared.Actor{ID: uuid.New(), Name: "Jefa", Role: shared.RoleAdmin}
)

type fixture struct {
	repo     *memoryRepo
	events   *countingEvents
	svc      *Service
	shift    shifts.Shift
	empanada catalog.Product
	bebida   catalog.Product
}

func newFixture() *fixture {
	repo := newMemoryRepo()
	shift := shifts.Shift{ID: uuid.New(), Status: shifts.StatusOpen, OpenedBy: owner.ID, NonBreadSalesTotal: decimal.Zero}
	repo.shifts[shift.ID] = shift
	empanada := catalog.Product{ID: uuid.New(), Name: "Empanada", Price: decimal.NewFromInt(1500), Cost: decimal.NewFromInt(900), IsActive: true}
	bebida := catalog.Product{ID: uuid.New(), Name: "Bebida", Price: decimal.NewFromInt(1000), Cost: decimal.NewFromInt(600), IsActive: true}
	repo.products[empanada.ID] = empanada
	repo.products[bebida.ID] = bebida
	events := &countingEvents{}
	svc := NewService(repo, ServiceConfig{Events: events, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}).
		WithNow(func() time.Time { return time.Date(2024, 5, 15, 15, 0, 0, 0, time.UTC) })
	return &fixture{repo: repo, events: events, svc: svc, shift: shift, empanada: empanada, bebida: bebida}
}

func TestRecordCapturesCatalogPrices(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sale, err := f.svc.Record(ctx, owner, f.shift.ID, RecordInput{Items: []ItemInput{
		{ProductID: f.empanada.ID, Quantity: 2},
		{ProductID: f.bebida.ID, Quantity: 1},
	}}, "")
	require.NoError(t, err)
	require.Len(t, sale.Items, 2)
	require.True(t, sale.Items[0].Subtotal.Equal(decimal.NewFromInt(3000)))
	require.True(t, sale.Items[0].Cost().Equal(decimal.NewFromInt(1800)))
	require.True(t, sale.Total.Equal(decimal.NewFromInt(4000)))
	require.Equal(t, "Rosa", sale.SoldByName)

	sum := decimal.Zero
	for _, item := range sale.Items {
		sum = sum.Add(item.Subtotal)
		require.True(t, item.Subtotal.Equal(item.PriceAtSale.Mul(decimal.NewFromInt(int64(item.Quantity)))))
	}
	require.True(t, sale.Total.Equal(sum))
	require.True(t, f.repo.shifts[f.shift.ID].NonBreadSalesTotal.Equal(decimal.NewFromInt(4000)))
	require.Equal(t, 1, f.events.recorded)

	// Later catalog edits do not rewrite history.
	p := f.repo.products[f.empanada.ID]
	p.Price = decimal.NewFromInt(9999)
	f.repo.products[p.ID] = p
	require.True(t, f.repo.sales[sale.ID].Items[0].PriceAtSale.Equal(decimal.NewFromInt(1500)))
}

func TestRecordRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inactive := catalog.Product{ID: uuid.New(), Name: "Viejo", Price: decimal.NewFromInt(1), IsActive: false}
	f.repo.products[inactive.ID] = inactive

	_, err := f.svc.Record(ctx, owner, f.shift.ID, RecordInput{}, "")
	require.ErrorIs(t, err, ErrEmptySale)

	_, err = f.svc.Record(ctx, owner, f.shift.ID, RecordInput{Items: []ItemInput{{ProductID: f.empanada.ID, Quantity: 0}}}, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Record(ctx, owner, f.shift.ID, RecordInput{Items: []ItemInput{{ProductID: uuid.New(), Quantity: 1}}}, "")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.Record(ctx, owner, f.shift.ID, RecordInput{Items: []ItemInput{
		{ProductID: f.empanada.ID, Quantity: 1},
		{ProductID: inactive.ID, Quantity: 1},
	}}, "")
	require.ErrorIs(t, err, catalog.ErrProductInactive)

	require.Empty(t, f.repo.sales)
	require.True(t, f.repo.shifts[f.shift.ID].NonBreadSalesTotal.IsZero())
}

func TestRecordRequiresOpenShift(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := RecordInput{Items: []ItemInput{{ProductID: f.bebida.ID, Quantity: 1}}}

	_, err := f.svc.Record(ctx, helper, f.shift.ID, in, "")
	require.NoError(t, err, "any seller may ring up a sale on an open shift")

	s := f.repo.shifts[f.shift.ID]
	s.Status = shifts.StatusClosed
	f.repo.shifts[f.shift.ID] = s
	_, err = f.svc.Record(ctx, owner, f.shift.ID, in, "")
	require.ErrorIs(t, err, shifts.ErrShiftNotFound)
}

func TestConcurrentSalesKeepTotal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Record(ctx, owner, f.shift.ID, RecordInput{Items: []ItemInput{{ProductID: f.bebida.ID, Quantity: 1}}}, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.True(t, f.repo.shifts[f.shift.ID].NonBreadSalesTotal.Equal(decimal.NewFromInt(n*1000)))
}

func TestDeleteSale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sale, err := f.svc.Record(ctx, owner, f.shift.ID, RecordInput{Items: []ItemInput{{ProductID: f.empanada.ID, Quantity: 2}}}, "")
	require.NoError(t, err)
	other, err := f.svc.Record(ctx, owner, f.shift.ID, RecordInput{Items: []ItemInput{{ProductID: f.bebida.ID, Quantity: 1}}}, "")
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Delete(ctx, owner, sale.ID), shared.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, admin, sale.ID))
	require.True(t, f.repo.shifts[f.shift.ID].NonBreadSalesTotal.Equal(decimal.NewFromInt(1000)))
	require.ErrorIs(t, f.svc.Delete(ctx, admin, sale.ID), ErrSaleNotFound)
	require.Equal(t, 1, f.events.deleted)

	// A drifted running total is floored at zero.
	s := f.repo.shifts[f.shift.ID]
	s.NonBreadSalesTotal = decimal.NewFromInt(300)
	f.repo.shifts[f.shift.ID] = s
	require.NoError(t, f.svc.Delete(ctx, admin, other.ID))
	require.True(t, f.repo.shifts[f.shift.ID].NonBreadSalesTotal.IsZero())
}

func TestDeleteSaleOnClosedShiftIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sale, err := f.svc.Record(ctx, owner, f.shift.ID, RecordInput{Items: []ItemInput{{ProductID: f.empanada.ID, Quantity: 1}}}, "")
	require.NoError(t, err)
	s := f.repo.shifts[f.shift.ID]
	s.Status = shifts.StatusClosed
	f.repo.shifts[f.shift.ID] = s

	require.ErrorIs(t, f.svc.Delete(ctx, admin, sale.ID), shared.ErrNotFound)
	require.Contains(t, f.repo.sales, sale.ID)
	require.True(t, f.repo.shifts[f.shift.ID].NonBreadSalesTotal.Equal(decimal.NewFromInt(1500)))
}

func TestCreateHandler(t *testing.T) {
	f := newFixture()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc, rbac.Middleware{})
	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", f.shift.ID.String())
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
		rr := httptest.NewRecorder()
		h.create(rr, req.WithContext(shared.ContextWithActor(ctx, owner)))
		return rr
	}

	rr := send(`{"items":[{"productId":"` + f.empanada.ID.String() + `","quantity":3}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), `"total":"4500"`)

	rr = send(`{"items":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
