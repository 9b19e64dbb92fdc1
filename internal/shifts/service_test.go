package shifts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/panaderia/internal/panconfig"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	shifts  map[uuid.UUID]Shift
	ops     map[string]TrayOperation
	ledgers map[uuid.UUID]Ledger
	closes  int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		shifts:  make(map[uuid.UUID]Shift),
		ops:     make(map[string]TrayOperation),
		ledgers: make(map[uuid.UUID]Ledger),
	}
}

func opKey(shiftID uuid.UUID, opID string) string {
	return shiftID.String() + "/" + opID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	shifts := make(map[uuid.UUID]Shift, len(r.shifts))
	for k, v := range r.shifts {
		shifts[k] = v
	}
	ops := make(map[string]TrayOperation, len(r.ops))
	for k, v := range r.ops {
		ops[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.shifts, r.ops = shifts, ops
		return err
	}
	return nil
}

func (r *memoryRepo) GetShift(ctx context.Context, id uuid.UUID) (Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shifts[id]
	if !ok {
		return Shift{}, ErrShiftNotFound
	}
	return s, nil
}

func (r *memoryRepo) FindOpenShift(ctx context.Context, ownerID uuid.UUID) (Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findOpen(ownerID)
}

func (r *memoryRepo) findOpen(ownerID uuid.UUID) (Shift, error) {
	for _, s := range r.shifts {
		if s.OpenedBy == ownerID && s.Status == StatusOpen {
			return s, nil
		}
	}
	return Shift{}, ErrShiftNotFound
}

func (r *memoryRepo) ListShifts(ctx context.Context, filter ListFilter) ([]Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Shift
	for _, s := range r.shifts {
		if filter.OpenedBy != nil && s.OpenedBy != *filter.OpenedBy {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryRepo) LoadLedger(ctx context.Context, shiftID uuid.UUID) (Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledgers[shiftID], nil
}

func (r *memoryRepo) ListTrayOperations(ctx context.Context, shiftID uuid.UUID) ([]TrayOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TrayOperation
	for _, op := range r.ops {
		if op.ShiftID == shiftID {
			out = append(out, op)
		}
	}
	return out, nil
}

func (tx *memoryTx) FindOpenShift(ctx context.Context, ownerID uuid.UUID) (Shift, error) {
	return tx.repo.findOpen(ownerID)
}

func (tx *memoryTx) InsertShift(ctx context.Context, shift Shift) error {
	if _, err := tx.repo.findOpen(shift.OpenedBy); err == nil {
		return ErrShiftAlreadyOpen
	}
	tx.repo.shifts[shift.ID] = shift
	return nil
}

func (tx *memoryTx) GetShiftForUpdate(ctx context.Context, id uuid.UUID) (Shift, error) {
	s, ok := tx.repo.shifts[id]
	if !ok {
		return Shift{}, ErrShiftNotFound
	}
	return s, nil
}

func (tx *memoryTx) UpdateTrays(ctx context.Context, id uuid.UUID, count int) error {
	s := tx.repo.shifts[id]
	s.TraysRemoved = count
	tx.repo.shifts[id] = s
	return nil
}

func (tx *memoryTx) GetTrayOperation(ctx context.Context, shiftID uuid.UUID, operationID string) (TrayOperation, error) {
	op, ok := tx.repo.ops[opKey(shiftID, operationID)]
	if !ok {
		return TrayOperation{}, ErrTrayOperationNotFound
	}
	return op, nil
}

func (tx *memoryTx) InsertTrayOperation(ctx context.Context, op TrayOperation) error {
	tx.repo.ops[opKey(op.ShiftID, op.OperationID)] = op
	return nil
}

func (tx *memoryTx) LoadLedger(ctx context.Context, shiftID uuid.UUID) (Ledger, error) {
	return tx.repo.ledgers[shiftID], nil
}

func (tx *memoryTx) MarkClosed(ctx context.Context, id uuid.UUID, actor shared.Actor, closedAt time.Time, data ClosingData) error {
	s := tx.repo.shifts[id]
	if s.Status != StatusOpen {
		return ErrShiftAlreadyClosed
	}
	closedBy := actor.ID
	s.Status = StatusClosed
	s.ClosedAt = &closedAt
	s.ClosedBy = &closedBy
	s.ClosedByName = actor.Name
	s.ClosingData = &data
	tx.repo.shifts[id] = s
	tx.repo.closes++
	return nil
}

func (tx *memoryTx) DeleteShift(ctx context.Context, id uuid.UUID) error {
	if _, ok := tx.repo.shifts[id]; !ok {
		return ErrShiftNotFound
	}
	delete(tx.repo.shifts, id)
	delete(tx.repo.ledgers, id)
	return nil
}

func (tx *memoryTx) PurgeHistory(ctx context.Context) (PurgeResult, error) {
	result := PurgeResult{Shifts: int64(len(tx.repo.shifts))}
	for _, l := range tx.repo.ledgers {
		result.Expenses += int64(len(l.Expenses))
		result.SaleItems += int64(len(l.Lines))
		result.Sales += int64(l.SalesCount)
	}
	tx.repo.shifts = map[uuid.UUID]Shift{}
	tx.repo.ledgers = map[uuid.UUID]Ledger{}
	tx.repo.ops = map[string]TrayOperation{}
	return result, nil
}

type staticConfig struct {
	cfg panconfig.Config
}

func (c *staticConfig) Current(ctx context.Context) (panconfig.Config, error) {
	return c.cfg, nil
}

type recordingEvents struct {
	mu      sync.Mutex
	opened  int
	moved   int
	closed  int
	removed int64
}

func (e *recordingEvents) HandleShiftOpened(ctx context.Context, shift Shift) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opened++
	return nil
}

func (e *recordingEvents) HandleTrayMoved(ctx context.Context, direction Direction, result TrayResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moved++
	return nil
}

func (e *recordingEvents) HandleShiftClosed(ctx context.Context, shift Shift) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return errors.New("cache offline")
}

func (e *recordingEvents) HandleShiftsRemoved(ctx context.Context, count int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed += count
	return nil
}

type fixture struct {
	repo   *memoryRepo
	config *staticConfig
	events *recordingEvents
	svc    *Service
	seller shared.Actor
	admin  shared.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cal, err := shared.NewCalendar("America/Santiago")
	require.NoError(t, err)
	repo := newMemoryRepo()
	cfg := &staticConfig{cfg: standardConfig()}
	events := &recordingEvents{}
	svc := NewService(repo, cfg, nil, ServiceConfig{
		Calendar: cal,
		Events:   events,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).WithNow(func() time.Time {
		return time.Date(2024, 5, 15, 13, 0, 0, 0, time.UTC)
	})
	return &fixture{
		repo:   repo,
		config: cfg,
		events: events,
		svc:    svc,
		seller: shared.Actor{ID: uuid.New(), Name: "Rosa", Role: shared.RoleSeller},
		admin:  shared.Actor{ID: uuid.New(), Name: "Jefa", Role: shared.RoleAdmin},
	}
}

func TestOpenShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(10000)})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, shift.Status)
	require.Zero(t, shift.TraysRemoved)
	require.True(t, shift.NonBreadSalesTotal.IsZero())
	require.True(t, shift.ConfigSnapshot.Equal(standardConfig()))
	require.Equal(t, "2024-05-15", shift.Date.Format(time.DateOnly))
	require.Nil(t, shift.ClosedAt)
	require.Nil(t, shift.ClosingData)
	require.Equal(t, 1, f.events.opened)

	current, err := f.svc.CurrentShift(ctx, f.seller)
	require.NoError(t, err)
	require.Equal(t, shift.ID, current.ID)
}

func TestOpenRejectsSecondShiftAndNegativeCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(100)})
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(100)})
	require.ErrorIs(t, err, ErrShiftAlreadyOpen)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, f.repo.shifts, 1)

	_, err = f.svc.Open(ctx, f.admin, OpenInput{OpeningCash: decimal.Zero})
	require.NoError(t, err, "another user may open their own shift")
}

func TestConfigChangeDoesNotAffectOpenShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: decimal.Zero})
	require.NoError(t, err)
	_, err = f.svc.IncrementTray(ctx, f.seller, shift.ID, "")
	require.NoError(t, err)

	f.config.cfg = panconfig.Config{KilosPerTray: d(1), PricePerKilo: d(1)}

	_, agg, err := f.svc.Aggregates(ctx, f.seller, shift.ID)
	require.NoError(t, err)
	requireDecimal(t, 22000, agg.EstimatedBreadRevenue, "bread revenue")
}

func TestTrayCounterNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1000)})
	require.NoError(t, err)

	_, err = f.svc.DecrementTray(ctx, f.seller, shift.ID, "")
	require.ErrorIs(t, err, ErrTrayCountZero)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, f.repo.shifts[shift.ID].TraysRemoved)

	sequence := []Direction{Increment, Increment, Decrement, Decrement, Decrement, Increment, Increment, Increment}
	want := 0
	for _, dir := range sequence {
		var res TrayResult
		if dir == Increment {
			res, err = f.svc.IncrementTray(ctx, f.seller, shift.ID, "")
			want++
		} else {
			res, err = f.svc.DecrementTray(ctx, f.seller, shift.ID, "")
			if want == 0 {
				require.ErrorIs(t, err, ErrTrayCountZero)
				continue
			}
			want--
		}
		require.NoError(t, err)
		require.Equal(t, want, res.TraysRemoved)
	}
	require.Equal(t, 3, f.repo.shifts[shift.ID].TraysRemoved)
}

func TestTrayOperationReplayIsNotReapplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1000)})
	require.NoError(t, err)

	first, err := f.svc.IncrementTray(ctx, f.seller, shift.ID, "tap-1")
	require.NoError(t, err)
	require.Equal(t, 1, first.TraysRemoved)
	require.False(t, first.Replayed)

	again, err := f.svc.IncrementTray(ctx, f.seller, shift.ID, "tap-1")
	require.NoError(t, err)
	require.Equal(t, 1, again.TraysRemoved)
	require.True(t, again.Replayed)
	require.Equal(t, 1, f.repo.shifts[shift.ID].TraysRemoved)
	require.Equal(t, 1, f.events.moved)

	_, err = f.svc.DecrementTray(ctx, f.seller, shift.ID, "tap-1")
	require.ErrorIs(t, err, ErrOperationMismatch)

	history, err := f.svc.TrayHistory(ctx, f.seller, shift.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestTrayOpsRequireOwnedOpenShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1000)})
	require.NoError(t, err)

	_, err = f.svc.IncrementTray(ctx, f.admin, shift.ID, "")
	require.ErrorIs(t, err, ErrShiftNotFound)

	_, err = f.svc.IncrementTray(ctx, f.seller, uuid.New(), "")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.svc.IncrementTray(ctx, f.seller, shift.ID, "before-close")
	require.NoError(t, err)
	_, err = f.svc.Close(ctx, f.seller, shift.ID, CloseInput{CountedCash: d(1000)})
	require.NoError(t, err)

	_, err = f.svc.IncrementTray(ctx, f.seller, shift.ID, "")
	require.ErrorIs(t, err, ErrShiftNotFound)

	replay, err := f.svc.IncrementTray(ctx, f.seller, shift.ID, "before-close")
	require.NoError(t, err, "a retry of an applied movement still reports its result")
	require.True(t, replay.Replayed)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1000)})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.IncrementTray(ctx, f.seller, shift.ID, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	got, err := f.svc.Get(ctx, f.seller, shift.ID)
	require.NoError(t, err)
	require.Equal(t, n, got.TraysRemoved)
}

func TestReferenceScenarioAndClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(10000)})
	require.NoError(t, err)

	// Sales and expenses arrive through their own ledgers.
	f.repo.mu.Lock()
	s := f.repo.shifts[shift.ID]
	s.NonBreadSalesTotal = d(2000)
	f.repo.shifts[shift.ID] = s
	f.repo.ledgers[shift.ID] = Ledger{
		Expenses:   []ExpenseEntry{{Amount: d(500), Origin: OriginGeneral}},
		Lines:      []SaleLine{{CostAtSale: d(1200), Quantity: 1, Subtotal: d(2000)}},
		SalesCount: 1,
	}
	f.repo.mu.Unlock()

	for i := 0; i < 3; i++ {
		_, err := f.svc.IncrementTray(ctx, f.seller, shift.ID, "")
		require.NoError(t, err)
	}

	_, agg, err := f.svc.Aggregates(ctx, f.seller, shift.ID)
	require.NoError(t, err)
	require.Equal(t, 3, agg.TraysRemoved)
	requireDecimal(t, 66000, agg.EstimatedBreadRevenue, "bread revenue")
	requireDecimal(t, 11500, agg.ExpectedCash, "expected cash")
	requireDecimal(t, 800, agg.GrossNonBreadProfit, "gross non-bread")
	requireDecimal(t, 66300, agg.NetProfit, "net")

	closed, err := f.svc.Close(ctx, f.seller, shift.ID, CloseInput{CountedCash: d(11000)})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	requireDecimal(t, -500, closed.ClosingData.Difference, "difference")
	require.Equal(t, CashShort, closed.ClosingData.CashStatus)
	requireDecimal(t, 66300, closed.ClosingData.NetProfit, "frozen net")
	require.Equal(t, 1, f.events.closed, "handler errors do not fail the close")

	_, err = f.svc.Close(ctx, f.seller, shift.ID, CloseInput{CountedCash: d(99999)})
	require.ErrorIs(t, err, ErrShiftAlreadyClosed)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, 1, f.repo.closes)
	requireDecimal(t, 11000, f.repo.shifts[shift.ID].ClosingData.CountedCash, "closing data unchanged")
}

func TestCloseValidatesAndHidesForeignShifts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1000)})
	require.NoError(t, err)

	_, err = f.svc.Close(ctx, f.seller, shift.ID, CloseInput{CountedCash: d(-5)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Close(ctx, f.admin, shift.ID, CloseInput{CountedCash: d(5)})
	require.ErrorIs(t, err, ErrShiftNotFound)

	_, err = f.svc.Close(ctx, f.seller, uuid.New(), CloseInput{CountedCash: d(5)})
	require.ErrorIs(t, err, ErrShiftNotFound)

	_, err = f.svc.Close(ctx, f.seller, shift.ID, CloseInput{CountedCash: d(5), TrayAdjustment: -1})
	require.ErrorIs(t, err, ErrNegativeFinalTrays)
	require.Equal(t, StatusOpen, f.repo.shifts[shift.ID].Status)
}

func TestConcurrentClosesYieldOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1000)})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Close(ctx, f.seller, shift.ID, CloseInput{CountedCash: d(int64(1000 + i))})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)
	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, ErrShiftAlreadyClosed)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, f.repo.closes)
}

func TestVisibilityAndAdminOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := shared.Actor{ID: uuid.New(), Name: "Luis", Role: shared.RoleSeller}
	shift, err := f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1000)})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, other, shift.ID)
	require.ErrorIs(t, err, ErrShiftNotFound)
	_, _, err = f.svc.Aggregates(ctx, f.admin, shift.ID)
	require.NoError(t, err)

	list, err := f.svc.List(ctx, other, ListFilter{})
	require.NoError(t, err)
	require.Empty(t, list)
	list, err = f.svc.List(ctx, f.admin, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.ErrorIs(t, f.svc.Delete(ctx, f.seller, shift.ID), shared.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.admin, shift.ID))
	_, err = f.svc.Get(ctx, f.admin, shift.ID)
	require.ErrorIs(t, err, ErrShiftNotFound)

	_, err = f.svc.Open(ctx, f.seller, OpenInput{OpeningCash: d(1)})
	require.NoError(t, err)
	_, err = f.svc.ResetHistory(ctx, f.seller)
	require.ErrorIs(t, err, ErrAdminRequired)
	result, err := f.svc.ResetHistory(ctx, f.admin)
	require.NoError(t, err)
	require.EqualValues(t, 1, result.Shifts)
	require.EqualValues(t, 2, f.events.removed)
}
