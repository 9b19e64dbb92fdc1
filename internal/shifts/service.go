package shifts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/panconfig"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetShift(ctx context.Context, id uuid.UUID) (Shift, error)
	FindOpenShift(ctx context.Context, ownerID uuid.UUID) (Shift, error)
	ListShifts(ctx context.Context, filter ListFilter) ([]Shift, error)
	LoadLedger(ctx context.Context, shiftID uuid.UUID) (Ledger, error)
	ListTrayOperations(ctx context.Context, shiftID uuid.UUID) ([]TrayOperation, error)
}

// ConfigPort provides the pricing parameters snapshotted at open.
type ConfigPort interface {
	Current(ctx context.Context) (panconfig.Config, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Calendar shared.Calendar
	Locker   CloseLocker
	Events   EventHandler
	Logger   *slog.Logger
}

// Service owns the shift state machine and its reconciliation.
type Service struct {
	repo     RepositoryPort
	config   ConfigPort
	audit    AuditPort
	calendar shared.Calendar
	locker   CloseLocker
	events   EventHandler
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, config ConfigPort, audit AuditPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		config:   config,
		audit:    audit,
		calendar: cfg.Calendar,
		locker:   cfg.Locker,
		events:   cfg.Events,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Open starts a new shift for actor with a frozen copy of the current pricing.
func (s *Service) Open(ctx context.Context, actor shared.Actor, in OpenInput) (Shift, error) {
	if err := in.Validate(); err != nil {
		return Shift{}, err
	}
	cfg, err := s.config.Current(ctx)
	if err != nil {
		return Shift{}, err
	}
	now := s.now()
	shift := Shift{
		ID:                 uuid.New(),
		Date:               s.calendar.BusinessDate(now),
		Status:             StatusOpen,
		OpeningCash:        in.OpeningCash,
		OpenedBy:           actor.ID,
		OpenedByName:       actor.Name,
		OpenedAt:           now.UTC(),
		NonBreadSalesTotal: decimal.Zero,
		ConfigSnapshot:     cfg,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.FindOpenShift(ctx, actor.ID); err == nil {
			return ErrShiftAlreadyOpen
		} else if !errors.Is(err, ErrShiftNotFound) {
			return err
		}
		return tx.InsertShift(ctx, shift)
	})
	if err != nil {
		return Shift{}, err
	}
	s.record(ctx, actor, "shift:open", shift.ID.String(), map[string]any{
		"opening_cash":   shift.OpeningCash.String(),
		"kilos_per_tray": cfg.KilosPerTray.String(),
		"price_per_kilo": cfg.PricePerKilo.String(),
	})
	s.emit(ctx, "shift opened", func(ctx context.Context, h EventHandler) error { return h.HandleShiftOpened(ctx, shift) })
	s.logger.Info("shift opened", slog.String("shift_id", shift.ID.String()), slog.String("actor_id", actor.ID.String()))
	return shift, nil
}

// CurrentShift returns the caller's open shift.
func (s *Service) CurrentShift(ctx context.Context, actor shared.Actor) (Shift, error) {
	return s.repo.FindOpenShift(ctx, actor.ID)
}

// Get returns a shift visible to actor: its owner, or any admin.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (Shift, error) {
	shift, err := s.repo.GetShift(ctx, id)
	if err != nil {
		return Shift{}, err
	}
	if !shift.OwnedBy(actor.ID) && !actor.IsAdmin() {
		return Shift{}, ErrShiftNotFound
	}
	return shift, nil
}

// IncrementTray adds one tray to the shift's counter.
func (s *Service) IncrementTray(ctx context.Context, actor shared.Actor, id uuid.UUID, operationID string) (TrayResult, error) {
	return s.moveTray(ctx, actor, id, Increment, operationID)
}

// DecrementTray removes one tray from the shift's counter. The counter never goes below zero.
func (s *Service) DecrementTray(ctx context.Context, actor shared.Actor, id uuid.UUID, operationID string) (TrayResult, error) {
	return s.moveTray(ctx, actor, id, Decrement, operationID)
}

// moveTray applies exactly one unit delta under a row lock. A non-empty
// operationID already journaled for the shift returns the recorded count
// instead of applying the delta again.
func (s *Service) moveTray(ctx context.Context, actor shared.Actor, id uuid.UUID, direction Direction, operationID string) (TrayResult, error) {
	operationID = strings.TrimSpace(operationID)
	if len(operationID) > maxOperationIDLength {
		return TrayResult{}, ErrInvalidOperationID
	}
	if operationID == "" {
		operationID = uuid.NewString()
	}
	delta := int(direction)
	var result TrayResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !shift.OwnedBy(actor.ID) {
			return ErrShiftNotFound
		}
		prior, err := tx.GetTrayOperation(ctx, id, operationID)
		switch {
		case err == nil:
			if prior.Delta != delta {
				return ErrOperationMismatch
			}
			result = TrayResult{ShiftID: id, OperationID: operationID, TraysRemoved: prior.ResultingCount, Replayed: true}
			return nil
		case !errors.Is(err, ErrTrayOperationNotFound):
			return err
		}
		if !shift.IsOpen() {
			return ErrShiftNotFound
		}
		next := shift.TraysRemoved + delta
		if next < 0 {
			return ErrTrayCountZero
		}
		if err := tx.UpdateTrays(ctx, id, next); err != nil {
			return err
		}
		if err := tx.InsertTrayOperation(ctx, TrayOperation{
			ShiftID:        id,
			OperationID:    operationID,
			Delta:          delta,
			ResultingCount: next,
			ActorID:        actor.ID,
			CreatedAt:      s.now().UTC(),
		}); err != nil {
			return err
		}
		result = TrayResult{ShiftID: id, OperationID: operationID, TraysRemoved: next}
		return nil
	})
	if err != nil {
		return TrayResult{}, err
	}
	if !result.Replayed {
		s.emit(ctx, "tray moved", func(ctx context.Context, h EventHandler) error { return h.HandleTrayMoved(ctx, direction, result) })
		s.logger.Debug("tray moved", slog.String("shift_id", id.String()), slog.String("direction", direction.String()), slog.Int("count", result.TraysRemoved))
	}
	return result, nil
}

// Aggregates recomputes the financial figures of a shift from its current ledger.
func (s *Service) Aggregates(ctx context.Context, actor shared.Actor, id uuid.UUID) (Shift, Aggregates, error) {
	shift, err := s.Get(ctx, actor, id)
	if err != nil {
		return Shift{}, Aggregates{}, err
	}
	ledger, err := s.repo.LoadLedger(ctx, id)
	if err != nil {
		return Shift{}, Aggregates{}, err
	}
	return shift, AggregatesFor(shift, ledger), nil
}

// Close freezes the reconciliation and moves the shift to CLOSED. Only the
// owner may close; a second close fails with ErrShiftAlreadyClosed.
func (s *Service) Close(ctx context.Context, actor shared.Actor, id uuid.UUID, in CloseInput) (Shift, error) {
	if err := in.Validate(); err != nil {
		return Shift{}, err
	}
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, id)
		switch {
		case errors.Is(err, ErrCloseInProgress):
			return Shift{}, err
		case err != nil:
			s.logger.Warn("close lock unavailable, relying on row lock", slog.String("shift_id", id.String()), slog.Any("error", err))
		default:
			defer release()
		}
	}
	var closed Shift
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.GetShiftForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !shift.OwnedBy(actor.ID) {
			return ErrShiftNotFound
		}
		if !shift.IsOpen() {
			return ErrShiftAlreadyClosed
		}
		ledger, err := tx.LoadLedger(ctx, id)
		if err != nil {
			return err
		}
		data, err := BuildClosingData(shift, ledger, in)
		if err != nil {
			return err
		}
		closedAt := s.now().UTC()
		if err := tx.MarkClosed(ctx, id, actor, closedAt, data); err != nil {
			return err
		}
		closedBy := actor.ID
		shift.Status = StatusClosed
		shift.ClosedAt = &closedAt
		shift.ClosedBy = &closedBy
		shift.ClosedByName = actor.Name
		shift.ClosingData = &data
		closed = shift
		return nil
	})
	if err != nil {
		return Shift{}, err
	}
	s.record(ctx, actor, "shift:close", id.String(), map[string]any{
		"counted_cash":    closed.ClosingData.CountedCash.String(),
		"expected_cash":   closed.ClosingData.ExpectedCash.String(),
		"difference":      closed.ClosingData.Difference.String(),
		"tray_adjustment": closed.ClosingData.TrayAdjustment,
		"final_trays":     closed.ClosingData.FinalTrays,
	})
	s.emit(ctx, "shift closed", func(ctx context.Context, h EventHandler) error { return h.HandleShiftClosed(ctx, closed) })
	s.logger.Info("shift closed",
		slog.String("shift_id", id.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.String("difference", closed.ClosingData.Difference.String()),
		slog.String("cash_status", string(closed.ClosingData.CashStatus)))
	return closed, nil
}

// List returns shifts matching filter. Non-admins only see their own.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Shift, error) {
	if !actor.IsAdmin() {
		id := actor.ID
		filter.OpenedBy = &id
	}
	filter.Page = shared.NewPage(filter.Page.Limit, filter.Page.Offset)
	return s.repo.ListShifts(ctx, filter)
}

// TrayHistory returns the journal of tray movements of a shift.
func (s *Service) TrayHistory(ctx context.Context, actor shared.Actor, id uuid.UUID) ([]TrayOperation, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.ListTrayOperations(ctx, id)
}

// Delete removes a shift with its sales, expenses and tray journal. Admin only.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetShiftForUpdate(ctx, id); err != nil {
			return err
		}
		return tx.DeleteShift(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "shift:delete", id.String(), nil)
	s.emit(ctx, "shift deleted", func(ctx context.Context, h EventHandler) error { return h.HandleShiftsRemoved(ctx, 1) })
	s.logger.Warn("shift deleted", slog.String("shift_id", id.String()), slog.String("actor_id", actor.ID.String()))
	return nil
}

// ResetHistory deletes every shift, sale, sale item and expense. Admin only.
func (s *Service) ResetHistory(ctx context.Context, actor shared.Actor) (PurgeResult, error) {
	if !actor.IsAdmin() {
		return PurgeResult{}, ErrAdminRequired
	}
	var result PurgeResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = tx.PurgeHistory(ctx)
		return err
	})
	if err != nil {
		return PurgeResult{}, err
	}
	s.record(ctx, actor, "shift:reset", "all", map[string]any{
		"sales":      result.Sales,
		"sale_items": result.SaleItems,
		"expenses":   result.Expenses,
		"shifts":     result.Shifts,
	})
	s.emit(ctx, "history reset", func(ctx context.Context, h EventHandler) error { return h.HandleShiftsRemoved(ctx, result.Shifts) })
	s.logger.Warn("history reset", slog.String("actor_id", actor.ID.String()), slog.Int64("shifts", result.Shifts))
	return result, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "shift",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) emit(ctx context.Context, name string, fn func(context.Context, EventHandler) error) {
	if s.events == nil {
		return
	}
	if err := fn(ctx, s.events); err != nil {
		s.logger.Warn("shift event handler", slog.String("event", name), slog.Any("error", err))
	}
}
