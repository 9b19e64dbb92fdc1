package sales

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

const idempotencyModule = "sales"

// RepositoryPort abstracts persistence for Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error)
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]Sale, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort reserves client request keys.
type IdempotencyPort interface {
	Guard(ctx context.Context, module string, actorID uuid.UUID, key string) (func(), error)
}

// EventHandler reacts to committed sales changes.
type EventHandler interface {
	HandleSaleRecorded(ctx context.Context, sale Sale) error
	HandleSaleDeleted(ctx context.Context, sale Sale) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit       AuditPort
	Idempotency IdempotencyPort
	Events      EventHandler
	Logger      *slog.Logger
}

// Service records non-bread sales and keeps the shift's running total in step.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	idem   IdempotencyPort
	events EventHandler
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  cfg.Audit,
		idem:   cfg.Idempotency,
		events: cfg.Events,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Record prices the requested items from the catalog, stores the sale and
// adds its total to the shift in one transaction. The shift must be open.
func (s *Service) Record(ctx context.Context, actor shared.Actor, shiftID uuid.UUID, in RecordInput, idempotencyKey string) (Sale, error) {
	if err := in.Validate(); err != nil {
		return Sale{}, err
	}
	release := func() {}
	if s.idem != nil {
		var err error
		release, err = s.idem.Guard(ctx, idempotencyModule, actor.ID, idempotencyKey)
		if err != nil {
			return Sale{}, err
		}
	}
	sale := Sale{
		ID:         uuid.New(),
		ShiftID:    shiftID,
		SoldBy:     actor.ID,
		SoldByName: actor.Name,
		CreatedAt:  s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.LockShift(ctx, shiftID)
		if err != nil {
			return err
		}
		if !shift.IsOpen() {
			return shifts.ErrShiftNotFound
		}
		products, err := tx.LoadProducts(ctx, in.ProductIDs())
		if err != nil {
			return err
		}
		items, total, err := BuildItems(sale.ID, in, products)
		if err != nil {
			return err
		}
		sale.Items = items
		sale.Total = total
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		return tx.AdjustSalesTotal(ctx, shiftID, total)
	})
	if err != nil {
		release()
		return Sale{}, err
	}
	s.record(ctx, actor, "sale:create", sale.ID, map[string]any{
		"shift_id": shiftID.String(),
		"total":    sale.Total.String(),
		"items":    len(sale.Items),
	})
	s.emit(ctx, "sale recorded", func(ctx context.Context, h EventHandler) error { return h.HandleSaleRecorded(ctx, sale) })
	s.logger.Info("sale recorded",
		slog.String("shift_id", shiftID.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.String("total", sale.Total.String()),
		slog.Int("count", len(sale.Items)))
	return sale, nil
}

// ListByShift returns the sales of a shift visible to actor.
func (s *Service) ListByShift(ctx context.Context, actor shared.Actor, shiftID uuid.UUID) ([]Sale, error) {
	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if !shift.OwnedBy(actor.ID) && !actor.IsAdmin() {
		return nil, shifts.ErrShiftNotFound
	}
	return s.repo.ListByShift(ctx, shiftID)
}

// Delete removes a sale and subtracts its total from the shift, never below
// zero. Admin only, and only while the shift is open.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrAdminRequired
	}
	var removed Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSale(ctx, id)
		if err != nil {
			return err
		}
		shift, err := tx.LockShift(ctx, sale.ShiftID)
		if err != nil {
			return err
		}
		if !shift.IsOpen() {
			return shifts.ErrShiftNotFound
		}
		if err := tx.DeleteSale(ctx, id); err != nil {
			return err
		}
		removed = sale
		return tx.AdjustSalesTotal(ctx, sale.ShiftID, sale.Total.Neg())
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "sale:delete", id, map[string]any{
		"shift_id": removed.ShiftID.String(),
		"total":    removed.Total.String(),
	})
	s.emit(ctx, "sale deleted", func(ctx context.Context, h EventHandler) error { return h.HandleSaleDeleted(ctx, removed) })
	s.logger.Warn("sale deleted", slog.String("sale_id", id.String()), slog.String("actor_id", actor.ID.String()))
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "sale",
		EntityID: id.String(),
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
		s.logger.Warn("sale event handler", slog.String("event", name), slog.Any("error", err))
	}
}
