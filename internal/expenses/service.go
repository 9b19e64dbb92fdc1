package expenses

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

const idempotencyModule = "expenses"

// RepositoryPort abstracts persistence for Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetShift(ctx context.Context, id uuid.UUID) (shifts.Shift, error)
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]Expense, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort reserves client request keys.
type IdempotencyPort interface {
	Guard(ctx context.Context, module string, actorID uuid.UUID, key string) (func(), error)
}

// Service records and removes shift expenses.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	idem   IdempotencyPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. audit and idem may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idem: idem, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Record appends an expense to the caller's open shift.
func (s *Service) Record(ctx context.Context, actor shared.Actor, shiftID uuid.UUID, in RecordInput, idempotencyKey string) (Expense, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return Expense{}, err
	}
	release := func() {}
	if s.idem != nil {
		var err error
		release, err = s.idem.Guard(ctx, idempotencyModule, actor.ID, idempotencyKey)
		if err != nil {
			return Expense{}, err
		}
	}
	expense := Expense{
		ID:          uuid.New(),
		ShiftID:     shiftID,
		Description: in.Description,
		Amount:      in.Amount,
		Origin:      in.Origin,
		CreatedBy:   actor.ID,
		CreatedAt:   s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shift, err := tx.LockShift(ctx, shiftID)
		if err != nil {
			return err
		}
		if !shift.OwnedBy(actor.ID) || !shift.IsOpen() {
			return shifts.ErrShiftNotFound
		}
		return tx.Insert(ctx, expense)
	})
	if err != nil {
		release()
		return Expense{}, err
	}
	s.record(ctx, actor, "expense:create", expense.ID, map[string]any{
		"shift_id": shiftID.String(),
		"amount":   expense.Amount.String(),
		"origin":   string(expense.Origin),
	})
	s.logger.Info("expense recorded",
		slog.String("shift_id", shiftID.String()),
		slog.String("actor_id", actor.ID.String()),
		slog.String("origin", string(expense.Origin)),
		slog.String("amount", expense.Amount.String()))
	return expense, nil
}

// ListByShift returns the expenses of a shift visible to actor.
func (s *Service) ListByShift(ctx context.Context, actor shared.Actor, shiftID uuid.UUID) ([]Expense, error) {
	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if !shift.OwnedBy(actor.ID) && !actor.IsAdmin() {
		return nil, shifts.ErrShiftNotFound
	}
	return s.repo.ListByShift(ctx, shiftID)
}

// Delete removes an expense while its shift is still open. The shift owner
// and admins may delete.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error {
	var removed Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		expense, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		shift, err := tx.LockShift(ctx, expense.ShiftID)
		if err != nil {
			return err
		}
		if !shift.OwnedBy(actor.ID) && !actor.IsAdmin() {
			return ErrExpenseNotFound
		}
		if !shift.IsOpen() {
			return shifts.ErrShiftNotFound
		}
		removed = expense
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "expense:delete", id, map[string]any{
		"shift_id": removed.ShiftID.String(),
		"amount":   removed.Amount.String(),
	})
	s.logger.Info("expense deleted", slog.String("expense_id", id.String()), slog.String("actor_id", actor.ID.String()))
	return nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "expense",
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now().UTC(),
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
