package expenses

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/platform/httpx"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

type expenseService interface {
	Record(ctx context.Context, actor shared.Actor, shiftID uuid.UUID, in RecordInput, idempotencyKey string) (Expense, error)
	ListByShift(ctx context.Context, actor shared.Actor, shiftID uuid.UUID) ([]Expense, error)
	Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error
}

// Handler exposes the expense ledger.
type Handler struct {
	logger  *slog.Logger
	service expenseService
	rbac    rbac.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service expenseService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountShiftRoutes registers the per-shift expense routes under /shifts.
func (h *Handler) MountShiftRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermShiftsOperate))
		r.Get("/{id}/expenses", h.list)
		r.Post("/{id}/expenses", h.create)
	})
}

// MountRoutes registers routes under /expenses.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermShiftsOperate))
		r.Delete("/{id}", h.delete)
	})
}

type createRequest struct {
	Description string          `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal `json:"amount"`
	Origin      string          `json:"origin" validate:"required"`
}

type listResponse struct {
	Expenses []Expense `json:"expenses"`
	Totals   Totals    `json:"totals"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, shiftID, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	origin, err := shifts.ParseOrigin(req.Origin)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	expense, err := h.service.Record(r.Context(), actor, shiftID, RecordInput{
		Description: req.Description,
		Amount:      req.Amount,
		Origin:      origin,
	}, r.Header.Get(shared.IdempotencyHeader))
	if err != nil {
		h.respondError(w, "record expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, shiftID, ok := actorAndID(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByShift(r.Context(), actor, shiftID)
	if err != nil {
		h.respondError(w, "list expenses", err)
		return
	}
	if list == nil {
		list = []Expense{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Expenses: list, Totals: Summarize(list)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, "delete expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actorAndID(w http.ResponseWriter, r *http.Request) (shared.Actor, uuid.UUID, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return shared.Actor{}, uuid.Nil, false
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
