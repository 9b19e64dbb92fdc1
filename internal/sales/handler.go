package sales

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/panaderia/internal/platform/httpx"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

type saleService interface {
	Record(ctx context.Context, actor shared.Actor, shiftID uuid.UUID, in RecordInput, idempotencyKey string) (Sale, error)
	ListByShift(ctx context.Context, actor shared.Actor, shiftID uuid.UUID) ([]Sale, error)
	Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error
}

// Handler exposes the sales ledger.
type Handler struct {
	logger  *slog.Logger
	service saleService
	rbac    rbac.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service saleService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountShiftRoutes registers the per-shift sale routes under /shifts.
func (h *Handler) MountShiftRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesRecord))
		r.Get("/{id}/sales", h.list)
		r.Post("/{id}/sales", h.create)
	})
}

// MountRoutes registers routes under /sales.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesDelete))
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, shiftID, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req RecordInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Record(r.Context(), actor, shiftID, req, r.Header.Get(shared.IdempotencyHeader))
	if err != nil {
		h.respondError(w, "record sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, shiftID, ok := actorAndID(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByShift(r.Context(), actor, shiftID)
	if err != nil {
		h.respondError(w, "list sales", err)
		return
	}
	if list == nil {
		list = []Sale{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, "delete sale", err)
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
