package shifts

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/platform/httpx"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

type shiftService interface {
	Open(ctx context.Context, actor shared.Actor, in OpenInput) (Shift, error)
	CurrentShift(ctx context.Context, actor shared.Actor) (Shift, error)
	Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (Shift, error)
	IncrementTray(ctx context.Context, actor shared.Actor, id uuid.UUID, operationID string) (TrayResult, error)
	DecrementTray(ctx context.Context, actor shared.Actor, id uuid.UUID, operationID string) (TrayResult, error)
	Aggregates(ctx context.Context, actor shared.Actor, id uuid.UUID) (Shift, Aggregates, error)
	Close(ctx context.Context, actor shared.Actor, id uuid.UUID, in CloseInput) (Shift, error)
	List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Shift, error)
	TrayHistory(ctx context.Context, actor shared.Actor, id uuid.UUID) ([]TrayOperation, error)
	Delete(ctx context.Context, actor shared.Actor, id uuid.UUID) error
	ResetHistory(ctx context.Context, actor shared.Actor) (PurgeResult, error)
}

// Handler exposes shift endpoints.
type Handler struct {
	logger  *slog.Logger
	service shiftService
	rbac    rbac.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service shiftService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers shift routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermShiftsOperate))
		r.Get("/", h.list)
		r.Post("/", h.open)
		r.Get("/current", h.current)
		r.Get("/{id}", h.get)
		r.Get("/{id}/aggregates", h.aggregates)
		r.Get("/{id}/trays", h.trayHistory)
		r.Post("/{id}/trays/increment", h.increment)
		r.Post("/{id}/trays/decrement", h.decrement)
		r.Post("/{id}/close", h.close)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermShiftsAdmin))
		r.Delete("/{id}", h.delete)
	})
}

// MountAdminRoutes registers the history reset under the admin prefix.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermShiftsAdmin))
		r.Delete("/history", h.reset)
	})
}

type openRequest struct {
	OpeningCash *decimal.Decimal `json:"openingCash"`
}

type trayRequest struct {
	OperationID string `json:"operationId" validate:"omitempty,max=128"`
}

type closeRequest struct {
	CountedCash          *decimal.Decimal `json:"countedCash"`
	TrayAdjustment       int              `json:"trayAdjustment"`
	TrayAdjustmentReason string           `json:"trayAdjustmentReason" validate:"omitempty,max=500"`
}

type aggregatesResponse struct {
	Shift      Shift      `json:"shift"`
	Aggregates Aggregates `json:"aggregates"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.OpeningCash == nil {
		httpx.RespondError(w, httpx.ValidationError("openingCash is required"))
		return
	}
	shift, err := h.service.Open(r.Context(), actor, OpenInput{OpeningCash: *req.OpeningCash})
	if err != nil {
		h.respondError(w, "open shift", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shift)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	shift, err := h.service.CurrentShift(r.Context(), actor)
	if err != nil {
		h.respondError(w, "current shift", err)
		return
	}
	shift, agg, err := h.service.Aggregates(r.Context(), actor, shift.ID)
	if err != nil {
		h.respondError(w, "current shift aggregates", err)
		return
	}
	httpx.JSON(w, http.StatusOK, aggregatesResponse{Shift: shift, Aggregates: agg})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	shift, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "get shift", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shift)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	shifts, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, "list shifts", err)
		return
	}
	if shifts == nil {
		shifts = []Shift{}
	}
	httpx.JSON(w, http.StatusOK, shifts)
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	h.moveTray(w, r, Increment)
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	h.moveTray(w, r, Decrement)
}

func (h *Handler) moveTray(w http.ResponseWriter, r *http.Request, direction Direction) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req trayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.OperationID == "" {
		req.OperationID = r.Header.Get(shared.IdempotencyHeader)
	}
	move := h.service.IncrementTray
	if direction == Decrement {
		move = h.service.DecrementTray
	}
	result, err := move(r.Context(), actor, id, req.OperationID)
	if err != nil {
		h.respondError(w, "tray "+direction.String(), err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) aggregates(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	shift, agg, err := h.service.Aggregates(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "shift aggregates", err)
		return
	}
	httpx.JSON(w, http.StatusOK, aggregatesResponse{Shift: shift, Aggregates: agg})
}

func (h *Handler) trayHistory(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	ops, err := h.service.TrayHistory(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "tray history", err)
		return
	}
	if ops == nil {
		ops = []TrayOperation{}
	}
	httpx.JSON(w, http.StatusOK, ops)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	// A missing count would close the shift against zero cash, which cannot be undone.
	if req.CountedCash == nil {
		httpx.RespondError(w, httpx.ValidationError("countedCash is required"))
		return
	}
	shift, err := h.service.Close(r.Context(), actor, id, CloseInput{
		CountedCash:          *req.CountedCash,
		TrayAdjustment:       req.TrayAdjustment,
		TrayAdjustmentReason: strings.TrimSpace(req.TrayAdjustmentReason),
	})
	if err != nil {
		h.respondError(w, "close shift", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shift)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, "delete shift", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	result, err := h.service.ResetHistory(r.Context(), actor)
	if err != nil {
		h.respondError(w, "reset history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	if raw := strings.ToUpper(strings.TrimSpace(q.Get("status"))); raw != "" {
		status := Status(raw)
		if status != StatusOpen && status != StatusClosed {
			return ListFilter{}, httpx.ValidationError("status must be OPEN or CLOSED")
		}
		filter.Status = status
	}
	var err error
	if filter.From, err = parseDay(q.Get("from")); err != nil {
		return ListFilter{}, err
	}
	if filter.To, err = parseDay(q.Get("to")); err != nil {
		return ListFilter{}, err
	}
	limit, err := httpx.IntQuery(r, "limit", 0)
	if err != nil {
		return ListFilter{}, err
	}
	offset, err := httpx.IntQuery(r, "offset", 0)
	if err != nil {
		return ListFilter{}, err
	}
	filter.Page = shared.NewPage(limit, offset)
	return filter, nil
}

func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, httpx.ValidationError("dates must be YYYY-MM-DD")
	}
	return t, nil
}

func requireActor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
	}
	return actor, ok
}

func actorAndID(w http.ResponseWriter, r *http.Request) (shared.Actor, uuid.UUID, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return shared.Actor{}, uuid.Nil, false
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
