package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/panaderia/internal/platform/httpx"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

const defaultDays = 7

type timelineService interface {
	Timeline(ctx context.Context, filters TimelineFilters) (Result, error)
	Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Handler serves the audit timeline.
type Handler struct {
	logger   *slog.Logger
	service  timelineService
	rbac     rbac.Middleware
	calendar shared.Calendar
	now      func() time.Time
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service timelineService, rbac rbac.Middleware, calendar shared.Calendar) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, calendar: calendar, now: time.Now}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAuditView))
		r.Get("/", h.timeline)
		r.Get("/export", h.export)
	})
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.respondError(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.respondError(w, "export audit timeline", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if err := WriteCSV(w, rows); err != nil {
		h.logger.Warn("write audit csv", slog.Any("error", err))
	}
}

// parseFilters reads from/to as business days, to inclusive; the default
// window is the last week.
func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now()
	to, err := h.calendar.ParseDate(q.Get("to"), now)
	if err != nil {
		return TimelineFilters{}, err
	}
	from := to.AddDate(0, 0, -defaultDays)
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		if from, err = h.calendar.ParseDate(raw, now); err != nil {
			return TimelineFilters{}, err
		}
	}
	page, err := httpx.IntQuery(r, "page", 1)
	if err != nil {
		return TimelineFilters{}, err
	}
	pageSize, err := httpx.IntQuery(r, "pageSize", defaultPageSize)
	if err != nil {
		return TimelineFilters{}, err
	}
	filters := TimelineFilters{
		From:     from,
		To:       to.AddDate(0, 0, 1),
		Entity:   q.Get("entity"),
		Action:   q.Get("action"),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := strings.TrimSpace(q.Get("actor")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return TimelineFilters{}, httpx.ValidationError("actor must be a uuid")
		}
		filters.ActorID = &id
	}
	return filters, nil
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
