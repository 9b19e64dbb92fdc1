package reports

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/odyssey-erp/panaderia/internal/currency"
	"github.com/odyssey-erp/panaderia/internal/platform/httpx"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

const (
	requestTimeout   = 5 * time.Second
	exportsPerMinute = 10
)

type reportService interface {
	ParseDate(raw string) (time.Time, error)
	ShiftReport(ctx context.Context, actor shared.Actor, id uuid.UUID) (ShiftReport, error)
	ProductsSold(ctx context.Context, actor shared.Actor, id uuid.UUID) ([]ProductSold, error)
	ClosedShifts(ctx context.Context, actor shared.Actor, filter HistoryFilter) ([]shifts.Shift, error)
	PeriodReport(ctx context.Context, kind shared.PeriodKind, ref time.Time) (PeriodReport, error)
	WeeklyProducts(ctx context.Context, ref time.Time) (WeeklyProducts, error)
}

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service reportService
	rbac    rbac.Middleware
	money   currency.Formatter
	bufPool sync.Pool
}

// NewHandler constructs the reports HTTP handler.
func NewHandler(logger *slog.Logger, service reportService, rbac rbac.Middleware, money currency.Formatter) *Handler {
	h := &Handler{logger: logger, service: service, rbac: rbac, money: money}
	h.bufPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportsPerMinute, time.Minute, httprate.WithKeyFuncs(rateLimitKey))
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportsView))
		r.Get("/shifts", h.history)
		r.Get("/shifts/{id}", h.shiftReport)
		r.Get("/shifts/{id}/products", h.productsSold)
		r.Get("/periods/{period}", h.period)
		r.Get("/products/weekly", h.weeklyProducts)
		r.With(limiter).Get("/periods/{period}/export", h.export)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return "actor:" + actor.ID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	filter, err := parseHistoryFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ClosedShifts(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, "closed shifts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) shiftReport(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	report, err := h.service.ShiftReport(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "shift report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) productsSold(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndID(w, r)
	if !ok {
		return
	}
	products, err := h.service.ProductsSold(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "products sold", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}
	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.bufPool.Put(buf)

	if format == FormatXLSX {
		err = WritePeriodXLSX(buf, report, h.money)
	} else {
		err = WritePeriodCSV(buf, report, h.money)
	}
	if err != nil {
		h.respondError(w, "export period", err)
		return
	}
	w.Header().Set("Content-Type", ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+Filename(report, format)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write export", slog.Any("error", err))
	}
}

func (h *Handler) weeklyProducts(w http.ResponseWriter, r *http.Request) {
	ref, err := h.service.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	summary, err := h.service.WeeklyProducts(ctx, ref)
	if err != nil {
		h.respondError(w, "weekly products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) loadPeriod(w http.ResponseWriter, r *http.Request) (PeriodReport, bool) {
	kind, err := shared.ParsePeriodKind(chi.URLParam(r, "period"))
	if err != nil {
		httpx.RespondError(w, err)
		return PeriodReport{}, false
	}
	ref, err := h.service.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.RespondError(w, err)
		return PeriodReport{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.PeriodReport(ctx, kind, ref)
	if err != nil {
		h.respondError(w, "period report", err)
		return PeriodReport{}, false
	}
	return report, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseHistoryFilter(r *http.Request) (HistoryFilter, error) {
	q := r.URL.Query()
	var filter HistoryFilter
	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(q.Get(bound.name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return HistoryFilter{}, httpx.ValidationError(bound.name + " must be YYYY-MM-DD")
		}
		*bound.dst = t
	}
	limit, err := httpx.IntQuery(r, "limit", 0)
	if err != nil {
		return HistoryFilter{}, err
	}
	offset, err := httpx.IntQuery(r, "offset", 0)
	if err != nil {
		return HistoryFilter{}, err
	}
	filter.Page = shared.NewPage(limit, offset)
	return filter, nil
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
