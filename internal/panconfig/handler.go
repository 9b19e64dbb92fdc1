package panconfig

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/platform/httpx"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/shared"
)

type configService interface {
	Get(ctx context.Context) (Stored, error)
	Update(ctx context.Context, actor shared.Actor, cfg Config) (Stored, error)
}

// Handler exposes the pricing configuration over HTTP.
type Handler struct {
	logger  *slog.Logger
	service configService
	rbac    rbac.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service configService, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers config routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermConfigView))
		r.Get("/pan", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermConfigEdit))
		r.Put("/pan", h.update)
	})
}

type updateRequest struct {
	KilosPerTray decimal.Decimal `json:"kilosPerTray"`
	PricePerKilo decimal.Decimal `json:"pricePerKilo"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	stored, err := h.service.Get(r.Context())
	if err != nil {
		h.logger.Error("load pan config", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stored)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	stored, err := h.service.Update(r.Context(), actor, Config{KilosPerTray: req.KilosPerTray, PricePerKilo: req.PricePerKilo})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("pan config updated", slog.String("actor_id", actor.ID.String()),
		slog.String("kilos_per_tray", stored.KilosPerTray.String()),
		slog.String("price_per_kilo", stored.PricePerKilo.String()))
	httpx.JSON(w, http.StatusOK, stored)
}
