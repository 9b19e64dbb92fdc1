package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/panaderia/internal/audit"
	"github.com/odyssey-erp/panaderia/internal/auth"
	"github.com/odyssey-erp/panaderia/internal/catalog"
	"github.com/odyssey-erp/panaderia/internal/expenses"
	"github.com/odyssey-erp/panaderia/internal/observability"
	"github.com/odyssey-erp/panaderia/internal/panconfig"
	"github.com/odyssey-erp/panaderia/internal/platform/httpx"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/reports"
	"github.com/odyssey-erp/panaderia/internal/sales"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
	"github.com/odyssey-erp/panaderia/internal/users"
	"github.com/odyssey-erp/panaderia/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	ConfigHandler      *panconfig.Handler
	CatalogHandler     *catalog.Handler
	ShiftsHandler      *shifts.Handler
	ExpensesHandler    *expenses.Handler
	SalesHandler       *sales.Handler
	ReportsHandler     *reports.Handler
	UsersHandler       *users.Handler
	AuditHandler       *audit.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate)

		if params.ConfigHandler != nil {
			r.Route("/config", params.ConfigHandler.MountRoutes)
		}
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		r.Route("/shifts", func(r chi.Router) {
			if params.ShiftsHandler != nil {
				params.ShiftsHandler.MountRoutes(r)
			}
			if params.ExpensesHandler != nil {
				params.ExpensesHandler.MountShiftRoutes(r)
			}
			if params.SalesHandler != nil {
				params.SalesHandler.MountShiftRoutes(r)
			}
		})
		if params.ExpensesHandler != nil {
			r.Route("/expenses", params.ExpensesHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			r.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.ShiftsHandler != nil {
			r.Route("/admin", params.ShiftsHandler.MountAdminRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAny(shared.PermJobsView))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
