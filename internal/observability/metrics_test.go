package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/panaderia/internal/sales"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	body := scrape(t, NewMetrics())
	if !strings.Contains(body, "panaderia_shifts_opened_total 0") {
		t.Fatalf("expected body to contain panaderia_shifts_opened_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "panaderia_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "panaderia_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestMetricsCountDomainEvents(t *testing.T) {
	metrics := NewMetrics()
	ctx := context.Background()

	events := shifts.EventHandlers{metrics}
	_ = events.HandleShiftOpened(ctx, shifts.Shift{})
	_ = events.HandleTrayMoved(ctx, shifts.Increment, shifts.TrayResult{})
	_ = events.HandleTrayMoved(ctx, shifts.Increment, shifts.TrayResult{})
	_ = events.HandleTrayMoved(ctx, shifts.Decrement, shifts.TrayResult{})
	_ = events.HandleShiftClosed(ctx, shifts.Shift{ClosingData: &shifts.ClosingData{
		CashStatus: shifts.CashShort,
		Difference: decimal.NewFromInt(-500),
	}})
	_ = events.HandleShiftsRemoved(ctx, 2)
	_ = metrics.HandleSaleRecorded(ctx, sales.Sale{})

	body := scrape(t, metrics)
	for _, want := range []string{
		"panaderia_shifts_opened_total 1",
		`panaderia_tray_operations_total{direction="increment"} 2`,
		`panaderia_tray_operations_total{direction="decrement"} 1`,
		`panaderia_shifts_closed_total{cash_status="SHORT"} 1`,
		"panaderia_shifts_removed_total 2",
		"panaderia_sales_recorded_total 1",
		"panaderia_cash_difference_count 1",
		"panaderia_cash_difference_sum -500",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}
