package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/panaderia/internal/sales"
	"github.com/odyssey-erp/panaderia/internal/shifts"
)

// Metrics collects the Prometheus metrics of the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	shiftsOpened    prometheus.Counter
	shiftsClosed    *prometheus.CounterVec
	shiftsRemoved   prometheus.Counter
	trayOperations  *prometheus.CounterVec
	salesRecorded   prometheus.Counter
	salesDeleted    prometheus.Counter
	cashDifference  prometheus.Histogram
}

// NewMetrics initialises the registry with HTTP and domain collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panaderia_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "panaderia_http_request_duration_seconds",
			Help:    "HTTP request duration per route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		shiftsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panaderia_shifts_opened_total",
			Help: "Shifts opened.",
		}),
		shiftsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panaderia_shifts_closed_total",
			Help: "Shifts closed by cash status.",
		}, []string{"cash_status"}),
		shiftsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panaderia_shifts_removed_total",
			Help: "Shifts removed by admin deletion or history reset.",
		}),
		trayOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panaderia_tray_operations_total",
			Help: "Applied tray movements by direction.",
		}, []string{"direction"}),
		salesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panaderia_sales_recorded_total",
			Help: "Sales recorded.",
		}),
		salesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panaderia_sales_deleted_total",
			Help: "Sales deleted by admins.",
		}),
		cashDifference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "panaderia_cash_difference",
			Help:    "Counted minus expected cash at close, in currency units.",
			Buckets: []float64{-20000, -5000, -1000, -100, 0, 100, 1000, 5000, 20000},
		}),
	}
	registry.MustRegister(m.requestsTotal, m.requestDuration, m.shiftsOpened, m.shiftsClosed,
		m.shiftsRemoved, m.trayOperations, m.salesRecorded, m.salesDeleted, m.cashDifference)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// HandleShiftOpened implements shifts.EventHandler.
func (m *Metrics) HandleShiftOpened(context.Context, shifts.Shift) error {
	m.shiftsOpened.Inc()
	return nil
}

// HandleTrayMoved implements shifts.EventHandler.
func (m *Metrics) HandleTrayMoved(_ context.Context, direction shifts.Direction, _ shifts.TrayResult) error {
	m.trayOperations.WithLabelValues(direction.String()).Inc()
	return nil
}

// HandleShiftClosed implements shifts.EventHandler.
func (m *Metrics) HandleShiftClosed(_ context.Context, shift shifts.Shift) error {
	if shift.ClosingData == nil {
		return nil
	}
	m.shiftsClosed.WithLabelValues(string(shift.ClosingData.CashStatus)).Inc()
	m.cashDifference.Observe(shift.ClosingData.Difference.InexactFloat64())
	return nil
}

// HandleShiftsRemoved implements shifts.EventHandler.
func (m *Metrics) HandleShiftsRemoved(_ context.Context, count int64) error {
	m.shiftsRemoved.Add(float64(count))
	return nil
}

// HandleSaleRecorded implements sales.EventHandler.
func (m *Metrics) HandleSaleRecorded(context.Context, sales.Sale) error {
	m.salesRecorded.Inc()
	return nil
}

// HandleSaleDeleted implements sales.EventHandler.
func (m *Metrics) HandleSaleDeleted(context.Context, sales.Sale) error {
	m.salesDeleted.Inc()
	return nil
}

var (
	_ shifts.EventHandler = (*Metrics)(nil)
	_ sales.EventHandler  = (*Metrics)(nil)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
