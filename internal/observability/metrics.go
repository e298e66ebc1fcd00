// Package observability collects Prometheus metrics for the HTTP
// surface and the billing workflow.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the registry and the application counters.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	invoicesCreated     prometheus.Counter
	invoicesCancelled   prometheus.Counter
	paymentsRecorded    prometheus.Counter
	allocationConflicts prometheus.Counter
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medilink_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medilink_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	invoicesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medilink_invoices_created_total",
		Help: "Invoices committed by the order workflow.",
	})
	invoicesCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medilink_invoices_cancelled_total",
		Help: "Invoices reversed by cancellation.",
	})
	paymentsRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medilink_payments_recorded_total",
		Help: "Payments applied to invoices.",
	})
	allocationConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medilink_allocation_conflicts_total",
		Help: "Order attempts that exhausted the transaction retry budget.",
	})
	registry.MustRegister(requests, duration, invoicesCreated, invoicesCancelled, paymentsRecorded, allocationConflicts)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		invoicesCreated:     invoicesCreated,
		invoicesCancelled:   invoicesCancelled,
		paymentsRecorded:    paymentsRecorded,
		allocationConflicts: allocationConflicts,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
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

// Registerer exposes the registry for extra metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// InvoiceCreated counts a committed invoice.
func (m *Metrics) InvoiceCreated() {
	if m != nil {
		m.invoicesCreated.Inc()
	}
}

// InvoiceCancelled counts a reversed invoice.
func (m *Metrics) InvoiceCancelled() {
	if m != nil {
		m.invoicesCancelled.Inc()
	}
}

// PaymentRecorded counts an applied payment.
func (m *Metrics) PaymentRecorded() {
	if m != nil {
		m.paymentsRecorded.Inc()
	}
}

// AllocationConflict counts an order attempt that gave up after
// repeated lock conflicts.
func (m *Metrics) AllocationConflict() {
	if m != nil {
		m.allocationConflicts.Inc()
	}
}

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
