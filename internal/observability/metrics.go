package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	settlementsTotal    *prometheus.CounterVec
	allocatedAmount     prometheus.Counter
	walletCreditAmount  prometheus.Counter
	integrityViolations *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spindle_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spindle_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spindle_settlements_total",
		Help: "Settlement operations by party kind and outcome.",
	}, []string{"kind", "outcome"})
	allocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spindle_settlement_allocated_amount_total",
		Help: "Total amount applied to invoices by the settlement engine.",
	})
	walletCredit := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spindle_settlement_wallet_credit_total",
		Help: "Total overpayment amount credited to party wallets.",
	})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spindle_ledger_integrity_violations_total",
		Help: "Invariant violations detected by the integrity scan.",
	}, []string{"check"})
	registry.MustRegister(requests, duration, settlements, allocated, walletCredit, violations)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		settlementsTotal:    settlements,
		allocatedAmount:     allocated,
		walletCreditAmount:  walletCredit,
		integrityViolations: violations,
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

// Middleware records metrics for every HTTP request.
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

// ObserveSettlement records one settlement outcome.
func (m *Metrics) ObserveSettlement(kind, outcome string, allocated, walletCredit float64) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(kind, outcome).Inc()
	if allocated > 0 {
		m.allocatedAmount.Add(allocated)
	}
	if walletCredit > 0 {
		m.walletCreditAmount.Add(walletCredit)
	}
}

// ObserveIntegrityViolation counts one detected invariant violation.
func (m *Metrics) ObserveIntegrityViolation(check string) {
	if m == nil {
		return
	}
	m.integrityViolations.WithLabelValues(check).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
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
