// Package observability exposes the Prometheus metric surface.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the application's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	paymentsVerified  *prometheus.CounterVec
	allocationsTotal  prometheus.Counter
	quotationsExpired prometheus.Counter
	overpaymentsTotal prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voyagecrm_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voyagecrm_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	paymentsVerified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voyagecrm_payments_verified_total",
		Help: "Payments that completed a verification stage.",
	}, []string{"stage"})
	allocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voyagecrm_allocations_total",
		Help: "Allocation rows written against installments.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voyagecrm_quotations_expired_total",
		Help: "Quotations flipped to EXPIRED by the sweep or lazy evaluation.",
	})
	overpayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voyagecrm_overpayments_total",
		Help: "Verification attempts refused because the payment exceeded the outstanding balance.",
	})
	registry.MustRegister(requests, duration, paymentsVerified, allocations, expired, overpayments)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		paymentsVerified:  paymentsVerified,
		allocationsTotal:  allocations,
		quotationsExpired: expired,
		overpaymentsTotal: overpayments,
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

// PaymentVerified counts a completed verification stage.
func (m *Metrics) PaymentVerified(stage string) {
	if m == nil {
		return
	}
	m.paymentsVerified.WithLabelValues(stage).Inc()
}

// AllocationsWritten counts allocation rows persisted.
func (m *Metrics) AllocationsWritten(n int) {
	if m == nil {
		return
	}
	m.allocationsTotal.Add(float64(n))
}

// QuotationExpired counts a quotation flipped to EXPIRED.
func (m *Metrics) QuotationExpired() {
	if m == nil {
		return
	}
	m.quotationsExpired.Inc()
}

// OverpaymentRefused counts a verification refused for overpayment.
func (m *Metrics) OverpaymentRefused() {
	if m == nil {
		return
	}
	m.overpaymentsTotal.Inc()
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
