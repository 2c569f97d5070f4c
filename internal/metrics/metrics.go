package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	ReceiptsValidated  *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	ValidationDuration prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReceiptsValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipts_validated_total",
			Help: "Receipt documents validated, by outcome.",
		}, []string{"outcome"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "receipt_validation_failures_total",
			Help: "Rejected receipt documents, by violation kind.",
		}, []string{"kind"}),
		ValidationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "receipt_validation_duration_seconds",
			Help:    "Time spent parsing and validating one document.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.ReceiptsValidated,
		m.ValidationFailures,
		m.ValidationDuration,
		m.HTTPRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAccepted records an accepted document.
func (m *Metrics) ObserveAccepted() {
	m.ReceiptsValidated.WithLabelValues("accepted").Inc()
}

// ObserveRejected records a rejected document and its violation kind.
func (m *Metrics) ObserveRejected(kind string) {
	m.ReceiptsValidated.WithLabelValues("rejected").Inc()
	m.ValidationFailures.WithLabelValues(kind).Inc()
}
