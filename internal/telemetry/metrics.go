package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	CarrierErrors       *prometheus.CounterVec
	WebhookEvents       *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	OrderLookupRetries  prometheus.Counter
}

// NewMetrics creates Prometheus metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendcloud_fulfillment_requests_total",
				Help: "Total number of fulfillment operations by operation, provider, and status",
			},
			[]string{"operation", "provider", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sendcloud_fulfillment_request_duration_seconds",
				Help:    "Fulfillment operation duration in seconds by operation and provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "provider"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendcloud_fulfillment_carrier_errors_total",
				Help: "Total carrier API errors by provider and error type",
			},
			[]string{"provider", "error_type"},
		),
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendcloud_fulfillment_webhook_events_total",
				Help: "Total carrier webhook events by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendcloud_fulfillment_http_requests_total",
				Help: "Total inbound HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sendcloud_fulfillment_http_request_duration_seconds",
				Help:    "Inbound HTTP request duration in seconds by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		OrderLookupRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sendcloud_fulfillment_order_lookup_retries_total",
				Help: "Total retried host-platform order lookups",
			},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, provider, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, provider, status).Inc()
	m.RequestDuration.WithLabelValues(operation, provider).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(provider, errorType string) {
	m.CarrierErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordWebhook records a dispatched webhook event.
func (m *Metrics) RecordWebhook(action, outcome string) {
	m.WebhookEvents.WithLabelValues(action, outcome).Inc()
}

// RecordHTTP records an inbound HTTP request.
func (m *Metrics) RecordHTTP(method, route, code string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}
