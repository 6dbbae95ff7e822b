package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the core pipeline metrics every deployment exports.
type Metrics struct {
	EventsObserved     *prometheus.CounterVec
	AlertsMatched      *prometheus.CounterVec
	AlertsDispatched   *prometheus.CounterVec
	AlertsSkipped      *prometheus.CounterVec
	DeliveriesTotal    *prometheus.CounterVec
	DeliveryDuration   *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	RulesActive        prometheus.Gauge
	EventBusConnected  prometheus.Gauge
	EventBusReconnects prometheus.Counter
}

// NewMetrics creates the core metric set. Collectors are registered by the
// registry, not here.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertstream_events_observed_total",
			Help: "Events seen by the interceptor, by trigger",
		}, []string{"trigger"}),
		AlertsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertstream_alerts_matched_total",
			Help: "Rule matches, by trigger",
		}, []string{"trigger"}),
		AlertsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertstream_alerts_dispatched_total",
			Help: "Alerts that produced at least one delivery, by trigger",
		}, []string{"trigger"}),
		AlertsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertstream_alerts_skipped_total",
			Help: "Alerts skipped before delivery, by reason",
		}, []string{"reason"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertstream_deliveries_total",
			Help: "Delivery attempts, by transport and outcome",
		}, []string{"transport", "outcome"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alertstream_delivery_duration_seconds",
			Help:    "Delivery latency, by transport",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertstream_errors_total",
			Help: "Errors, by component and class",
		}, []string{"component", "class"}),
		RulesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertstream_rules_active",
			Help: "Alert rules currently loaded",
		}),
		EventBusConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertstream_eventbus_connected",
			Help: "1 when the external event feed is connected",
		}),
		EventBusReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertstream_eventbus_reconnects_total",
			Help: "Reconnects to the external event feed",
		}),
	}
}

// RecordError bumps the error counter for a component/class pair.
func (m *Metrics) RecordError(component, class string) {
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordDelivery records one delivery attempt and its latency.
func (m *Metrics) RecordDelivery(transport, outcome string, duration time.Duration) {
	m.DeliveriesTotal.WithLabelValues(transport, outcome).Inc()
	m.DeliveryDuration.WithLabelValues(transport).Observe(duration.Seconds())
}
