package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/alertstream/errors"
)

// Registrar is what components take when they register their own metrics.
type Registrar interface {
	Register(componentName, metricName string, collector prometheus.Collector) error
	Unregister(componentName, metricName string) bool
}

// MetricsRegistry manages collector registration and carries the core
// pipeline metrics.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	core               *Metrics

	mu         sync.RWMutex
	registered map[string]prometheus.Collector
}

// NewMetricsRegistry creates a registry with the core metrics and Go runtime
// collectors pre-registered.
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		core:               NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	registry.prometheusRegistry.MustRegister(
		registry.core.EventsObserved,
		registry.core.AlertsMatched,
		registry.core.AlertsDispatched,
		registry.core.AlertsSkipped,
		registry.core.DeliveriesTotal,
		registry.core.DeliveryDuration,
		registry.core.ErrorsTotal,
		registry.core.RulesActive,
		registry.core.EventBusConnected,
		registry.core.EventBusReconnects,
	)
	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core pipeline metrics.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.core
}

// Register registers a component collector under "component.metric". A second
// registration of the same key is invalid; a collision inside Prometheus
// itself is fatal unless it is a duplicate collector.
func (r *MetricsRegistry) Register(componentName, metricName string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", componentName, metricName)
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", metricName, componentName),
			"MetricsRegistry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "MetricsRegistry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "register collector with prometheus")
	}

	r.registered[key] = collector
	return nil
}

// Unregister removes a previously registered component collector.
func (r *MetricsRegistry) Unregister(componentName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", componentName, metricName)
	collector, exists := r.registered[key]
	if !exists {
		return false
	}
	if !r.prometheusRegistry.Unregister(collector) {
		return false
	}
	delete(r.registered, key)
	return true
}
