// Package metric owns the Prometheus registry for the alert engine. A single
// MetricsRegistry carries the core pipeline metrics plus any component
// specific collectors registered under a "component.metric" key, and the
// Server exposes them over HTTP for scraping.
package metric
