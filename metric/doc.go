// Package metric provides a Prometheus metrics registry and HTTP exposition
// server for the gateway.
//
// NewMetricsRegistry wraps a *prometheus.Registry and prevents a service from
// accidentally registering the same metric name twice. NewServer exposes the
// registry at /metrics (and a liveness check at /health) over plain HTTP.
package metric
