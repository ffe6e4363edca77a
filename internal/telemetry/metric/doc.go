// Package metric provides Prometheus metrics for goudanet.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, netcode counters and HTTP handler
//   - collector.go: Custom collector sampling live session status
//
// Metrics include:
//
//   - Frames advanced, rollbacks and rollback depth
//   - Predicted inputs and prediction stalls
//   - Dropped datagrams and discovery messages by result
//   - Confirmed frame and frame advantage gauges
//
// Metrics are exposed at /metrics in Prometheus format. A nil *Registry is
// valid and records nothing.
package metric
