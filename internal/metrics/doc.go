// Package metrics holds the process counters for deflectd and serves them
// in Prometheus text exposition format on GET /metrics.
package metrics
