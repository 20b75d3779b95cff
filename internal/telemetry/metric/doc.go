// Package metric provides Prometheus metrics for authctl.
//
// A Registry owns a private prometheus.Registry so several session
// managers (or tests) never collide on the global default registerer.
// Metrics include:
//
//   - authctl_requests_total / authctl_request_duration_seconds
//   - authctl_refresh_total by refresh kind and result
//   - authctl_forced_logouts_total
//
// All Registry methods accept a nil receiver, which records nothing.
// Metrics are exposed at /metrics by the local gateway.
package metric
