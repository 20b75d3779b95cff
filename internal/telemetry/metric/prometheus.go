// Package metric provides Prometheus metrics for authctl.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authctl"

// Refresh kinds.
const (
	RefreshActive        = "active"
	RefreshPassiveHeader = "passive_header"
	RefreshPassiveBody   = "passive_body"
	RefreshPreemptive    = "preemptive"
)

// Refresh results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultShared  = "shared" // joined another caller's in-flight refresh
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RefreshTotal    *prometheus.CounterVec
	ForcedLogouts   prometheus.Counter
}

// NewRegistry creates a new metrics registry with Go runtime collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Authenticated API calls by response status (\"error\" for transport failures).",
		}, []string{"status"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of authenticated API calls, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Credential rotations by kind and result.",
		}, []string{"kind", "result"}),
		ForcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because the refresh pathway failed.",
		}),
	}

	r.registry.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.RefreshTotal,
		r.ForcedLogouts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// MustRegister registers additional collectors (e.g. storage gauges).
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	if r == nil {
		return
	}
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}

// ObserveRequest records one authenticated call. status 0 means the call
// failed at the transport level.
func (r *Registry) ObserveRequest(status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.RequestsTotal.WithLabelValues(label).Inc()
	r.RequestDuration.Observe(elapsed.Seconds())
}

// ObserveRefresh records one credential rotation attempt.
func (r *Registry) ObserveRefresh(kind, result string) {
	if r == nil {
		return
	}
	r.RefreshTotal.WithLabelValues(kind, result).Inc()
}

// ObserveForcedLogout records a session cleared after a failed refresh.
func (r *Registry) ObserveForcedLogout() {
	if r == nil {
		return
	}
	r.ForcedLogouts.Inc()
}
