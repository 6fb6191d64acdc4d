// Package metrics exposes service counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shadowvest"

// Error categories.
const (
	CategoryAPI     = "api"
	CategoryCrypto  = "crypto"
	CategoryStorage = "storage"
)

// Metrics owns a private registry so tests and multiple services in one
// process do not collide on the global one.
type Metrics struct {
	registry   *prometheus.Registry
	ops        *prometheus.CounterVec
	opLatency  *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	scanned    prometheus.Counter
	matched    prometheus.Counter
	rateLimits prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Service operations by name and result.",
		}, []string{"operation", "result"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by category.",
		}, []string{"category"}),
		scanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_candidates_total",
			Help:      "Candidates checked by the scanner.",
		}),
		matched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_matches_total",
			Help:      "Candidates owned by the scanning meta-address.",
		}),
		rateLimits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_rate_limited_total",
			Help:      "RPC requests rejected by the rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.ops, m.opLatency, m.errors, m.scanned, m.matched, m.rateLimits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordOp counts one call of operation and observes its latency.
func (m *Metrics) RecordOp(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ops.WithLabelValues(operation, result).Inc()
	m.opLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordError(category string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(category).Inc()
}

func (m *Metrics) RecordScan(scanned, matched int) {
	if m == nil {
		return
	}
	m.scanned.Add(float64(scanned))
	m.matched.Add(float64(matched))
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimits.Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
