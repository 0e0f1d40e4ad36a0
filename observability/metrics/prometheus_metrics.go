// Package metrics provides the Prometheus collectors behind types.Metrics.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Extraction runs take seconds and relays can take hours.
var durationBuckets = []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 300, 900, 3600}

// PrometheusMetrics implements types.Metrics with five collectors, each
// named <namespace>_<subsystem>_<name>:
//
//	processed_total{status,type}
//	errors_total{error_type,operation}
//	duration_seconds{operation}
//	transfer_bytes{kind}
//	in_progress{operation}
type PrometheusMetrics struct {
	processed  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	transfer   *prometheus.HistogramVec
	inProgress *prometheus.GaugeVec
}

// New registers one component's collectors on reg. It panics when reg
// already holds them.
func New(namespace, subsystem string, reg prometheus.Registerer) *PrometheusMetrics {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}
	}
	histogram := func(name, help string, buckets []float64) prometheus.HistogramOpts {
		o := opts(name, help)
		return prometheus.HistogramOpts{
			Namespace: o.Namespace,
			Subsystem: o.Subsystem,
			Name:      o.Name,
			Help:      o.Help,
			Buckets:   buckets,
		}
	}

	m := &PrometheusMetrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts(opts("processed_total",
			"Operations processed, by status and type.")), []string{"status", "type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts(opts("errors_total",
			"Failed operations, by error type and operation.")), []string{"error_type", "operation"}),
		duration: prometheus.NewHistogramVec(histogram("duration_seconds",
			"Operation duration in seconds.", durationBuckets), []string{"operation"}),
		// 64KiB to 4GiB
		transfer: prometheus.NewHistogramVec(histogram("transfer_bytes",
			"Size of relayed or stored payloads in bytes.", prometheus.ExponentialBuckets(65536, 4, 9)), []string{"kind"}),
		inProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts(opts("in_progress",
			"Operations currently running.")), []string{"operation"}),
	}

	reg.MustRegister(m.processed, m.errors, m.duration, m.transfer, m.inProgress)
	return m
}

// SanitizeName replaces every rune outside [a-zA-Z0-9_] with '_'.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return r
		}
		return '_'
	}, name)
}

func (m *PrometheusMetrics) RecordSuccess(operationType string) {
	m.processed.WithLabelValues("success", operationType).Inc()
}

// RecordError counts the failure in both processed_total and errors_total.
func (m *PrometheusMetrics) RecordError(operationType string, errorType string) {
	m.processed.WithLabelValues("error", operationType).Inc()
	m.errors.WithLabelValues(errorType, operationType).Inc()
}

func (m *PrometheusMetrics) RecordDuration(operation string, duration float64) {
	m.duration.WithLabelValues(operation).Observe(duration)
}

func (m *PrometheusMetrics) RecordBytes(kind string, bytes int64) {
	m.transfer.WithLabelValues(kind).Observe(float64(bytes))
}

func (m *PrometheusMetrics) StartOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) EndOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Dec()
}
