// Package metrics exposes import counters and timings for Prometheus.
//
// A nil *Metrics is valid and records nothing, so components take one
// optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ffiload"

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry *prometheus.Registry

	rowsWritten  *prometheus.CounterVec
	rowsExisting *prometheus.CounterVec
	tableFailed  *prometheus.CounterVec
	files        *prometheus.CounterVec
	duration     prometheus.Histogram
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows appended to the store, per table.",
		}, []string{"table"}),
		rowsExisting: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_existing_total",
			Help:      "Incoming rows skipped because their key already exists, per table.",
		}, []string{"table"}),
		tableFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_failures_total",
			Help:      "Tables whose insertion was abandoned, by reason.",
		}, []string{"table", "reason"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Export files processed, by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of one file import.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.rowsWritten, m.rowsExisting, m.tableFailed, m.files, m.duration)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RowsWritten(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsWritten.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) RowsExisting(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsExisting.WithLabelValues(table).Add(float64(n))
}

// TableFailed counts an abandoned table; reason is an error kind name.
func (m *Metrics) TableFailed(table, reason string) {
	if m == nil {
		return
	}
	m.tableFailed.WithLabelValues(table, reason).Inc()
}

// FileDone records one processed file.
func (m *Metrics) FileDone(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}
