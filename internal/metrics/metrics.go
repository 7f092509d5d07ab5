// Package metrics exposes Prometheus instrumentation for cleanup runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks cleanup run outcomes.
//
// Metrics:
//   - sweepbot_cleanup_runs_total: run count by status ("completed", "aborted")
//   - sweepbot_cleanup_messages_total: observed messages by disposition
//   - sweepbot_cleanup_run_duration_seconds: run duration histogram
//   - sweepbot_cleanup_last_run_timestamp_seconds: unix time of the last completed run
type Metrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	messagesTotal *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRun       prometheus.Gauge
}

// New creates and registers the cleanup metrics against a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sweepbot",
				Subsystem: "cleanup",
				Name:      "runs_total",
				Help:      "Total number of cleanup runs by final status",
			},
			[]string{"status"},
		),

		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sweepbot",
				Subsystem: "cleanup",
				Name:      "messages_total",
				Help:      "Total number of messages observed by disposition",
			},
			[]string{"disposition"},
		),

		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sweepbot",
				Subsystem: "cleanup",
				Name:      "run_duration_seconds",
				Help:      "Duration of cleanup runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),

		lastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sweepbot",
				Subsystem: "cleanup",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix timestamp of the last completed cleanup run",
			},
		),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.messagesTotal,
		m.runDuration,
		m.lastRun,
		collectors.NewGoCollector(),
	)

	return m
}

// RecordRun records the outcome of one cleanup run.
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	if status == "completed" {
		m.lastRun.SetToCurrentTime()
	}
}

// RecordMessages adds to the per-disposition message counter.
func (m *Metrics) RecordMessages(disposition string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.messagesTotal.WithLabelValues(disposition).Add(float64(count))
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
