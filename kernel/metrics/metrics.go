// Package metrics registers the engine's ambient Prometheus collectors:
// job queue depth, per-category outstanding jobs, phase duration, and
// plugin reload counts. None of this is spec-mandated behavior — it is
// the observability surface a production scheduler/job-handler always
// carries regardless of what feature work is in scope.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine publishes, registered once
// into the Registry passed to New.
type Metrics struct {
	JobQueueDepth       *prometheus.GaugeVec
	CategoryOutstanding prometheus.Gauge
	PhaseDuration       *prometheus.HistogramVec
	PluginReloads       prometheus.Counter
	PluginLoadFailures  prometheus.Counter
}

// New creates and registers every collector against reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		JobQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kestrel",
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Number of jobs currently queued, by priority.",
		}, []string{"priority"}),
		CategoryOutstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kestrel",
			Subsystem: "jobs",
			Name:      "categories_outstanding",
			Help:      "Number of job categories with at least one outstanding job.",
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kestrel",
			Subsystem: "scheduler",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of a scheduler sweep, by phase label (\"frame\" covers a whole RunOnce).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		PluginReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "plugin",
			Name:      "reloads_total",
			Help:      "Number of successful hot reloads.",
		}),
		PluginLoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "plugin",
			Name:      "load_failures_total",
			Help:      "Number of plugin load/reload failures.",
		}),
	}

	reg.MustRegister(m.JobQueueDepth, m.CategoryOutstanding, m.PhaseDuration, m.PluginReloads, m.PluginLoadFailures)
	return m
}

// ObservePhase records how long a phase sweep took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}
