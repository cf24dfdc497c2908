package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "water_explain"

// Metrics holds the Prometheus counters, histograms, and gauges for the explanation pipeline.
type Metrics struct {
	ViolationsSelected   prometheus.Counter
	ExplanationsSaved    prometheus.Counter
	SaveErrors           prometheus.Counter
	ExplanationsComposed *prometheus.CounterVec // labels: source={model,fallback}
	PipelineRunning      prometheus.Gauge

	// Generation service metrics.
	GenerationRequests *prometheus.CounterVec // labels: outcome={success,error,unparsable}
	GenerationDuration prometheus.Histogram
	GenerationEnabled  prometheus.Gauge

	// Run metrics.
	RunDuration     prometheus.Histogram
	RunFailures     prometheus.Counter
	LastRunSuccess  prometheus.Gauge
	EventsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ViolationsSelected,
		m.ExplanationsSaved,
		m.SaveErrors,
		m.ExplanationsComposed,
		m.PipelineRunning,
		m.GenerationRequests,
		m.GenerationDuration,
		m.GenerationEnabled,
		m.RunDuration,
		m.RunFailures,
		m.LastRunSuccess,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ViolationsSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_selected_total",
			Help:      "Total violations selected for explanation.",
		}),
		ExplanationsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_saved_total",
			Help:      "Total explanations persisted (or reported in dry-run mode).",
		}),
		SaveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_errors_total",
			Help:      "Total explanation write failures.",
		}),
		ExplanationsComposed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_composed_total",
			Help:      "Explanations composed by text source.",
		}, []string{"source"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a generation cycle is in progress, 0 otherwise.",
		}),
		GenerationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Text-generation calls by outcome.",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Text-generation call duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		GenerationEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_enabled",
			Help:      "1 when the text-generation service is configured, 0 when only fallbacks are produced.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete select-compose-store cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Cycles aborted by a selection failure.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last completed cycle.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Explanation events written to the event topic.",
		}),
	}
}
