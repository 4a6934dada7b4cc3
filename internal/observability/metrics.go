package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// analysis pipeline.
type Metrics struct {
	RowsRead        *prometheus.CounterVec // labels: parameter
	RowsDropped     *prometheus.CounterVec // labels: parameter, reason={syntax,fields,station,timestamp,value}
	UnknownStations *prometheus.CounterVec // labels: stage={classify,spatial}

	// Sun-window resolver metrics.
	SunCacheHits   prometheus.Counter
	SunCacheMisses prometheus.Counter
	SunUnresolved  prometheus.Counter

	// Per-stage pipeline metrics.
	StageDuration    *prometheus.HistogramVec // labels: stage
	PipelinesRunning prometheus.Gauge
	PipelineFailures *prometheus.CounterVec // labels: parameter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsDropped,
		m.UnknownStations,
		m.SunCacheHits,
		m.SunCacheMisses,
		m.SunUnresolved,
		m.StageDuration,
		m.PipelinesRunning,
		m.PipelineFailures,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registry registration to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgw_analytics",
			Name:      "rows_read_total",
			Help:      "Observation rows accepted by the loader.",
		}, []string{"parameter"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgw_analytics",
			Name:      "rows_dropped_total",
			Help:      "Malformed rows dropped by the loader.",
		}, []string{"parameter", "reason"}),
		UnknownStations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgw_analytics",
			Name:      "unknown_stations_total",
			Help:      "Lookups against station ids absent from reference data.",
		}, []string{"stage"}),
		SunCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imgw_analytics",
			Name:      "sun_cache_hits_total",
			Help:      "Daylight windows served from the per-run cache.",
		}),
		SunCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imgw_analytics",
			Name:      "sun_cache_misses_total",
			Help:      "Daylight windows computed fresh.",
		}),
		SunUnresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imgw_analytics",
			Name:      "sun_unresolved_total",
			Help:      "Daylight windows resolved to the unresolvable sentinel.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imgw_analytics",
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage over a whole relation.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		PipelinesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "imgw_analytics",
			Name:      "pipelines_running",
			Help:      "Number of per-parameter pipelines currently executing.",
		}),
		PipelineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imgw_analytics",
			Name:      "pipeline_failures_total",
			Help:      "Per-parameter pipeline runs that ended in a fatal error.",
		}, []string{"parameter"}),
	}
}
