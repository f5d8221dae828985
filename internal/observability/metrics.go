package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion,
// forecasting and the dashboard.
type Metrics struct {
	IngestRuns     *prometheus.CounterVec   // labels: source, outcome={success,failure}
	RecordsStored  *prometheus.CounterVec   // labels: source
	IngestDuration *prometheus.HistogramVec // labels: source
	IngestFailures *prometheus.CounterVec   // labels: source, kind

	ForecastRuns     *prometheus.CounterVec // labels: outcome={success,failure,skipped}
	ForecastDuration prometheus.Histogram
	ForecastScore    *prometheus.GaugeVec // labels: metric={mae,rmse,r2_percent}

	ManualEntries prometheus.Counter

	// Outbound HTTP and enrichment metrics.
	UpstreamRequests *prometheus.CounterVec // labels: client, outcome={success,retry,error,circuit_open}
	GeocodeCache     *prometheus.CounterVec // labels: result={hit,miss}

	// Record sinks.
	SinkPublishErrors *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IngestRuns,
		m.RecordsStored,
		m.IngestDuration,
		m.IngestFailures,
		m.ForecastRuns,
		m.ForecastDuration,
		m.ForecastScore,
		m.ManualEntries,
		m.UpstreamRequests,
		m.GeocodeCache,
		m.SinkPublishErrors,
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
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by source and outcome.",
		}, []string{"source", "outcome"}),
		RecordsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Records written to the observation store by source.",
		}, []string{"source"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete extract-replace-publish run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		IngestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Failed ingestion runs by source and error kind.",
		}, []string{"source", "kind"}),
		ForecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_runs_total",
			Help:      "Forecaster runs by outcome.",
		}, []string{"outcome"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Duration of training, evaluation and inference.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ForecastScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_score",
			Help:      "Test-split scores of the most recent training run.",
		}, []string{"metric"}),
		ManualEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_entries_total",
			Help:      "Manual records accepted from the dashboard.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Outbound HTTP attempts by client and outcome.",
		}, []string{"client", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		SinkPublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_publish_errors_total",
			Help:      "Failed publishes of stored generations by sink.",
		}, []string{"sink"}),
	}
}
