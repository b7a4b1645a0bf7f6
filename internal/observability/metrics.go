package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "station_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Acquisition metrics.
	Downloads *prometheus.CounterVec // labels: kind={marker,archive}, outcome={success,error,rejected}

	// Resolution and publishing metrics.
	FilesProcessed  prometheus.Counter
	FilesAdded      prometheus.Counter
	CatalogInserted *prometheus.CounterVec // labels: catalog={stations,elements}
	SeriesPublished prometheus.Counter
	ElementCache    *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Provider runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete provider run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Upstream downloads by kind and outcome.",
		}, []string{"kind", "outcome"}),
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Series files parsed by the resolver.",
		}),
		FilesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_added_total",
			Help:      "Series files retained by the resolver.",
		}),
		CatalogInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_inserted_total",
			Help:      "Catalog rows inserted by catalog.",
		}, []string{"catalog"}),
		SeriesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_published_total",
			Help:      "Station series handed to the sink.",
		}),
		ElementCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "element_cache_total",
			Help:      "Unit factor cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.Downloads,
		m.FilesProcessed,
		m.FilesAdded,
		m.CatalogInserted,
		m.SeriesPublished,
		m.ElementCache,
	}
}

// ElementCacheResult counts one unit factor cache lookup.
func (m *Metrics) ElementCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ElementCache.WithLabelValues(result).Inc()
}

// Download counts one upstream download.
func (m *Metrics) Download(kind, outcome string) {
	m.Downloads.WithLabelValues(kind, outcome).Inc()
}
