package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dashboard's Prometheus instruments.
type Metrics struct {
	FetchDuration    *prometheus.HistogramVec
	FetchFailures    *prometheus.CounterVec
	CacheHits        prometheus.Counter
	Renders          *prometheus.CounterVec
	RenderDuration   prometheus.Histogram
	DatasetRows      prometheus.Gauge
	UnclassifiedRows prometheus.Gauge
	LookupDrift      *prometheus.GaugeVec
}

// New creates the instruments and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rfmdash_fetch_duration_seconds",
			Help:    "Duration of dataset table fetch and decode",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"table"}),
		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rfmdash_fetch_failures_total",
			Help: "Dataset table loads that failed",
		}, []string{"table"}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "rfmdash_dataset_cache_hits_total",
			Help: "Loads served from the per-process dataset cache",
		}),
		Renders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rfmdash_renders_total",
			Help: "Dashboard renders by selected view and outcome",
		}, []string{"view", "outcome"}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rfmdash_render_duration_seconds",
			Help:    "Duration of a full load, aggregate and render cycle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DatasetRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "rfmdash_dataset_rows",
			Help: "Donor rows in the most recently rendered dataset",
		}),
		UnclassifiedRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "rfmdash_unclassified_donors",
			Help: "Donors whose segment code is missing from the lookup in the last render",
		}),
		LookupDrift: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rfmdash_lookup_drift_donors",
			Help: "Live count minus authored lookup count per lookup segment in the last render",
		}, []string{"segment"}),
	}
}

// ObserveFetch records the duration of a table load started at start.
func (m *Metrics) ObserveFetch(table string, start time.Time, err error) {
	m.FetchDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	if err != nil {
		m.FetchFailures.WithLabelValues(table).Inc()
	}
}

// ObserveRender records one render cycle.
func (m *Metrics) ObserveRender(view, outcome string, start time.Time) {
	m.Renders.WithLabelValues(view, outcome).Inc()
	m.RenderDuration.Observe(time.Since(start).Seconds())
}
