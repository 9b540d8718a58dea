package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "codis_fetch"

// Metrics holds the Prometheus counters, histograms, and gauges for a fetch run.
type Metrics struct {
	DaysFetched     prometheus.Counter
	DaysEmpty       prometheus.Counter
	FetchErrors     *prometheus.CounterVec // labels: kind={network,remote_schema,canceled,other}
	RowsAppended    prometheus.Counter
	StationOutcomes *prometheus.CounterVec // labels: state={up_to_date,done,failed}
	PipelineRunning prometheus.Gauge

	DayFetchDuration prometheus.Histogram

	// Source HTTP attempts, including retries.
	SourceRequests *prometheus.CounterVec // labels: outcome={success,retry,error,circuit_open}
}

func newMetrics() *Metrics {
	return &Metrics{
		DaysFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_fetched_total",
			Help:      "Day tables fetched and normalized, including empty days.",
		}),
		DaysEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_empty_total",
			Help:      "Day tables the portal returned without observations.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Day fetches that failed, by error kind.",
		}, []string{"kind"}),
		RowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_appended_total",
			Help:      "Observation rows appended to station artifacts.",
		}),
		StationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_outcomes_total",
			Help:      "Stations finished, by terminal state.",
		}, []string{"state"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a job is running, 0 otherwise.",
		}),
		DayFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "day_fetch_duration_seconds",
			Help:      "Duration of fetching and normalizing one day table, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "HTTP attempts against the portal, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DaysFetched,
		m.DaysEmpty,
		m.FetchErrors,
		m.RowsAppended,
		m.StationOutcomes,
		m.PipelineRunning,
		m.DayFetchDuration,
		m.SourceRequests,
	}
}

// NewMetrics creates and registers all fetch metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m, _ := NewMetricsWithRegistry()
	return m
}

// NewMetricsWithRegistry creates Metrics registered with a new registry and
// returns both.
func NewMetricsWithRegistry() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m, reg
}
