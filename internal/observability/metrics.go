package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "siting"

// Metrics holds the Prometheus counters, histograms, and gauges for the siting pipeline.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // labels: outcome={success,error}
	StageDuration *prometheus.HistogramVec // labels: stage
	RowsRead      *prometheus.CounterVec   // labels: source
	RowsDropped   *prometheus.CounterVec   // labels: source, reason={missing,duplicate,invalid}

	DemandCities     prometheus.Gauge
	ExcludedCities   prometheus.Gauge
	ExcludedValue    prometheus.Gauge
	FacilitiesSited  prometheus.Gauge
	ClusterInertia   prometheus.Gauge
	ClusterIteration prometheus.Gauge
	LastRunSuccess   prometheus.Gauge // unix seconds of the last successful run
	MessagesProduced prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Input rows read per source table.",
		}, []string{"source"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Input rows dropped during cleaning by source and reason.",
		}, []string{"source", "reason"}),
		DemandCities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "demand_cities",
			Help:      "Geocoded cities clustered in the last run.",
		}),
		ExcludedCities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "excluded_cities",
			Help:      "Cities excluded for lack of coordinates in the last run.",
		}),
		ExcludedValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "excluded_value",
			Help:      "Demand value excluded for lack of coordinates in the last run.",
		}),
		FacilitiesSited: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facilities_sited",
			Help:      "Facility candidates produced by the last run.",
		}),
		ClusterInertia: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_inertia",
			Help:      "Weighted sum of squared distances of the winning clustering.",
		}),
		ClusterIteration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_iterations",
			Help:      "Lloyd iterations used by the winning clustering.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Facility candidates published to the sink topic.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Fallback geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Fallback geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when the fallback geocoder is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.StageDuration,
		m.RowsRead,
		m.RowsDropped,
		m.DemandCities,
		m.ExcludedCities,
		m.ExcludedValue,
		m.FacilitiesSited,
		m.ClusterInertia,
		m.ClusterIteration,
		m.LastRunSuccess,
		m.MessagesProduced,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
