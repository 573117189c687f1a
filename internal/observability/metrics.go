package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// GeoNames adapter metrics.
	GeoNamesRequests *prometheus.CounterVec // labels: outcome={success,transport_error,service_error,decode_error}
	GeoNamesDuration prometheus.Histogram
	GeoNamesCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Coordinator metrics.
	Events             *prometheus.CounterVec   // labels: event={place_selected,top_ten_requested}
	Fetches            *prometheus.CounterVec   // labels: kind={search,top_ten}, outcome={success,empty,error}
	QuakesDisplayed    *prometheus.HistogramVec // labels: kind={search,top_ten}
	Notices            *prometheus.CounterVec   // labels: kind
	StaleResults       prometheus.Counter
	DisplaysPublished  *prometheus.CounterVec // labels: outcome={success,error}
	TopTenLoaded       prometheus.Gauge
	CoordinatorRunning prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates all metrics and registers them with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GeoNamesRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_map",
			Name:      "geonames_requests_total",
			Help:      "GeoNames earthquake requests by outcome.",
		}, []string{"outcome"}),
		GeoNamesDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_map",
			Name:      "geonames_request_duration_seconds",
			Help:      "GeoNames API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GeoNamesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_map",
			Name:      "geonames_cache_total",
			Help:      "Earthquake response cache lookups by result.",
		}, []string{"result"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_map",
			Name:      "events_total",
			Help:      "User events handled by the coordinator.",
		}, []string{"event"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_map",
			Name:      "fetches_total",
			Help:      "Completed earthquake fetches by display kind and outcome.",
		}, []string{"kind", "outcome"}),
		QuakesDisplayed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quake_map",
			Name:      "quakes_displayed",
			Help:      "Number of earthquakes rendered per display cycle.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"kind"}),
		Notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_map",
			Name:      "notices_total",
			Help:      "User-facing notices by error kind.",
		}, []string{"kind"}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_map",
			Name:      "stale_results_total",
			Help:      "Fetch results dropped because a newer query was issued.",
		}),
		DisplaysPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_map",
			Name:      "displays_published_total",
			Help:      "Display cycles published to the sink by outcome.",
		}, []string{"outcome"}),
		TopTenLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_map",
			Name:      "top_ten_loaded",
			Help:      "1 once the world top ten has been retrieved.",
		}),
		CoordinatorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_map",
			Name:      "coordinator_running",
			Help:      "1 when the coordinator event loop is active, 0 when shut down.",
		}),
	}

	reg.MustRegister(
		m.GeoNamesRequests,
		m.GeoNamesDuration,
		m.GeoNamesCache,
		m.Events,
		m.Fetches,
		m.QuakesDisplayed,
		m.Notices,
		m.StaleResults,
		m.DisplaysPublished,
		m.TopTenLoaded,
		m.CoordinatorRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		GeoNamesRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_map", Name: "geonames_requests_total"}, []string{"outcome"}),
		GeoNamesDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quake_map", Name: "geonames_request_duration_seconds"}),
		GeoNamesCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_map", Name: "geonames_cache_total"}, []string{"result"}),
		Events:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_map", Name: "events_total"}, []string{"event"}),
		Fetches:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_map", Name: "fetches_total"}, []string{"kind", "outcome"}),
		QuakesDisplayed:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "quake_map", Name: "quakes_displayed"}, []string{"kind"}),
		Notices:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_map", Name: "notices_total"}, []string{"kind"}),
		StaleResults:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_map", Name: "stale_results_total"}),
		DisplaysPublished:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_map", Name: "displays_published_total"}, []string{"outcome"}),
		TopTenLoaded:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_map", Name: "top_ten_loaded"}),
		CoordinatorRunning: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_map", Name: "coordinator_running"}),
	}
}
