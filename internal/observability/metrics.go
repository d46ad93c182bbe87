package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ecogrid"

// Metrics holds the Prometheus counters, histograms, and gauges for a game session.
type Metrics struct {
	// Backend API metrics.
	APIRequests *prometheus.CounterVec   // labels: endpoint, outcome={success,error,not_found}
	APIDuration *prometheus.HistogramVec // labels: endpoint
	DetailCache *prometheus.CounterVec   // labels: result={hit,miss}

	// Catalog and enrichment metrics.
	CatalogFallbacks    *prometheus.CounterVec // labels: origin={existing,potential}
	CatalogLoaded       prometheus.Gauge
	EnrichmentDegraded  prometheus.Counter
	CartReadsDegraded   prometheus.Counter
	CartMutations       *prometheus.CounterVec // labels: op={add,remove,clear}, outcome={success,error,not_found}
	BuildTransactions   *prometheus.CounterVec // labels: outcome={committed,rejected}
	Budget              prometheus.Gauge
	BuildEventsProduced prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Game backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Game backend request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		DetailCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_detail_cache_total",
			Help:      "Property detail cache lookups by result.",
		}, []string{"result"}),
		CatalogFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fallbacks_total",
			Help:      "Catalog loads that substituted the fallback locations, by origin.",
		}, []string{"origin"}),
		CatalogLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_loaded",
			Help:      "1 once the location catalog has been loaded, 0 before.",
		}),
		EnrichmentDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_degraded_total",
			Help:      "Selections enriched with fallback metrics.",
		}),
		CartReadsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_reads_degraded_total",
			Help:      "Cart or carbon footprint reads replaced with empty data.",
		}),
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		BuildTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_transactions_total",
			Help:      "Build attempts by outcome.",
		}, []string{"outcome"}),
		Budget: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget",
			Help:      "Remaining budget of the session.",
		}),
		BuildEventsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_events_produced_total",
			Help:      "Facility build events written to Kafka.",
		}),
	}
}

// NewMetrics creates and registers all session metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.APIRequests,
		m.APIDuration,
		m.DetailCache,
		m.CatalogFallbacks,
		m.CatalogLoaded,
		m.EnrichmentDegraded,
		m.CartReadsDegraded,
		m.CartMutations,
		m.BuildTransactions,
		m.Budget,
		m.BuildEventsProduced,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
