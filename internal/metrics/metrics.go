package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	apiRequests   *prometheus.CounterVec
	titleOutcomes *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	tracked       *prometheus.GaugeVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "releasewall",
			Name:      "api_requests_total",
			Help:      "Upstream API attempts by service and outcome.",
		}, []string{"service", "outcome"}),
		titleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "releasewall",
			Name:      "titles_total",
			Help:      "Titles processed by run kind and outcome.",
		}, []string{"kind", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "releasewall",
			Name:      "run_duration_seconds",
			Help:      "Batch run duration by kind.",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600},
		}, []string{"kind"}),
		tracked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "releasewall",
			Name:      "tracked_titles",
			Help:      "Titles in the tracking store by status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(m.apiRequests, m.titleOutcomes, m.runDuration, m.tracked)
	return m
}

// ObserveAPI counts one upstream attempt. Its signature matches the HTTP
// client observer hook.
func (m *Metrics) ObserveAPI(service, outcome string) {
	m.apiRequests.WithLabelValues(service, outcome).Inc()
}

// AddTitles counts n titles with an outcome for a run kind
func (m *Metrics) AddTitles(kind, outcome string, n int) {
	if n > 0 {
		m.titleOutcomes.WithLabelValues(kind, outcome).Add(float64(n))
	}
}

// ObserveRun records a run duration
func (m *Metrics) ObserveRun(kind string, d time.Duration) {
	m.runDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// SetTracked publishes the store counters
func (m *Metrics) SetTracked(resolved, tracking int) {
	m.tracked.WithLabelValues("resolved").Set(float64(resolved))
	m.tracked.WithLabelValues("tracking").Set(float64(tracking))
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and custom exporters
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
