package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded under the outcome label.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid_argument"
	OutcomeUnavailable = "data_source_unavailable"
)

// Metrics holds the service collectors on a private registry, so several
// instances (one per test) never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	QueriesTotal    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	ResultSize      *prometheus.HistogramVec
	LoadsTotal      *prometheus.CounterVec
	LoadDuration    *prometheus.HistogramVec
	SnapshotSystems prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		Registry: r,
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_queries_total",
			Help: "Impact queries by operation and outcome",
		}, []string{"operation", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "impact_query_duration_seconds",
			Help:    "Impact query duration including snapshot load",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		ResultSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "impact_query_result_size",
			Help:    "Number of systems in a query result",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 10000},
		}, []string{"operation"}),
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "impact_graph_loads_total",
			Help: "Graph snapshot loads by backend and outcome",
		}, []string{"backend", "outcome"}),
		LoadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "impact_graph_load_duration_seconds",
			Help:    "Graph snapshot load duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		SnapshotSystems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "impact_graph_snapshot_systems",
			Help: "Systems in the most recently loaded snapshot",
		}),
	}
	r.MustRegister(
		m.QueriesTotal, m.QueryDuration, m.ResultSize,
		m.LoadsTotal, m.LoadDuration, m.SnapshotSystems,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordQuery records one facade operation.
func (m *Metrics) RecordQuery(operation, outcome string, duration time.Duration, size int) {
	m.QueriesTotal.WithLabelValues(operation, outcome).Inc()
	m.QueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if outcome == OutcomeOK {
		m.ResultSize.WithLabelValues(operation).Observe(float64(size))
	}
}

// RecordLoad records one snapshot load.
func (m *Metrics) RecordLoad(backend string, duration time.Duration, systems int, err error) {
	m.LoadDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if err != nil {
		m.LoadsTotal.WithLabelValues(backend, "error").Inc()
		return
	}
	m.LoadsTotal.WithLabelValues(backend, OutcomeOK).Inc()
	m.SnapshotSystems.Set(float64(systems))
}
