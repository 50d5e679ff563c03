// Package metrics exposes map gateway domain metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by ObserveFetch.
const (
	OutcomeResults   = "results"
	OutcomeEmpty     = "empty"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
	OutcomeSkipped   = "below_min_zoom"
)

// BackendState is one backend's circuit reading for the backend_up gauge.
type BackendState struct {
	Name string
	Up   bool
}

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry          *prometheus.Registry
	fetches           *prometheus.CounterVec
	fetchDuration     prometheus.Histogram
	markersReturned   prometheus.Histogram
	activeSessions    prometheus.Gauge
	sessionsEvicted   prometheus.Counter
	incidentChanges   *prometheus.CounterVec
	sessionsRefreshed prometheus.Counter
}

// New creates a registry with all gateway metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapgateway",
			Name:      "marker_fetches_total",
			Help:      "Marker fetches by outcome",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mapgateway",
			Name:      "marker_fetch_duration_seconds",
			Help:      "Duration of marker fetches against the GraphQL backend",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		markersReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mapgateway",
			Name:      "markers_returned",
			Help:      "Markers per successful fetch",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mapgateway",
			Name:      "active_sessions",
			Help:      "Map sessions held in memory",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapgateway",
			Name:      "sessions_evicted_total",
			Help:      "Idle map sessions evicted by the sweeper",
		}),
		incidentChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mapgateway",
			Name:      "incident_changes_total",
			Help:      "Incident change notifications received, by kind",
		}, []string{"kind"}),
		sessionsRefreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapgateway",
			Name:      "sessions_refreshed_total",
			Help:      "Sessions refreshed because a changed incident fell inside their viewport",
		}),
	}

	registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.markersReturned,
		m.activeSessions,
		m.sessionsEvicted,
		m.incidentChanges,
		m.sessionsRefreshed,
	)

	return m
}

// ObserveFetch records one marker fetch.
func (m *Metrics) ObserveFetch(outcome string, markers int, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSkipped {
		return
	}
	m.fetchDuration.Observe(duration.Seconds())
	if outcome == OutcomeResults || outcome == OutcomeEmpty {
		m.markersReturned.Observe(float64(markers))
	}
}

// SetActiveSessions sets the in-memory session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// AddEvicted counts sessions removed by the idle sweeper.
func (m *Metrics) AddEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsEvicted.Add(float64(n))
}

// ObserveIncidentChange counts a change notification and the sessions it refreshed.
func (m *Metrics) ObserveIncidentChange(kind string, refreshed int) {
	if m == nil {
		return
	}
	m.incidentChanges.WithLabelValues(kind).Inc()
	if refreshed > 0 {
		m.sessionsRefreshed.Add(float64(refreshed))
	}
}

// TrackBackends exports mapgateway_backend_up from states at scrape time.
func (m *Metrics) TrackBackends(states func() []BackendState) {
	if m == nil || states == nil {
		return
	}
	m.registry.MustRegister(&backendCollector{states: states})
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var backendUpDesc = prometheus.NewDesc(
	"mapgateway_backend_up",
	"1 when the backend circuit breaker is closed",
	[]string{"backend"}, nil,
)

type backendCollector struct {
	states func() []BackendState
}

func (c *backendCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- backendUpDesc
}

func (c *backendCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.states() {
		v := 0.0
		if s.Up {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(backendUpDesc, prometheus.GaugeValue, v, s.Name)
	}
}
