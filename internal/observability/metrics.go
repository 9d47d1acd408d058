package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters for the calendar service.
type Metrics struct {
	CacheLookups  *prometheus.CounterVec // labels: cache, result={fresh,stale,miss}
	RefreshErrors *prometheus.CounterVec // labels: cache

	UpstreamRequests *prometheus.CounterVec // labels: source, outcome={success,error}
	CalendarRequests *prometheus.CounterVec // labels: kind
	SoloizeRequests  *prometheus.CounterVec // labels: outcome={success,rejected,error}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CacheLookups,
		m.RefreshErrors,
		m.UpstreamRequests,
		m.CalendarRequests,
		m.SoloizeRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// construct any number of instances without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecal",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		RefreshErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecal",
			Name:      "cache_refresh_errors_total",
			Help:      "Background refresh failures by cache name.",
		}, []string{"cache"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecal",
			Name:      "upstream_requests_total",
			Help:      "Outbound requests by source and outcome.",
		}, []string{"source", "outcome"}),
		CalendarRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecal",
			Name:      "calendar_requests_total",
			Help:      "Calendar requests by kind.",
		}, []string{"kind"}),
		SoloizeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecal",
			Name:      "soloize_requests_total",
			Help:      "Soloize requests by outcome.",
		}, []string{"outcome"}),
	}
}

// CacheLookup records one cache lookup. Nil-safe so components can run
// without metrics in tests.
func (m *Metrics) CacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// RefreshError records one failed background refresh.
func (m *Metrics) RefreshError(cache string) {
	if m == nil {
		return
	}
	m.RefreshErrors.WithLabelValues(cache).Inc()
}

// UpstreamRequest records one outbound request.
func (m *Metrics) UpstreamRequest(source, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(source, outcome).Inc()
}

// CalendarRequest records one calendar request.
func (m *Metrics) CalendarRequest(kind string) {
	if m == nil {
		return
	}
	m.CalendarRequests.WithLabelValues(kind).Inc()
}

// SoloizeRequest records one soloize request.
func (m *Metrics) SoloizeRequest(outcome string) {
	if m == nil {
		return
	}
	m.SoloizeRequests.WithLabelValues(outcome).Inc()
}
