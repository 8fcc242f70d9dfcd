package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the collector and dashboard.
type Metrics struct {
	PageViewsTracked prometheus.Counter
	PageViewsSkipped *prometheus.CounterVec
	WriteFailures    *prometheus.CounterVec
	ConsentSkips     *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PageViewsTracked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_page_views_tracked_total",
			Help: "Page views accepted by the tracking policy.",
		}),
		PageViewsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_page_views_skipped_total",
			Help: "Requests not tracked, by reason (policy, bot).",
		}, []string{"reason"}),
		WriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_write_failures_total",
			Help: "Swallowed ingestion write failures by record kind.",
		}, []string{"kind"}),
		ConsentSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_consent_skips_total",
			Help: "Client writes dropped for lack of consent, by endpoint.",
		}, []string{"endpoint"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analytics_query_duration_seconds",
			Help:    "Dashboard aggregation latency by query.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"query"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PageViewsTracked,
			m.PageViewsSkipped,
			m.WriteFailures,
			m.ConsentSkips,
			m.QueryDuration,
		)
	}
	return m
}
