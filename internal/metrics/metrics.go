// Package metrics defines the prometheus instrumentation for the link
// ledger and the story dispatcher.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the application counters. All counters are registered on
// the registry passed to New, so tests can use isolated registries.
type Metrics struct {
	ClicksRecorded  *prometheus.CounterVec
	RevenueAccrued  *prometheus.CounterVec
	DispatchCycles  prometheus.Counter
	StoriesAttempts *prometheus.CounterVec
}

// New creates and registers the application metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClicksRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quicklink_clicks_recorded_total",
			Help: "Clicks recorded by the ledger, by device type.",
		}, []string{"device"}),

		RevenueAccrued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quicklink_revenue_accrued_total",
			Help: "Estimated revenue accrued, by link tier.",
		}, []string{"tier"}),

		DispatchCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quicklink_dispatch_cycles_total",
			Help: "Dispatch cycles run.",
		}),

		StoriesAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quicklink_story_attempts_total",
			Help: "Story dispatch attempts, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.ClicksRecorded, m.RevenueAccrued, m.DispatchCycles, m.StoriesAttempts)

	return m
}

// Tier returns the revenue counter label for an affiliate flag.
func Tier(affiliate bool) string {
	if affiliate {
		return "affiliate"
	}

	return "regular"
}
