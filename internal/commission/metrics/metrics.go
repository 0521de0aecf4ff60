package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the commission engine.
type Metrics struct {
	InitialPosted     prometheus.Counter
	RenewalPosted     prometheus.Counter
	RenewalDuplicates prometheus.Counter
	ClawbackPosted    prometheus.Counter
	ClawbackSkipped   prometheus.Counter
	ClawbackCents     prometheus.Counter
}

// New creates and registers the commission metrics.
func New() *Metrics {
	return &Metrics{
		InitialPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_commission_initial_posted_total",
			Help: "Initial commission entries posted",
		}),
		RenewalPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_commission_renewal_posted_total",
			Help: "Renewal commission entries posted",
		}),
		RenewalDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_commission_renewal_duplicates_total",
			Help: "Renewal postings skipped because the period already had an entry",
		}),
		ClawbackPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_commission_clawback_posted_total",
			Help: "Clawback entries posted on lapse or cancellation",
		}),
		ClawbackSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_commission_clawback_skipped_total",
			Help: "Clawback evaluations that resulted in no entry",
		}),
		ClawbackCents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_commission_clawback_cents_total",
			Help: "Absolute clawback value posted, in cents",
		}),
	}
}
