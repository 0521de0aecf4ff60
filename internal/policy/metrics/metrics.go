package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the policy module.
type Metrics struct {
	PoliciesCreated    prometheus.Counter
	Transitions        *prometheus.CounterVec
	InvalidTransitions prometheus.Counter
	TransitionRetries  prometheus.Counter
}

// New creates and registers the policy metrics.
func New() *Metrics {
	return &Metrics{
		PoliciesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_policies_created_total",
			Help: "Policies created across all tenants",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assura_policy_transitions_total",
			Help: "Successful status transitions by target status",
		}, []string{"to_status"}),
		InvalidTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_policy_invalid_transitions_total",
			Help: "Transition attempts rejected by the allowed-transition table",
		}),
		TransitionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_policy_transition_retries_total",
			Help: "Transition transactions retried after losing a concurrency race",
		}),
	}
}
