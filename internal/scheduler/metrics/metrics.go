package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the scheduler.
type Metrics struct {
	Scans          prometheus.Counter
	ScanErrors     prometheus.Counter
	NoticesEmitted *prometheus.CounterVec
}

// New creates and registers the scheduler metrics.
func New() *Metrics {
	return &Metrics{
		Scans: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_scheduler_scans_total",
			Help: "Completed scheduler scan ticks",
		}),
		ScanErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "assura_scheduler_scan_errors_total",
			Help: "Scan ticks that finished with at least one tenant error",
		}),
		NoticesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "assura_scheduler_notices_emitted_total",
			Help: "Notices emitted by kind, after dedupe",
		}, []string{"kind"}),
	}
}
