// Package metrics defines the three Prometheus series the operator exposes
// and the helper reconcile uses to record them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reconciler's Prometheus series, registered on a
// dedicated registry so /metrics serves exactly this set rather than
// whatever else a shared default registry accumulates.
type Metrics struct {
	Registry        *prometheus.Registry
	Reconciliations prometheus.Counter
	Failures        prometheus.Counter
	ReconcileDur    prometheus.Histogram
}

// New builds and registers the three series. binName names the first
// counter as "<binName>_reconciliations_total"; the operator passes
// "override_operator".
func New(binName string) *Metrics {
	reg := prometheus.NewRegistry()

	reconciliations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: binName + "_reconciliations_total",
		Help: "Total number of reconcile attempts.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "override_operator_failures_total",
		Help: "Total number of reconcile attempts that returned an error.",
	})
	reconcileDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "override_operator_reconcile_duration_seconds",
		Help:    "Elapsed time of a single reconcile attempt.",
		Buckets: []float64{0.01, 0.1, 0.25, 0.5, 1, 5, 15, 60},
	})

	reg.MustRegister(reconciliations, failures, reconcileDur)

	return &Metrics{
		Registry:        reg,
		Reconciliations: reconciliations,
		Failures:        failures,
		ReconcileDur:    reconcileDur,
	}
}

// ObserveReconcile records one reconcile attempt: always counts it,
// observes its duration, and counts it as a failure when err is non-nil.
func (m *Metrics) ObserveReconcile(start time.Time, err error) {
	m.Reconciliations.Inc()
	m.ReconcileDur.Observe(time.Since(start).Seconds())
	if err != nil {
		m.Failures.Inc()
	}
}
