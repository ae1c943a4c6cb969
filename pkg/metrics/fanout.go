package metrics

import "github.com/prometheus/client_golang/prometheus"

// Fan-out outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeReplayed  = "replayed"
)

// FanoutMetrics tracks order fan-out results and repair activity.
type FanoutMetrics struct {
	outcomes *prometheus.CounterVec
	stores   prometheus.Histogram
	repairs  *prometheus.CounterVec
}

// NewFanoutMetrics registers the fan-out metrics on reg. A nil registerer yields a no-op recorder.
func NewFanoutMetrics(reg prometheus.Registerer) *FanoutMetrics {
	if reg == nil {
		return &FanoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_fanout_total",
		Help:      "Order fan-out attempts by outcome.",
	}, []string{"outcome"})
	stores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_fanout_stores",
		Help:      "Distinct stores touched per order.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13},
	})
	repairs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_fanout_repairs_total",
		Help:      "Journal entries processed by the repair job.",
	}, []string{"result"})
	reg.MustRegister(outcomes, stores, repairs)
	return &FanoutMetrics{outcomes: outcomes, stores: stores, repairs: repairs}
}

// IncOutcome counts one fan-out attempt.
func (f *FanoutMetrics) IncOutcome(outcome string) {
	if f == nil || f.outcomes == nil {
		return
	}
	f.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveStores records how many store copies an order produced.
func (f *FanoutMetrics) ObserveStores(n int) {
	if f == nil || f.stores == nil {
		return
	}
	f.stores.Observe(float64(n))
}

// IncRepair counts one repair attempt; result is "repaired" or "failed".
func (f *FanoutMetrics) IncRepair(result string) {
	if f == nil || f.repairs == nil {
		return
	}
	f.repairs.WithLabelValues(normalizeLabel(result)).Inc()
}
