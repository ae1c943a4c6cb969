package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestFanoutMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFanoutMetrics(reg)
	m.IncOutcome(OutcomeCommitted)
	m.IncOutcome(OutcomeCommitted)
	m.IncOutcome(OutcomePartial)
	m.ObserveStores(2)
	m.IncRepair("repaired")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "qrcatalog_order_fanout_total", "outcome", OutcomeCommitted); err != nil || got != 2 {
		t.Fatalf("expected committed=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "qrcatalog_order_fanout_total", "outcome", OutcomePartial); err != nil || got != 1 {
		t.Fatalf("expected partial=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "qrcatalog_order_fanout_repairs_total", "result", "repaired"); err != nil || got != 1 {
		t.Fatalf("expected repaired=1, got %f (%v)", got, err)
	}
	if mf := findMetricFamily(mfs, "qrcatalog_order_fanout_stores"); mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatal("expected one stores observation")
	}
}

func TestNilFanoutMetricsAreNoops(t *testing.T) {
	var m *FanoutMetrics
	m.IncOutcome(OutcomeFailed)
	m.ObserveStores(1)
	NewFanoutMetrics(nil).IncRepair("failed")
}
