package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	job := "session_sweeper"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchValue(mfs, "chatshop_job_success_total", "job", job); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f (%v)", got, err)
	}
	if got, err := fetchValue(mfs, "chatshop_job_failure_total", "job", job); err != nil || got != 1 {
		t.Fatalf("expected failure=1, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "chatshop_job_duration_seconds")
	if mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleSum() <= 0 {
		t.Fatalf("expected duration histogram to be populated")
	}
}

func TestShopMetricsRecordsOutcomesAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetrics(reg)
	m.IncCheckout(OutcomeCommitted)
	m.IncCheckout(OutcomeCommitted)
	m.IncCheckout(OutcomePartial)
	m.IncEvent("")
	m.SetActiveSessions(3)
	m.SetOrphanedGroups(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchValue(mfs, "chatshop_checkouts_total", "outcome", OutcomeCommitted); got != 2 {
		t.Fatalf("expected committed=2, got %f", got)
	}
	if got, _ := fetchValue(mfs, "chatshop_checkouts_total", "outcome", OutcomePartial); got != 1 {
		t.Fatalf("expected partial=1, got %f", got)
	}
	if got, _ := fetchValue(mfs, "chatshop_events_total", "kind", "unknown"); got != 1 {
		t.Fatalf("expected empty kind to be labelled unknown, got %f", got)
	}
	if got := findMetricFamily(mfs, "chatshop_active_sessions").GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Fatalf("expected active_sessions=3, got %f", got)
	}
	if got := findMetricFamily(mfs, "chatshop_orphaned_order_groups").GetMetric()[0].GetGauge().GetValue(); got != 2 {
		t.Fatalf("expected orphaned_order_groups=2, got %f", got)
	}
}

func TestNilRecordersAreNoops(t *testing.T) {
	var jobs *JobMetrics
	jobs.IncSuccess("x")
	jobs.ObserveDuration("x", time.Second)
	var shop *ShopMetrics
	shop.IncCheckout(OutcomeCommitted)
	shop.SetActiveSessions(1)
	NewShopMetrics(nil).IncEvent("text")
}

func fetchValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				return metric.GetCounter().GetValue(), nil
			}
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}
