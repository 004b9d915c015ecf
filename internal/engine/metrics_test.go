package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == name {
			return fam
		}
	}
	return nil
}

func TestMetricsRegistered(t *testing.T) {
	expected := []string{
		"qdevice_jobs_total",
		"qdevice_queue_depth",
		"qdevice_device_status",
		"qdevice_wait_total",
	}
	for _, name := range expected {
		if gatherFamily(t, name) == nil {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestJobsTotalPreinitialized(t *testing.T) {
	fam := gatherFamily(t, "qdevice_jobs_total")
	if fam == nil {
		t.Fatal("jobs_total metric family not found")
	}

	seen := make(map[string]bool)
	for _, m := range fam.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "status" {
				seen[l.GetValue()] = true
			}
		}
	}
	for _, s := range []string{outcomeDone, outcomeCanceled, outcomeFailed} {
		if !seen[s] {
			t.Errorf("jobs_total missing status %q", s)
		}
	}
}

func TestExecutionDurationObserved(t *testing.T) {
	executionDuration.Observe(0.25)

	fam := gatherFamily(t, "qdevice_job_execution_seconds")
	if fam == nil || len(fam.GetMetric()) == 0 {
		t.Fatal("job_execution_seconds not found")
	}
	if fam.GetMetric()[0].GetHistogram().GetSampleCount() == 0 {
		t.Error("executionDuration has no observations")
	}
}
