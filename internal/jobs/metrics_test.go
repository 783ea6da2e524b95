package jobs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"guardrail/internal/verdict"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.JobFinished(StatusCompleted)
	m.JobFinished(StatusCompleted)
	m.JobFinished(StatusError)
	m.GuidelineResult(string(verdict.Compliant))
	m.IncRetry()
	m.IncRetry()
	m.IncActiveJobs()
	m.IncActiveJobs()
	m.DecActiveJobs()
	m.ObserveAttempt(AttemptSucceeded, 2*time.Second)

	if got := testutil.ToFloat64(m.jobsFinished.WithLabelValues(string(StatusCompleted))); got != 2 {
		t.Fatalf("completed jobs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.jobsFinished.WithLabelValues(string(StatusError))); got != 1 {
		t.Fatalf("errored jobs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.guidelineResults.WithLabelValues(string(verdict.Compliant))); got != 1 {
		t.Fatalf("compliant guidelines = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.retries); got != 2 {
		t.Fatalf("retries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.jobsActive); got != 1 {
		t.Fatalf("active jobs = %v, want 1", got)
	}
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.IncRetry()
	second.IncRetry()

	if got := testutil.ToFloat64(second.retries); got != 2 {
		t.Fatalf("duplicate registration must reuse collectors, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.JobFinished(StatusCompleted)
	m.GuidelineResult(string(verdict.Unknown))
	m.ObserveAttempt(AttemptFailed, time.Second)
	m.IncRetry()
	m.IncActiveJobs()
	m.DecActiveJobs()
}
