package jobs

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"guardrail/internal/verdict"
)

// seedInterruptedJob persists a processing job that looks like a crash left
// it behind, with results already recorded for the first `recorded` guidelines.
func seedInterruptedJob(t *testing.T, fx *runnerFixture, total, recorded int) *Job {
	t.Helper()
	job := &Job{
		ID:              "interrupted",
		Status:          StatusProcessing,
		Message:         "Evaluating 3 guidelines",
		RuleSet:         "safety",
		Documents:       []string{"staging/interrupted/lease.pdf"},
		TotalGuidelines: total,
	}
	for i := 1; i <= recorded; i++ {
		job.Results = append(job.Results, GuidelineResult{
			Number:  i,
			Title:   fmt.Sprintf("Guideline %d", i),
			Verdict: verdict.Verdict{Compliance: verdict.Compliant, Explanation: fmt.Sprintf("guideline %d", i)},
		})
	}
	if err := fx.store.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func TestRecoverFinalizesWhenAllResultsPresent(t *testing.T) {
	fx := newRunnerFixture(t, testRuleSet(3), fastConfig())
	seedInterruptedJob(t, fx, 3, 3)

	outcome, err := fx.runner.Recover(context.Background(), "interrupted")
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if outcome != RecoveryFinalized {
		t.Fatalf("outcome = %s, want finalized", outcome)
	}

	got, _ := fx.store.Get("interrupted")
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Message != "Analysis complete (finalized after restart)" {
		t.Fatalf("message = %q", got.Message)
	}
	if got.Report == nil || got.Report.Compliant != 3 {
		t.Fatalf("report = %+v", got.Report)
	}

	// Finalizing never re-runs evaluations.
	if _, _, evaluations := fx.eval.counts(); evaluations != 0 {
		t.Fatalf("finalization made %d evaluator calls", evaluations)
	}

	// A second pass sees the terminal job and does nothing.
	outcome, err = fx.runner.Recover(context.Background(), "interrupted")
	if err != nil || outcome != RecoveryAlreadyComplete {
		t.Fatalf("second pass: %s, %v", outcome, err)
	}
}

func TestRecoverLeavesPartialJobProcessingWhenResumeDisabled(t *testing.T) {
	cfg := fastConfig()
	cfg.ResumeIncomplete = false
	fx := newRunnerFixture(t, testRuleSet(3), cfg)
	seedInterruptedJob(t, fx, 3, 1)

	outcome, err := fx.runner.Recover(context.Background(), "interrupted")
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if outcome != RecoveryStillProcessing {
		t.Fatalf("outcome = %s, want still_processing", outcome)
	}

	got, _ := fx.store.Get("interrupted")
	if got.Status != StatusProcessing {
		t.Fatalf("status = %s", got.Status)
	}
	if want := "Recovered after restart: 1/3 guidelines done"; got.Message != want {
		t.Fatalf("message = %q, want %q", got.Message, want)
	}
	if _, _, evaluations := fx.eval.counts(); evaluations != 0 {
		t.Fatalf("resume disabled but %d evaluations ran", evaluations)
	}
}

func TestRecoverResumesAndCompletes(t *testing.T) {
	fx := newRunnerFixture(t, testRuleSet(3), fastConfig())
	seedInterruptedJob(t, fx, 3, 1)

	outcome, err := fx.runner.Recover(context.Background(), "interrupted")
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if outcome != RecoveryStillProcessing {
		t.Fatalf("outcome = %s", outcome)
	}

	// Resume runs on a background goroutine; wait for it to finish the job.
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := fx.store.Get("interrupted")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status == StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed: %s %q", got.Status, got.Message)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Only the two unfinished guidelines were re-evaluated.
	if _, _, evaluations := fx.eval.counts(); evaluations != 2 {
		t.Fatalf("evaluations = %d, want 2", evaluations)
	}
}

func TestResumeJobSkipsRecordedResults(t *testing.T) {
	fx := newRunnerFixture(t, testRuleSet(3), fastConfig())
	seedInterruptedJob(t, fx, 3, 1)

	if err := fx.runner.ResumeJob(context.Background(), "interrupted"); err != nil {
		t.Fatalf("ResumeJob: %v", err)
	}

	got, _ := fx.store.Get("interrupted")
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s %q", got.Status, got.Message)
	}
	if len(got.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(got.Results))
	}
	// The pre-restart result survives untouched in its canonical slot.
	if got.Results[0].Verdict.Explanation != "guideline 1" {
		t.Fatalf("recorded result was re-evaluated: %+v", got.Results[0])
	}
	if _, _, evaluations := fx.eval.counts(); evaluations != 2 {
		t.Fatalf("evaluations = %d, want 2", evaluations)
	}
}

func TestRecoverUnresolvableRuleSetLeavesRecordUntouched(t *testing.T) {
	fx := newRunnerFixture(t, nil, fastConfig())
	job := &Job{
		ID:      "orphan",
		Status:  StatusProcessing,
		Message: "Evaluating 3 guidelines",
		RuleSet: "deleted-set",
	}
	if err := fx.store.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before, _ := fx.store.Get("orphan")

	outcome, err := fx.runner.Recover(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if outcome != RecoveryUnrecoverable {
		t.Fatalf("outcome = %s, want unrecoverable", outcome)
	}

	after, _ := fx.store.Get("orphan")
	if after.Status != before.Status || after.Message != before.Message {
		t.Fatalf("record mutated: before %q/%q after %q/%q",
			before.Status, before.Message, after.Status, after.Message)
	}
}

func TestRecoverAllSkipsTerminalJobs(t *testing.T) {
	cfg := fastConfig()
	cfg.ResumeIncomplete = false
	fx := newRunnerFixture(t, testRuleSet(3), cfg)

	seedInterruptedJob(t, fx, 3, 3) // finalizable
	done := &Job{ID: "done", Status: StatusCompleted, RuleSet: "safety"}
	if err := fx.store.Create(done); err != nil {
		t.Fatalf("Create: %v", err)
	}
	partial := &Job{ID: "partial", Status: StatusProcessing, RuleSet: "safety"}
	if err := fx.store.Create(partial); err != nil {
		t.Fatalf("Create: %v", err)
	}

	outcomes, err := fx.runner.RecoverAll(context.Background())
	if err != nil {
		t.Fatalf("RecoverAll: %v", err)
	}
	if outcomes[RecoveryFinalized] != 1 || outcomes[RecoveryStillProcessing] != 1 {
		t.Fatalf("outcomes = %v", outcomes)
	}
	if outcomes[RecoveryAlreadyComplete] != 0 {
		t.Fatalf("terminal jobs must be skipped, outcomes = %v", outcomes)
	}

	if strings.Contains(fmt.Sprint(outcomes), string(RecoveryUnrecoverable)) {
		t.Fatalf("unexpected unrecoverable outcome: %v", outcomes)
	}
}
