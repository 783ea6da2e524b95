package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"guardrail/internal/verdict"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store, dir
}

func sampleJob(id string) *Job {
	return &Job{
		ID:      id,
		Status:  StatusQueued,
		RuleSet: "safety",
		Message: "Job queued",
	}
}

func TestFileStoreCreateGetRoundTrip(t *testing.T) {
	store, dir := newTestStore(t)

	job := sampleJob("job-1")
	if err := store.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("Create must stamp CreatedAt")
	}

	got, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RuleSet != "safety" || got.Status != StatusQueued {
		t.Fatalf("unexpected job %+v", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "job-1.json")); err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
}

func TestFileStoreCreateDuplicateFails(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Create(sampleJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(sampleJob("job-1")); err == nil {
		t.Fatal("expected duplicate create to fail")
	}
}

func TestFileStoreUpdateMergesUnderLock(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Create(sampleJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two field-level updates must both survive, like two guidelines
	// reporting progress concurrently.
	if _, err := store.Update("job-1", func(j *Job) {
		if j.Progress == nil {
			j.Progress = map[string]GuidelineProgress{}
		}
		j.Progress["a"] = GuidelineProgress{State: GuidelineCompleted}
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := store.Update("job-1", func(j *Job) {
		j.Progress["b"] = GuidelineProgress{State: GuidelineFailed}
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Progress) != 2 {
		t.Fatalf("expected both progress entries, got %v", got.Progress)
	}
}

func TestFileStoreUpdateUnknownJob(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Update("ghost", func(j *Job) { j.Message = "boo" })
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	store, dir := newTestStore(t)
	job := sampleJob("job-1")
	job.Status = StatusProcessing
	job.Results = []GuidelineResult{{
		Number:  1,
		Title:   "Fire exits",
		Verdict: verdict.Verdict{Compliance: verdict.Compliant, Explanation: "ok"},
	}}
	if err := store.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened, err := NewFileStore(dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get("job-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Status != StatusProcessing || len(got.Results) != 1 {
		t.Fatalf("state lost across restart: %+v", got)
	}
	if got.Results[0].Verdict.Compliance != verdict.Compliant {
		t.Fatalf("verdict lost across restart: %+v", got.Results[0])
	}
}

func TestFileStoreSkipsCorruptRecords(t *testing.T) {
	store, dir := newTestStore(t)
	if err := store.Create(sampleJob("job-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt record: %v", err)
	}

	reopened, err := NewFileStore(dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("reopen with corrupt record: %v", err)
	}
	jobs, err := reopened.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-1" {
		t.Fatalf("expected only the intact record, got %v", jobs)
	}
}

func TestFileStoreRetentionEvictsTerminalJobs(t *testing.T) {
	store, dir := newTestStore(t)

	old := sampleJob("old-done")
	old.Status = StatusCompleted
	if err := store.Create(old); err != nil {
		t.Fatalf("Create: %v", err)
	}
	stuck := sampleJob("old-processing")
	stuck.Status = StatusProcessing
	if err := store.Create(stuck); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Move the clock past the retention window.
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := store.Get("old-done"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected terminal job evicted, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "old-done.json")); !os.IsNotExist(err) {
		t.Fatal("evicted record must be removed from disk")
	}

	// Non-terminal jobs are never retention-evicted.
	if _, err := store.Get("old-processing"); err != nil {
		t.Fatalf("processing job must survive retention: %v", err)
	}
}

func TestFileStoreListNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		job := sampleJob(id)
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Create(job); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	jobs, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if jobs[0].ID != "c" || jobs[2].ID != "a" {
		t.Fatalf("unexpected order: %s %s %s", jobs[0].ID, jobs[1].ID, jobs[2].ID)
	}
}
