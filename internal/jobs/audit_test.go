package jobs

import (
	"fmt"
	"testing"
	"time"
)

func TestAuditLogRecordAndSnapshot(t *testing.T) {
	log, err := NewAuditLog(10)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}

	log.Record(AttemptRecord{JobID: "j1", Guideline: "g1", Attempt: 1, Outcome: AttemptRetried, Error: "timeout"})
	log.Record(AttemptRecord{JobID: "j1", Guideline: "g1", Attempt: 2, Outcome: AttemptSucceeded})

	records := log.Snapshot()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Attempt != 1 || records[1].Attempt != 2 {
		t.Fatalf("snapshot not oldest-first: %+v", records)
	}
	if records[0].Outcome != AttemptRetried || records[0].Error != "timeout" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[0].At.IsZero() {
		t.Fatal("Record must default the timestamp")
	}
}

func TestAuditLogEvictsOldestAtCapacity(t *testing.T) {
	log, err := NewAuditLog(3)
	if err != nil {
		t.Fatalf("NewAuditLog: %v", err)
	}

	for i := 1; i <= 5; i++ {
		log.Record(AttemptRecord{
			JobID:     "j1",
			Guideline: fmt.Sprintf("g%d", i),
			Attempt:   1,
			Outcome:   AttemptSucceeded,
			At:        time.Now(),
		})
	}

	if log.Len() != 3 {
		t.Fatalf("expected capacity 3, got %d", log.Len())
	}
	records := log.Snapshot()
	if records[0].Guideline != "g3" || records[2].Guideline != "g5" {
		t.Fatalf("expected oldest records evicted, got %+v", records)
	}
}

func TestAuditLogNilSafe(t *testing.T) {
	var log *AuditLog
	log.Record(AttemptRecord{JobID: "j1"})
	if log.Snapshot() != nil {
		t.Fatal("nil log snapshot must be nil")
	}
	if log.Len() != 0 {
		t.Fatal("nil log length must be zero")
	}
}
