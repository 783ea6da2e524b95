package jobs

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AttemptOutcome labels one evaluation attempt in the audit log.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptRetried   AttemptOutcome = "retried"
	AttemptFailed    AttemptOutcome = "failed"
)

// AttemptRecord is one evaluator call as seen by the audit log.
type AttemptRecord struct {
	JobID     string         `json:"job_id"`
	Guideline string         `json:"guideline"`
	Attempt   int            `json:"attempt"`
	Outcome   AttemptOutcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	Elapsed   time.Duration  `json:"elapsed"`
	At        time.Time      `json:"at"`
}

// AuditLog keeps the most recent evaluation attempts process-wide, capped so
// a long-running server cannot grow without bound. Old records fall off in
// insertion order.
type AuditLog struct {
	seq     atomic.Uint64
	records *lru.Cache[uint64, AttemptRecord]
}

// NewAuditLog creates a log holding at most capacity records.
func NewAuditLog(capacity int) (*AuditLog, error) {
	records, err := lru.New[uint64, AttemptRecord](capacity)
	if err != nil {
		return nil, err
	}
	return &AuditLog{records: records}, nil
}

// Record appends one attempt. Safe for concurrent use.
func (a *AuditLog) Record(record AttemptRecord) {
	if a == nil {
		return
	}
	if record.At.IsZero() {
		record.At = time.Now()
	}
	a.records.Add(a.seq.Add(1), record)
}

// Snapshot returns the retained records, oldest first.
func (a *AuditLog) Snapshot() []AttemptRecord {
	if a == nil {
		return nil
	}
	keys := a.records.Keys()
	out := make([]AttemptRecord, 0, len(keys))
	for _, key := range keys {
		if record, ok := a.records.Peek(key); ok {
			out = append(out, record)
		}
	}
	return out
}

// Len reports how many records are retained.
func (a *AuditLog) Len() int {
	if a == nil {
		return 0
	}
	return a.records.Len()
}
