// Package jobs implements the evaluation engine: durable job records, the
// bounded worker pool that evaluates guidelines, per-guideline retry and
// heartbeat tracking, report aggregation, and crash recovery.
package jobs

import (
	"time"

	"guardrail/internal/verdict"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var validStatuses = map[Status]struct{}{
	StatusQueued:     {},
	StatusProcessing: {},
	StatusCompleted:  {},
	StatusError:      {},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := validStatuses[s]
	return ok
}

// IsTerminal reports whether a job in this status will never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// GuidelineState tracks one guideline's progress inside a job.
type GuidelineState string

const (
	GuidelinePending    GuidelineState = "pending"
	GuidelineProcessing GuidelineState = "processing"
	GuidelineCompleted  GuidelineState = "completed"
	GuidelineFailed     GuidelineState = "failed"
)

// GuidelineProgress is the per-guideline liveness record. LastHeartbeat is
// refreshed every heartbeat interval while an evaluation call is in flight,
// which is what distinguishes a slow job from a dead one.
type GuidelineProgress struct {
	State         GuidelineState `json:"state"`
	Attempts      int            `json:"attempts"`
	Message       string         `json:"message,omitempty"`
	LastHeartbeat time.Time      `json:"last_heartbeat,omitzero"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// GuidelineResult is the final outcome for one guideline.
type GuidelineResult struct {
	Number   int             `json:"number"`
	Title    string          `json:"title"`
	Verdict  verdict.Verdict `json:"verdict"`
	Attempts int             `json:"attempts"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// Job is the durable record of one evaluation run. Every field the engine
// mutates is persisted immediately, so a restart can reconstruct exactly how
// far each guideline got.
type Job struct {
	ID            string   `json:"id"`
	Status        Status   `json:"status"`
	Message       string   `json:"message,omitempty"`
	RuleSet       string   `json:"ruleset"`
	Documents     []string `json:"documents"`
	DocumentNames []string `json:"document_names,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TotalGuidelines     int                          `json:"total_guidelines"`
	CompletedGuidelines int                          `json:"completed_guidelines"`
	Progress            map[string]GuidelineProgress `json:"progress,omitempty"`
	Results             []GuidelineResult            `json:"results,omitempty"`
	Report              *Report                      `json:"report,omitempty"`
}

// Clone returns a deep copy so callers can read a job without racing the
// engine's mutations.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	copied := *j
	copied.Documents = append([]string(nil), j.Documents...)
	copied.DocumentNames = append([]string(nil), j.DocumentNames...)
	if j.Progress != nil {
		copied.Progress = make(map[string]GuidelineProgress, len(j.Progress))
		for k, v := range j.Progress {
			copied.Progress[k] = v
		}
	}
	copied.Results = append([]GuidelineResult(nil), j.Results...)
	if j.Report != nil {
		report := *j.Report
		report.Entries = append([]ReportEntry(nil), j.Report.Entries...)
		copied.Report = &report
	}
	return &copied
}

// Report is the deterministic aggregation of a job's results.
type Report struct {
	JobID        string        `json:"job_id"`
	RuleSet      string        `json:"ruleset"`
	GeneratedAt  time.Time     `json:"generated_at"`
	Total        int           `json:"total"`
	Compliant    int           `json:"compliant"`
	NonCompliant int           `json:"non_compliant"`
	Unknown      int           `json:"unknown"`
	Errors       int           `json:"errors"`
	Entries      []ReportEntry `json:"entries"`
	Summary      string        `json:"summary"`
}

// ReportEntry is one guideline's row in the report, ordered by guideline
// number regardless of completion order.
type ReportEntry struct {
	Number      int                `json:"number"`
	Title       string             `json:"title"`
	Compliance  verdict.Compliance `json:"compliance"`
	Explanation string             `json:"explanation"`
	Category    string             `json:"category,omitempty"`
	Severity    string             `json:"severity,omitempty"`
	Attempts    int                `json:"attempts"`
}
