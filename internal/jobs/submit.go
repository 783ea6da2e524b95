package jobs

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Upload is one document handed in at submission time.
type Upload struct {
	Name   string
	Reader io.Reader
}

// Submit stages the uploaded documents, creates the queued job record, and
// returns it. Execution is the caller's move: the HTTP layer starts RunJob on
// a background goroutine, the CLI runs it inline.
func (r *Runner) Submit(rulesetName string, uploads []Upload) (*Job, error) {
	if rulesetName == "" {
		return nil, fmt.Errorf("rule set name is required")
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("at least one document is required")
	}

	jobID := uuid.NewString()

	paths := make([]string, 0, len(uploads))
	names := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		path, err := r.docs.Stage(jobID, upload.Name, upload.Reader)
		if err != nil {
			if cleanupErr := r.docs.Cleanup(jobID); cleanupErr != nil {
				r.logger.Warn("cleanup after failed staging: %v", cleanupErr)
			}
			return nil, fmt.Errorf("stage %s: %w", upload.Name, err)
		}
		paths = append(paths, path)
		names = append(names, upload.Name)
	}

	job := &Job{
		ID:            jobID,
		Status:        StatusQueued,
		Message:       "Job queued",
		RuleSet:       rulesetName,
		Documents:     paths,
		DocumentNames: names,
		CreatedAt:     time.Now(),
	}
	if err := r.store.Create(job); err != nil {
		if cleanupErr := r.docs.Cleanup(jobID); cleanupErr != nil {
			r.logger.Warn("cleanup after failed create: %v", cleanupErr)
		}
		return nil, err
	}

	r.logger.Info("job %s submitted: rule set %q, %d documents", jobID, rulesetName, len(uploads))
	return job, nil
}
