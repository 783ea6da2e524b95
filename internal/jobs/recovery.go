package jobs

import (
	"context"
	"fmt"

	"guardrail/internal/async"
)

// RecoveryOutcome describes what startup recovery did with one job.
type RecoveryOutcome string

const (
	// RecoveryAlreadyComplete means the job was terminal; nothing to do.
	RecoveryAlreadyComplete RecoveryOutcome = "already_complete"
	// RecoveryFinalized means every guideline had a recorded result and only
	// the aggregation step was missing; the report was synthesized and the
	// job marked completed without re-running anything.
	RecoveryFinalized RecoveryOutcome = "finalized"
	// RecoveryStillProcessing means unfinished guidelines remain; the job
	// stays in processing and is re-dispatched when resume is enabled.
	RecoveryStillProcessing RecoveryOutcome = "still_processing"
	// RecoveryUnrecoverable means the job's rule set no longer resolves, so
	// neither finalizing nor resuming is possible. The record is left as is.
	RecoveryUnrecoverable RecoveryOutcome = "unrecoverable"
)

// Recover inspects one job found non-terminal after a restart and brings it
// as far forward as the persisted state allows. Recovery is idempotent:
// running it twice on the same state reaches the same outcome.
func (r *Runner) Recover(ctx context.Context, jobID string) (RecoveryOutcome, error) {
	job, err := r.store.Get(jobID)
	if err != nil {
		return "", err
	}
	if job.Status.IsTerminal() {
		return RecoveryAlreadyComplete, nil
	}

	set, err := r.rules.Get(job.RuleSet)
	if err != nil {
		r.logger.Error("job %s is unrecoverable: rule set %q no longer resolves: %v", jobID, job.RuleSet, err)
		return RecoveryUnrecoverable, nil
	}

	recorded := make(map[string]GuidelineResult, len(job.Results))
	for _, res := range job.Results {
		recorded[resultKey(res)] = res
	}

	// All results present means the crash hit between the last guideline
	// and the final aggregation write. Rebuild the ordered slice and finish.
	if len(recorded) >= len(set.Guidelines) {
		ordered := make([]GuidelineResult, 0, len(set.Guidelines))
		complete := true
		for _, g := range set.Guidelines {
			res, ok := recorded[g.Key()]
			if !ok {
				complete = false
				break
			}
			ordered = append(ordered, res)
		}
		if complete {
			report := BuildReport(jobID, set, ordered)
			if _, err := r.store.Update(jobID, func(j *Job) {
				j.Status = StatusCompleted
				j.Message = "Analysis complete (finalized after restart)"
				j.CompletedGuidelines = len(ordered)
				j.Results = ordered
				j.Report = report
			}); err != nil {
				return "", err
			}
			r.metrics.JobFinished(StatusCompleted)
			r.logger.Info("job %s finalized from persisted results", jobID)
			return RecoveryFinalized, nil
		}
	}

	if _, err := r.store.Update(jobID, func(j *Job) {
		j.Message = fmt.Sprintf("Recovered after restart: %d/%d guidelines done", len(recorded), len(set.Guidelines))
	}); err != nil {
		return "", err
	}

	if r.cfg.ResumeIncomplete {
		async.Go(r.logger, "resume "+jobID, func() {
			if err := r.ResumeJob(context.Background(), jobID); err != nil {
				r.logger.Error("resuming job %s failed: %v", jobID, err)
			}
		})
	}
	return RecoveryStillProcessing, nil
}

// RecoverAll runs Recover for every non-terminal job in the store. Called
// once at startup, before the server starts accepting new jobs.
func (r *Runner) RecoverAll(ctx context.Context) (map[RecoveryOutcome]int, error) {
	all, err := r.store.List()
	if err != nil {
		return nil, err
	}

	outcomes := make(map[RecoveryOutcome]int)
	for _, job := range all {
		if job.Status.IsTerminal() {
			continue
		}
		outcome, err := r.Recover(ctx, job.ID)
		if err != nil {
			r.logger.Error("recovery of job %s failed: %v", job.ID, err)
			continue
		}
		outcomes[outcome]++
	}
	if len(outcomes) > 0 {
		r.logger.Info("recovery pass: %v", outcomes)
	}
	return outcomes, nil
}
