package jobs

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"guardrail/internal/async"
	"guardrail/internal/errors"
	"guardrail/internal/evaluator"
	"guardrail/internal/logging"
	"guardrail/internal/ruleset"
	"guardrail/internal/verdict"
)

// runGuidelineSafe contains a panicking evaluation so one bad guideline can
// never take down the rest of the job.
func (r *Runner) runGuidelineSafe(ctx context.Context, jobID string, g ruleset.Guideline, refs []evaluator.DocumentRef) (result GuidelineResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic evaluating guideline %q in job %s: %v\n%s", g.Key(), jobID, rec, debug.Stack())
			result = GuidelineResult{
				Number: g.Number,
				Title:  g.Title,
				Verdict: verdict.Verdict{
					Compliance:  verdict.Error,
					Explanation: "Evaluation aborted by an internal error.",
				},
			}
			r.setProgress(jobID, g.Key(), func(p *GuidelineProgress) {
				p.State = GuidelineFailed
				p.Message = "evaluation panicked"
			})
			r.metrics.GuidelineResult(string(verdict.Error))
		}
	}()
	return r.runGuideline(ctx, jobID, g, refs)
}

// runGuideline evaluates one guideline: heartbeat goroutine for liveness,
// retry loop around the evaluator call, verdict parsing on success, Error
// verdict on exhaustion.
func (r *Runner) runGuideline(ctx context.Context, jobID string, g ruleset.Guideline, refs []evaluator.DocumentRef) GuidelineResult {
	key := g.Key()
	logger := logging.WithJobID(r.logger, jobID)
	started := time.Now()

	r.setProgress(jobID, key, func(p *GuidelineProgress) {
		p.State = GuidelineProcessing
		p.Message = "evaluation started"
		p.LastHeartbeat = time.Now()
	})

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbDone sync.WaitGroup
	hbDone.Add(1)
	async.Go(logger, "heartbeat "+key, func() {
		defer hbDone.Done()
		r.heartbeatLoop(hbCtx, jobID, key)
	})
	defer func() {
		stopHeartbeat()
		hbDone.Wait()
	}()

	prompt := r.templates.Compose(g.Number, g.Title, g.Text)

	attempts := 0
	retryCfg := errors.RetryConfig{
		MaxAttempts: r.cfg.RetryMaxAttempts,
		BaseDelay:   r.cfg.RetryBaseDelay,
		Backoff:     errors.BackoffLinear,
		OnAttempt: func(attempt int, elapsed time.Duration, err error) {
			attempts = attempt
			outcome := AttemptSucceeded
			errText := ""
			if err != nil {
				errText = err.Error()
				if errors.IsTransient(err) && attempt < r.cfg.RetryMaxAttempts {
					outcome = AttemptRetried
					r.metrics.IncRetry()
				} else {
					outcome = AttemptFailed
				}
			}
			r.audit.Record(AttemptRecord{
				JobID:     jobID,
				Guideline: key,
				Attempt:   attempt,
				Outcome:   outcome,
				Error:     errText,
				Elapsed:   elapsed,
			})
			r.metrics.ObserveAttempt(outcome, elapsed)
			r.setProgress(jobID, key, func(p *GuidelineProgress) {
				p.Attempts = attempt
				switch outcome {
				case AttemptRetried:
					p.Message = fmt.Sprintf("attempt %d/%d failed, retrying", attempt, r.cfg.RetryMaxAttempts)
				case AttemptFailed:
					p.Message = fmt.Sprintf("attempt %d/%d failed", attempt, r.cfg.RetryMaxAttempts)
				default:
					p.Message = fmt.Sprintf("attempt %d succeeded", attempt)
				}
			})
		},
	}

	raw, err := errors.RetryWithResult(ctx, retryCfg, logger, func(ctx context.Context) (string, error) {
		return r.eval.Evaluate(ctx, refs, prompt)
	})

	result := GuidelineResult{
		Number:   g.Number,
		Title:    g.Title,
		Attempts: attempts,
		Elapsed:  time.Since(started),
	}

	if err != nil {
		logger.Warn("guideline %q failed after %d attempts: %v", key, attempts, err)
		result.Verdict = verdict.Verdict{
			Compliance:  verdict.Error,
			Explanation: "Evaluation failed: " + err.Error(),
		}
		r.setProgress(jobID, key, func(p *GuidelineProgress) {
			p.State = GuidelineFailed
			p.Message = "evaluation failed"
		})
	} else {
		result.Verdict = r.parser.Parse(raw)
		r.setProgress(jobID, key, func(p *GuidelineProgress) {
			p.State = GuidelineCompleted
			p.Message = "evaluation complete"
		})
	}

	r.metrics.GuidelineResult(string(result.Verdict.Compliance))
	return result
}

// heartbeatLoop refreshes the guideline's liveness timestamp until stopped.
func (r *Runner) heartbeatLoop(ctx context.Context, jobID, key string) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.setProgress(jobID, key, func(p *GuidelineProgress) {
				p.LastHeartbeat = time.Now()
			})
		}
	}
}

// setProgress mutates one guideline's progress entry under the store lock.
// Updates for purged jobs are dropped: a heartbeat must never resurrect a
// record retention already removed.
func (r *Runner) setProgress(jobID, key string, mutate func(*GuidelineProgress)) {
	_, err := r.store.Update(jobID, func(job *Job) {
		if job.Progress == nil {
			job.Progress = make(map[string]GuidelineProgress)
		}
		p := job.Progress[key]
		mutate(&p)
		p.UpdatedAt = time.Now()
		job.Progress[key] = p
	})
	if err != nil && !stderrors.Is(err, ErrJobNotFound) {
		r.logger.Warn("progress update for job %s guideline %q failed: %v", jobID, key, err)
	}
}
