package jobs

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"guardrail/internal/evaluator"
	"guardrail/internal/logging"
	"guardrail/internal/prompts"
	"guardrail/internal/ruleset"
	"guardrail/internal/verdict"
)

// DocumentStore stages uploaded documents and prepares the evaluation
// bundle. Implemented by docstore.Store.
type DocumentStore interface {
	Stage(jobID string, name string, r io.Reader) (string, error)
	Prepare(jobID string, paths []string) (string, error)
	Cleanup(jobID string) error
}

// Config tunes the runner.
type Config struct {
	// MaxConcurrent bounds how many guidelines are evaluated at once across
	// a job. Evaluator calls are minutes long, so this is the engine's main
	// throughput and rate-limit knob.
	MaxConcurrent     int
	HeartbeatInterval time.Duration
	RetryMaxAttempts  int
	RetryBaseDelay    time.Duration
	// ResumeIncomplete re-dispatches unfinished guidelines when a job is
	// recovered after a restart.
	ResumeIncomplete bool
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     3,
		HeartbeatInterval: 30 * time.Second,
		RetryMaxAttempts:  3,
		RetryBaseDelay:    30 * time.Second,
		ResumeIncomplete:  true,
	}
}

// Runner executes jobs: it prepares documents, dispatches guidelines to a
// bounded worker pool, and finalizes the report.
type Runner struct {
	store     Store
	docs      DocumentStore
	eval      evaluator.Evaluator
	rules     ruleset.Provider
	templates prompts.Templates
	parser    *verdict.Parser
	audit     *AuditLog
	metrics   *Metrics
	cfg       Config
	logger    logging.Logger
}

// NewRunner wires a runner. audit and metrics may be nil.
func NewRunner(store Store, docs DocumentStore, eval evaluator.Evaluator, rules ruleset.Provider,
	templates prompts.Templates, audit *AuditLog, metrics *Metrics, cfg Config, logger logging.Logger) *Runner {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RetryMaxAttempts < 1 {
		cfg.RetryMaxAttempts = 1
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	logger = logging.OrNop(logger)
	return &Runner{
		store:     store,
		docs:      docs,
		eval:      eval,
		rules:     rules,
		templates: templates,
		parser:    verdict.NewParser(templates.AffirmativeToken, templates.NegativeToken, logger),
		audit:     audit,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunJob executes a queued job to completion.
func (r *Runner) RunJob(ctx context.Context, jobID string) error {
	return r.run(ctx, jobID, false)
}

// ResumeJob continues a job interrupted by a restart, re-evaluating only the
// guidelines that never finished.
func (r *Runner) ResumeJob(ctx context.Context, jobID string) error {
	return r.run(ctx, jobID, true)
}

func (r *Runner) run(ctx context.Context, jobID string, resume bool) error {
	job, err := r.store.Get(jobID)
	if err != nil {
		return err
	}
	logger := logging.WithJobID(r.logger, jobID)

	r.metrics.IncActiveJobs()
	defer r.metrics.DecActiveJobs()

	// A rule set that does not resolve fails the whole job before any
	// guideline is dispatched.
	set, err := r.rules.Get(job.RuleSet)
	if err != nil {
		r.failJob(jobID, fmt.Sprintf("rule set %q could not be resolved", job.RuleSet))
		return err
	}

	if _, err := r.store.Update(jobID, func(j *Job) {
		j.Status = StatusProcessing
		j.Message = "Preparing documents"
		j.TotalGuidelines = len(set.Guidelines)
	}); err != nil {
		return err
	}

	docPath, err := r.docs.Prepare(jobID, job.Documents)
	if err != nil {
		r.failJob(jobID, fmt.Sprintf("document preparation failed: %v", err))
		return err
	}

	ref, err := r.eval.UploadDocument(ctx, docPath)
	if err != nil {
		r.failJob(jobID, fmt.Sprintf("document upload failed: %v", err))
		return err
	}
	refs := []evaluator.DocumentRef{ref}
	defer func() {
		// Cleanup runs even when ctx is cancelled; failures are logged and
		// otherwise ignored, matching the rest of the teardown path.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := r.eval.DeleteDocument(cleanupCtx, ref); err != nil {
			logger.Warn("deleting uploaded document %s failed: %v", ref.ID, err)
		}
		if err := r.docs.Cleanup(jobID); err != nil {
			logger.Warn("staging cleanup failed: %v", err)
		}
	}()

	// On resume, results recorded before the restart are carried over.
	done := make(map[string]GuidelineResult)
	if resume {
		for _, res := range job.Results {
			done[resultKey(res)] = res
		}
	}

	now := time.Now()
	if _, err := r.store.Update(jobID, func(j *Job) {
		if j.Progress == nil {
			j.Progress = make(map[string]GuidelineProgress)
		}
		for _, g := range set.Guidelines {
			key := g.Key()
			if _, ok := done[key]; ok {
				continue
			}
			j.Progress[key] = GuidelineProgress{State: GuidelinePending, UpdatedAt: now}
		}
		j.CompletedGuidelines = len(done)
		j.Message = fmt.Sprintf("Evaluating %d guidelines", len(set.Guidelines))
	}); err != nil {
		return err
	}

	logger.Info("dispatching %d guidelines (%d already done, %d workers)",
		len(set.Guidelines)-len(done), len(done), r.cfg.MaxConcurrent)

	// Results land in a slice indexed by the guideline's position in the
	// rule set, so completion order never affects the report.
	results := make([]GuidelineResult, len(set.Guidelines))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrent)
	for i, guideline := range set.Guidelines {
		if res, ok := done[guideline.Key()]; ok {
			results[i] = res
			continue
		}
		g.Go(func() error {
			res := r.runGuidelineSafe(gctx, jobID, guideline, refs)

			mu.Lock()
			results[i] = res
			mu.Unlock()

			// The counter follows len(j.Results) under the store lock;
			// a value computed outside could persist out of order.
			if _, err := r.store.Update(jobID, func(j *Job) {
				j.Results = append(j.Results, res)
				j.CompletedGuidelines = len(j.Results)
				j.Message = fmt.Sprintf("Evaluated %d/%d guidelines", j.CompletedGuidelines, len(set.Guidelines))
			}); err != nil {
				logger.Warn("recording result for %q failed: %v", guideline.Key(), err)
			}
			return nil // one guideline's failure never fails the job
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		// Shutdown interrupted the pool. Leave the job processing so the
		// next start recovers it instead of finalizing partial results.
		logger.Warn("job interrupted: %v", ctx.Err())
		return ctx.Err()
	}

	report := BuildReport(jobID, set, results)
	if _, err := r.store.Update(jobID, func(j *Job) {
		j.Status = StatusCompleted
		j.Message = "Analysis complete"
		j.CompletedGuidelines = len(results)
		j.Results = results
		j.Report = report
	}); err != nil {
		return err
	}

	r.metrics.JobFinished(StatusCompleted)
	logger.Info("job complete: %d compliant, %d non-compliant, %d unknown, %d errors",
		report.Compliant, report.NonCompliant, report.Unknown, report.Errors)
	return nil
}

// failJob marks a job terminally failed before dispatch.
func (r *Runner) failJob(jobID, message string) {
	if _, err := r.store.Update(jobID, func(j *Job) {
		j.Status = StatusError
		j.Message = message
	}); err != nil {
		r.logger.Error("marking job %s failed: %v", jobID, err)
		return
	}
	r.metrics.JobFinished(StatusError)
}

// resultKey mirrors ruleset.Guideline.Key for a stored result.
func resultKey(res GuidelineResult) string {
	return ruleset.Guideline{Number: res.Number, Title: res.Title}.Key()
}
