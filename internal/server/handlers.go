package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"guardrail/internal/async"
	"guardrail/internal/jobs"
)

// handleSubmitJob accepts a multipart form with one or more documents under
// "files" and the rule set identifier under "ruleset". The job is queued and
// executed on a background goroutine; the response returns immediately.
func (s *Server) handleSubmitJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid multipart form: %v", err)})
		return
	}

	rulesetName := c.PostForm("ruleset")
	if rulesetName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ruleset form field is required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file is required"})
		return
	}

	uploads := make([]jobs.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("open upload %s: %v", fh.Filename, err)})
			return
		}
		defer f.Close()
		uploads = append(uploads, jobs.Upload{Name: fh.Filename, Reader: f})
	}

	job, err := s.runner.Submit(rulesetName, uploads)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The request context dies with the response; the job must not.
	async.Go(s.logger, "job "+job.ID, func() {
		if err := s.runner.RunJob(context.Background(), job.ID); err != nil {
			s.logger.Error("job %s failed: %v", job.ID, err)
		}
	})

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func (s *Server) handleListJobs(c *gin.Context) {
	all, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": all})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// handleGetReport returns the final report. Jobs still in flight return 409 so
// clients can distinguish "not yet" from "no such job".
func (s *Server) handleGetReport(c *gin.Context) {
	job, err := s.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job.Report == nil {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("report not ready: job is %s", job.Status)})
		return
	}
	c.JSON(http.StatusOK, job.Report)
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")
	job, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !job.Status.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "job is still running"})
		return
	}
	if err := s.store.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) handleListRuleSets(c *gin.Context) {
	names, err := s.rules.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rulesets": names})
}

// handleReloadRuleSets drops the provider's cache so edited rule set files
// are picked up without a restart.
func (s *Server) handleReloadRuleSets(c *gin.Context) {
	reloader, ok := s.rules.(interface{ Reload() })
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "rule set provider does not support reloading"})
		return
	}
	reloader.Reload()
	names, err := s.rules.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("rule sets reloaded: %d available", len(names))
	c.JSON(http.StatusOK, gin.H{"rulesets": names})
}

// handleAudit returns the retained evaluation attempt records, oldest first.
func (s *Server) handleAudit(c *gin.Context) {
	records := s.audit.Snapshot()
	if records == nil {
		records = []jobs.AttemptRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"attempts": records})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
