// Package docstore stages uploaded documents on local disk and prepares them
// for evaluation: PDFs are validated and, when a job carries several files,
// merged into a single bundle so the evaluator sees one document.
package docstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"guardrail/internal/logging"
)

// Store stages job documents under a root directory, one subdirectory per job.
type Store struct {
	root   string
	logger logging.Logger
	conf   *model.Configuration
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, logger logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Store{
		root:   dir,
		logger: logging.OrNop(logger),
		conf:   conf,
	}, nil
}

// Stage copies an uploaded document into the job's staging directory and
// validates it as a PDF. The stored name keeps the original base name with a
// short unique prefix so duplicate uploads cannot collide.
func (s *Store) Stage(jobID string, name string, r io.Reader) (string, error) {
	dir := s.jobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job staging dir: %w", err)
	}

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	path := filepath.Join(dir, uuid.NewString()[:8]+"_"+base)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create staged document: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write staged document: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close staged document: %w", err)
	}

	if err := api.ValidateFile(path, s.conf); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%s is not a valid PDF: %w", base, err)
	}

	s.logger.Debug("staged %s for job %s", base, jobID)
	return path, nil
}

// Prepare returns the single document to send for evaluation. One staged file
// is used as is; several are merged into bundle.pdf inside the job directory.
func (s *Store) Prepare(jobID string, paths []string) (string, error) {
	switch len(paths) {
	case 0:
		return "", fmt.Errorf("job %s has no staged documents", jobID)
	case 1:
		return paths[0], nil
	}

	merged := filepath.Join(s.jobDir(jobID), "bundle.pdf")
	if err := api.MergeCreateFile(paths, merged, false, s.conf); err != nil {
		return "", fmt.Errorf("merge %d documents: %w", len(paths), err)
	}
	s.logger.Info("merged %d documents into %s for job %s", len(paths), filepath.Base(merged), jobID)
	return merged, nil
}

// Cleanup removes everything staged for a job. Missing directories are fine.
func (s *Store) Cleanup(jobID string) error {
	dir := s.jobDir(jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cleanup job staging: %w", err)
	}
	return nil
}

func (s *Store) jobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}
