package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"guardrail/internal/logging"
)

// ErrJobNotFound is returned when a job id does not resolve, including jobs
// already purged by retention.
var ErrJobNotFound = errors.New("job not found")

// Store is the durable job state store.
type Store interface {
	// Create persists a new job record. The id must be unused.
	Create(job *Job) error
	// Get returns a copy of the job, applying lazy retention eviction.
	Get(id string) (*Job, error)
	// List returns copies of all live jobs sorted by creation time, newest
	// first, applying lazy retention eviction.
	List() ([]*Job, error)
	// Update applies mutate to the job under the store lock and persists the
	// result, the read-merge-write that keeps concurrent guideline updates
	// from clobbering each other. Unknown ids return ErrJobNotFound.
	Update(id string, mutate func(*Job)) (*Job, error)
	// Delete removes the job record. Missing ids are not an error.
	Delete(id string) error
}

// FileStore keeps every job in memory and mirrors each record to one
// pretty-printed JSON file, written inside the store lock on every mutation.
type FileStore struct {
	dir       string
	retention time.Duration
	logger    logging.Logger
	now       func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens a store rooted at dir and loads every record found
// there. Files that fail to parse are skipped with a warning rather than
// taking the whole store down.
func NewFileStore(dir string, retention time.Duration, logger logging.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job store dir: %w", err)
	}

	s := &FileStore{
		dir:       dir,
		retention: retention,
		logger:    logging.OrNop(logger),
		now:       time.Now,
		jobs:      make(map[string]*Job),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan job store dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable job record %s: %v", entry.Name(), err)
			continue
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			s.logger.Warn("skipping corrupt job record %s: %v", entry.Name(), err)
			continue
		}
		if job.ID == "" || !job.Status.IsValid() {
			s.logger.Warn("skipping malformed job record %s", entry.Name())
			continue
		}
		s.jobs[job.ID] = &job
	}

	s.logger.Info("job store loaded %d records from %s", len(s.jobs), dir)
	return s, nil
}

// Create persists a new job record.
func (s *FileStore) Create(job *Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	stored := job.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.UpdatedAt = stored.CreatedAt

	if err := s.persist(stored); err != nil {
		return err
	}
	s.jobs[stored.ID] = stored
	*job = *stored.Clone()
	return nil
}

// Get returns a copy of the job.
func (s *FileStore) Get(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if s.evictIfExpired(job) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

// List returns all live jobs, newest first.
func (s *FileStore) List() ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if s.evictIfExpired(job) {
			continue
		}
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update mutates a job under the store lock and persists it.
func (s *FileStore) Update(id string, mutate func(*Job)) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		s.logger.Warn("update for unknown job %s dropped", id)
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	mutate(job)
	job.UpdatedAt = s.now()

	if err := s.persist(job); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// Delete removes the job from memory and disk.
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id)
}

// evictIfExpired drops terminal jobs past the retention window. Called with
// the store lock held.
func (s *FileStore) evictIfExpired(job *Job) bool {
	if s.retention <= 0 || !job.Status.IsTerminal() {
		return false
	}
	if s.now().Sub(job.CreatedAt) < s.retention {
		return false
	}
	s.logger.Info("retention evicting job %s (created %s)", job.ID, job.CreatedAt.Format(time.RFC3339))
	if err := s.remove(job.ID); err != nil {
		s.logger.Warn("retention eviction of %s failed: %v", job.ID, err)
	}
	return true
}

func (s *FileStore) remove(id string) error {
	delete(s.jobs, id)
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove job record: %w", err)
	}
	return nil
}

// persist writes the record through a temp file and rename so a crash cannot
// leave a half-written job on disk.
func (s *FileStore) persist(job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	path := s.path(job.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit job %s: %w", job.ID, err)
	}
	return nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
