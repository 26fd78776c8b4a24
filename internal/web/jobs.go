package web

// jobs.go keeps background export jobs for the HTTP API.
//
// Each job runs on its own export engine so that one client's job never
// supersedes another's; all engines share the store's limiter, which bounds
// how many codecs write at once. Finished jobs are swept after ResultTTL and
// their output files removed.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabx/internal/core"
	"github.com/JonMunkholm/tabx/internal/logging"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// ErrJobRunning is returned when a result is requested before the job finished.
var ErrJobRunning = errors.New("job still running")

// Job is one background export.
type Job struct {
	ID       string
	Format   core.Format
	Filename string
	Path     string
	Created  time.Time

	task *core.Task[*core.ExportResult]
}

// JobStatus is the JSON view of a job.
type JobStatus struct {
	ID       string           `json:"id"`
	Format   string           `json:"format"`
	Filename string           `json:"filename"`
	Created  time.Time        `json:"created"`
	Done     bool             `json:"done"`
	Progress core.RunProgress `json:"progress"`
	Percent  int              `json:"percent"`
	Records  int              `json:"records,omitempty"`
	Bytes    int64            `json:"bytes,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Status returns the job's current state.
func (j *Job) Status() JobStatus {
	p := j.task.Progress()
	st := JobStatus{
		ID:       j.ID,
		Format:   j.Format.String(),
		Filename: j.Filename,
		Created:  j.Created,
		Progress: p,
		Percent:  p.Percent(),
	}
	if res, err, ok := j.task.Result(); ok {
		st.Done = true
		if err != nil {
			st.Error = err.Error()
		} else if res != nil {
			st.Records = res.Records
			st.Bytes = res.Bytes
		}
	}
	return st
}

// JobStoreConfig holds the store's limits.
type JobStoreConfig struct {
	Dir           string        // Output directory (default: system temp dir)
	ResultTTL     time.Duration // Lifetime of finished jobs
	MaxConcurrent int
	MaxWaitTime   time.Duration
}

// JobStore tracks background export jobs.
type JobStore struct {
	cfg     JobStoreConfig
	limiter *core.JobLimiter

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates the output directory and an empty store.
func NewJobStore(cfg JobStoreConfig) (*JobStore, error) {
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "tabx-jobs")
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}
	return &JobStore{
		cfg:     cfg,
		limiter: core.NewJobLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		jobs:    make(map[string]*Job),
	}, nil
}

// Limiter returns the limiter shared by every job.
func (s *JobStore) Limiter() *core.JobLimiter { return s.limiter }

// StartExport queues an export of ds. The job outlives the request: ctx only
// contributes its values (request id, client details).
func (s *JobStore) StartExport(ctx context.Context, ds *core.Dataset, format core.Format, opts core.ExportOptions) (*Job, error) {
	if _, ok := core.LookupEncoder(format); !ok {
		return nil, fmt.Errorf("export %s: %w", format, core.ErrUnsupportedFormat)
	}

	engine := core.NewExportEngine(opts, nil, s.limiter)
	job := &Job{
		Format:   format,
		Filename: exportFilename(ds, format),
		Created:  time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job.Path = filepath.Join(s.cfg.Dir, uuid.NewString()+format.Extension())
	job.task = engine.ExportAsync(context.WithoutCancel(ctx), ds, format, job.Path)
	job.ID = job.task.ID
	s.jobs[job.ID] = job

	logging.WithFields(ctx, "job_id", job.ID, "format", format.String()).
		Info("export job queued", "records", ds.RecordCount())
	return job, nil
}

// Get returns a job by id.
func (s *JobStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// Progress subscribes to a job's progress. The channel closes when it finishes.
func (s *JobStore) Progress(id string) (<-chan core.RunProgress, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return job.task.Subscribe(), nil
}

// Cancel requests cancellation of a running job.
func (s *JobStore) Cancel(id string) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	job.task.Cancel()
	return nil
}

// Result returns the finished export of a job.
func (s *JobStore) Result(id string) (*Job, *core.ExportResult, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	res, err, ok := job.task.Result()
	if !ok {
		return nil, nil, ErrJobRunning
	}
	if err != nil {
		return nil, nil, err
	}
	return job, res, nil
}

// Sweep removes finished jobs created before now minus ResultTTL along with
// their files. It returns the number removed.
func (s *JobStore) Sweep(now time.Time) int {
	cutoff := now.Add(-s.cfg.ResultTTL)

	s.mu.Lock()
	var expired []*Job
	for id, job := range s.jobs {
		if _, _, done := job.task.Result(); done && job.Created.Before(cutoff) {
			expired = append(expired, job)
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, job := range expired {
		if err := os.Remove(job.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove job output", "job_id", job.ID, "error", err)
		}
	}
	return len(expired)
}

// Run sweeps expired jobs every interval until ctx is cancelled.
func (s *JobStore) Run(ctx context.Context, interval time.Duration) {
	slog.Info("job sweeper started", "ttl", s.cfg.ResultTTL, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job sweeper stopped")
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				slog.Info("expired jobs removed", "count", n)
			}
		}
	}
}

// Shutdown cancels every running job and waits for the codecs to stop.
func (s *JobStore) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, job := range s.jobs {
		job.task.Cancel()
	}
	s.mu.RUnlock()
	return s.limiter.WaitForDrain(ctx)
}

func exportFilename(ds *core.Dataset, format core.Format) string {
	name := "export"
	if ds != nil && ds.Name != "" {
		name = ds.Name
	}
	return sanitizeFilename(name) + format.Extension()
}
