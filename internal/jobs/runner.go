// Package jobs runs fire-and-forget background tasks with polled status.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job statuses. Jobs move queued -> running -> {succeeded | failed} and
// are not cancellable mid-run; a failure leaves whatever the task already
// applied in place.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Job is the polled status record for a background task.
type Job struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Runner tracks background jobs by id. Submitted tasks run on their own
// goroutine detached from the triggering request; callers poll Get.
type Runner struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets a logger for job lifecycle events.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates an empty runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{jobs: make(map[string]*Job)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit enqueues fn under a fresh job id and returns the job handle
// immediately. fn receives a background context: jobs outlive the request
// that triggered them and are not cancellable.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) *Job {
	job := &Job{
		ID:         uuid.New().String(),
		Name:       name,
		Status:     StatusQueued,
		EnqueuedAt: time.Now(),
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		started := time.Now()
		r.update(job.ID, func(j *Job) {
			j.Status = StatusRunning
			j.StartedAt = &started
		})
		err := fn(context.Background())
		finished := time.Now()
		r.update(job.ID, func(j *Job) {
			j.FinishedAt = &finished
			if err != nil {
				j.Status = StatusFailed
				j.Error = err.Error()
			} else {
				j.Status = StatusSucceeded
			}
		})
		if r.logger != nil {
			if err != nil {
				r.logger.Error("background job failed",
					zap.String("job_id", job.ID), zap.String("name", name), zap.Error(err))
			} else {
				r.logger.Info("background job finished",
					zap.String("job_id", job.ID), zap.String("name", name),
					zap.Duration("took", finished.Sub(started)))
			}
		}
	}()
	return r.snapshot(job.ID)
}

// Get returns a snapshot of the job with the given id.
func (r *Runner) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Wait blocks until all submitted jobs have finished. Used on shutdown
// and in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}

func (r *Runner) snapshot(id string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := *r.jobs[id]
	return &cp
}
