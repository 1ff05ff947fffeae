// Package jobs tracks asynchronous generation jobs and their polling.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"draftsmith/internal/db"
	"draftsmith/internal/models"
)

// ErrJobTimeout is returned by Poll when the attempt bound is exhausted
// before the job reaches a terminal state. The job record itself is not
// mutated; the timeout is the caller's policy, not the backend's verdict.
var ErrJobTimeout = errors.New("job polling timed out")

// PollConfig bounds the polling loop.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollConfig allows roughly ten minutes of one-second polls.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: time.Second, MaxAttempts: 600}
}

// Checker reports the upstream state of a deferred task. The video backend
// implements this; tests substitute their own.
type Checker interface {
	Check(ctx context.Context, taskID string) (Status, error)
}

// Status is the upstream task state a Checker reports.
type Status struct {
	Done      bool
	Failed    bool
	Error     string
	Progress  int
	ResultRef string
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, taskID string) (Status, error)

func (f CheckerFunc) Check(ctx context.Context, taskID string) (Status, error) {
	return f(ctx, taskID)
}

// Tracker persists generation jobs and enforces their state machine.
type Tracker struct {
	store db.Store
}

// NewTracker creates a tracker on top of a record store.
func NewTracker(store db.Store) *Tracker {
	return &Tracker{store: store}
}

// Create records a new queued job for a backend task handle.
func (t *Tracker) Create(ctx context.Context, taskID, providerID, modelID, instructionID string) (*models.GenerationJob, error) {
	now := time.Now().UTC()
	job := &models.GenerationJob{
		ID:            uuid.New().String()[:8],
		InstructionID: instructionID,
		TaskID:        taskID,
		ProviderID:    providerID,
		ModelID:       modelID,
		Status:        models.JobQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	slog.Info("job created", "job_id", job.ID, "task_id", taskID, "provider", providerID)
	return job, nil
}

// Get returns one job by id.
func (t *Tracker) Get(ctx context.Context, id string) (*models.GenerationJob, error) {
	return t.store.GetJob(ctx, id)
}

// List returns recent jobs, newest first.
func (t *Tracker) List(ctx context.Context, limit int) ([]models.GenerationJob, error) {
	return t.store.ListJobs(ctx, limit)
}

// Transition moves a job to the next status, applying progress and result
// fields. Illegal transitions and updates to terminal jobs are no-ops: the
// attempt is logged and the stored job returned unchanged.
func (t *Tracker) Transition(ctx context.Context, id string, next models.JobStatus, update func(*models.GenerationJob)) (*models.GenerationJob, error) {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if !job.Status.CanTransition(next) {
		slog.Warn("ignoring illegal job transition",
			"job_id", id, "from", job.Status, "to", next)
		return job, nil
	}

	prev := job.Status
	job.Status = next
	if next == models.JobCompleted {
		job.Progress = 100
	}
	if update != nil {
		update(job)
	}
	job.UpdatedAt = time.Now().UTC()
	if next.Terminal() && job.CompletedAt == nil {
		now := job.UpdatedAt
		job.CompletedAt = &now
	}

	if err := t.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("updating job: %w", err)
	}
	slog.Info("job transitioned", "job_id", id, "from", prev, "to", job.Status)
	return job, nil
}

// SetProgress bumps a running job's progress. Progress never moves
// backwards, and terminal jobs are left untouched.
func (t *Tracker) SetProgress(ctx context.Context, id string, progress int) (*models.GenerationJob, error) {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		slog.Warn("ignoring progress update on terminal job", "job_id", id, "status", job.Status)
		return job, nil
	}
	if progress <= job.Progress {
		return job, nil
	}

	job.Progress = progress
	job.UpdatedAt = time.Now().UTC()
	if err := t.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("updating job progress: %w", err)
	}
	return job, nil
}

// Cancel moves a non-terminal job to canceled.
func (t *Tracker) Cancel(ctx context.Context, id string) (*models.GenerationJob, error) {
	return t.Transition(ctx, id, models.JobCanceled, nil)
}

// Poll checks the upstream task at a fixed interval until the job reaches
// a terminal state or the attempt bound runs out. On timeout it returns
// the last seen job together with ErrJobTimeout without touching the
// record. Context cancellation stops polling the same way.
func (t *Tracker) Poll(ctx context.Context, id string, checker Checker, cfg PollConfig) (*models.GenerationJob, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 600
	}

	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		status, err := checker.Check(ctx, job.TaskID)
		if err != nil {
			slog.Warn("task status check failed", "job_id", id, "error", err)
		} else {
			job, err = t.apply(ctx, job, status)
			if err != nil {
				return nil, err
			}
			if job.Status.Terminal() {
				return job, nil
			}
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
	return job, ErrJobTimeout
}

// apply folds one upstream status report into the stored job.
func (t *Tracker) apply(ctx context.Context, job *models.GenerationJob, status Status) (*models.GenerationJob, error) {
	switch {
	case status.Failed:
		return t.Transition(ctx, job.ID, models.JobFailed, func(j *models.GenerationJob) {
			j.Error = status.Error
		})
	case status.Done:
		if job.Status == models.JobQueued {
			var err error
			job, err = t.Transition(ctx, job.ID, models.JobRunning, nil)
			if err != nil {
				return nil, err
			}
		}
		return t.Transition(ctx, job.ID, models.JobCompleted, func(j *models.GenerationJob) {
			j.Progress = 100
			j.ResultRef = status.ResultRef
		})
	default:
		if job.Status == models.JobQueued {
			var err error
			job, err = t.Transition(ctx, job.ID, models.JobRunning, nil)
			if err != nil {
				return nil, err
			}
		}
		if status.Progress > job.Progress {
			return t.SetProgress(ctx, job.ID, status.Progress)
		}
		return job, nil
	}
}
