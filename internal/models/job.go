package models

import "time"

// JobStatus is the lifecycle state of an asynchronous generation job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCanceled
}

// CanTransition reports whether moving to next is a legal forward step.
// Completion requires the job to have run; failure may hit a queued job
// directly. Canceled is reachable from any non-terminal state.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() || s == next {
		return false
	}
	switch next {
	case JobRunning:
		return s == JobQueued
	case JobCompleted:
		return s == JobRunning
	case JobFailed:
		return s == JobRunning || s == JobQueued
	case JobCanceled:
		return true
	default:
		return false
	}
}

// GenerationJob tracks a backend-deferred generation result. Created when
// a backend returns a task handle instead of bytes; mutated only by the
// polling handler afterwards.
type GenerationJob struct {
	ID            string     `json:"id"`
	InstructionID string     `json:"instruction_id,omitempty"`
	TaskID        string     `json:"task_id"`
	ProviderID    string     `json:"provider_id"`
	ModelID       string     `json:"model_id"`
	Status        JobStatus  `json:"status"`
	Progress      int        `json:"progress"`
	ResultRef     string     `json:"result_ref,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
