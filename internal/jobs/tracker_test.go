package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftsmith/internal/db"
	"draftsmith/internal/models"
)

func newTracker(t *testing.T) (*Tracker, *models.GenerationJob) {
	t.Helper()
	tracker := NewTracker(db.NewMemory())
	job, err := tracker.Create(context.Background(), "task-1", "gemini", "veo", "instr-1")
	require.NoError(t, err)
	require.Equal(t, models.JobQueued, job.Status)
	return tracker, job
}

func TestTransitionHappyPath(t *testing.T) {
	tracker, job := newTracker(t)
	ctx := context.Background()

	job, err := tracker.Transition(ctx, job.ID, models.JobRunning, nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunning, job.Status)

	job, err = tracker.Transition(ctx, job.ID, models.JobCompleted, func(j *models.GenerationJob) {
		j.ResultRef = "https://example.com/v.mp4"
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, "https://example.com/v.mp4", job.ResultRef)
}

func TestTerminalIsNoOp(t *testing.T) {
	tracker, job := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Transition(ctx, job.ID, models.JobRunning, nil)
	require.NoError(t, err)
	job, err = tracker.Transition(ctx, job.ID, models.JobCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)

	// Further transitions leave status untouched and do not error
	after, err := tracker.Transition(ctx, job.ID, models.JobFailed, func(j *models.GenerationJob) {
		j.Error = "should not land"
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, after.Status)
	assert.Empty(t, after.Error)

	after, err = tracker.SetProgress(ctx, job.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 100, after.Progress)
}

func TestIllegalTransitionIsNoOp(t *testing.T) {
	tracker, job := newTracker(t)
	ctx := context.Background()

	// queued cannot jump straight to completed
	after, err := tracker.Transition(ctx, job.ID, models.JobCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, after.Status)

	// but queued can fail directly
	after, err = tracker.Transition(ctx, job.ID, models.JobFailed, func(j *models.GenerationJob) {
		j.Error = "provider rejected"
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, after.Status)
	assert.Equal(t, "provider rejected", after.Error)
}

func TestCancelFromQueuedAndRunning(t *testing.T) {
	ctx := context.Background()
	tracker, job := newTracker(t)

	canceled, err := tracker.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCanceled, canceled.Status)

	tracker2, job2 := newTracker(t)
	_, err = tracker2.Transition(ctx, job2.ID, models.JobRunning, nil)
	require.NoError(t, err)
	canceled, err = tracker2.Cancel(ctx, job2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCanceled, canceled.Status)
}

func TestProgressIsMonotonic(t *testing.T) {
	tracker, job := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Transition(ctx, job.ID, models.JobRunning, nil)
	require.NoError(t, err)

	after, err := tracker.SetProgress(ctx, job.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, after.Progress)

	after, err = tracker.SetProgress(ctx, job.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 40, after.Progress)
}

func TestPollUntilComplete(t *testing.T) {
	tracker, job := newTracker(t)
	ctx := context.Background()

	reports := []Status{
		{Progress: 30},
		{Progress: 60},
		{Done: true, ResultRef: "https://example.com/v.mp4"},
	}
	i := 0
	checker := CheckerFunc(func(ctx context.Context, taskID string) (Status, error) {
		assert.Equal(t, "task-1", taskID)
		s := reports[i]
		if i < len(reports)-1 {
			i++
		}
		return s, nil
	})

	got, err := tracker.Poll(ctx, job.ID, checker, PollConfig{Interval: time.Millisecond, MaxAttempts: 10})
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "https://example.com/v.mp4", got.ResultRef)
}

func TestPollReportsUpstreamFailure(t *testing.T) {
	tracker, job := newTracker(t)

	checker := CheckerFunc(func(ctx context.Context, taskID string) (Status, error) {
		return Status{Failed: true, Error: "quota exceeded"}, nil
	})

	got, err := tracker.Poll(context.Background(), job.ID, checker, PollConfig{Interval: time.Millisecond, MaxAttempts: 5})
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, "quota exceeded", got.Error)
}

func TestPollTimeoutLeavesJobUntouched(t *testing.T) {
	tracker, job := newTracker(t)

	checker := CheckerFunc(func(ctx context.Context, taskID string) (Status, error) {
		return Status{Progress: 10}, nil
	})

	got, err := tracker.Poll(context.Background(), job.ID, checker, PollConfig{Interval: time.Millisecond, MaxAttempts: 3})
	assert.ErrorIs(t, err, ErrJobTimeout)
	assert.False(t, got.Status.Terminal())

	// The stored record still reflects progress, not failure
	stored, err := tracker.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunning, stored.Status)
}

func TestPollCancellation(t *testing.T) {
	tracker, job := newTracker(t)
	ctx, cancel := context.WithCancel(context.Background())

	checker := CheckerFunc(func(ctx context.Context, taskID string) (Status, error) {
		cancel()
		return Status{Progress: 10}, nil
	})

	_, err := tracker.Poll(ctx, job.ID, checker, PollConfig{Interval: time.Minute, MaxAttempts: 10})
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := tracker.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, stored.Status.Terminal())
}

func TestPollAlreadyTerminal(t *testing.T) {
	tracker, job := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Cancel(ctx, job.ID)
	require.NoError(t, err)

	called := false
	checker := CheckerFunc(func(ctx context.Context, taskID string) (Status, error) {
		called = true
		return Status{}, nil
	})

	got, err := tracker.Poll(ctx, job.ID, checker, DefaultPollConfig())
	require.NoError(t, err)
	assert.Equal(t, models.JobCanceled, got.Status)
	assert.False(t, called)
}

func TestStateMachine(t *testing.T) {
	assert.True(t, models.JobQueued.CanTransition(models.JobRunning))
	assert.True(t, models.JobQueued.CanTransition(models.JobFailed))
	assert.True(t, models.JobQueued.CanTransition(models.JobCanceled))
	assert.False(t, models.JobQueued.CanTransition(models.JobCompleted))

	assert.True(t, models.JobRunning.CanTransition(models.JobCompleted))
	assert.True(t, models.JobRunning.CanTransition(models.JobFailed))
	assert.True(t, models.JobRunning.CanTransition(models.JobCanceled))

	for _, terminal := range []models.JobStatus{models.JobCompleted, models.JobFailed, models.JobCanceled} {
		assert.True(t, terminal.Terminal())
		for _, next := range []models.JobStatus{models.JobQueued, models.JobRunning, models.JobCompleted, models.JobFailed, models.JobCanceled} {
			assert.False(t, terminal.CanTransition(next), "%s -> %s", terminal, next)
		}
	}
}
