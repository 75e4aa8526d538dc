package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teamtasks/internal/model"
)

func periodicTasks(n int) []model.Task {
	tasks := make([]model.Task, n)
	for i := range tasks {
		tasks[i] = model.Task{
			ID:             fmt.Sprintf("task-%03d", i),
			UserAssignedID: fmt.Sprintf("user-%d", i%4),
			SelectedDate:   model.DatePeriodic,
			DatePeriodic:   model.WeekdaysOf(time.Monday),
			Completed:      true,
		}
	}
	return tasks
}

// fakeResetStore keeps completion state in memory so re-running a reset is
// observable. failures maps a batch's first task id to the number of failing attempts.
type fakeResetStore struct {
	mu        sync.Mutex
	tasks     []model.Task
	failures  map[string]int
	attempts  map[string]int
	calls     int
	weekdays  []time.Weekday
	completed map[string]int
}

func newFakeResetStore(tasks []model.Task) *fakeResetStore {
	return &fakeResetStore{
		tasks:     tasks,
		failures:  map[string]int{},
		attempts:  map[string]int{},
		completed: map[string]int{},
	}
}

func (f *fakeResetStore) ListPeriodicDue(_ context.Context, weekday time.Weekday) ([]model.Task, error) {
	f.weekdays = append(f.weekdays, weekday)
	var due []model.Task
	for _, t := range f.tasks {
		if t.Completed && t.DatePeriodic.Has(weekday) {
			due = append(due, t)
		}
	}
	return due, nil
}

func (f *fakeResetStore) ResetPeriodicBatch(_ context.Context, batch []model.Task) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	key := batch[0].ID
	f.attempts[key]++
	if f.attempts[key] <= f.failures[key] {
		return nil, errors.New("commit aborted")
	}

	counts := map[string]int{}
	for _, b := range batch {
		for i := range f.tasks {
			if f.tasks[i].ID == b.ID && f.tasks[i].Completed {
				f.tasks[i].Completed = false
				counts[b.UserAssignedID]++
				f.completed[b.UserAssignedID]++
			}
		}
	}
	return counts, nil
}

type fakeQuality struct {
	users [][]string
}

func (f *fakeQuality) RecomputeUsers(_ context.Context, ids []string) error {
	f.users = append(f.users, ids)
	return nil
}

func newTestResetJob(store *fakeResetStore, quality *fakeQuality, retries int) *ResetJob {
	loc, _ := time.LoadLocation("Europe/Madrid")
	job := NewResetJob(zap.NewNop().Sugar(), store, quality, loc, ResetOptions{BatchSize: 248, Retries: retries})
	// Monday 2024-06-03 00:05 in Madrid.
	job.now = func() time.Time { return time.Date(2024, 6, 2, 22, 5, 0, 0, time.UTC) }
	job.sleep = func(context.Context, time.Duration) error { return nil }
	return job
}

func TestPartition(t *testing.T) {
	batches := Partition(periodicTasks(600), 248)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 248)
	assert.Len(t, batches[1], 248)
	assert.Len(t, batches[2], 104)
	assert.Equal(t, "task-248", batches[1][0].ID)

	assert.Empty(t, Partition(nil, 248))
	assert.Len(t, Partition(periodicTasks(248), 248), 1)
	assert.Len(t, Partition(periodicTasks(249), 0), 2, "non-positive size falls back to the default")
}

func TestResetJob_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("reopens every due task and credits assignees", func(t *testing.T) {
		// Arrange
		store := newFakeResetStore(periodicTasks(600))
		quality := &fakeQuality{}
		job := newTestResetJob(store, quality, 0)

		// Act
		report, err := job.Run(ctx)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []time.Weekday{time.Monday}, store.weekdays)
		assert.Equal(t, 3, report.Batches)
		assert.Equal(t, 600, report.Reopened)
		assert.Equal(t, 150, store.completed["user-0"])
		assert.Equal(t, [][]string{{"user-0", "user-1", "user-2", "user-3"}}, quality.users)
	})

	t.Run("second run on the same day writes nothing", func(t *testing.T) {
		store := newFakeResetStore(periodicTasks(600))
		job := newTestResetJob(store, &fakeQuality{}, 0)

		_, err := job.Run(ctx)
		require.NoError(t, err)
		calls := store.calls

		report, err := job.Run(ctx)

		require.NoError(t, err)
		assert.Zero(t, report.Batches)
		assert.Zero(t, report.Reopened)
		assert.Equal(t, calls, store.calls)
	})

	t.Run("a failing batch does not stop the others", func(t *testing.T) {
		// Arrange
		store := newFakeResetStore(periodicTasks(600))
		store.failures["task-248"] = 10
		quality := &fakeQuality{}
		job := newTestResetJob(store, quality, 2)

		// Act
		report, err := job.Run(ctx)

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch 1")
		assert.Equal(t, 3, report.Batches)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, 352, report.Reopened)
		assert.Equal(t, 3, store.attempts["task-248"], "one attempt plus two retries")
		assert.Equal(t, 1, store.attempts["task-496"])
		require.Len(t, quality.users, 1)
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		store := newFakeResetStore(periodicTasks(10))
		store.failures["task-000"] = 1
		job := newTestResetJob(store, &fakeQuality{}, 1)

		report, err := job.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 10, report.Reopened)
		assert.Equal(t, 2, store.attempts["task-000"])
	})

	t.Run("nothing due on other weekdays", func(t *testing.T) {
		store := newFakeResetStore(periodicTasks(5))
		quality := &fakeQuality{}
		job := newTestResetJob(store, quality, 0)
		job.now = func() time.Time { return time.Date(2024, 6, 4, 12, 0, 0, 0, time.UTC) }

		report, err := job.Run(ctx)

		require.NoError(t, err)
		assert.Zero(t, report.Batches)
		assert.Empty(t, quality.users)
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, sleepContext(ctx, 0))
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestParseAt(t *testing.T) {
	h, m, err := parseAt("00:05")
	require.NoError(t, err)
	assert.Equal(t, uint(0), h)
	assert.Equal(t, uint(5), m)

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "1:2:3"} {
		_, _, err := parseAt(bad)
		assert.Error(t, err, bad)
	}
}
