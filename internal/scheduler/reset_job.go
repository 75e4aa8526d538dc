package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"teamtasks/internal/metrics"
	"teamtasks/internal/model"
)

// DefaultBatchSize keeps a batch of task updates plus one counter update per
// assignee within 500 writes.
const DefaultBatchSize = 248

type ResetStore interface {
	ListPeriodicDue(ctx context.Context, weekday time.Weekday) ([]model.Task, error)
	ResetPeriodicBatch(ctx context.Context, tasks []model.Task) (map[string]int, error)
}

type QualityHook interface {
	RecomputeUsers(ctx context.Context, userIDs []string) error
}

type ResetOptions struct {
	BatchSize int
	Delay     time.Duration
	Retries   int
}

// ResetReport summarizes one run of the reset job.
type ResetReport struct {
	Batches  int
	Failed   int
	Reopened int
	Users    []string
}

// ResetJob reopens the completed periodic tasks recurring today, in batches that
// commit independently.
type ResetJob struct {
	logger  *zap.SugaredLogger
	tasks   ResetStore
	quality QualityHook
	loc     *time.Location
	opts    ResetOptions

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewResetJob(logger *zap.SugaredLogger, tasks ResetStore, quality QualityHook, loc *time.Location, opts ResetOptions) *ResetJob {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &ResetJob{
		logger:  logger,
		tasks:   tasks,
		quality: quality,
		loc:     loc,
		opts:    opts,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func (j *ResetJob) GetName() string {
	return "periodic_task_reset"
}

func (j *ResetJob) Execute() {
	report, err := j.Run(context.Background())
	if err != nil {
		j.logger.Errorw("periodic reset finished with failures",
			"batches", report.Batches, "failed", report.Failed, "reopened", report.Reopened, "err", err)
		return
	}
	j.logger.Infow("periodic reset finished", "batches", report.Batches, "reopened", report.Reopened)
}

// Run executes one reset. Failed batches are retried on their own and reported in
// the returned error; the remaining batches still run.
func (j *ResetJob) Run(ctx context.Context) (*ResetReport, error) {
	report := &ResetReport{}

	weekday := j.now().In(j.loc).Weekday()
	due, err := j.tasks.ListPeriodicDue(ctx, weekday)
	if err != nil {
		return report, err
	}

	batches := Partition(due, j.opts.BatchSize)
	report.Batches = len(batches)

	var result *multierror.Error
	credited := make(map[string]bool)
	for i, batch := range batches {
		if i > 0 {
			if err := j.sleep(ctx, j.opts.Delay); err != nil {
				result = multierror.Append(result, err)
				break
			}
		}

		counts, err := j.commit(ctx, batch)
		if err != nil {
			j.logger.Warnw("reset batch failed", "batch", i, "size", len(batch), "err", err)
			report.Failed++
			result = multierror.Append(result, fmt.Errorf("batch %d: %w", i, err))
			metrics.ResetBatch(err, 0)
			continue
		}

		reopened := 0
		for userID, n := range counts {
			credited[userID] = true
			reopened += n
		}
		report.Reopened += reopened
		metrics.ResetBatch(nil, reopened)
	}

	for userID := range credited {
		report.Users = append(report.Users, userID)
	}
	sort.Strings(report.Users)

	if len(report.Users) > 0 {
		if err := j.quality.RecomputeUsers(ctx, report.Users); err != nil {
			j.logger.Warnw("quality not refreshed after reset", "users", len(report.Users), "err", err)
		}
	}
	return report, result.ErrorOrNil()
}

// commit runs a batch, retrying it up to opts.Retries more times.
func (j *ResetJob) commit(ctx context.Context, batch []model.Task) (map[string]int, error) {
	var err error
	for attempt := 0; attempt <= j.opts.Retries; attempt++ {
		if attempt > 0 {
			j.logger.Debugw("retrying reset batch", "attempt", attempt, "err", err)
			if serr := j.sleep(ctx, j.opts.Delay); serr != nil {
				return nil, serr
			}
		}
		var counts map[string]int
		counts, err = j.tasks.ResetPeriodicBatch(ctx, batch)
		if err == nil {
			return counts, nil
		}
	}
	return nil, err
}

// Partition splits tasks into consecutive batches of at most size tasks.
func Partition(tasks []model.Task, size int) [][]model.Task {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches [][]model.Task
	for start := 0; start < len(tasks); start += size {
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		batches = append(batches, tasks[start:end])
	}
	return batches
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
