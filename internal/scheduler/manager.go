// Package scheduler runs the daily background jobs: the periodic task reset and the
// notification digest.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job is a unit registered with the Manager.
type Job interface {
	GetName() string
	Execute()
}

// Manager owns the gocron scheduler. Jobs run once a day at their configured
// wall-clock time in the scheduler location.
type Manager struct {
	logger    *zap.SugaredLogger
	scheduler gocron.Scheduler
}

func NewManager(logger *zap.SugaredLogger, loc *time.Location) (*Manager, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Manager{logger: logger, scheduler: s}, nil
}

// RegisterDaily schedules job every day at "HH:MM". A run still going when the next
// one is due pushes the next one back.
func (m *Manager) RegisterDaily(job Job, at string) error {
	hour, minute, err := parseAt(at)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.GetName(), err)
	}

	_, err = m.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.GetName(), err)
	}
	m.logger.Infow("job registered", "job", job.GetName(), "at", at)
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Infow("scheduler started", "jobs", len(m.scheduler.Jobs()))
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		m.logger.Errorw("scheduler shutdown failed", "err", err)
		return
	}
	m.logger.Infow("scheduler stopped")
}

func parseAt(at string) (uint, uint, error) {
	parts := strings.Split(strings.TrimSpace(at), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", at)
	}
	hour, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", at)
	}
	minute, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", at)
	}
	return uint(hour), uint(minute), nil
}
