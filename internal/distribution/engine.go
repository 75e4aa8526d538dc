// Package distribution assigns the tasks of a list to team members, either from
// manual temporal assignments or from the members' preference selections.
package distribution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"teamtasks/internal/apperr"
	"teamtasks/internal/messaging"
	"teamtasks/internal/metrics"
	"teamtasks/internal/model"
)

type TaskStore interface {
	GetByID(ctx context.Context, id string) (*model.Task, error)
	CountUnassigned(ctx context.Context, taskListID string) (int64, error)
	ListAvailable(ctx context.Context, taskListID string) ([]model.Task, error)
	ListTemporarilyAssigned(ctx context.Context, taskListID string) ([]model.Task, error)
	TemporarilyAssign(ctx context.Context, taskID, userID string) (bool, error)
	Unassign(ctx context.Context, taskID string) error
	Invalidate(taskListID string)
}

type TeamStore interface {
	GetTaskList(ctx context.Context, id string) (*model.TaskList, error)
	GetMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error)
}

type Store interface {
	ListMembers(ctx context.Context, taskListID string) ([]model.TaskListMember, error)
	ListPreferences(ctx context.Context, taskListID string) ([]model.TaskPreference, error)
	AddPreference(ctx context.Context, taskListID, userID, taskID string, limit int) error
	RemovePreference(ctx context.Context, taskListID, userID, taskID string) error
	DeletePreferences(ctx context.Context, ids []uint64) error
	SetPreferencesDone(ctx context.Context, taskListID, userID string, done bool) error
	ClearPreferencesDone(ctx context.Context, taskListID string, userIDs []string) error
	ApplyDistribution(ctx context.Context, taskListID string, expectedRound int, assignments []model.Assignment) (int, map[string]int, error)
	StartNewRound(ctx context.Context, taskListID string) error
}

// QualityHook refreshes the derived fields of users whose counters changed.
type QualityHook interface {
	RecomputeUsers(ctx context.Context, userIDs []string) error
}

type Notifier interface {
	Notify(ctx context.Context, userIDs []string, n messaging.Notification) error
}

// Result describes a committed distribution round.
type Result struct {
	Round    int            `json:"round"`
	Assigned map[string]int `json:"assigned"`
}

// PreferenceCheck is the outcome of re-evaluating selections against the current cap.
type PreferenceCheck struct {
	Cap     int                 `json:"cap"`
	Dropped []uint64            `json:"dropped"`
	Excess  map[string][]string `json:"excess"`
}

type Engine struct {
	logger   *zap.SugaredLogger
	tasks    TaskStore
	teams    TeamStore
	store    Store
	quality  QualityHook
	notifier Notifier
}

func NewEngine(logger *zap.SugaredLogger, tasks TaskStore, teams TeamStore, store Store, quality QualityHook, notifier Notifier) *Engine {
	return &Engine{
		logger:   logger,
		tasks:    tasks,
		teams:    teams,
		store:    store,
		quality:  quality,
		notifier: notifier,
	}
}

// TemporarilyAssign proposes userID as the assignee of a task of a manual list. It
// reports false when the task is not available to assign.
func (e *Engine) TemporarilyAssign(ctx context.Context, actorID, taskID, userID string) (bool, error) {
	task, list, err := e.manualTask(ctx, actorID, taskID)
	if err != nil {
		return false, err
	}
	if _, err := e.teams.GetMember(ctx, list.TeamID, userID); err != nil {
		return false, err
	}

	ok, err := e.tasks.TemporarilyAssign(ctx, task.ID, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		e.logger.Debugw("temporal assignment skipped, task not available", "taskID", taskID)
	}
	return ok, nil
}

// Unassign clears the proposed assignee of a task of a manual list.
func (e *Engine) Unassign(ctx context.Context, actorID, taskID string) error {
	task, _, err := e.manualTask(ctx, actorID, taskID)
	if err != nil {
		return err
	}
	return e.tasks.Unassign(ctx, task.ID)
}

// CompleteDistribution commits the pending round of a list. Manual lists assign every
// task with a temporal assignee. Preference lists need every member done unless
// force is set, and grant each task to its first selector. Admins only.
func (e *Engine) CompleteDistribution(ctx context.Context, actorID, taskListID string, force bool) (result *Result, err error) {
	defer func(start time.Time) { metrics.ObserveOp("distribution.complete", start, err) }(time.Now())

	list, err := e.adminList(ctx, actorID, taskListID)
	if err != nil {
		return nil, err
	}

	var plan []model.Assignment
	switch list.DistributionType {
	case model.DistributionManual:
		pending, err := e.tasks.ListTemporarilyAssigned(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		plan = PlanManual(pending)

	case model.DistributionPreferences:
		if !force {
			members, err := e.store.ListMembers(ctx, list.ID)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				if !m.PreferencesDone {
					return nil, apperr.ErrPreferencesPending
				}
			}
		}
		prefs, err := e.store.ListPreferences(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		available, err := e.tasks.ListAvailable(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		plan = AllocatePreferences(prefs, available, PreferenceCap(len(available)))

	default:
		return nil, apperr.ErrInvalidDistribution
	}

	if len(plan) == 0 {
		return nil, apperr.ErrEmptyDistribution
	}

	round, counts, err := e.store.ApplyDistribution(ctx, list.ID, list.DistributionRound, plan)
	if err != nil {
		return nil, err
	}
	e.tasks.Invalidate(list.ID)

	users := sortedUsers(counts)
	if err := e.quality.RecomputeUsers(ctx, users); err != nil {
		e.logger.Warnw("quality not refreshed after distribution", "taskListID", list.ID, "err", err)
	}
	e.notify(ctx, users, messaging.Notification{
		Title: "New tasks assigned",
		Body:  fmt.Sprintf("The tasks of %s have been distributed.", list.Name),
		Data:  map[string]string{"type": "distributionCompleted", "idTaskList": list.ID},
	})

	e.logger.Infow("distribution completed", "taskListID", list.ID, "round", round, "tasks", len(plan))
	return &Result{Round: round, Assigned: counts}, nil
}

// MarkPreferred adds or removes taskID from the selections of userID.
func (e *Engine) MarkPreferred(ctx context.Context, taskListID, userID, taskID string, preferred bool) error {
	list, err := e.memberList(ctx, userID, taskListID)
	if err != nil {
		return err
	}
	if list.DistributionType != model.DistributionPreferences {
		return apperr.ErrWrongDistributionType
	}

	if !preferred {
		return e.store.RemovePreference(ctx, list.ID, userID, taskID)
	}

	unassigned, err := e.tasks.CountUnassigned(ctx, list.ID)
	if err != nil {
		return err
	}
	return e.store.AddPreference(ctx, list.ID, userID, taskID, PreferenceCap(int(unassigned)))
}

// SetPreferencesDone marks whether userID finished selecting for the current round.
func (e *Engine) SetPreferencesDone(ctx context.Context, taskListID, userID string, done bool) error {
	list, err := e.memberList(ctx, userID, taskListID)
	if err != nil {
		return err
	}
	if list.DistributionType != model.DistributionPreferences {
		return apperr.ErrWrongDistributionType
	}
	return e.store.SetPreferencesDone(ctx, list.ID, userID, done)
}

// CheckPreferencesListChanges re-evaluates the selections of a list after its
// unassigned tasks changed. Selections of tasks no longer available are dropped.
// Members left with more selections than the cap get their done flag cleared and a
// notification; their excess selections are reported, not removed.
func (e *Engine) CheckPreferencesListChanges(ctx context.Context, taskListID string) (*PreferenceCheck, error) {
	unassigned, err := e.tasks.CountUnassigned(ctx, taskListID)
	if err != nil {
		return nil, err
	}
	limit := PreferenceCap(int(unassigned))

	available, err := e.tasks.ListAvailable(ctx, taskListID)
	if err != nil {
		return nil, err
	}
	open := make(map[string]bool, len(available))
	for _, t := range available {
		open[t.ID] = true
	}

	prefs, err := e.store.ListPreferences(ctx, taskListID)
	if err != nil {
		return nil, err
	}

	check := &PreferenceCheck{Cap: limit}
	var kept []model.TaskPreference
	for _, p := range prefs {
		if open[p.TaskID] {
			kept = append(kept, p)
			continue
		}
		check.Dropped = append(check.Dropped, p.ID)
	}
	if err := e.store.DeletePreferences(ctx, check.Dropped); err != nil {
		return nil, err
	}

	check.Excess = excessSelections(kept, limit)
	if len(check.Excess) == 0 {
		return check, nil
	}

	users := make([]string, 0, len(check.Excess))
	for u := range check.Excess {
		users = append(users, u)
	}
	sort.Strings(users)

	if err := e.store.ClearPreferencesDone(ctx, taskListID, users); err != nil {
		return nil, err
	}
	e.notify(ctx, users, messaging.Notification{
		Title: "Preferences changed",
		Body:  fmt.Sprintf("Fewer tasks are open now, you can keep up to %d preferred tasks.", limit),
		Data:  map[string]string{"type": "preferencesChanged", "idTaskList": taskListID},
	})

	e.logger.Infow("preference selections over cap", "taskListID", taskListID, "cap", limit, "users", len(users))
	return check, nil
}

// OnTasksChanged runs the preference check for preference lists and is a no-op for
// manual ones.
func (e *Engine) OnTasksChanged(ctx context.Context, taskListID string) {
	list, err := e.teams.GetTaskList(ctx, taskListID)
	if err != nil {
		e.logger.Warnw("task list not loaded for preference check", "taskListID", taskListID, "err", err)
		return
	}
	if list.DistributionType != model.DistributionPreferences {
		return
	}
	if _, err := e.CheckPreferencesListChanges(ctx, taskListID); err != nil {
		e.logger.Warnw("preference check failed", "taskListID", taskListID, "err", err)
	}
}

// StartNewRound reopens the tasks of a list for the next distribution. Admins only.
func (e *Engine) StartNewRound(ctx context.Context, actorID, taskListID string) error {
	list, err := e.adminList(ctx, actorID, taskListID)
	if err != nil {
		return err
	}
	if err := e.store.StartNewRound(ctx, list.ID); err != nil {
		return err
	}
	e.tasks.Invalidate(list.ID)
	return nil
}

func (e *Engine) manualTask(ctx context.Context, actorID, taskID string) (*model.Task, *model.TaskList, error) {
	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	list, err := e.memberList(ctx, actorID, task.TaskListID)
	if err != nil {
		return nil, nil, err
	}
	if list.DistributionType != model.DistributionManual {
		return nil, nil, apperr.ErrWrongDistributionType
	}
	return task, list, nil
}

func (e *Engine) memberList(ctx context.Context, userID, taskListID string) (*model.TaskList, error) {
	list, err := e.teams.GetTaskList(ctx, taskListID)
	if err != nil {
		return nil, err
	}
	if _, err := e.teams.GetMember(ctx, list.TeamID, userID); err != nil {
		return nil, err
	}
	return list, nil
}

func (e *Engine) adminList(ctx context.Context, actorID, taskListID string) (*model.TaskList, error) {
	list, err := e.teams.GetTaskList(ctx, taskListID)
	if err != nil {
		return nil, err
	}
	member, err := e.teams.GetMember(ctx, list.TeamID, actorID)
	if err != nil {
		return nil, err
	}
	if member.Role != model.RoleAdmin {
		return nil, apperr.ErrNotTeamAdmin
	}
	return list, nil
}

func (e *Engine) notify(ctx context.Context, users []string, n messaging.Notification) {
	if e.notifier == nil || len(users) == 0 {
		return
	}
	if err := e.notifier.Notify(ctx, users, n); err != nil {
		e.logger.Warnw("notification failed", "title", n.Title, "err", err)
	}
}
