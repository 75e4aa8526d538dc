package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

const (
	defaultTaskLimit = 20
	maxTaskLimit     = 100
)

type TaskRepository struct {
	logger *zap.SugaredLogger
	db     *gorm.DB
	loc    *time.Location
	cache  *TaskQueryCache
}

// NewTaskRepository returns a repository normalizing dates to loc.
func NewTaskRepository(logger *zap.SugaredLogger, db *gorm.DB, loc *time.Location) *TaskRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskRepository{logger: logger, db: db, loc: loc}
}

// UseCache memoizes List results in c.
func (r *TaskRepository) UseCache(c *TaskQueryCache) {
	r.cache = c
}

// Invalidate drops cached queries of taskListID, or every cached query when
// taskListID is empty. Writers outside this repository call it after changing tasks.
func (r *TaskRepository) Invalidate(taskListID string) {
	if taskListID == "" {
		r.cache.InvalidateAll()
		return
	}
	r.cache.InvalidateTaskList(taskListID)
}

// TaskFilter selects tasks. Zero fields are ignored.
type TaskFilter struct {
	TeamID            string
	TaskListID        string
	UserAssignedID    string
	Completed         *bool
	AvailableToAssign *bool
	SelectedDate      model.SelectedDate
	Day               *time.Time
	TitlePrefix       string
	After             *TaskCursor
	Limit             int
}

// TaskCursor is the position after the last task of a page, in title then creation order.
type TaskCursor struct {
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

type TaskPage struct {
	Tasks []model.Task `json:"tasks"`
	Next  *TaskCursor  `json:"next,omitempty"`
}

// NormalizeDates keeps only the date fields of the selected kind, truncated to local
// midnight in loc.
func NormalizeDates(task *model.Task, loc *time.Location) error {
	if task.SelectedDate == "" {
		task.SelectedDate = model.WithoutDate
	}
	if !task.SelectedDate.Valid() {
		return apperr.ErrInvalidDate
	}

	truncate := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		d := model.StartOfDay(*t, loc)
		return &d
	}

	switch task.SelectedDate {
	case model.WithoutDate:
		task.Date, task.DateLimit, task.DatePeriodic = nil, nil, 0
	case model.DateSingle:
		if task.Date == nil {
			return apperr.ErrInvalidDate
		}
		task.Date, task.DateLimit, task.DatePeriodic = truncate(task.Date), nil, 0
	case model.DateLimit:
		if task.DateLimit == nil {
			return apperr.ErrInvalidDate
		}
		task.Date, task.DateLimit, task.DatePeriodic = nil, truncate(task.DateLimit), 0
	case model.DatePeriodic:
		if task.DatePeriodic.Empty() {
			return apperr.ErrInvalidDate
		}
		task.Date, task.DateLimit = nil, nil
	}
	return nil
}

// Create adds a new unassigned task, available for the next distribution round.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.Score <= 0 {
		return apperr.ErrInvalidScore
	}
	if err := NormalizeDates(task, r.loc); err != nil {
		return err
	}

	task.ID = uuid.NewString()
	task.UserAssignedID = ""
	task.TemporalUserAssignedID = ""
	task.AvailableToAssign = true
	task.Completed = false
	task.IsInvolvedInTrade = false
	task.TradeID = ""

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		r.logger.Errorw("error creating task", "taskListID", task.TaskListID, "err", err)
		return fmt.Errorf("create task: %w", err)
	}

	r.Invalidate(task.TaskListID)
	r.logger.Debugw("task created", "taskID", task.ID, "taskListID", task.TaskListID)
	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", result.Error)
	}
	return &task, nil
}

// Update stores the editable fields of a task
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	if task.Score <= 0 {
		return apperr.ErrInvalidScore
	}
	if err := NormalizeDates(task, r.loc); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Model(&model.Task{ID: task.ID}).
		Select("title", "description", "score", "selected_date", "date", "date_limit", "date_periodic", "image_url").
		Updates(task)
	if result.Error != nil {
		return fmt.Errorf("update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrTaskNotFound
	}
	r.Invalidate(task.TaskListID)
	return nil
}

// Delete removes a task and the preference selections pointing at it.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&task, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTaskNotFound
			}
			return err
		}
		if task.IsInvolvedInTrade {
			return apperr.ErrTaskInvolvedInTrade
		}

		if err := tx.Where("task_id = ?", id).Delete(&model.TaskPreference{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Task{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	r.Invalidate(task.TaskListID)
	return nil
}

// List returns one page of tasks in title, creation order.
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) (*TaskPage, error) {
	if page, ok := r.cache.Get(f); ok {
		return page, nil
	}
	limit := normalizeLimit(f.Limit)

	query := r.db.WithContext(ctx).Model(&model.Task{})
	if f.TeamID != "" {
		query = query.Where("id_team = ?", f.TeamID)
	}
	if f.TaskListID != "" {
		query = query.Where("id_task_list = ?", f.TaskListID)
	}
	if f.UserAssignedID != "" {
		query = query.Where("id_user_assigned = ?", f.UserAssignedID)
	}
	if f.Completed != nil {
		query = query.Where("completed = ?", *f.Completed)
	}
	if f.AvailableToAssign != nil {
		query = query.Where("available_to_assign = ?", *f.AvailableToAssign)
	}
	if f.SelectedDate != "" {
		query = query.Where("selected_date = ?", f.SelectedDate)
	}
	if f.Day != nil {
		query = r.onDay(query, *f.Day)
	}
	if p := strings.TrimSpace(f.TitlePrefix); p != "" {
		query = query.Where("title >= ? AND title < ?", p, p+"\uffff")
	}
	if f.After != nil {
		query = query.Where("(title, created_at, id) > (?, ?, ?)", f.After.Title, f.After.CreatedAt, f.After.ID)
	}

	var tasks []model.Task
	if err := query.Order("title ASC").Order("created_at ASC").Order("id ASC").
		Limit(limit + 1).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	page := &TaskPage{Tasks: tasks}
	if len(tasks) > limit {
		page.Tasks = tasks[:limit]
		last := page.Tasks[limit-1]
		page.Next = &TaskCursor{Title: last.Title, CreatedAt: last.CreatedAt, ID: last.ID}
	}
	r.cache.Put(f, page)
	return page, nil
}

// onDay restricts query to the tasks whose possible dates contain day.
func (r *TaskRepository) onDay(query *gorm.DB, day time.Time) *gorm.DB {
	start := model.StartOfDay(day, r.loc)
	end := start.AddDate(0, 0, 1)
	bit := int(model.WeekdaysOf(start.Weekday()))

	return query.Where(
		r.db.Where("selected_date = ?", model.WithoutDate).
			Or("(selected_date = ? AND date >= ? AND date < ?)", model.DateSingle, start, end).
			Or("(selected_date = ? AND date_limit >= ?)", model.DateLimit, start).
			Or("(selected_date = ? AND date_periodic & ? <> 0)", model.DatePeriodic, bit),
	)
}

// CountUnassigned counts the tasks of a list still open for distribution.
func (r *TaskRepository) CountUnassigned(ctx context.Context, taskListID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id_task_list = ? AND available_to_assign = ?", taskListID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unassigned: %w", err)
	}
	return count, nil
}

// ListAvailable returns the tasks of a list open for distribution.
func (r *TaskRepository) ListAvailable(ctx context.Context, taskListID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("id_task_list = ? AND available_to_assign = ?", taskListID, true).
		Order("created_at ASC").Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list available tasks: %w", err)
	}
	return tasks, nil
}

// ListTemporarilyAssigned returns the tasks of a list holding a round-scoped assignee.
func (r *TaskRepository) ListTemporarilyAssigned(ctx context.Context, taskListID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("id_task_list = ? AND id_temporal_user_assigned <> ''", taskListID).
		Order("created_at ASC").Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list temporarily assigned tasks: %w", err)
	}
	return tasks, nil
}

// TemporarilyAssign sets the round-scoped assignee. It reports false without changing
// anything when the task is not available to assign.
func (r *TaskRepository) TemporarilyAssign(ctx context.Context, taskID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND available_to_assign = ?", taskID, true).
		Update("id_temporal_user_assigned", userID)
	if result.Error != nil {
		return false, fmt.Errorf("temporarily assign: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		r.Invalidate("")
		return true, nil
	}

	if _, err := r.GetByID(ctx, taskID); err != nil {
		return false, err
	}
	return false, nil
}

// Unassign clears the round-scoped assignee
func (r *TaskRepository) Unassign(ctx context.Context, taskID string) error {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", taskID).
		Update("id_temporal_user_assigned", "")
	if result.Error != nil {
		return fmt.Errorf("unassign: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrTaskNotFound
	}
	r.Invalidate("")
	return nil
}

// Complete marks the task done by its assignee and credits its score. Periodic
// completions are counted in totalTasksCompleted when the reset job reopens them.
func (r *TaskRepository) Complete(ctx context.Context, taskID, userID string) (*model.Task, error) {
	r.logger.Debugw("Complete()", "taskID", taskID, "userID", userID)

	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&task, "id = ?", taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTaskNotFound
			}
			return err
		}

		switch {
		case task.UserAssignedID == "" || task.UserAssignedID != userID:
			return apperr.ErrNotTaskAssignee
		case task.Completed:
			return apperr.ErrTaskAlreadyCompleted
		case task.IsInvolvedInTrade:
			return apperr.ErrTaskInvolvedInTrade
		}

		if err := tx.Model(&model.Task{}).Where("id = ?", taskID).Update("completed", true).Error; err != nil {
			return err
		}
		task.Completed = true

		if !task.IsPeriodic() {
			if err := incrementUserCounter(tx, userID, "total_tasks_completed", 1); err != nil {
				return err
			}
		}
		if err := addTaskListScore(tx, task.TaskListID, userID, task.Score); err != nil {
			return err
		}
		return addTeamScore(tx, task.TeamID, userID, task.Score)
	})
	if err != nil {
		r.logger.Warnw("failed to complete task", "taskID", taskID, "userID", userID, "err", err)
		return nil, err
	}

	r.Invalidate(task.TaskListID)
	return &task, nil
}

// ListPeriodicDue returns completed, assigned periodic tasks recurring on weekday.
func (r *TaskRepository) ListPeriodicDue(ctx context.Context, weekday time.Weekday) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("selected_date = ? AND completed = ? AND id_user_assigned <> ''", model.DatePeriodic, true).
		Where("date_periodic & ? <> 0", int(model.WeekdaysOf(weekday))).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list periodic due: %w", err)
	}
	return tasks, nil
}

// ResetPeriodicBatch reopens the given periodic tasks in one transaction and credits
// each assignee one completion per reopened task. Already reopened tasks are skipped,
// so re-running a batch writes nothing.
func (r *TaskRepository) ResetPeriodicBatch(ctx context.Context, tasks []model.Task) (map[string]int, error) {
	counts := make(map[string]int)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, task := range tasks {
			result := tx.Model(&model.Task{}).
				Where("id = ? AND completed = ? AND selected_date = ?", task.ID, true, model.DatePeriodic).
				Update("completed", false)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 && task.UserAssignedID != "" {
				counts[task.UserAssignedID]++
			}
		}

		for _, userID := range sortedKeys(counts) {
			if err := incrementUserCounter(tx, userID, "total_tasks_completed", counts[userID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reset periodic batch: %w", err)
	}
	r.Invalidate("")
	return counts, nil
}

// ListOpenAssigned returns every uncompleted task with a permanent assignee.
func (r *TaskRepository) ListOpenAssigned(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("completed = ? AND id_user_assigned <> ''", false).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list open assigned: %w", err)
	}
	return tasks, nil
}

func normalizeLimit(n int) int {
	if n <= 0 {
		return defaultTaskLimit
	}
	if n > maxTaskLimit {
		return maxTaskLimit
	}
	return n
}

func incrementUserCounter(tx *gorm.DB, userID, column string, delta int) error {
	result := tx.Model(&model.User{}).
		Where("id = ?", userID).
		Update(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

// addTaskListScore atomically adds delta to the user's score in a task list,
// creating the entry when missing.
func addTaskListScore(tx *gorm.DB, taskListID, userID string, delta int) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "task_list_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"score": gorm.Expr("task_list_members.score + ?", delta),
		}),
	}).Create(&model.TaskListMember{TaskListID: taskListID, UserID: userID, Score: delta}).Error
}

func addTeamScore(tx *gorm.DB, teamID, userID string, delta int) error {
	return tx.Model(&model.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Update("cumulative_score", gorm.Expr("cumulative_score + ?", delta)).Error
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
