package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
	"teamtasks/internal/repository"
)

type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id string) (*model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f repository.TaskFilter) (*repository.TaskPage, error)
	Complete(ctx context.Context, taskID, userID string) (*model.Task, error)
}

// TaskListAccess resolves task lists and the caller's membership.
type TaskListAccess interface {
	GetTaskList(ctx context.Context, id string) (*model.TaskList, error)
	GetMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error)
}

// TasksChangedHook runs after the set of open tasks of a list changed.
type TasksChangedHook interface {
	OnTasksChanged(ctx context.Context, taskListID string)
}

type UserRecomputer interface {
	RecomputeUser(ctx context.Context, userID string) error
}

type TaskHandler struct {
	logger  *zap.SugaredLogger
	tasks   TaskStore
	lists   TaskListAccess
	changed TasksChangedHook
	quality UserRecomputer
	loc     *time.Location
}

func NewTaskHandler(logger *zap.SugaredLogger, tasks TaskStore, lists TaskListAccess, changed TasksChangedHook, quality UserRecomputer, loc *time.Location) *TaskHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskHandler{logger: logger, tasks: tasks, lists: lists, changed: changed, quality: quality, loc: loc}
}

// TaskRequest is the body of task creation and update.
type TaskRequest struct {
	Title        string             `json:"title" binding:"required"`
	Description  string             `json:"description"`
	Score        int                `json:"score" binding:"required"`
	SelectedDate model.SelectedDate `json:"selectedDate" binding:"required"`
	Date         *time.Time         `json:"date"`
	DateLimit    *time.Time         `json:"dateLimit"`
	DatePeriodic model.Weekdays     `json:"datePeriodic"`
	ImageURL     string             `json:"imageURL"`
}

func (r *TaskRequest) apply(task *model.Task) error {
	if !r.SelectedDate.Valid() {
		return apperr.ErrInvalidDate
	}
	task.Title = strings.TrimSpace(r.Title)
	task.Description = r.Description
	task.Score = r.Score
	task.SelectedDate = r.SelectedDate
	task.Date = r.Date
	task.DateLimit = r.DateLimit
	task.DatePeriodic = r.DatePeriodic
	task.ImageURL = r.ImageURL
	if task.Title == "" {
		return apperr.ErrEmptyName
	}
	return nil
}

func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	list, _, err := h.memberOf(ctx, c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}

	task := &model.Task{TeamID: list.TeamID, TaskListID: list.ID, CreatedBy: userID}
	if err := req.apply(task); err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}
	if err := h.tasks.Create(ctx, task); err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}

	h.changed.OnTasksChanged(ctx, list.ID)
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	list, _, err := h.memberOf(ctx, c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}

	f, err := h.parseFilter(c, userID)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	f.TaskListID = list.ID

	page, err := h.tasks.List(ctx, f)
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}

	resp := gin.H{"tasks": page.Tasks}
	if page.Next != nil {
		resp["next"] = encodeCursor(page.Next)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	task, _, err := h.taskOf(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "GetTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Update edits a task. Only its creator or a team admin may do it.
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	task, member, err := h.taskOf(ctx, c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	if task.CreatedBy != userID && member.Role != model.RoleAdmin {
		respondError(c, h.logger, "UpdateTask", apperr.ErrNotTeamAdmin)
		return
	}

	if err := req.apply(task); err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	if err := h.tasks.Update(ctx, task); err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete removes a task. Only its creator or a team admin may do it.
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	task, member, err := h.taskOf(ctx, c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	if task.CreatedBy != userID && member.Role != model.RoleAdmin {
		respondError(c, h.logger, "DeleteTask", apperr.ErrNotTeamAdmin)
		return
	}

	if err := h.tasks.Delete(ctx, task.ID); err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}

	h.changed.OnTasksChanged(ctx, task.TaskListID)
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Complete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	task, err := h.tasks.Complete(ctx, c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "CompleteTask", err)
		return
	}

	if err := h.quality.RecomputeUser(ctx, userID); err != nil {
		h.logger.Warnw("quality not refreshed after completion", "userID", userID, "err", err)
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) memberOf(ctx context.Context, taskListID, userID string) (*model.TaskList, *model.TeamMember, error) {
	list, err := h.lists.GetTaskList(ctx, taskListID)
	if err != nil {
		return nil, nil, err
	}
	member, err := h.lists.GetMember(ctx, list.TeamID, userID)
	if err != nil {
		return nil, nil, err
	}
	return list, member, nil
}

func (h *TaskHandler) taskOf(ctx context.Context, taskID, userID string) (*model.Task, *model.TeamMember, error) {
	task, err := h.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	member, err := h.lists.GetMember(ctx, task.TeamID, userID)
	if err != nil {
		return nil, nil, err
	}
	return task, member, nil
}

// parseFilter reads the list query. assigned=me is the caller.
func (h *TaskHandler) parseFilter(c *gin.Context, userID string) (repository.TaskFilter, error) {
	f := repository.TaskFilter{
		UserAssignedID: c.Query("assigned"),
		SelectedDate:   model.SelectedDate(c.Query("selectedDate")),
		TitlePrefix:    c.Query("title"),
	}
	if f.UserAssignedID == "me" {
		f.UserAssignedID = userID
	}
	if f.SelectedDate != "" && !f.SelectedDate.Valid() {
		return f, errors.New("unknown selectedDate")
	}

	var err error
	if f.Completed, err = optionalBool(c.Query("completed")); err != nil {
		return f, err
	}
	if f.AvailableToAssign, err = optionalBool(c.Query("available")); err != nil {
		return f, err
	}
	if day := c.Query("day"); day != "" {
		d, err := time.ParseInLocation(time.DateOnly, day, h.loc)
		if err != nil {
			return f, err
		}
		f.Day = &d
	}
	if limit := c.Query("limit"); limit != "" {
		if f.Limit, err = strconv.Atoi(limit); err != nil {
			return f, err
		}
	}
	if cursor := c.Query("cursor"); cursor != "" {
		if f.After, err = decodeCursor(cursor); err != nil {
			return f, err
		}
	}
	return f, nil
}

func optionalBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func encodeCursor(cur *repository.TaskCursor) string {
	raw, _ := json.Marshal(cur)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (*repository.TaskCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var cur repository.TaskCursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		return nil, err
	}
	return &cur, nil
}
