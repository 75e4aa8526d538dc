package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teamtasks/internal/apperr"
	"teamtasks/internal/handler"
	"teamtasks/internal/model"
	"teamtasks/internal/repository"
)

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, task *model.Task) error {
	args := m.Called(ctx, task)
	if args.Error(0) == nil {
		task.ID = "task-1"
	}
	return args.Error(0)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, task *model.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockTaskRepository) List(ctx context.Context, f repository.TaskFilter) (*repository.TaskPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.TaskPage), args.Error(1)
}

func (m *MockTaskRepository) Complete(ctx context.Context, taskID, userID string) (*model.Task, error) {
	args := m.Called(ctx, taskID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

type MockListAccess struct {
	mock.Mock
}

func (m *MockListAccess) GetTaskList(ctx context.Context, id string) (*model.TaskList, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TaskList), args.Error(1)
}

func (m *MockListAccess) GetMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error) {
	args := m.Called(ctx, teamID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TeamMember), args.Error(1)
}

type recordingHook struct {
	lists []string
}

func (h *recordingHook) OnTasksChanged(_ context.Context, taskListID string) {
	h.lists = append(h.lists, taskListID)
}

type recordingRecompute struct {
	users []string
}

func (r *recordingRecompute) RecomputeUser(_ context.Context, userID string) error {
	r.users = append(r.users, userID)
	return nil
}

type taskFixture struct {
	router  *gin.Engine
	tasks   *MockTaskRepository
	lists   *MockListAccess
	hook    *recordingHook
	quality *recordingRecompute
}

func setupTaskTest(role model.Role) *taskFixture {
	f := &taskFixture{
		router:  newRouter(testUserID),
		tasks:   new(MockTaskRepository),
		lists:   new(MockListAccess),
		hook:    &recordingHook{},
		quality: &recordingRecompute{},
	}
	h := handler.NewTaskHandler(zap.NewNop().Sugar(), f.tasks, f.lists, f.hook, f.quality, time.UTC)

	f.router.POST("/task-lists/:id/tasks", h.Create)
	f.router.GET("/task-lists/:id/tasks", h.List)
	f.router.GET("/tasks/:id", h.GetByID)
	f.router.PUT("/tasks/:id", h.Update)
	f.router.DELETE("/tasks/:id", h.Delete)
	f.router.POST("/tasks/:id/complete", h.Complete)

	f.lists.On("GetTaskList", mock.Anything, "list-1").
		Return(&model.TaskList{ID: "list-1", TeamID: "team-1", DistributionType: model.DistributionPreferences}, nil)
	f.lists.On("GetMember", mock.Anything, "team-1", testUserID).
		Return(&model.TeamMember{TeamID: "team-1", UserID: testUserID, Role: role}, nil)
	return f
}

func TestCreateTask_Success(t *testing.T) {
	// Arrange
	f := setupTaskTest(model.RoleMember)
	f.tasks.On("Create", mock.Anything, mock.MatchedBy(func(task *model.Task) bool {
		return task.TeamID == "team-1" && task.TaskListID == "list-1" && task.CreatedBy == testUserID &&
			task.DatePeriodic == model.WeekdaysOf(time.Monday, time.Thursday)
	})).Return(nil)

	// Act
	resp := doJSON(f.router, "POST", "/task-lists/list-1/tasks", map[string]interface{}{
		"title":        "Take out the trash",
		"score":        3,
		"selectedDate": "datePeriodic",
		"datePeriodic": []string{"monday", "thursday"},
	})

	// Assert
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, []string{"list-1"}, f.hook.lists)
	f.tasks.AssertExpectations(t)
}

func TestCreateTask_InvalidScore(t *testing.T) {
	f := setupTaskTest(model.RoleMember)
	f.tasks.On("Create", mock.Anything, mock.Anything).Return(apperr.ErrInvalidScore)

	resp := doJSON(f.router, "POST", "/task-lists/list-1/tasks", map[string]interface{}{
		"title": "Dishes", "score": -1, "selectedDate": "withoutDate",
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "INVALID_SCORE", errorCode(t, resp))
	assert.Empty(t, f.hook.lists)
}

func TestCreateTask_NotMember(t *testing.T) {
	f := setupTaskTest(model.RoleMember)
	f.lists.On("GetTaskList", mock.Anything, "list-2").Return(&model.TaskList{ID: "list-2", TeamID: "team-2"}, nil)
	f.lists.On("GetMember", mock.Anything, "team-2", testUserID).Return(nil, apperr.ErrUserDoesNotBelongToTeam)

	resp := doJSON(f.router, "POST", "/task-lists/list-2/tasks", map[string]interface{}{
		"title": "Dishes", "score": 1, "selectedDate": "withoutDate",
	})

	assert.Equal(t, http.StatusForbidden, resp.Code)
	f.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestListTasks_FiltersAndCursor(t *testing.T) {
	// Arrange
	f := setupTaskTest(model.RoleMember)
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	next := &repository.TaskCursor{Title: "b", CreatedAt: day, ID: "t2"}
	f.tasks.On("List", mock.Anything, mock.MatchedBy(func(tf repository.TaskFilter) bool {
		return tf.TaskListID == "list-1" && tf.UserAssignedID == testUserID &&
			tf.Completed != nil && !*tf.Completed && tf.Day != nil && tf.Day.Equal(day) && tf.Limit == 2
	})).Return(&repository.TaskPage{Tasks: []model.Task{{ID: "t1"}, {ID: "t2"}}, Next: next}, nil)

	// Act
	resp := doJSON(f.router, "GET", "/task-lists/list-1/tasks?assigned=me&completed=false&day=2024-06-03&limit=2", nil)

	// Assert
	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Tasks []model.Task `json:"tasks"`
		Next  string       `json:"next"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body.Tasks, 2)
	require.NotEmpty(t, body.Next)

	f.tasks.On("List", mock.Anything, mock.MatchedBy(func(tf repository.TaskFilter) bool {
		return tf.After != nil && tf.After.ID == "t2" && tf.After.Title == "b"
	})).Return(&repository.TaskPage{}, nil)
	resp = doJSON(f.router, "GET", "/task-lists/list-1/tasks?cursor="+body.Next, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestListTasks_BadQuery(t *testing.T) {
	f := setupTaskTest(model.RoleMember)

	for _, q := range []string{"completed=maybe", "day=03/06/2024", "cursor=!!!", "selectedDate=weekly"} {
		resp := doJSON(f.router, "GET", "/task-lists/list-1/tasks?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, resp.Code, q)
	}
}

func TestDeleteTask_Permissions(t *testing.T) {
	t.Run("member cannot delete someone else's task", func(t *testing.T) {
		f := setupTaskTest(model.RoleMember)
		f.tasks.On("GetByID", mock.Anything, "task-1").
			Return(&model.Task{ID: "task-1", TeamID: "team-1", TaskListID: "list-1", CreatedBy: "other"}, nil)

		resp := doJSON(f.router, "DELETE", "/tasks/task-1", nil)

		assert.Equal(t, http.StatusForbidden, resp.Code)
		f.tasks.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("admin can, and the preference check runs", func(t *testing.T) {
		f := setupTaskTest(model.RoleAdmin)
		f.tasks.On("GetByID", mock.Anything, "task-1").
			Return(&model.Task{ID: "task-1", TeamID: "team-1", TaskListID: "list-1", CreatedBy: "other"}, nil)
		f.tasks.On("Delete", mock.Anything, "task-1").Return(nil)

		resp := doJSON(f.router, "DELETE", "/tasks/task-1", nil)

		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.Equal(t, []string{"list-1"}, f.hook.lists)
	})

	t.Run("task in a trade", func(t *testing.T) {
		f := setupTaskTest(model.RoleAdmin)
		f.tasks.On("GetByID", mock.Anything, "task-1").
			Return(&model.Task{ID: "task-1", TeamID: "team-1", TaskListID: "list-1"}, nil)
		f.tasks.On("Delete", mock.Anything, "task-1").Return(apperr.ErrTaskInvolvedInTrade)

		resp := doJSON(f.router, "DELETE", "/tasks/task-1", nil)

		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "TASK_INVOLVED_IN_TRADE", errorCode(t, resp))
	})
}

func TestCompleteTask(t *testing.T) {
	t.Run("refreshes the completer", func(t *testing.T) {
		f := setupTaskTest(model.RoleMember)
		f.tasks.On("Complete", mock.Anything, "task-1", testUserID).
			Return(&model.Task{ID: "task-1", Completed: true}, nil)

		resp := doJSON(f.router, "POST", "/tasks/task-1/complete", nil)

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{testUserID}, f.quality.users)
	})

	t.Run("already completed", func(t *testing.T) {
		f := setupTaskTest(model.RoleMember)
		f.tasks.On("Complete", mock.Anything, "task-1", testUserID).Return(nil, apperr.ErrTaskAlreadyCompleted)

		resp := doJSON(f.router, "POST", "/tasks/task-1/complete", nil)

		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Empty(t, f.quality.users)
	})
}
