package trade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teamtasks/internal/apperr"
	"teamtasks/internal/messaging"
	"teamtasks/internal/model"
	"teamtasks/internal/repository"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, trade *model.Trade) error {
	args := m.Called(ctx, trade)
	if args.Error(0) == nil {
		trade.ID = "trade-1"
		trade.Status = model.TradePending
	}
	return args.Error(0)
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*model.Trade, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trade), args.Error(1)
}

func (m *MockStore) List(ctx context.Context, f repository.TradeFilter) ([]model.Trade, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]model.Trade), args.Error(1)
}

func (m *MockStore) Accept(ctx context.Context, tradeID, actorID string) (*model.Trade, error) {
	args := m.Called(ctx, tradeID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trade), args.Error(1)
}

func (m *MockStore) Reject(ctx context.Context, tradeID, actorID string) (*model.Trade, error) {
	args := m.Called(ctx, tradeID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trade), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, tradeID, actorID string, confirmed bool) (*model.Trade, error) {
	args := m.Called(ctx, tradeID, actorID, confirmed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trade), args.Error(1)
}

type fakeTasks struct {
	tasks       map[string]*model.Task
	invalidated []string
}

func (f *fakeTasks) GetByID(_ context.Context, id string) (*model.Task, error) {
	if t, ok := f.tasks[id]; ok {
		return t, nil
	}
	return nil, apperr.ErrTaskNotFound
}

func (f *fakeTasks) Invalidate(taskListID string) {
	f.invalidated = append(f.invalidated, taskListID)
}

type fakeTeams struct {
	team *model.Team
	list *model.TaskList
	err  error
}

func (f *fakeTeams) GetByID(_ context.Context, id string) (*model.Team, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.team == nil || f.team.ID != id {
		return nil, apperr.ErrTeamNotFound
	}
	return f.team, nil
}

func (f *fakeTeams) GetTaskList(_ context.Context, id string) (*model.TaskList, error) {
	if f.list == nil || f.list.ID != id {
		return nil, apperr.ErrTaskListNotFound
	}
	return f.list, nil
}

type sentNote struct {
	users []string
	note  messaging.Notification
}

type fakeNotifier struct {
	sent []sentNote
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, userIDs []string, n messaging.Notification) error {
	f.sent = append(f.sent, sentNote{users: userIDs, note: n})
	return f.err
}

type fixture struct {
	engine   *Engine
	store    *MockStore
	tasks    *fakeTasks
	teams    *fakeTeams
	notifier *fakeNotifier
}

func newFixture() *fixture {
	p := baseProposal()
	p.Team.Members[0].Name = "Ana"
	f := &fixture{
		store:    new(MockStore),
		tasks:    &fakeTasks{tasks: map[string]*model.Task{"t-req": p.Requested, "t-off": p.Offered}},
		teams:    &fakeTeams{team: p.Team, list: p.TaskList},
		notifier: &fakeNotifier{},
	}
	f.engine = NewEngine(zap.NewNop().Sugar(), f.store, f.tasks, f.teams, f.notifier)
	return f
}

func newTaskTrade() *model.Trade {
	return &model.Trade{
		TeamID:          "team-1",
		TaskListID:      "list-1",
		TaskRequestedID: "t-req",
		UserSenderID:    "ana",
		UserReceiverID:  "ben",
		TradeType:       model.TradeTask,
		TaskOffered:     "t-off",
		ScoreOffered:    7,
	}
}

func TestEngine_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and notifies the receiver", func(t *testing.T) {
		// Arrange
		f := newFixture()
		trade := newTaskTrade()
		f.store.On("Create", ctx, trade).Return(nil)

		// Act
		err := f.engine.Create(ctx, trade)

		// Assert
		require.NoError(t, err)
		assert.Zero(t, trade.ScoreOffered, "task trades carry no score")
		assert.Equal(t, []string{"list-1"}, f.tasks.invalidated)
		require.Len(t, f.notifier.sent, 1)
		assert.Equal(t, []string{"ben"}, f.notifier.sent[0].users)
		assert.Equal(t, "Ana wants to trade one of your tasks.", f.notifier.sent[0].note.Body)
		assert.Equal(t, "trade-1", f.notifier.sent[0].note.Data["idTrade"])
		f.store.AssertExpectations(t)
	})

	t.Run("validation failure never reaches the store", func(t *testing.T) {
		// Arrange
		f := newFixture()
		trade := newTaskTrade()
		trade.UserReceiverID = "zoe"

		// Act
		err := f.engine.Create(ctx, trade)

		// Assert
		assert.Equal(t, apperr.ErrUserDoesNotBelongToTeam, err)
		f.store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assert.Empty(t, f.notifier.sent)
	})

	t.Run("unknown team", func(t *testing.T) {
		f := newFixture()
		trade := newTaskTrade()
		trade.TeamID = "team-9"

		assert.Equal(t, apperr.ErrTeamNotFound, f.engine.Create(ctx, trade))
	})

	t.Run("unknown offered task", func(t *testing.T) {
		f := newFixture()
		trade := newTaskTrade()
		trade.TaskOffered = "t-missing"

		assert.Equal(t, apperr.ErrTaskOfferedNotFound, f.engine.Create(ctx, trade))
	})

	t.Run("store errors other than not found are returned", func(t *testing.T) {
		f := newFixture()
		boom := errors.New("connection reset")
		f.teams.err = boom

		assert.ErrorIs(t, f.engine.Create(ctx, newTaskTrade()), boom)
	})

	t.Run("score trade drops the offered task", func(t *testing.T) {
		f := newFixture()
		trade := newTaskTrade()
		trade.TradeType = model.TradeScore
		trade.ScoreOffered = 3
		f.store.On("Create", ctx, trade).Return(nil)

		require.NoError(t, f.engine.Create(ctx, trade))
		assert.Empty(t, trade.TaskOffered)
		assert.Equal(t, 3, trade.ScoreOffered)
	})

	t.Run("notification failure does not fail the trade", func(t *testing.T) {
		f := newFixture()
		f.notifier.err = errors.New("push gateway down")
		trade := newTaskTrade()
		f.store.On("Create", ctx, trade).Return(nil)

		assert.NoError(t, f.engine.Create(ctx, trade))
	})
}

func TestEngine_AcceptAndReject(t *testing.T) {
	ctx := context.Background()
	resolved := &model.Trade{ID: "trade-1", TaskListID: "list-1", UserSenderID: "ana", UserReceiverID: "ben"}

	t.Run("accept notifies the sender", func(t *testing.T) {
		// Arrange
		f := newFixture()
		f.store.On("Accept", ctx, "trade-1", "ben").Return(resolved, nil)

		// Act
		got, err := f.engine.Accept(ctx, "trade-1", "ben")

		// Assert
		require.NoError(t, err)
		assert.Same(t, resolved, got)
		assert.Equal(t, []string{"list-1"}, f.tasks.invalidated)
		require.Len(t, f.notifier.sent, 1)
		assert.Equal(t, []string{"ana"}, f.notifier.sent[0].users)
		assert.Equal(t, "Trade accepted", f.notifier.sent[0].note.Title)
	})

	t.Run("reject notifies the sender", func(t *testing.T) {
		f := newFixture()
		f.store.On("Reject", ctx, "trade-1", "ben").Return(resolved, nil)

		_, err := f.engine.Reject(ctx, "trade-1", "ben")

		require.NoError(t, err)
		require.Len(t, f.notifier.sent, 1)
		assert.Equal(t, "Trade rejected", f.notifier.sent[0].note.Title)
	})

	t.Run("store failure is returned without notifying", func(t *testing.T) {
		f := newFixture()
		f.store.On("Accept", ctx, "trade-1", "ana").Return(nil, apperr.ErrNotTradeReceiver)

		_, err := f.engine.Accept(ctx, "trade-1", "ana")

		assert.Equal(t, apperr.ErrNotTradeReceiver, err)
		assert.Empty(t, f.notifier.sent)
		assert.Empty(t, f.tasks.invalidated)
	})
}

func TestEngine_GetAndList(t *testing.T) {
	ctx := context.Background()
	trade := &model.Trade{ID: "trade-1", UserSenderID: "ana", UserReceiverID: "ben"}

	t.Run("participants can read", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetByID", ctx, "trade-1").Return(trade, nil)

		got, err := f.engine.Get(ctx, "trade-1", "ben")

		require.NoError(t, err)
		assert.Same(t, trade, got)
	})

	t.Run("outsiders cannot", func(t *testing.T) {
		f := newFixture()
		f.store.On("GetByID", ctx, "trade-1").Return(trade, nil)

		_, err := f.engine.Get(ctx, "trade-1", "zoe")

		assert.Equal(t, apperr.ErrNotTradeParticipant, err)
	})

	t.Run("list is scoped to the actor", func(t *testing.T) {
		f := newFixture()
		want := repository.TradeFilter{Participant: "ana", Status: model.TradePending}
		f.store.On("List", ctx, want).Return([]model.Trade{*trade}, nil)

		got, err := f.engine.List(ctx, "ana", repository.TradeFilter{Participant: "ben", Status: model.TradePending})

		require.NoError(t, err)
		assert.Len(t, got, 1)
		f.store.AssertExpectations(t)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture()

		_, err := f.engine.List(ctx, "ana", repository.TradeFilter{Status: "open"})

		assert.Equal(t, apperr.ErrInvalidTradeStatus, err)
	})
}

func TestEngine_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.On("Delete", ctx, "trade-1", "ana", false).Return(nil, apperr.ErrConfirmationRequired)
	f.store.On("Delete", ctx, "trade-1", "ana", true).Return(&model.Trade{ID: "trade-1", TaskListID: "list-1"}, nil)

	assert.Equal(t, apperr.ErrConfirmationRequired, f.engine.Delete(ctx, "trade-1", "ana", false))
	assert.Empty(t, f.tasks.invalidated)

	assert.NoError(t, f.engine.Delete(ctx, "trade-1", "ana", true))
	assert.Equal(t, []string{"list-1"}, f.tasks.invalidated)
}
