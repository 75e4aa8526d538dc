// Package trade runs the trade state machine between two members of a team: a
// pending request is accepted or rejected by its receiver and may be deleted by
// either side.
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"teamtasks/internal/apperr"
	"teamtasks/internal/messaging"
	"teamtasks/internal/metrics"
	"teamtasks/internal/model"
	"teamtasks/internal/repository"
)

type Store interface {
	Create(ctx context.Context, trade *model.Trade) error
	GetByID(ctx context.Context, id string) (*model.Trade, error)
	List(ctx context.Context, f repository.TradeFilter) ([]model.Trade, error)
	Accept(ctx context.Context, tradeID, actorID string) (*model.Trade, error)
	Reject(ctx context.Context, tradeID, actorID string) (*model.Trade, error)
	Delete(ctx context.Context, tradeID, actorID string, confirmed bool) (*model.Trade, error)
}

type TaskStore interface {
	GetByID(ctx context.Context, id string) (*model.Task, error)
	Invalidate(taskListID string)
}

type TeamStore interface {
	GetByID(ctx context.Context, id string) (*model.Team, error)
	GetTaskList(ctx context.Context, id string) (*model.TaskList, error)
}

type Notifier interface {
	Notify(ctx context.Context, userIDs []string, n messaging.Notification) error
}

type Engine struct {
	logger   *zap.SugaredLogger
	trades   Store
	tasks    TaskStore
	teams    TeamStore
	notifier Notifier
}

func NewEngine(logger *zap.SugaredLogger, trades Store, tasks TaskStore, teams TeamStore, notifier Notifier) *Engine {
	return &Engine{logger: logger, trades: trades, tasks: tasks, teams: teams, notifier: notifier}
}

// Create validates and stores a pending trade, then tells the receiver.
func (e *Engine) Create(ctx context.Context, t *model.Trade) (err error) {
	defer func(start time.Time) { metrics.ObserveOp("trade.create", start, err) }(time.Now())

	p, err := e.load(ctx, t)
	if err != nil {
		return err
	}
	if err := Validate(p); err != nil {
		e.logger.Debugw("trade rejected by validation", "sender", t.UserSenderID, "err", err)
		return err
	}
	if t.TradeType == model.TradeScore {
		t.TaskOffered = ""
	} else {
		t.ScoreOffered = 0
	}

	if err := e.trades.Create(ctx, t); err != nil {
		return err
	}
	e.tasks.Invalidate(t.TaskListID)

	sender, _ := p.Team.Member(t.UserSenderID)
	e.notify(ctx, t.UserReceiverID, messaging.Notification{
		Title: "New trade request",
		Body:  fmt.Sprintf("%s wants to trade one of your tasks.", sender.Name),
		Data:  map[string]string{"type": "tradeCreated", "idTrade": t.ID},
	})
	return nil
}

func (e *Engine) Accept(ctx context.Context, tradeID, actorID string) (t *model.Trade, err error) {
	defer func(start time.Time) { metrics.ObserveOp("trade.accept", start, err) }(time.Now())

	t, err = e.trades.Accept(ctx, tradeID, actorID)
	if err != nil {
		return nil, err
	}
	e.tasks.Invalidate(t.TaskListID)

	e.notify(ctx, t.UserSenderID, messaging.Notification{
		Title: "Trade accepted",
		Body:  "Your trade request was accepted.",
		Data:  map[string]string{"type": "tradeAccepted", "idTrade": t.ID},
	})
	return t, nil
}

func (e *Engine) Reject(ctx context.Context, tradeID, actorID string) (t *model.Trade, err error) {
	defer func(start time.Time) { metrics.ObserveOp("trade.reject", start, err) }(time.Now())

	t, err = e.trades.Reject(ctx, tradeID, actorID)
	if err != nil {
		return nil, err
	}
	e.tasks.Invalidate(t.TaskListID)

	e.notify(ctx, t.UserSenderID, messaging.Notification{
		Title: "Trade rejected",
		Body:  "Your trade request was rejected.",
		Data:  map[string]string{"type": "tradeRejected", "idTrade": t.ID},
	})
	return t, nil
}

// Delete removes a trade. A pending trade needs confirmed.
func (e *Engine) Delete(ctx context.Context, tradeID, actorID string, confirmed bool) error {
	t, err := e.trades.Delete(ctx, tradeID, actorID, confirmed)
	if err != nil {
		return err
	}
	e.tasks.Invalidate(t.TaskListID)
	return nil
}

// Get returns a trade to one of its participants.
func (e *Engine) Get(ctx context.Context, tradeID, actorID string) (*model.Trade, error) {
	t, err := e.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if actorID != t.UserSenderID && actorID != t.UserReceiverID {
		return nil, apperr.ErrNotTradeParticipant
	}
	return t, nil
}

// List returns the trades actorID takes part in, narrowed by f.
func (e *Engine) List(ctx context.Context, actorID string, f repository.TradeFilter) ([]model.Trade, error) {
	if f.Status != "" && f.Status != model.TradePending && !f.Status.Terminal() {
		return nil, apperr.ErrInvalidTradeStatus
	}
	f.Participant = actorID
	return e.trades.List(ctx, f)
}

// load resolves the references of t. Missing references stay nil so Validate can
// report them in order.
func (e *Engine) load(ctx context.Context, t *model.Trade) (Proposal, error) {
	p := Proposal{Trade: t}

	team, err := e.teams.GetByID(ctx, t.TeamID)
	if err := ignoreNotFound(err); err != nil {
		return p, err
	}
	p.Team = team

	list, err := e.teams.GetTaskList(ctx, t.TaskListID)
	if err := ignoreNotFound(err); err != nil {
		return p, err
	}
	p.TaskList = list

	requested, err := e.tasks.GetByID(ctx, t.TaskRequestedID)
	if err := ignoreNotFound(err); err != nil {
		return p, err
	}
	p.Requested = requested

	if t.TradeType == model.TradeTask && t.TaskOffered != "" {
		offered, err := e.tasks.GetByID(ctx, t.TaskOffered)
		if err := ignoreNotFound(err); err != nil {
			return p, err
		}
		p.Offered = offered
	}
	return p, nil
}

func ignoreNotFound(err error) error {
	if err == nil || apperr.KindOf(err) == apperr.KindNotFound {
		return nil
	}
	return err
}

func (e *Engine) notify(ctx context.Context, userID string, n messaging.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, []string{userID}, n); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warnw("trade notification failed", "userID", userID, "title", n.Title, "err", err)
	}
}
