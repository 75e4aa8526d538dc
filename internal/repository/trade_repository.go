package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

type TradeRepository struct {
	logger *zap.SugaredLogger
	db     *gorm.DB
}

func NewTradeRepository(logger *zap.SugaredLogger, db *gorm.DB) *TradeRepository {
	return &TradeRepository{logger: logger, db: db}
}

// TradeFilter selects trades. Zero fields are ignored.
type TradeFilter struct {
	UserSenderID   string
	UserReceiverID string
	// Participant matches trades where the user is sender or receiver.
	Participant string
	Status      model.TradeStatus
	TaskListID  string
	Limit       int
}

// Create stores a pending trade and flags its tasks. A task flagged by a
// concurrent trade makes the whole creation fail.
func (r *TradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	r.logger.Debugw("Create()", "sender", trade.UserSenderID, "receiver", trade.UserReceiverID, "type", trade.TradeType)

	trade.ID = uuid.NewString()
	trade.Status = model.TradePending
	trade.ResolvedAt = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trade).Error; err != nil {
			return err
		}
		if err := flagTask(tx, trade.TaskRequestedID, trade.UserReceiverID, trade.ID); err != nil {
			if errors.Is(err, errNotFlagged) {
				return apperr.ErrTaskRequestedAlreadyInTrade
			}
			return err
		}
		if trade.TradeType == model.TradeTask {
			if err := flagTask(tx, trade.TaskOffered, trade.UserSenderID, trade.ID); err != nil {
				if errors.Is(err, errNotFlagged) {
					return apperr.ErrTaskOfferedAlreadyInTrade
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Warnw("trade not created", "sender", trade.UserSenderID, "err", err)
		return err
	}
	return nil
}

// GetByID retrieves a trade by its ID
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).First(&trade, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return &trade, nil
}

// List returns trades newest first.
func (r *TradeRepository) List(ctx context.Context, f TradeFilter) ([]model.Trade, error) {
	query := r.db.WithContext(ctx).Model(&model.Trade{})
	if f.UserSenderID != "" {
		query = query.Where("id_user_sender = ?", f.UserSenderID)
	}
	if f.UserReceiverID != "" {
		query = query.Where("id_user_receiver = ?", f.UserReceiverID)
	}
	if f.Participant != "" {
		query = query.Where("(id_user_sender = ? OR id_user_receiver = ?)", f.Participant, f.Participant)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.TaskListID != "" {
		query = query.Where("id_task_list = ?", f.TaskListID)
	}

	var trades []model.Trade
	if err := query.Order("created_at DESC").Order("id ASC").
		Limit(normalizeLimit(f.Limit)).
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}

// Accept resolves a pending trade in favour of the sender. Ownership, completion and
// score are checked again under lock before anything moves.
func (r *TradeRepository) Accept(ctx context.Context, tradeID, actorID string) (*model.Trade, error) {
	r.logger.Debugw("Accept()", "tradeID", tradeID, "actorID", actorID)

	var trade model.Trade
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPendingTrade(tx, tradeID, actorID, &trade); err != nil {
			return err
		}

		tasks, err := lockTasks(tx, trade.TaskIDs())
		if err != nil {
			return err
		}

		requested, ok := tasks[trade.TaskRequestedID]
		switch {
		case !ok:
			return apperr.ErrTaskNotFound
		case requested.UserAssignedID != trade.UserReceiverID:
			return apperr.ErrTaskRequestedDoesNotBelongToReceiver
		case requested.Completed:
			return apperr.ErrTaskRequestedIsAlreadyCompleted
		}

		switch trade.TradeType {
		case model.TradeTask:
			offered, ok := tasks[trade.TaskOffered]
			switch {
			case !ok:
				return apperr.ErrTaskOfferedNotFound
			case offered.UserAssignedID != trade.UserSenderID:
				return apperr.ErrTaskOfferedAlreadyBelongsToAnotherUser
			case offered.Completed:
				return apperr.ErrTaskOfferedIsAlreadyCompleted
			}
			if err := reassign(tx, offered.ID, trade.UserReceiverID); err != nil {
				return err
			}

		case model.TradeScore:
			if err := transferScore(tx, &trade); err != nil {
				return err
			}
		}

		if err := reassign(tx, requested.ID, trade.UserSenderID); err != nil {
			return err
		}
		return resolve(tx, &trade, model.TradeAccepted)
	})
	if err != nil {
		r.logger.Warnw("trade not accepted", "tradeID", tradeID, "err", err)
		return nil, err
	}
	return &trade, nil
}

// Reject resolves a pending trade without moving anything.
func (r *TradeRepository) Reject(ctx context.Context, tradeID, actorID string) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPendingTrade(tx, tradeID, actorID, &trade); err != nil {
			return err
		}
		return resolve(tx, &trade, model.TradeRejected)
	})
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// Delete removes a trade. Pending trades need confirmed and release their tasks.
func (r *TradeRepository) Delete(ctx context.Context, tradeID, actorID string, confirmed bool) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&trade, "id = ?", tradeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTradeNotFound
			}
			return err
		}
		if actorID != trade.UserSenderID && actorID != trade.UserReceiverID {
			return apperr.ErrNotTradeParticipant
		}

		if trade.Status == model.TradePending {
			if !confirmed {
				return apperr.ErrConfirmationRequired
			}
			if err := unflagTasks(tx, &trade); err != nil {
				return err
			}
		}
		return tx.Delete(&model.Trade{}, "id = ?", trade.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

var errNotFlagged = errors.New("task not flagged")

// flagTask marks a task as part of tradeID, provided it is still owned by owner,
// open and free of other trades.
func flagTask(tx *gorm.DB, taskID, owner, tradeID string) error {
	result := tx.Model(&model.Task{}).
		Where("id = ? AND id_user_assigned = ? AND completed = ? AND is_involved_in_trade = ?", taskID, owner, false, false).
		Updates(map[string]interface{}{"is_involved_in_trade": true, "id_trade": tradeID})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errNotFlagged
	}
	return nil
}

func unflagTasks(tx *gorm.DB, trade *model.Trade) error {
	return tx.Model(&model.Task{}).
		Where("id IN ? AND id_trade = ?", trade.TaskIDs(), trade.ID).
		Updates(map[string]interface{}{"is_involved_in_trade": false, "id_trade": ""}).Error
}

func lockPendingTrade(tx *gorm.DB, tradeID, actorID string, trade *model.Trade) error {
	if err := tx.Clauses(forUpdate).First(trade, "id = ?", tradeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrTradeNotFound
		}
		return err
	}
	if trade.UserReceiverID != actorID {
		return apperr.ErrNotTradeReceiver
	}
	if trade.Status != model.TradePending {
		return apperr.ErrTradeAlreadyResolved
	}
	return nil
}

func lockTasks(tx *gorm.DB, ids []string) (map[string]model.Task, error) {
	var tasks []model.Task
	if err := tx.Clauses(forUpdate).Where("id IN ?", ids).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return byID, nil
}

func reassign(tx *gorm.DB, taskID, userID string) error {
	return tx.Model(&model.Task{}).Where("id = ?", taskID).Update("id_user_assigned", userID).Error
}

// transferScore moves the offered score from sender to receiver in both the task list
// and the team totals. The sender's list score must cover the offer.
func transferScore(tx *gorm.DB, trade *model.Trade) error {
	result := tx.Model(&model.TaskListMember{}).
		Where("task_list_id = ? AND user_id = ? AND score >= ?", trade.TaskListID, trade.UserSenderID, trade.ScoreOffered).
		Update("score", gorm.Expr("score - ?", trade.ScoreOffered))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrSenderUserDoesNotHaveEnoughScore
	}

	if err := addTaskListScore(tx, trade.TaskListID, trade.UserReceiverID, trade.ScoreOffered); err != nil {
		return err
	}
	if err := addTeamScore(tx, trade.TeamID, trade.UserSenderID, -trade.ScoreOffered); err != nil {
		return err
	}
	return addTeamScore(tx, trade.TeamID, trade.UserReceiverID, trade.ScoreOffered)
}

func resolve(tx *gorm.DB, trade *model.Trade, status model.TradeStatus) error {
	if err := unflagTasks(tx, trade); err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := tx.Model(&model.Trade{}).Where("id = ?", trade.ID).
		Updates(map[string]interface{}{"status": status, "resolved_at": now}).Error; err != nil {
		return err
	}
	trade.Status = status
	trade.ResolvedAt = &now
	return nil
}
