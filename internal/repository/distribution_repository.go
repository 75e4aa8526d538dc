package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

// DistributionRepository persists preference selections and commits distribution rounds.
type DistributionRepository struct {
	logger *zap.SugaredLogger
	db     *gorm.DB
}

func NewDistributionRepository(logger *zap.SugaredLogger, db *gorm.DB) *DistributionRepository {
	return &DistributionRepository{logger: logger, db: db}
}

// ListMembers returns the per-user state of a task list.
func (r *DistributionRepository) ListMembers(ctx context.Context, taskListID string) ([]model.TaskListMember, error) {
	var members []model.TaskListMember
	err := r.db.WithContext(ctx).
		Where("task_list_id = ?", taskListID).
		Order("user_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list task list members: %w", err)
	}
	return members, nil
}

// ListPreferences returns every selection of a list in registration order.
func (r *DistributionRepository) ListPreferences(ctx context.Context, taskListID string) ([]model.TaskPreference, error) {
	var prefs []model.TaskPreference
	err := r.db.WithContext(ctx).
		Where("task_list_id = ?", taskListID).
		Order("id ASC").
		Find(&prefs).Error
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

// AddPreference registers taskID as preferred by userID. Selecting an already
// selected task is a no-op; a new selection beyond limit fails with ErrPreferenceLimit.
func (r *DistributionRepository) AddPreference(ctx context.Context, taskListID, userID, taskID string, limit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member model.TaskListMember
		if err := tx.Clauses(forUpdate).
			Where("task_list_id = ? AND user_id = ?", taskListID, userID).
			First(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrUserDoesNotBelongToTeam
			}
			return err
		}

		var task model.Task
		if err := tx.First(&task, "id = ? AND id_task_list = ?", taskID, taskListID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTaskNotFound
			}
			return err
		}
		if !task.AvailableToAssign {
			return apperr.ErrTaskNotAvailable
		}

		var selected []model.TaskPreference
		if err := tx.Where("task_list_id = ? AND user_id = ?", taskListID, userID).
			Find(&selected).Error; err != nil {
			return err
		}
		for _, p := range selected {
			if p.TaskID == taskID {
				return nil
			}
		}
		if len(selected) >= limit {
			return apperr.ErrPreferenceLimit
		}

		return tx.Create(&model.TaskPreference{TaskListID: taskListID, UserID: userID, TaskID: taskID}).Error
	})
}

// RemovePreference drops a selection. Removing a missing selection is a no-op.
func (r *DistributionRepository) RemovePreference(ctx context.Context, taskListID, userID, taskID string) error {
	err := r.db.WithContext(ctx).
		Where("task_list_id = ? AND user_id = ? AND task_id = ?", taskListID, userID, taskID).
		Delete(&model.TaskPreference{}).Error
	if err != nil {
		return fmt.Errorf("remove preference: %w", err)
	}
	return nil
}

// DeletePreferences drops the selections with the given ids.
func (r *DistributionRepository) DeletePreferences(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.TaskPreference{}).Error; err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

// SetPreferencesDone stores whether userID finished selecting for the current round.
func (r *DistributionRepository) SetPreferencesDone(ctx context.Context, taskListID, userID string, done bool) error {
	result := r.db.WithContext(ctx).Model(&model.TaskListMember{}).
		Where("task_list_id = ? AND user_id = ?", taskListID, userID).
		Update("preferences_done", done)
	if result.Error != nil {
		return fmt.Errorf("set preferences done: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrUserDoesNotBelongToTeam
	}
	return nil
}

// ClearPreferencesDone resets the done flag of the given users.
func (r *DistributionRepository) ClearPreferencesDone(ctx context.Context, taskListID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&model.TaskListMember{}).
		Where("task_list_id = ? AND user_id IN ?", taskListID, userIDs).
		Update("preferences_done", false).Error
	if err != nil {
		return fmt.Errorf("clear preferences done: %w", err)
	}
	return nil
}

// ApplyDistribution commits a round of assignments atomically. The round counter of
// the list must still equal expectedRound, otherwise nothing is written and
// ErrDistributionConflict is returned. It returns the new round and the number of
// tasks granted to each user.
func (r *DistributionRepository) ApplyDistribution(ctx context.Context, taskListID string, expectedRound int, assignments []model.Assignment) (int, map[string]int, error) {
	r.logger.Debugw("ApplyDistribution()", "taskListID", taskListID, "expectedRound", expectedRound, "assignments", len(assignments))

	if len(assignments) == 0 {
		return 0, nil, apperr.ErrEmptyDistribution
	}

	newRound := expectedRound + 1
	counts := make(map[string]int)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.TaskList{}).
			Where("id = ? AND distribution_round = ?", taskListID, expectedRound).
			Updates(map[string]interface{}{
				"distribution_round":     newRound,
				"distribution_completed": true,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.ErrDistributionConflict
		}

		for _, a := range assignments {
			query := tx.Model(&model.Task{}).Where("id = ? AND id_task_list = ?", a.TaskID, taskListID)
			if a.ExpectedTemporal != "" {
				query = query.Where("id_temporal_user_assigned = ?", a.ExpectedTemporal)
			} else {
				query = query.Where("available_to_assign = ? AND id_user_assigned = ''", true)
			}

			result := query.Updates(map[string]interface{}{
				"id_user_assigned":          a.UserID,
				"id_temporal_user_assigned": "",
				"available_to_assign":       false,
				"completed":                 false,
				"distribution_round":        newRound,
			})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return apperr.ErrDistributionConflict
			}
			counts[a.UserID]++
		}

		for _, userID := range sortedKeys(counts) {
			if err := incrementUserCounter(tx, userID, "total_tasks_assigned", counts[userID]); err != nil {
				return err
			}
		}
		return clearRoundState(tx, taskListID)
	})
	if err != nil {
		r.logger.Warnw("distribution not applied", "taskListID", taskListID, "err", err)
		return 0, nil, err
	}

	r.logger.Debugw("distribution applied", "taskListID", taskListID, "round", newRound, "users", len(counts))
	return newRound, counts, nil
}

// StartNewRound reopens every task of the list that is not part of a trade and
// discards the selections of the previous round.
func (r *DistributionRepository) StartNewRound(ctx context.Context, taskListID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.TaskList{}).Where("id = ?", taskListID).
			Update("distribution_completed", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.ErrTaskListNotFound
		}

		err := tx.Model(&model.Task{}).
			Where("id_task_list = ? AND is_involved_in_trade = ?", taskListID, false).
			Updates(map[string]interface{}{
				"id_user_assigned":          "",
				"id_temporal_user_assigned": "",
				"available_to_assign":       true,
				"completed":                 false,
			}).Error
		if err != nil {
			return err
		}
		return clearRoundState(tx, taskListID)
	})
}
