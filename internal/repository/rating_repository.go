package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

type RatingRepository struct {
	logger *zap.SugaredLogger
	db     *gorm.DB
}

func NewRatingRepository(logger *zap.SugaredLogger, db *gorm.DB) *RatingRepository {
	return &RatingRepository{logger: logger, db: db}
}

// Upsert stores the rating of (task list, sender, receiver), replacing the aspects of
// an existing one. rating is refreshed from the stored row, so a resubmission keeps
// the id and creation time of the first one.
func (r *RatingRepository) Upsert(ctx context.Context, rating *model.Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id_task_list"}, {Name: "id_user_sender"}, {Name: "id_user_receiver"}},
			DoUpdates: clause.AssignmentColumns([]string{"work", "communication", "attitude", "overall", "updated_at"}),
		}).Create(rating).Error
		if err != nil {
			return err
		}

		stored, err := ratingByKey(tx, rating.TaskListID, rating.UserSenderID, rating.UserReceiverID)
		if err != nil {
			return err
		}
		*rating = *stored
		return nil
	})
	if err != nil {
		r.logger.Errorw("failed to upsert rating", "taskListID", rating.TaskListID, "err", err)
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func ratingByKey(tx *gorm.DB, taskListID, senderID, receiverID string) (*model.Rating, error) {
	var rating model.Rating
	err := tx.Where("id_task_list = ? AND id_user_sender = ? AND id_user_receiver = ?", taskListID, senderID, receiverID).
		First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrRatingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// ListByReceiver returns every rating received by userID.
func (r *RatingRepository) ListByReceiver(ctx context.Context, userID string) ([]model.Rating, error) {
	var ratings []model.Rating
	err := r.db.WithContext(ctx).
		Where("id_user_receiver = ?", userID).
		Order("created_at ASC").
		Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("list ratings by receiver: %w", err)
	}
	return ratings, nil
}

func (r *RatingRepository) ListByTaskList(ctx context.Context, taskListID string) ([]model.Rating, error) {
	var ratings []model.Rating
	err := r.db.WithContext(ctx).
		Where("id_task_list = ?", taskListID).
		Order("created_at ASC").
		Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("list ratings by task list: %w", err)
	}
	return ratings, nil
}

// Delete removes a rating by its key.
func (r *RatingRepository) Delete(ctx context.Context, taskListID, senderID, receiverID string) error {
	result := r.db.WithContext(ctx).
		Where("id_task_list = ? AND id_user_sender = ? AND id_user_receiver = ?", taskListID, senderID, receiverID).
		Delete(&model.Rating{})
	if result.Error != nil {
		return fmt.Errorf("delete rating: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrRatingNotFound
	}
	return nil
}
