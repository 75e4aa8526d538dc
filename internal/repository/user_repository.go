package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

type UserRepository struct {
	logger *zap.SugaredLogger
	db     *gorm.DB
}

func NewUserRepository(logger *zap.SugaredLogger, db *gorm.DB) *UserRepository {
	return &UserRepository{logger: logger, db: db}
}

// Ensure creates the user on first sight and returns the stored row.
// Identity is owned by the external provider, so email and name only seed the row.
func (r *UserRepository) Ensure(ctx context.Context, user *model.User) (*model.User, error) {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(user).Error; err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return r.GetByID(ctx, user.ID)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// UpdateRates stores the peer-rating aggregates of a user.
func (r *UserRepository) UpdateRates(ctx context.Context, id string, rates model.UserRates) error {
	r.logger.Debugw("UpdateRates()", "userID", id, "rates", rates)

	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"work_rate":          rates.WorkRate,
			"communication_rate": rates.CommunicationRate,
			"attitude_rate":      rates.AttitudeRate,
			"overall_rate":       rates.OverallRate,
		})
	if result.Error != nil {
		return fmt.Errorf("update rates: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

// UpdateQuality stores the derived efficiency and quality mark of a user.
func (r *UserRepository) UpdateQuality(ctx context.Context, id string, efficiency, qualityMark float64) error {
	r.logger.Debugw("UpdateQuality()", "userID", id, "efficiency", efficiency, "qualityMark", qualityMark)

	result := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"efficiency":   efficiency,
			"quality_mark": qualityMark,
		})
	if result.Error != nil {
		return fmt.Errorf("update quality: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}
