package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

// TokenRepository stores the push delivery token of each user.
type TokenRepository struct {
	logger *zap.SugaredLogger
	db     *gorm.DB
}

func NewTokenRepository(logger *zap.SugaredLogger, db *gorm.DB) *TokenRepository {
	return &TokenRepository{logger: logger, db: db}
}

// Upsert replaces the token of userID.
func (r *TokenRepository) Upsert(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.ErrEmptyToken
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
	}).Create(&model.FCMToken{UserID: userID, Token: token}).Error
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Get(ctx context.Context, userID string) (*model.FCMToken, error) {
	var token model.FCMToken
	err := r.db.WithContext(ctx).First(&token, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &token, nil
}

// ListByUsers returns the known tokens of userIDs keyed by user. Users without a
// token are absent from the result.
func (r *TokenRepository) ListByUsers(ctx context.Context, userIDs []string) (map[string]string, error) {
	tokens := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return tokens, nil
	}

	var rows []model.FCMToken
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	for _, row := range rows {
		tokens[row.UserID] = row.Token
	}
	return tokens, nil
}

func (r *TokenRepository) Delete(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Delete(&model.FCMToken{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
