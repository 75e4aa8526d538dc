// Package rating records peer ratings and keeps the rating and quality fields of
// users in line with their ratings and task counters.
package rating

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"teamtasks/internal/apperr"
	"teamtasks/internal/metrics"
	"teamtasks/internal/model"
)

const (
	aspectWeight     = 0.08
	overallWeight    = 0.16
	efficiencyWeight = 0.6

	epsilon = 1e-9
)

type RatingStore interface {
	Upsert(ctx context.Context, rating *model.Rating) error
	Delete(ctx context.Context, taskListID, senderID, receiverID string) error
	ListByReceiver(ctx context.Context, userID string) ([]model.Rating, error)
	ListByTaskList(ctx context.Context, taskListID string) ([]model.Rating, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateRates(ctx context.Context, id string, rates model.UserRates) error
	UpdateQuality(ctx context.Context, id string, efficiency, qualityMark float64) error
}

type TeamStore interface {
	GetTaskList(ctx context.Context, id string) (*model.TaskList, error)
	GetMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error)
}

// ComputeRates aggregates every rating a user received. Each aspect is the sum of
// its values over ratingCount*5, weighted 0.08 (overall 0.16).
func ComputeRates(ratings []model.Rating) model.UserRates {
	if len(ratings) == 0 {
		return model.UserRates{}
	}

	var work, communication, attitude, overall int
	for _, r := range ratings {
		work += r.Work
		communication += r.Communication
		attitude += r.Attitude
		overall += r.Overall
	}

	scale := float64(len(ratings) * model.MaxRatingValue)
	return model.UserRates{
		WorkRate:          float64(work) / scale * aspectWeight,
		CommunicationRate: float64(communication) / scale * aspectWeight,
		AttitudeRate:      float64(attitude) / scale * aspectWeight,
		OverallRate:       float64(overall) / scale * overallWeight,
	}
}

// ComputeQuality returns efficiency (completed over assigned, 0 without assignments)
// and the quality mark derived from it and the rates.
func ComputeQuality(rates model.UserRates, completed, assigned int) (float64, float64) {
	var efficiency float64
	if assigned > 0 {
		efficiency = float64(completed) / float64(assigned)
	}
	quality := rates.WorkRate + rates.CommunicationRate + rates.AttitudeRate + rates.OverallRate +
		efficiency*efficiencyWeight
	return efficiency, quality
}

type Engine struct {
	logger  *zap.SugaredLogger
	ratings RatingStore
	users   UserStore
	teams   TeamStore
}

func NewEngine(logger *zap.SugaredLogger, ratings RatingStore, users UserStore, teams TeamStore) *Engine {
	return &Engine{logger: logger, ratings: ratings, users: users, teams: teams}
}

// Upsert creates or replaces the rating of (task list, sender, receiver) and
// refreshes the receiver.
func (e *Engine) Upsert(ctx context.Context, rating *model.Rating) (err error) {
	defer func(start time.Time) { metrics.ObserveOp("rating.upsert", start, err) }(time.Now())

	if !rating.Valid() {
		return apperr.ErrInvalidRating
	}
	if rating.UserSenderID == rating.UserReceiverID {
		return apperr.ErrSelfRating
	}
	if err := e.checkMembers(ctx, rating.TaskListID, rating.UserSenderID, rating.UserReceiverID); err != nil {
		return err
	}

	if err := e.ratings.Upsert(ctx, rating); err != nil {
		return err
	}
	return e.RecomputeUser(ctx, rating.UserReceiverID)
}

// Delete removes the rating senderID gave receiverID for a task list.
func (e *Engine) Delete(ctx context.Context, taskListID, senderID, receiverID string) (err error) {
	defer func(start time.Time) { metrics.ObserveOp("rating.delete", start, err) }(time.Now())

	if err := e.ratings.Delete(ctx, taskListID, senderID, receiverID); err != nil {
		return err
	}
	return e.RecomputeUser(ctx, receiverID)
}

// ListByTaskList returns the ratings of a list when userID belongs to its team.
func (e *Engine) ListByTaskList(ctx context.Context, taskListID, userID string) ([]model.Rating, error) {
	if err := e.checkMembers(ctx, taskListID, userID); err != nil {
		return nil, err
	}
	return e.ratings.ListByTaskList(ctx, taskListID)
}

// RecomputeUser derives the rate fields from the stored ratings and the quality from
// the rates and counters. Values equal to the stored ones are not written again.
func (e *Engine) RecomputeUser(ctx context.Context, userID string) error {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	received, err := e.ratings.ListByReceiver(ctx, userID)
	if err != nil {
		return err
	}

	rates := ComputeRates(received)
	if !sameRates(rates, user.Rates) {
		if err := e.users.UpdateRates(ctx, userID, rates); err != nil {
			return err
		}
	}

	efficiency, quality := ComputeQuality(rates, user.TotalTasksCompleted, user.TotalTasksAssigned)
	if !nearlyEqual(efficiency, user.Efficiency) || !nearlyEqual(quality, user.QualityMark) {
		if err := e.users.UpdateQuality(ctx, userID, efficiency, quality); err != nil {
			return err
		}
		e.logger.Debugw("quality updated", "userID", userID, "efficiency", efficiency, "qualityMark", quality)
	}
	return nil
}

// RecomputeUsers refreshes each user, continuing past failures. The first failure is
// returned.
func (e *Engine) RecomputeUsers(ctx context.Context, userIDs []string) error {
	var first error
	for _, id := range userIDs {
		if err := e.RecomputeUser(ctx, id); err != nil {
			e.logger.Warnw("quality recompute failed", "userID", id, "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (e *Engine) checkMembers(ctx context.Context, taskListID string, userIDs ...string) error {
	list, err := e.teams.GetTaskList(ctx, taskListID)
	if err != nil {
		return err
	}
	for _, id := range userIDs {
		if _, err := e.teams.GetMember(ctx, list.TeamID, id); err != nil {
			return err
		}
	}
	return nil
}

func sameRates(a, b model.UserRates) bool {
	return nearlyEqual(a.WorkRate, b.WorkRate) &&
		nearlyEqual(a.CommunicationRate, b.CommunicationRate) &&
		nearlyEqual(a.AttitudeRate, b.AttitudeRate) &&
		nearlyEqual(a.OverallRate, b.OverallRate)
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}
