package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamtasks/internal/model"
)

type Rater interface {
	Upsert(ctx context.Context, rating *model.Rating) error
	Delete(ctx context.Context, taskListID, senderID, receiverID string) error
	ListByTaskList(ctx context.Context, taskListID, userID string) ([]model.Rating, error)
}

type RatingHandler struct {
	logger *zap.SugaredLogger
	engine Rater
}

func NewRatingHandler(logger *zap.SugaredLogger, engine Rater) *RatingHandler {
	return &RatingHandler{logger: logger, engine: engine}
}

type ratingRequest struct {
	TaskListID     string `json:"idTaskList" binding:"required"`
	UserReceiverID string `json:"idUserReceiver" binding:"required"`
	Work           int    `json:"work"`
	Communication  int    `json:"communication"`
	Attitude       int    `json:"attitude"`
	Overall        int    `json:"overall"`
}

// Upsert creates the caller's rating of a member for a task list, or replaces it.
func (h *RatingHandler) Upsert(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	rating := &model.Rating{
		TaskListID:     req.TaskListID,
		UserSenderID:   userID,
		UserReceiverID: req.UserReceiverID,
		Work:           req.Work,
		Communication:  req.Communication,
		Attitude:       req.Attitude,
		Overall:        req.Overall,
	}
	if err := h.engine.Upsert(c.Request.Context(), rating); err != nil {
		respondError(c, h.logger, "UpsertRating", err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

func (h *RatingHandler) ListByTaskList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ratings, err := h.engine.ListByTaskList(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "ListRatings", err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}

func (h *RatingHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.engine.Delete(c.Request.Context(), c.Param("id"), userID, c.Param("user_id")); err != nil {
		respondError(c, h.logger, "DeleteRating", err)
		return
	}
	c.Status(http.StatusNoContent)
}
