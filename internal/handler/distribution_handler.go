package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamtasks/internal/distribution"
)

type Distributor interface {
	TemporarilyAssign(ctx context.Context, actorID, taskID, userID string) (bool, error)
	Unassign(ctx context.Context, actorID, taskID string) error
	CompleteDistribution(ctx context.Context, actorID, taskListID string, force bool) (*distribution.Result, error)
	MarkPreferred(ctx context.Context, taskListID, userID, taskID string, preferred bool) error
	SetPreferencesDone(ctx context.Context, taskListID, userID string, done bool) error
	StartNewRound(ctx context.Context, actorID, taskListID string) error
}

type DistributionHandler struct {
	logger *zap.SugaredLogger
	engine Distributor
}

func NewDistributionHandler(logger *zap.SugaredLogger, engine Distributor) *DistributionHandler {
	return &DistributionHandler{logger: logger, engine: engine}
}

type temporalAssignRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type preferenceRequest struct {
	TaskID    string `json:"taskId" binding:"required"`
	Preferred *bool  `json:"preferred" binding:"required"`
}

type preferencesDoneRequest struct {
	Done *bool `json:"done" binding:"required"`
}

type completeDistributionRequest struct {
	Force bool `json:"force"`
}

func (h *DistributionHandler) TemporarilyAssign(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req temporalAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	assigned, err := h.engine.TemporarilyAssign(c.Request.Context(), userID, c.Param("id"), req.UserID)
	if err != nil {
		respondError(c, h.logger, "TemporarilyAssign", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": assigned})
}

func (h *DistributionHandler) Unassign(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.engine.Unassign(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, "Unassign", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DistributionHandler) MarkPreferred(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	if err := h.engine.MarkPreferred(c.Request.Context(), c.Param("id"), userID, req.TaskID, *req.Preferred); err != nil {
		respondError(c, h.logger, "MarkPreferred", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DistributionHandler) SetPreferencesDone(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req preferencesDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	if err := h.engine.SetPreferencesDone(c.Request.Context(), c.Param("id"), userID, *req.Done); err != nil {
		respondError(c, h.logger, "SetPreferencesDone", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DistributionHandler) CompleteDistribution(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req completeDistributionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}

	result, err := h.engine.CompleteDistribution(c.Request.Context(), userID, c.Param("id"), req.Force)
	if err != nil {
		respondError(c, h.logger, "CompleteDistribution", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *DistributionHandler) StartNewRound(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.engine.StartNewRound(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, "StartNewRound", err)
		return
	}
	c.Status(http.StatusNoContent)
}
