package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamtasks/internal/model"
	"teamtasks/internal/repository"
)

type Trader interface {
	Create(ctx context.Context, t *model.Trade) error
	Accept(ctx context.Context, tradeID, actorID string) (*model.Trade, error)
	Reject(ctx context.Context, tradeID, actorID string) (*model.Trade, error)
	Delete(ctx context.Context, tradeID, actorID string, confirmed bool) error
	Get(ctx context.Context, tradeID, actorID string) (*model.Trade, error)
	List(ctx context.Context, actorID string, f repository.TradeFilter) ([]model.Trade, error)
}

type TradeHandler struct {
	logger *zap.SugaredLogger
	engine Trader
}

func NewTradeHandler(logger *zap.SugaredLogger, engine Trader) *TradeHandler {
	return &TradeHandler{logger: logger, engine: engine}
}

type tradeRequest struct {
	TeamID          string          `json:"idTeam" binding:"required"`
	TaskListID      string          `json:"idTaskList" binding:"required"`
	TaskRequestedID string          `json:"idTaskRequested" binding:"required"`
	UserReceiverID  string          `json:"idUserReceiver" binding:"required"`
	TradeType       model.TradeType `json:"tradeType" binding:"required"`
	TaskOffered     string          `json:"taskOffered"`
	ScoreOffered    int             `json:"scoreOffered"`
}

func (h *TradeHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	trade := &model.Trade{
		TeamID:          req.TeamID,
		TaskListID:      req.TaskListID,
		TaskRequestedID: req.TaskRequestedID,
		UserSenderID:    userID,
		UserReceiverID:  req.UserReceiverID,
		TradeType:       req.TradeType,
		TaskOffered:     req.TaskOffered,
		ScoreOffered:    req.ScoreOffered,
	}
	if err := h.engine.Create(c.Request.Context(), trade); err != nil {
		respondError(c, h.logger, "CreateTrade", err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

// List returns the caller's trades. Query: role=sent|received, status, taskList.
func (h *TradeHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	f := repository.TradeFilter{
		Status:     model.TradeStatus(c.Query("status")),
		TaskListID: c.Query("taskList"),
	}
	switch c.Query("role") {
	case "sent":
		f.UserSenderID = userID
	case "received":
		f.UserReceiverID = userID
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			badRequest(c, h.logger, err)
			return
		}
		f.Limit = n
	}

	trades, err := h.engine.List(c.Request.Context(), userID, f)
	if err != nil {
		respondError(c, h.logger, "ListTrades", err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *TradeHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	trade, err := h.engine.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "GetTrade", err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (h *TradeHandler) Accept(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	trade, err := h.engine.Accept(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "AcceptTrade", err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (h *TradeHandler) Reject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	trade, err := h.engine.Reject(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "RejectTrade", err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

// Delete removes a trade. Pending trades need ?confirm=true.
func (h *TradeHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := h.engine.Delete(c.Request.Context(), c.Param("id"), userID, confirmed); err != nil {
		respondError(c, h.logger, "DeleteTrade", err)
		return
	}
	c.Status(http.StatusNoContent)
}
