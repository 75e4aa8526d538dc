package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

type UserStore interface {
	Ensure(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type TokenStore interface {
	Upsert(ctx context.Context, userID, token string) error
	Delete(ctx context.Context, userID string) error
}

type UserHandler struct {
	logger *zap.SugaredLogger
	users  UserStore
	tokens TokenStore
}

func NewUserHandler(logger *zap.SugaredLogger, users UserStore, tokens TokenStore) *UserHandler {
	return &UserHandler{logger: logger, users: users, tokens: tokens}
}

type profileRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,min=2"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "GetMe", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile registers the authenticated user on first use. Existing profiles are
// returned unchanged. An email already registered to someone else is refused.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	email := strings.ToLower(req.Email)
	owner, err := h.users.FindByEmail(ctx, email)
	switch {
	case err == nil && owner.ID != userID:
		respondError(c, h.logger, "EnsureUser", apperr.ErrEmailInUse)
		return
	case err != nil && !errors.Is(err, apperr.ErrUserNotFound):
		respondError(c, h.logger, "EnsureUser", err)
		return
	}

	user, err := h.users.Ensure(ctx, &model.User{
		ID:    userID,
		Email: email,
		Name:  strings.TrimSpace(req.Name),
	})
	if err != nil {
		respondError(c, h.logger, "EnsureUser", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) SetToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	if err := h.tokens.Upsert(c.Request.Context(), userID, req.Token); err != nil {
		respondError(c, h.logger, "SetToken", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) DeleteToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.tokens.Delete(c.Request.Context(), userID); err != nil {
		respondError(c, h.logger, "DeleteToken", err)
		return
	}
	c.Status(http.StatusNoContent)
}
