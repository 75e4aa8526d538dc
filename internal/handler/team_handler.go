package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

type TeamStore interface {
	Create(ctx context.Context, team *model.Team, creator *model.User) error
	GetByID(ctx context.Context, id string) (*model.Team, error)
	ListForUser(ctx context.Context, userID string) ([]model.Team, error)
	GetMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error)
	Update(ctx context.Context, teamID, actorID, name string, allowNewMembers bool) (*model.Team, error)
	RegenerateInvitationCode(ctx context.Context, teamID, actorID string) (string, error)
	JoinByInvitationCode(ctx context.Context, code string, user *model.User) (*model.Team, error)
	RemoveMember(ctx context.Context, teamID, actorID, userID string) error
	SetRole(ctx context.Context, teamID, actorID, userID string, role model.Role) error

	CreateTaskList(ctx context.Context, actorID string, list *model.TaskList) error
	GetTaskList(ctx context.Context, id string) (*model.TaskList, error)
	ListTaskLists(ctx context.Context, teamID string) ([]model.TaskList, error)
	UpdateTaskList(ctx context.Context, actorID, id, name string, distType model.DistributionType) (*model.TaskList, error)
	DeleteTaskList(ctx context.Context, actorID, id string) error
}

// CacheInvalidator drops memoized task queries of a list.
type CacheInvalidator interface {
	Invalidate(taskListID string)
}

type TeamHandler struct {
	logger *zap.SugaredLogger
	teams  TeamStore
	users  UserStore
	tasks  CacheInvalidator
}

func NewTeamHandler(logger *zap.SugaredLogger, teams TeamStore, users UserStore, tasks CacheInvalidator) *TeamHandler {
	return &TeamHandler{logger: logger, teams: teams, users: users, tasks: tasks}
}

type teamRequest struct {
	Name            string `json:"name" binding:"required"`
	AllowNewMembers *bool  `json:"allowNewMembers"`
}

type joinRequest struct {
	InvitationCode string `json:"invitationCode" binding:"required"`
}

type roleRequest struct {
	Role model.Role `json:"role" binding:"required"`
}

type taskListRequest struct {
	Name             string                 `json:"name" binding:"required"`
	DistributionType model.DistributionType `json:"distributionType" binding:"required"`
}

func (h *TeamHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	creator, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "CreateTeam", err)
		return
	}

	team := &model.Team{Name: strings.TrimSpace(req.Name), AllowNewMembers: true}
	if req.AllowNewMembers != nil {
		team.AllowNewMembers = *req.AllowNewMembers
	}
	if err := h.teams.Create(c.Request.Context(), team, creator); err != nil {
		respondError(c, h.logger, "CreateTeam", err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (h *TeamHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	teams, err := h.teams.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, "ListTeams", err)
		return
	}
	c.JSON(http.StatusOK, teams)
}

func (h *TeamHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	team, err := h.teams.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetTeam", err)
		return
	}
	if !team.HasMember(userID) {
		respondError(c, h.logger, "GetTeam", apperr.ErrUserDoesNotBelongToTeam)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	allow := true
	if req.AllowNewMembers != nil {
		allow = *req.AllowNewMembers
	} else if current, err := h.teams.GetByID(ctx, c.Param("id")); err == nil {
		allow = current.AllowNewMembers
	}

	team, err := h.teams.Update(ctx, c.Param("id"), userID, strings.TrimSpace(req.Name), allow)
	if err != nil {
		respondError(c, h.logger, "UpdateTeam", err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) Join(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		respondError(c, h.logger, "JoinTeam", err)
		return
	}

	team, err := h.teams.JoinByInvitationCode(ctx, strings.TrimSpace(req.InvitationCode), user)
	if err != nil {
		respondError(c, h.logger, "JoinTeam", err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) RegenerateInvitationCode(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	code, err := h.teams.RegenerateInvitationCode(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "RegenerateInvitationCode", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitationCode": code})
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.teams.RemoveMember(c.Request.Context(), c.Param("id"), userID, c.Param("user_id")); err != nil {
		respondError(c, h.logger, "RemoveMember", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TeamHandler) SetRole(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	if err := h.teams.SetRole(c.Request.Context(), c.Param("id"), userID, c.Param("user_id"), req.Role); err != nil {
		respondError(c, h.logger, "SetRole", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TeamHandler) CreateTaskList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req taskListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if !req.DistributionType.Valid() {
		respondError(c, h.logger, "CreateTaskList", apperr.ErrInvalidDistribution)
		return
	}

	list := &model.TaskList{
		TeamID:           c.Param("id"),
		Name:             strings.TrimSpace(req.Name),
		DistributionType: req.DistributionType,
	}
	if err := h.teams.CreateTaskList(c.Request.Context(), userID, list); err != nil {
		respondError(c, h.logger, "CreateTaskList", err)
		return
	}
	c.JSON(http.StatusCreated, list)
}

func (h *TeamHandler) ListTaskLists(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.teams.GetMember(ctx, c.Param("id"), userID); err != nil {
		respondError(c, h.logger, "ListTaskLists", err)
		return
	}

	lists, err := h.teams.ListTaskLists(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "ListTaskLists", err)
		return
	}
	c.JSON(http.StatusOK, lists)
}

func (h *TeamHandler) GetTaskList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	list, err := h.teams.GetTaskList(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetTaskList", err)
		return
	}
	if _, err := h.teams.GetMember(ctx, list.TeamID, userID); err != nil {
		respondError(c, h.logger, "GetTaskList", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *TeamHandler) UpdateTaskList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req taskListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	list, err := h.teams.UpdateTaskList(c.Request.Context(), userID, c.Param("id"), strings.TrimSpace(req.Name), req.DistributionType)
	if err != nil {
		respondError(c, h.logger, "UpdateTaskList", err)
		return
	}
	h.tasks.Invalidate(list.ID)
	c.JSON(http.StatusOK, list)
}

func (h *TeamHandler) DeleteTaskList(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.teams.DeleteTaskList(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, h.logger, "DeleteTaskList", err)
		return
	}
	h.tasks.Invalidate(c.Param("id"))
	c.Status(http.StatusNoContent)
}
