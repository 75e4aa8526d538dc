package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

const (
	invitationCodeLength   = 12
	invitationCodeAttempts = 3
)

type TeamRepository struct {
	logger *zap.SugaredLogger
	db     *gorm.DB
}

func NewTeamRepository(logger *zap.SugaredLogger, db *gorm.DB) *TeamRepository {
	return &TeamRepository{logger: logger, db: db}
}

// newInvitationCode returns 12 upper-case hex characters taken from the random
// part of a v4 UUID.
func newInvitationCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:invitationCodeLength]
}

// Create stores a new team with creator as its first admin. A colliding invitation
// code is replaced and the insert retried.
func (r *TeamRepository) Create(ctx context.Context, team *model.Team, creator *model.User) error {
	r.logger.Debugw("Create()", "teamName", team.Name, "creatorID", creator.ID)

	if strings.TrimSpace(team.Name) == "" {
		return apperr.ErrEmptyName
	}

	var err error
	for attempt := 0; attempt < invitationCodeAttempts; attempt++ {
		team.ID = uuid.NewString()
		team.InvitationCode = newInvitationCode()

		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("Members", "TaskLists").Create(team).Error; err != nil {
				return err
			}
			admin := model.TeamMember{
				TeamID: team.ID,
				UserID: creator.ID,
				Name:   creator.Name,
				Role:   model.RoleAdmin,
			}
			if err := tx.Create(&admin).Error; err != nil {
				return err
			}
			team.Members = []model.TeamMember{admin}
			return nil
		})
		if err == nil || !isUniqueViolation(err) {
			break
		}
		r.logger.Warnw("invitation code collision, retrying", "attempt", attempt+1)
	}
	if err != nil {
		r.logger.Errorw("failed to create team", "teamName", team.Name, "err", err)
		return fmt.Errorf("create team: %w", err)
	}

	r.logger.Debugw("team created", "teamID", team.ID)
	return nil
}

// GetByID loads a team with its members and task lists.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*model.Team, error) {
	var team model.Team
	err := r.db.WithContext(ctx).
		Preload("Members", func(tx *gorm.DB) *gorm.DB { return tx.Order("joined_at ASC") }).
		Preload("TaskLists", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC") }).
		First(&team, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &team, nil
}

// ListForUser returns the teams userID belongs to.
func (r *TeamRepository) ListForUser(ctx context.Context, userID string) ([]model.Team, error) {
	var teams []model.Team
	err := r.db.WithContext(ctx).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", userID).
		Order("teams.created_at ASC").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

// GetMember returns the membership entry of userID in teamID.
func (r *TeamRepository) GetMember(ctx context.Context, teamID, userID string) (*model.TeamMember, error) {
	return getMember(r.db.WithContext(ctx), teamID, userID)
}

// Update changes the name and admission policy of a team. Admins only.
func (r *TeamRepository) Update(ctx context.Context, teamID, actorID, name string, allowNewMembers bool) (*model.Team, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.ErrEmptyName
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireAdmin(tx, teamID, actorID); err != nil {
			return err
		}
		return tx.Model(&model.Team{}).Where("id = ?", teamID).
			Updates(map[string]interface{}{"name": name, "allow_new_members": allowNewMembers}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, teamID)
}

// RegenerateInvitationCode issues a fresh invitation code. Admins only.
func (r *TeamRepository) RegenerateInvitationCode(ctx context.Context, teamID, actorID string) (string, error) {
	if err := requireAdmin(r.db.WithContext(ctx), teamID, actorID); err != nil {
		return "", err
	}

	for attempt := 0; attempt < invitationCodeAttempts; attempt++ {
		code := newInvitationCode()
		err := r.db.WithContext(ctx).Model(&model.Team{}).Where("id = ?", teamID).
			Update("invitation_code", code).Error
		if err == nil {
			return code, nil
		}
		if !isUniqueViolation(err) {
			return "", fmt.Errorf("regenerate invitation code: %w", err)
		}
	}
	return "", fmt.Errorf("regenerate invitation code: too many collisions")
}

// JoinByInvitationCode adds user as a member of the team owning code.
func (r *TeamRepository) JoinByInvitationCode(ctx context.Context, code string, user *model.User) (*model.Team, error) {
	r.logger.Debugw("JoinByInvitationCode()", "userID", user.ID)

	var teamID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team model.Team
		if err := tx.Clauses(forUpdate).
			First(&team, "invitation_code = ?", strings.ToUpper(strings.TrimSpace(code))).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTeamNotFound
			}
			return err
		}
		teamID = team.ID

		if !team.AllowNewMembers {
			return apperr.ErrTeamClosed
		}

		var members []model.TeamMember
		if err := tx.Where("team_id = ?", team.ID).Find(&members).Error; err != nil {
			return err
		}
		for _, m := range members {
			if m.UserID == user.ID {
				return apperr.ErrAlreadyMember
			}
		}
		if len(members) >= model.MaxTeamMembers {
			return apperr.ErrMemberLimit
		}

		member := model.TeamMember{
			TeamID: team.ID,
			UserID: user.ID,
			Name:   user.Name,
			Role:   model.RoleMember,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		var listIDs []string
		if err := tx.Model(&model.TaskList{}).Where("team_id = ?", team.ID).Pluck("id", &listIDs).Error; err != nil {
			return err
		}
		return addTaskListMembers(tx, listIDs, []string{user.ID})
	})
	if err != nil {
		r.logger.Warnw("join rejected", "userID", user.ID, "err", err)
		return nil, err
	}

	return r.GetByID(ctx, teamID)
}

// RemoveMember removes userID from the team. Members may leave on their own; removing
// somebody else needs an admin. The last admin cannot leave.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, actorID, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if actorID != userID {
			if err := requireAdmin(tx, teamID, actorID); err != nil {
				return err
			}
		}

		member, err := getMember(tx, teamID, userID)
		if err != nil {
			return err
		}
		if member.Role == model.RoleAdmin {
			if err := ensureAnotherAdmin(tx, teamID, userID); err != nil {
				return err
			}
		}

		listIDs := tx.Model(&model.TaskList{}).Select("id").Where("team_id = ?", teamID)
		if err := tx.Where("task_list_id IN (?) AND user_id = ?", listIDs, userID).
			Delete(&model.TaskPreference{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_list_id IN (?) AND user_id = ?", listIDs, userID).
			Delete(&model.TaskListMember{}).Error; err != nil {
			return err
		}
		return tx.Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&model.TeamMember{}).Error
	})
}

// SetRole changes the role of a member. Admins only.
func (r *TeamRepository) SetRole(ctx context.Context, teamID, actorID, userID string, role model.Role) error {
	if !role.Valid() {
		return apperr.ErrInvalidRole
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireAdmin(tx, teamID, actorID); err != nil {
			return err
		}
		member, err := getMember(tx, teamID, userID)
		if err != nil {
			return err
		}
		if member.Role == model.RoleAdmin && role != model.RoleAdmin {
			if err := ensureAnotherAdmin(tx, teamID, userID); err != nil {
				return err
			}
		}
		return tx.Model(&model.TeamMember{}).
			Where("team_id = ? AND user_id = ?", teamID, userID).
			Update("role", role).Error
	})
}

// CreateTaskList adds a task list to a team. Admins only, at most MaxTeamTaskLists.
func (r *TeamRepository) CreateTaskList(ctx context.Context, actorID string, list *model.TaskList) error {
	if strings.TrimSpace(list.Name) == "" {
		return apperr.ErrEmptyName
	}
	if list.DistributionType == "" {
		list.DistributionType = model.DistributionManual
	}
	if !list.DistributionType.Valid() {
		return apperr.ErrInvalidDistribution
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team model.Team
		if err := tx.Clauses(forUpdate).First(&team, "id = ?", list.TeamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTeamNotFound
			}
			return err
		}
		if err := requireAdmin(tx, list.TeamID, actorID); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.TaskList{}).Where("team_id = ?", list.TeamID).Count(&count).Error; err != nil {
			return err
		}
		if count >= model.MaxTeamTaskLists {
			return apperr.ErrTaskListLimit
		}

		list.ID = uuid.NewString()
		list.DistributionCompleted = false
		list.DistributionRound = 0
		if err := tx.Omit("Members").Create(list).Error; err != nil {
			return err
		}

		var userIDs []string
		if err := tx.Model(&model.TeamMember{}).Where("team_id = ?", list.TeamID).Pluck("user_id", &userIDs).Error; err != nil {
			return err
		}
		return addTaskListMembers(tx, []string{list.ID}, userIDs)
	})
}

// GetTaskList loads a task list with its per-user state.
func (r *TeamRepository) GetTaskList(ctx context.Context, id string) (*model.TaskList, error) {
	var list model.TaskList
	err := r.db.WithContext(ctx).Preload("Members").First(&list, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrTaskListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task list: %w", err)
	}
	return &list, nil
}

func (r *TeamRepository) ListTaskLists(ctx context.Context, teamID string) ([]model.TaskList, error) {
	var lists []model.TaskList
	err := r.db.WithContext(ctx).Where("team_id = ?", teamID).Order("created_at ASC").Find(&lists).Error
	if err != nil {
		return nil, fmt.Errorf("list task lists: %w", err)
	}
	return lists, nil
}

// UpdateTaskList renames a list or switches its distribution type. Switching type
// discards the pending selections and temporal assignments of the current round.
func (r *TeamRepository) UpdateTaskList(ctx context.Context, actorID, id, name string, distType model.DistributionType) (*model.TaskList, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.ErrEmptyName
	}
	if !distType.Valid() {
		return nil, apperr.ErrInvalidDistribution
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var list model.TaskList
		if err := tx.Clauses(forUpdate).First(&list, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTaskListNotFound
			}
			return err
		}
		if err := requireAdmin(tx, list.TeamID, actorID); err != nil {
			return err
		}

		if list.DistributionType != distType {
			if err := clearRoundState(tx, id); err != nil {
				return err
			}
			if err := tx.Model(&model.Task{}).Where("id_task_list = ?", id).
				Update("id_temporal_user_assigned", "").Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.TaskList{}).Where("id = ?", id).
			Updates(map[string]interface{}{"name": name, "distribution_type": distType}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetTaskList(ctx, id)
}

// DeleteTaskList removes a list with its tasks, selections, ratings and resolved trades.
func (r *TeamRepository) DeleteTaskList(ctx context.Context, actorID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var list model.TaskList
		if err := tx.Clauses(forUpdate).First(&list, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrTaskListNotFound
			}
			return err
		}
		if err := requireAdmin(tx, list.TeamID, actorID); err != nil {
			return err
		}

		var pending int64
		if err := tx.Model(&model.Trade{}).
			Where("id_task_list = ? AND status = ?", id, model.TradePending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return apperr.ErrOpenTradesExist
		}

		steps := []struct {
			query string
			value interface{}
		}{
			{"task_list_id = ?", &model.TaskPreference{}},
			{"id_task_list = ?", &model.Rating{}},
			{"id_task_list = ?", &model.Trade{}},
			{"id_task_list = ?", &model.Task{}},
			{"task_list_id = ?", &model.TaskListMember{}},
			{"id = ?", &model.TaskList{}},
		}
		for _, s := range steps {
			if err := tx.Where(s.query, id).Delete(s.value).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func getMember(tx *gorm.DB, teamID, userID string) (*model.TeamMember, error) {
	var member model.TeamMember
	err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserDoesNotBelongToTeam
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func requireAdmin(tx *gorm.DB, teamID, userID string) error {
	member, err := getMember(tx, teamID, userID)
	if err != nil {
		return err
	}
	if member.Role != model.RoleAdmin {
		return apperr.ErrNotTeamAdmin
	}
	return nil
}

func ensureAnotherAdmin(tx *gorm.DB, teamID, userID string) error {
	var admins int64
	if err := tx.Model(&model.TeamMember{}).
		Where("team_id = ? AND role = ? AND user_id <> ?", teamID, model.RoleAdmin, userID).
		Count(&admins).Error; err != nil {
		return err
	}
	if admins == 0 {
		return apperr.ErrLastAdmin
	}
	return nil
}

func addTaskListMembers(tx *gorm.DB, listIDs, userIDs []string) error {
	if len(listIDs) == 0 || len(userIDs) == 0 {
		return nil
	}
	rows := make([]model.TaskListMember, 0, len(listIDs)*len(userIDs))
	for _, listID := range listIDs {
		for _, userID := range userIDs {
			rows = append(rows, model.TaskListMember{TaskListID: listID, UserID: userID})
		}
	}
	return tx.Create(&rows).Error
}

// clearRoundState drops the preference selections and done flags of a list.
func clearRoundState(tx *gorm.DB, taskListID string) error {
	if err := tx.Where("task_list_id = ?", taskListID).Delete(&model.TaskPreference{}).Error; err != nil {
		return err
	}
	return tx.Model(&model.TaskListMember{}).
		Where("task_list_id = ?", taskListID).
		Update("preferences_done", false).Error
}
