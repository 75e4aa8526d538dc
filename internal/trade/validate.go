package trade

import (
	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
)

// Proposal is a trade request together with what it references. Nil references were
// not found.
type Proposal struct {
	Trade     *model.Trade
	Team      *model.Team
	TaskList  *model.TaskList
	Requested *model.Task
	Offered   *model.Task
}

// Validate checks a proposal in a fixed order and returns the first failure. It reads
// nothing and writes nothing.
func Validate(p Proposal) error {
	t := p.Trade

	if p.Team == nil {
		return apperr.ErrTeamNotFound
	}
	if p.TaskList == nil || p.TaskList.TeamID != p.Team.ID {
		return apperr.ErrTaskListNotFound
	}
	if !p.Team.HasMember(t.UserSenderID) || !p.Team.HasMember(t.UserReceiverID) {
		return apperr.ErrUserDoesNotBelongToTeam
	}
	if p.Requested == nil || p.Requested.TaskListID != p.TaskList.ID {
		return apperr.ErrTaskNotFound
	}
	if t.UserSenderID == t.UserReceiverID {
		return apperr.ErrSameUserTrade
	}

	switch {
	case p.Requested.UserAssignedID != t.UserReceiverID:
		return apperr.ErrTaskRequestedDoesNotBelongToReceiver
	case p.Requested.Completed:
		return apperr.ErrTaskRequestedIsAlreadyCompleted
	case p.Requested.IsInvolvedInTrade:
		return apperr.ErrTaskRequestedAlreadyInTrade
	}

	switch t.TradeType {
	case model.TradeTask:
		switch {
		case p.Offered == nil || p.Offered.TaskListID != p.TaskList.ID:
			return apperr.ErrTaskOfferedNotFound
		case p.Offered.UserAssignedID != t.UserSenderID:
			return apperr.ErrTaskOfferedAlreadyBelongsToAnotherUser
		case p.Offered.Completed:
			return apperr.ErrTaskOfferedIsAlreadyCompleted
		case p.Offered.IsInvolvedInTrade:
			return apperr.ErrTaskOfferedAlreadyInTrade
		}

	case model.TradeScore:
		if t.ScoreOffered <= 0 {
			return apperr.ErrInvalidScoreOffered
		}
		if senderScore(p.TaskList, t.UserSenderID) < t.ScoreOffered {
			return apperr.ErrSenderUserDoesNotHaveEnoughScore
		}

	default:
		return apperr.ErrInvalidTradeType
	}
	return nil
}

func senderScore(list *model.TaskList, userID string) int {
	for _, m := range list.Members {
		if m.UserID == userID {
			return m.Score
		}
	}
	return 0
}
