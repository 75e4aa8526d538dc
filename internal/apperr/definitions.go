package apperr

// Not found
var (
	ErrUserNotFound        = New(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrTeamNotFound        = New(KindNotFound, "TEAM_NOT_FOUND", "team not found")
	ErrTaskListNotFound    = New(KindNotFound, "TASK_LIST_NOT_FOUND", "task list not found")
	ErrTaskNotFound        = New(KindNotFound, "TASK_NOT_FOUND", "task not found")
	ErrTradeNotFound       = New(KindNotFound, "TRADE_NOT_FOUND", "trade not found")
	ErrRatingNotFound      = New(KindNotFound, "RATING_NOT_FOUND", "rating not found")
	ErrMemberNotFound      = New(KindNotFound, "MEMBER_NOT_FOUND", "member not found")
	ErrTokenNotFound       = New(KindNotFound, "TOKEN_NOT_FOUND", "delivery token not found")
	ErrTaskOfferedNotFound = New(KindNotFound, "TASK_OFFERED_NOT_FOUND", "offered task not found")
)

// Permission
var (
	ErrNotTeamAdmin            = New(KindPermissionDenied, "NOT_TEAM_ADMIN", "only team admins can do this")
	ErrUserDoesNotBelongToTeam = New(KindPermissionDenied, "USER_DOES_NOT_BELONG_TO_TEAM", "user does not belong to the team")
	ErrNotTaskAssignee         = New(KindPermissionDenied, "NOT_TASK_ASSIGNEE", "task is not assigned to this user")
	ErrNotTradeReceiver        = New(KindPermissionDenied, "NOT_TRADE_RECEIVER", "only the receiver can resolve this trade")
	ErrNotTradeParticipant     = New(KindPermissionDenied, "NOT_TRADE_PARTICIPANT", "user is not part of this trade")
	ErrTeamClosed              = New(KindPermissionDenied, "TEAM_CLOSED", "team does not accept new members")
	ErrLastAdmin               = New(KindPermissionDenied, "LAST_ADMIN", "the last admin cannot leave or be demoted")
)

// Capacity
var (
	ErrMemberLimit     = New(KindCapacityExceeded, "MEMBER_LIMIT", "team reached its member limit")
	ErrTaskListLimit   = New(KindCapacityExceeded, "TASK_LIST_LIMIT", "team reached its task list limit")
	ErrPreferenceLimit = New(KindCapacityExceeded, "PREFERENCE_LIMIT", "preference selection limit reached")
)

// State
var (
	ErrAlreadyMember                          = New(KindConflict, "ALREADY_MEMBER", "user already belongs to the team")
	ErrEmailInUse                             = New(KindConflict, "EMAIL_IN_USE", "email belongs to another user")
	ErrEmptyDistribution                      = New(KindInvalidStateTransition, "EMPTY_DISTRIBUTION", "there are no assignments to distribute")
	ErrDistributionConflict                   = New(KindConflict, "DISTRIBUTION_CONFLICT", "the task list changed while distributing, try again")
	ErrPreferencesPending                     = New(KindInvalidStateTransition, "PREFERENCES_PENDING", "not every member finished selecting preferences")
	ErrWrongDistributionType                  = New(KindInvalidStateTransition, "WRONG_DISTRIBUTION_TYPE", "operation not allowed for this distribution type")
	ErrTaskNotAvailable                       = New(KindInvalidStateTransition, "TASK_NOT_AVAILABLE", "task is not available to assign")
	ErrTaskAlreadyCompleted                   = New(KindInvalidStateTransition, "TASK_ALREADY_COMPLETED", "task is already completed")
	ErrTaskInvolvedInTrade                    = New(KindInvalidStateTransition, "TASK_INVOLVED_IN_TRADE", "task is involved in a trade")
	ErrTaskRequestedIsAlreadyCompleted        = New(KindInvalidStateTransition, "TASK_REQUESTED_IS_ALREADY_COMPLETED", "requested task is already completed")
	ErrTaskRequestedAlreadyInTrade            = New(KindInvalidStateTransition, "TASK_REQUESTED_ALREADY_IN_TRADE", "requested task is already part of another trade")
	ErrTaskRequestedDoesNotBelongToReceiver   = New(KindInvalidStateTransition, "TASK_REQUESTED_DOES_NOT_BELONG_TO_RECEIVER", "requested task does not belong to the receiver")
	ErrTaskOfferedAlreadyBelongsToAnotherUser = New(KindInvalidStateTransition, "TASK_OFFERED_ALREADY_BELONGS_TO_ANOTHER_USER", "offered task does not belong to the sender")
	ErrTaskOfferedIsAlreadyCompleted          = New(KindInvalidStateTransition, "TASK_OFFERED_IS_ALREADY_COMPLETED", "offered task is already completed")
	ErrTaskOfferedAlreadyInTrade              = New(KindInvalidStateTransition, "TASK_OFFERED_ALREADY_IN_TRADE", "offered task is already part of another trade")
	ErrTradeAlreadyResolved                   = New(KindInvalidStateTransition, "TRADE_ALREADY_RESOLVED", "trade was already resolved")
	ErrConfirmationRequired                   = New(KindInvalidStateTransition, "CONFIRMATION_REQUIRED", "deleting a pending trade needs confirmation")
	ErrOpenTradesExist                        = New(KindInvalidStateTransition, "OPEN_TRADES_EXIST", "task list has pending trades")
)

// Score
var (
	ErrSenderUserDoesNotHaveEnoughScore = New(KindInsufficientScore, "SENDER_USER_DOES_NOT_HAVE_ENOUGH_SCORE", "sender does not have enough score")
)

// Input
var (
	ErrInvalidScore        = New(KindInvalidInput, "INVALID_SCORE", "score must be a positive integer")
	ErrInvalidScoreOffered = New(KindInvalidInput, "INVALID_SCORE_OFFERED", "offered score must be positive")
	ErrInvalidDate         = New(KindInvalidInput, "INVALID_DATE", "date settings are not valid for the selected date kind")
	ErrInvalidRating       = New(KindInvalidInput, "INVALID_RATING", "every rating aspect must be between 1 and 5")
	ErrSelfRating          = New(KindInvalidInput, "SELF_RATING", "users cannot rate themselves")
	ErrSameUserTrade       = New(KindInvalidInput, "SAME_USER_TRADE", "sender and receiver must be different users")
	ErrInvalidTradeType    = New(KindInvalidInput, "INVALID_TRADE_TYPE", "unknown trade type")
	ErrInvalidDistribution = New(KindInvalidInput, "INVALID_DISTRIBUTION_TYPE", "unknown distribution type")
	ErrInvalidRole         = New(KindInvalidInput, "INVALID_ROLE", "unknown member role")
	ErrEmptyName           = New(KindInvalidInput, "EMPTY_NAME", "name must not be empty")
	ErrEmptyToken          = New(KindInvalidInput, "EMPTY_TOKEN", "token must not be empty")
	ErrInvalidTradeStatus  = New(KindInvalidInput, "INVALID_TRADE_STATUS", "unknown trade status")
)
