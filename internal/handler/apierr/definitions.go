package apierr

var (
	BadRequest = APIError{
		Code:    "INVALID_REQUEST",
		Message: "The request is not valid.",
	}
	Unauthorized = APIError{
		Code:    "UNAUTHORIZED_REQUEST",
		Message: "You need to sign in again.",
	}
	InternalServerError = APIError{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "Something went wrong, please try again later.",
	}
)

// messages holds the user-facing text for every failure code.
var messages = map[string]string{
	"USER_NOT_FOUND":         "This user does not exist.",
	"TEAM_NOT_FOUND":         "This team does not exist.",
	"TASK_LIST_NOT_FOUND":    "This task list does not exist.",
	"TASK_NOT_FOUND":         "This task does not exist.",
	"TRADE_NOT_FOUND":        "This trade does not exist.",
	"RATING_NOT_FOUND":       "This rating does not exist.",
	"MEMBER_NOT_FOUND":       "This member is not part of the team.",
	"TOKEN_NOT_FOUND":        "No device is registered for notifications.",
	"TASK_OFFERED_NOT_FOUND": "The offered task does not exist.",

	"NOT_TEAM_ADMIN":               "Only team admins can do this.",
	"USER_DOES_NOT_BELONG_TO_TEAM": "The user does not belong to this team.",
	"NOT_TASK_ASSIGNEE":            "This task is not assigned to you.",
	"NOT_TRADE_RECEIVER":           "Only the receiver can answer this trade.",
	"NOT_TRADE_PARTICIPANT":        "You are not part of this trade.",
	"TEAM_CLOSED":                  "This team is not accepting new members.",
	"LAST_ADMIN":                   "The team needs at least one admin.",

	"MEMBER_LIMIT":     "This team is full.",
	"TASK_LIST_LIMIT":  "This team cannot have more task lists.",
	"PREFERENCE_LIMIT": "You cannot select more preferred tasks.",

	"ALREADY_MEMBER":          "You already belong to this team.",
	"EMAIL_IN_USE":            "This email is already used by another account.",
	"EMPTY_DISTRIBUTION":      "There are no tasks to distribute.",
	"DISTRIBUTION_CONFLICT":   "The task list changed while distributing, please try again.",
	"PREFERENCES_PENDING":     "Some members have not finished choosing their tasks.",
	"WRONG_DISTRIBUTION_TYPE": "This is not allowed for the distribution type of the list.",
	"TASK_NOT_AVAILABLE":      "This task is no longer available.",
	"TASK_ALREADY_COMPLETED":  "This task is already completed.",
	"TASK_INVOLVED_IN_TRADE":  "This task is part of a pending trade.",

	"TASK_REQUESTED_IS_ALREADY_COMPLETED":          "The requested task is already completed.",
	"TASK_REQUESTED_ALREADY_IN_TRADE":              "The requested task is already part of another trade.",
	"TASK_REQUESTED_DOES_NOT_BELONG_TO_RECEIVER":   "The requested task does not belong to the receiver.",
	"TASK_OFFERED_ALREADY_BELONGS_TO_ANOTHER_USER": "The offered task is not yours.",
	"TASK_OFFERED_IS_ALREADY_COMPLETED":            "The offered task is already completed.",
	"TASK_OFFERED_ALREADY_IN_TRADE":                "The offered task is already part of another trade.",
	"TRADE_ALREADY_RESOLVED":                       "This trade was already answered.",
	"CONFIRMATION_REQUIRED":                        "Please confirm to delete a pending trade.",
	"OPEN_TRADES_EXIST":                            "This task list still has pending trades.",

	"SENDER_USER_DOES_NOT_HAVE_ENOUGH_SCORE": "You do not have enough score for this trade.",

	"INVALID_SCORE":             "The score must be a positive number.",
	"INVALID_SCORE_OFFERED":     "The offered score must be a positive number.",
	"INVALID_DATE":              "The dates do not match the selected date type.",
	"INVALID_RATING":            "Every rating must be between 1 and 5.",
	"SELF_RATING":               "You cannot rate yourself.",
	"SAME_USER_TRADE":           "You cannot trade with yourself.",
	"INVALID_TRADE_TYPE":        "Unknown trade type.",
	"INVALID_TRADE_STATUS":      "Unknown trade status.",
	"INVALID_DISTRIBUTION_TYPE": "Unknown distribution type.",
	"INVALID_ROLE":              "Unknown member role.",
	"EMPTY_NAME":                "The name cannot be empty.",
	"EMPTY_TOKEN":               "The device token cannot be empty.",
}
