package model

import (
	"time"
)

const (
	MaxTeamMembers   = 10
	MaxTeamTaskLists = 5
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

type Team struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	AllowNewMembers bool      `gorm:"not null" json:"allowNewMembers"`
	InvitationCode  string    `gorm:"uniqueIndex;not null" json:"invitationCode"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Members   []TeamMember `gorm:"foreignKey:TeamID" json:"userMembers,omitempty"`
	TaskLists []TaskList   `gorm:"foreignKey:TeamID" json:"taskLists,omitempty"`
}

// TeamMember is one entry of a team's member map.
type TeamMember struct {
	TeamID          string    `gorm:"primaryKey" json:"-"`
	UserID          string    `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	Role            Role      `gorm:"not null" json:"role"`
	CumulativeScore int       `gorm:"not null;default:0" json:"cumulativeScore"`
	JoinedAt        time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

// Member returns the member entry for userID, if present.
func (t *Team) Member(userID string) (TeamMember, bool) {
	for _, m := range t.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return TeamMember{}, false
}

func (t *Team) HasMember(userID string) bool {
	_, ok := t.Member(userID)
	return ok
}

func (t *Team) IsAdmin(userID string) bool {
	m, ok := t.Member(userID)
	return ok && m.Role == RoleAdmin
}

// MemberIDs returns the member ids in their stored order.
func (t *Team) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
