package model

import (
	"time"
)

type DistributionType string

const (
	DistributionManual      DistributionType = "manual"
	DistributionPreferences DistributionType = "preferences"
)

func (d DistributionType) Valid() bool {
	return d == DistributionManual || d == DistributionPreferences
}

type TaskList struct {
	ID                    string           `gorm:"primaryKey" json:"id"`
	TeamID                string           `gorm:"not null;index" json:"idTeam"`
	Name                  string           `gorm:"not null" json:"name"`
	DistributionType      DistributionType `gorm:"not null" json:"distributionType"`
	DistributionCompleted bool             `gorm:"not null" json:"distributionCompleted"`
	// DistributionRound counts completed distributions; tasks resolved by the last
	// one carry the same round number.
	DistributionRound int       `gorm:"not null;default:0" json:"distributionRound"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Members []TaskListMember `gorm:"foreignKey:TaskListID" json:"members,omitempty"`
}

// TaskListMember is the per-user state of a task list: cumulative score and
// whether the user finished the current preference round.
type TaskListMember struct {
	TaskListID      string `gorm:"primaryKey" json:"-"`
	UserID          string `gorm:"primaryKey" json:"id"`
	Score           int    `gorm:"not null;default:0" json:"score"`
	PreferencesDone bool   `gorm:"not null;default:false" json:"preferencesDone"`
}

// TaskPreference is one preferred task of a user. ID grows with registration order.
type TaskPreference struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskListID string    `gorm:"not null;index" json:"idTaskList"`
	UserID     string    `gorm:"not null" json:"idUser"`
	TaskID     string    `gorm:"not null" json:"idTask"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// Assignment is a resolved task -> user pair of a distribution round.
type Assignment struct {
	TaskID string
	UserID string
	// ExpectedTemporal is the temporal assignee the task must still have at commit,
	// empty for preference-based assignments.
	ExpectedTemporal string
}
