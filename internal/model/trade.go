package model

import (
	"time"
)

type TradeType string

const (
	TradeScore TradeType = "score"
	TradeTask  TradeType = "task"
)

func (t TradeType) Valid() bool {
	return t == TradeScore || t == TradeTask
}

type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeAccepted TradeStatus = "accepted"
	TradeRejected TradeStatus = "rejected"
)

func (s TradeStatus) Terminal() bool {
	return s == TradeAccepted || s == TradeRejected
}

type Trade struct {
	ID              string      `gorm:"primaryKey" json:"id"`
	TeamID          string      `gorm:"column:id_team;not null" json:"idTeam"`
	TaskListID      string      `gorm:"column:id_task_list;not null;index" json:"idTaskList"`
	TaskRequestedID string      `gorm:"column:id_task_requested;not null" json:"idTaskRequested"`
	UserSenderID    string      `gorm:"column:id_user_sender;not null;index" json:"idUserSender"`
	UserReceiverID  string      `gorm:"column:id_user_receiver;not null;index" json:"idUserReceiver"`
	TradeType       TradeType   `gorm:"not null" json:"tradeType"`
	TaskOffered     string      `gorm:"not null;default:''" json:"taskOffered"`
	ScoreOffered    int         `gorm:"not null;default:0" json:"scoreOffered"`
	Status          TradeStatus `gorm:"not null;index" json:"status"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	ResolvedAt      *time.Time  `json:"resolvedAt,omitempty"`
}

// TaskIDs returns the ids of every task the trade engages.
func (t *Trade) TaskIDs() []string {
	if t.TradeType == TradeTask && t.TaskOffered != "" {
		return []string{t.TaskRequestedID, t.TaskOffered}
	}
	return []string{t.TaskRequestedID}
}
