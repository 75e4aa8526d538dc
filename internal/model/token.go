package model

import (
	"time"
)

// FCMToken is the single push delivery token of a user.
type FCMToken struct {
	UserID    string    `gorm:"primaryKey" json:"idUser"`
	Token     string    `gorm:"not null" json:"token"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (FCMToken) TableName() string {
	return "fcm_tokens"
}
