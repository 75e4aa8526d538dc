package model

import (
	"time"
)

// UserRates holds the peer-rating aggregates of a user, each a weighted fraction.
type UserRates struct {
	WorkRate          float64 `gorm:"not null;default:0" json:"workRate"`
	CommunicationRate float64 `gorm:"not null;default:0" json:"communicationRate"`
	AttitudeRate      float64 `gorm:"not null;default:0" json:"attitudeRate"`
	OverallRate       float64 `gorm:"not null;default:0" json:"overallRate"`
}

type User struct {
	ID                  string    `gorm:"primaryKey" json:"id"`
	Email               string    `gorm:"uniqueIndex;not null" json:"email"`
	Name                string    `gorm:"not null" json:"name"`
	Rates               UserRates `gorm:"embedded" json:"rating"`
	QualityMark         float64   `gorm:"not null;default:0" json:"qualityMark"`
	Efficiency          float64   `gorm:"not null;default:0" json:"efficiency"`
	TotalTasksAssigned  int       `gorm:"not null;default:0" json:"totalTasksAssigned"`
	TotalTasksCompleted int       `gorm:"not null;default:0" json:"totalTasksCompleted"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
