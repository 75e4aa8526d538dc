package model

import (
	"time"
)

const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// Rating is the evaluation one member gives another for a task list cycle.
type Rating struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	TaskListID     string    `gorm:"column:id_task_list;not null;uniqueIndex:idx_rating_key" json:"idTaskList"`
	UserSenderID   string    `gorm:"column:id_user_sender;not null;uniqueIndex:idx_rating_key" json:"idUserSender"`
	UserReceiverID string    `gorm:"column:id_user_receiver;not null;uniqueIndex:idx_rating_key;index" json:"idUserReceiver"`
	Work           int       `gorm:"not null" json:"work"`
	Communication  int       `gorm:"not null" json:"communication"`
	Attitude       int       `gorm:"not null" json:"attitude"`
	Overall        int       `gorm:"not null" json:"overall"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Valid reports whether every aspect lies in [MinRatingValue, MaxRatingValue].
func (r *Rating) Valid() bool {
	for _, v := range []int{r.Work, r.Communication, r.Attitude, r.Overall} {
		if v < MinRatingValue || v > MaxRatingValue {
			return false
		}
	}
	return true
}
