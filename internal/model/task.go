package model

import (
	"time"
)

type SelectedDate string

const (
	WithoutDate  SelectedDate = "withoutDate"
	DateSingle   SelectedDate = "date"
	DateLimit    SelectedDate = "dateLimit"
	DatePeriodic SelectedDate = "datePeriodic"
)

func (s SelectedDate) Valid() bool {
	switch s {
	case WithoutDate, DateSingle, DateLimit, DatePeriodic:
		return true
	}
	return false
}

type Task struct {
	ID                     string       `gorm:"primaryKey" json:"id"`
	TeamID                 string       `gorm:"column:id_team;not null;index" json:"idTeam"`
	TaskListID             string       `gorm:"column:id_task_list;not null;index" json:"idTaskList"`
	UserAssignedID         string       `gorm:"column:id_user_assigned;not null;default:'';index" json:"idUserAssigned"`
	TemporalUserAssignedID string       `gorm:"column:id_temporal_user_assigned;not null;default:''" json:"idTemporalUserAssigned"`
	Title                  string       `gorm:"not null" json:"title"`
	Description            string       `json:"description"`
	Score                  int          `gorm:"not null" json:"score"`
	AvailableToAssign      bool         `gorm:"not null" json:"availableToAssign"`
	SelectedDate           SelectedDate `gorm:"not null" json:"selectedDate"`
	Date                   *time.Time   `json:"date,omitempty"`
	DateLimit              *time.Time   `json:"dateLimit,omitempty"`
	DatePeriodic           Weekdays     `gorm:"not null;default:0" json:"datePeriodic"`
	Completed              bool         `gorm:"not null;index" json:"completed"`
	IsInvolvedInTrade      bool         `gorm:"not null" json:"isInvolvedInTrade"`
	TradeID                string       `gorm:"column:id_trade;not null;default:''" json:"idTrade"`
	ImageURL               string       `gorm:"column:image_url" json:"imageURL"`
	CreatedBy              string       `gorm:"not null" json:"createdBy"`
	CreatedAt              time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	DistributionRound      int          `gorm:"not null;default:0" json:"distributionRound"`
}

// IsPeriodic reports whether the task recurs on weekdays.
func (t *Task) IsPeriodic() bool {
	return t.SelectedDate == DatePeriodic
}

// OccursOn is the date membership test behind the possible-dates index:
// undated tasks belong to every day, dated tasks to their day, deadline tasks to every
// day up to the deadline, periodic tasks to their weekdays. day must be a local midnight.
func (t *Task) OccursOn(day time.Time) bool {
	switch t.SelectedDate {
	case WithoutDate:
		return true
	case DateSingle:
		return t.Date != nil && SameDay(*t.Date, day)
	case DateLimit:
		return t.DateLimit != nil && !StartOfDay(*t.DateLimit, day.Location()).Before(day)
	case DatePeriodic:
		return t.DatePeriodic.Has(day.Weekday())
	}
	return false
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in b's location.
func SameDay(a, b time.Time) bool {
	la := a.In(b.Location())
	return la.Year() == b.Year() && la.YearDay() == b.YearDay()
}
