package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekdays is a set of weekdays stored as a bitmask, bit n set for time.Weekday(n).
type Weekdays uint8

func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

func (w Weekdays) Empty() bool {
	return w&0x7f == 0
}

// Names returns the lowercase weekday names, Sunday first.
func (w Weekdays) Names() []string {
	names := make([]string, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			names = append(names, WeekdayName(d))
		}
	}
	return names
}

// WeekdayName is the canonical name of d used in the datePeriodic set.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func ParseWeekdays(names []string) (Weekdays, error) {
	var w Weekdays
	for _, name := range names {
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			if strings.EqualFold(strings.TrimSpace(name), d.String()) {
				w |= WeekdaysOf(d)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown weekday %q", name)
		}
	}
	return w, nil
}

func (w Weekdays) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Names())
}

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseWeekdays(names)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
