package engine

import (
	"fmt"
	"time"
)

// Schedule is where a task goes after a successful completion.
type Schedule struct {
	NextDue    *time.Time
	NextStatus Status
}

// Reschedule computes the next due date and status for a task completed at
// the given instant. Recurring tasks reopen as pending one period later;
// one-off tasks stay completed with no due date.
func Reschedule(freq Frequency, at time.Time) (Schedule, error) {
	var next time.Time
	switch freq {
	case FrequencyDaily:
		next = at.AddDate(0, 0, 1)
	case FrequencyWeekly:
		next = at.AddDate(0, 0, 7)
	case FrequencyMonthly:
		next = addMonthsClamped(at, 1)
	case FrequencyOnce:
		return Schedule{NextStatus: StatusCompleted}, nil
	default:
		return Schedule{}, fmt.Errorf("cannot reschedule frequency %q", freq)
	}
	return Schedule{NextDue: &next, NextStatus: StatusPending}, nil
}

// addMonthsClamped adds n calendar months keeping the day of month, clamped to
// the length of the target month (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month(), t.Location())
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
