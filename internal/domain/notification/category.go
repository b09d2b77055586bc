// internal/domain/notification/category.go
package notification

import (
	"time"

	"docbox_notifier/internal/domain/box"
)

// Category identifies which deadline notification an owner receives.
type Category string

const (
	CategoryD3         Category = "D-3"
	CategoryDDayOpen   Category = "D-DAY-OPEN"   // still open, closes later today
	CategoryDDayClosed Category = "D-DAY-CLOSED" // expired earlier today
)

// LookaheadDays is how far ahead of today a deadline can be and still qualify.
const LookaheadDays = 3

// StartOfDay returns local midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// Classify decides the notification category of b at now. runAt is today's
// scheduled daily run instant; the D-Day categories only apply at or after it.
//
// The two D-Day categories split on the deadline, not on the status, so a box
// gets at most one of them per day: D-DAY-OPEN needs a deadline still ahead of
// now, D-DAY-CLOSED a deadline at or before runAt. A box closing between runAt
// and a later run gets neither on the second run. An OPEN box whose deadline
// passed but that the status engine has not reached yet counts as expired.
func Classify(b *box.Box, now, runAt time.Time, loc *time.Location) (Category, bool) {
	today := StartOfDay(now, loc)
	deadlineDay := StartOfDay(b.Deadline, loc)
	afterRun := !now.Before(runAt)

	switch b.Status {
	case box.StatusOpen, box.StatusClosedExpired:
	default:
		return "", false
	}

	if b.Status == box.StatusOpen && deadlineDay.Equal(today.AddDate(0, 0, LookaheadDays)) {
		return CategoryD3, true
	}
	if !deadlineDay.Equal(today) || !afterRun {
		return "", false
	}
	if b.Status == box.StatusOpen && b.Deadline.After(now) {
		return CategoryDDayOpen, true
	}
	if !b.Deadline.After(runAt) {
		return CategoryDDayClosed, true
	}
	return "", false
}
