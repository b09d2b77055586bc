// internal/domain/reminder/shared_types.go
package reminder

import (
	"fmt"
	"time"
)

const (
	// MaxReminderCount is the maximum number of reminder schedules a box may carry.
	MaxReminderCount = 3

	// MaxOffsetValue bounds OffsetValue for either unit.
	MaxOffsetValue = 30
)

// OffsetUnit is the unit of a schedule's offset before the deadline.
type OffsetUnit string

const (
	OffsetDay  OffsetUnit = "DAY"
	OffsetWeek OffsetUnit = "WEEK"
)

// Days returns how many calendar days one unit spans.
func (u OffsetUnit) Days() (int, bool) {
	switch u {
	case OffsetDay:
		return 1, true
	case OffsetWeek:
		return 7, true
	}
	return 0, false
}

// Channel is the transport a reminder is sent through.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
)

// ScheduleState is the evaluation state of a single schedule at one tick.
type ScheduleState string

const (
	StateScheduled ScheduleState = "SCHEDULED" // fire instant not in this tick's window
	StateDue       ScheduleState = "DUE"
	StateSent      ScheduleState = "SENT" // a log for this fire instant already exists
	StateSkipped   ScheduleState = "SKIPPED"
)

// TimeOfDay is a 30-minute aligned wall clock time, formatted "HH:MM".
type TimeOfDay string

// ParseTimeOfDay validates s against the fixed set of allowed times.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || t.Format("15:04") != s {
		return "", fmt.Errorf("invalid time of day %q", s)
	}
	if t.Minute() != 0 && t.Minute() != 30 {
		return "", fmt.Errorf("time of day %q is not on a 30 minute boundary", s)
	}
	return TimeOfDay(s), nil
}

// Clock returns the hour and minute of t. t must have been validated.
func (t TimeOfDay) Clock() (hour, minute int) {
	parsed, err := time.Parse("15:04", string(t))
	if err != nil {
		return 0, 0
	}
	return parsed.Hour(), parsed.Minute()
}

// AllowedTimesOfDay lists every valid TimeOfDay from "00:00" to "23:30".
func AllowedTimesOfDay() []TimeOfDay {
	out := make([]TimeOfDay, 0, 48)
	for h := 0; h < 24; h++ {
		out = append(out, TimeOfDay(fmt.Sprintf("%02d:00", h)), TimeOfDay(fmt.Sprintf("%02d:30", h)))
	}
	return out
}
