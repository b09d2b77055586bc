// internal/domain/reminder/schedule.go
package reminder

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

// Schedule is an owner-configured reminder: "OffsetValue OffsetUnit before the
// deadline, at TimeOfDay". Corresponds to the 'reminder_schedules' table.
type Schedule struct {
	ID          int64
	BoxID       int64
	OffsetValue int
	OffsetUnit  OffsetUnit
	TimeOfDay   TimeOfDay
	IsEnabled   bool
	CreatedAt   time.Time
}

// Legacy rule applied to boxes that only carry RemindType flags.
const (
	legacyOffsetDays = 3
	legacyTimeOfDay  = TimeOfDay("09:00")
)

// LegacySchedule returns the fixed rule used for boxes with remind types but
// no schedule rows: three days before the deadline at 09:00.
func LegacySchedule(boxID int64) *Schedule {
	return &Schedule{
		BoxID:       boxID,
		OffsetValue: legacyOffsetDays,
		OffsetUnit:  OffsetDay,
		TimeOfDay:   legacyTimeOfDay,
		IsEnabled:   true,
	}
}

// IsLegacy reports whether the schedule was synthesised by LegacySchedule.
func (s *Schedule) IsLegacy() bool {
	return s.ID == 0
}

// Validate checks the schedule fields.
func (s *Schedule) Validate() error {
	if s.OffsetValue < 1 || s.OffsetValue > MaxOffsetValue {
		return errors.NotValidf("offset value %d", s.OffsetValue)
	}
	if _, ok := s.OffsetUnit.Days(); !ok {
		return errors.NotValidf("offset unit %q", s.OffsetUnit)
	}
	if _, err := ParseTimeOfDay(string(s.TimeOfDay)); err != nil {
		return errors.NewNotValid(err, "time of day")
	}
	return nil
}

// FireInstant returns the single instant at which the schedule fires for the
// given deadline: the calendar date of deadline minus the offset, at
// TimeOfDay, both read in loc.
func (s *Schedule) FireInstant(deadline time.Time, loc *time.Location) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}
	unitDays, _ := s.OffsetUnit.Days()
	day := deadline.In(loc).AddDate(0, 0, -s.OffsetValue*unitDays)
	hour, minute := s.TimeOfDay.Clock()
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// TriggerKey identifies one firing of the schedule. A changed deadline gives a
// different fire instant and so a new key.
func (s *Schedule) TriggerKey(fire time.Time) string {
	stamp := fire.UTC().Format(time.RFC3339)
	if s.IsLegacy() {
		return "legacy:" + stamp
	}
	return fmt.Sprintf("schedule:%d:%s", s.ID, stamp)
}

// ValidateSet checks a full replacement set of schedules for one box.
func ValidateSet(schedules []*Schedule) error {
	if len(schedules) > MaxReminderCount {
		return errors.NotValidf("%d reminder schedules (max %d)", len(schedules), MaxReminderCount)
	}
	for i, s := range schedules {
		if err := s.Validate(); err != nil {
			return errors.Annotatef(err, "schedule %d", i)
		}
	}
	return nil
}
