package app_test

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock/testclock"
	jujuerrors "github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"docbox_notifier/internal/app"
	"docbox_notifier/internal/domain/box"
	"docbox_notifier/internal/domain/reminder"
)

type boxServiceSuite struct {
	boxes     *fakeBoxes
	reminders *fakeReminders
	svc       *app.BoxService
}

var _ = gc.Suite(&boxServiceSuite{})

func (s *boxServiceSuite) SetUpTest(c *gc.C) {
	now := at(time.March, 10, 12, 0)
	past := openBox(2, now.Add(-time.Hour))
	past.Status = box.StatusClosedExpired
	s.boxes = newFakeBoxes(openBox(1, now.Add(72*time.Hour)), past)
	s.reminders = newFakeReminders()
	s.svc = app.NewBoxService(s.boxes, s.reminders, testclock.NewClock(now), quietLogger())
}

func (s *boxServiceSuite) TestChangeStatus(c *gc.C) {
	b, err := s.svc.ChangeStatus(context.Background(), 2, box.StatusOpenResume)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(b.Status, gc.Equals, box.StatusOpenResume)
	c.Check(s.boxes.get(2).Status, gc.Equals, box.StatusOpenResume)
}

func (s *boxServiceSuite) TestChangeStatusRejectsReopeningPastDeadline(c *gc.C) {
	_, err := s.svc.ChangeStatus(context.Background(), 2, box.StatusOpen)
	var invalid *box.ErrInvalidTransition
	c.Assert(errors.As(err, &invalid), jc.IsTrue)
	c.Check(invalid.Reason, gc.Equals, "deadline has already passed")
	c.Check(s.boxes.get(2).Status, gc.Equals, box.StatusClosedExpired)
}

func (s *boxServiceSuite) TestChangeStatusUnknownBox(c *gc.C) {
	_, err := s.svc.ChangeStatus(context.Background(), 99, box.StatusClosed)
	c.Check(errors.Is(err, errBoxNotFound), jc.IsTrue)
}

func (s *boxServiceSuite) TestReplaceSchedules(c *gc.C) {
	saved, err := s.svc.ReplaceSchedules(context.Background(), 1, []*reminder.Schedule{
		{OffsetValue: 1, OffsetUnit: reminder.OffsetWeek, TimeOfDay: "18:30", IsEnabled: true},
		{OffsetValue: 2, OffsetUnit: reminder.OffsetDay, TimeOfDay: "09:00", IsEnabled: true},
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(saved, gc.HasLen, 2)
	for _, sc := range saved {
		c.Check(sc.ID, gc.Not(gc.Equals), int64(0))
		c.Check(sc.BoxID, gc.Equals, int64(1))
	}
}

func (s *boxServiceSuite) TestReplaceSchedulesRejectsTooMany(c *gc.C) {
	set := make([]*reminder.Schedule, reminder.MaxReminderCount+1)
	for i := range set {
		set[i] = &reminder.Schedule{OffsetValue: i + 1, OffsetUnit: reminder.OffsetDay, TimeOfDay: "09:00", IsEnabled: true}
	}
	_, err := s.svc.ReplaceSchedules(context.Background(), 1, set)
	c.Check(errors.Is(err, jujuerrors.NotValid), jc.IsTrue)

	schedules, err := s.reminders.ListSchedules(context.Background(), 1)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(schedules, gc.HasLen, 0)
}

func (s *boxServiceSuite) TestReplaceSchedulesRejectsOffTheHalfHour(c *gc.C) {
	_, err := s.svc.ReplaceSchedules(context.Background(), 1, []*reminder.Schedule{
		{OffsetValue: 1, OffsetUnit: reminder.OffsetDay, TimeOfDay: "09:10", IsEnabled: true},
	})
	c.Check(errors.Is(err, jujuerrors.NotValid), jc.IsTrue)
}

func (s *boxServiceSuite) TestReminderLogs(c *gc.C) {
	_, err := s.reminders.CreateLog(context.Background(), &reminder.Log{BoxID: 1, TriggerKey: "legacy:2026-03-10T00:00:00Z"})
	c.Assert(err, jc.ErrorIsNil)

	logs, err := s.svc.ReminderLogs(context.Background(), 1)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(logs, gc.HasLen, 1)

	_, err = s.svc.ReminderLogs(context.Background(), 99)
	c.Check(errors.Is(err, errBoxNotFound), jc.IsTrue)
}
