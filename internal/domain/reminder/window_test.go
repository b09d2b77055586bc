package reminder_test

import (
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"docbox_notifier/internal/domain/reminder"
)

var kst = time.FixedZone("KST", 9*60*60)

type windowSuite struct{}

var _ = gc.Suite(&windowSuite{})

func (s *windowSuite) TestWindowSnapsJitterToSlot(c *gc.C) {
	slot := time.Date(2026, 3, 10, 9, 0, 0, 0, kst)
	for _, jitter := range []time.Duration{0, 2 * time.Second, -2 * time.Second, 5 * time.Minute, -5 * time.Minute} {
		w := reminder.DueWindow(slot.Add(jitter), 30*time.Minute, 0)
		c.Check(w.End.Equal(slot), jc.IsTrue, gc.Commentf("jitter %s", jitter))
		c.Check(w.Start.Equal(slot.Add(-30*time.Minute)), jc.IsTrue, gc.Commentf("jitter %s", jitter))
	}
}

func (s *windowSuite) TestWindowIsHalfOpen(c *gc.C) {
	slot := time.Date(2026, 3, 10, 9, 0, 0, 0, kst)
	w := reminder.DueWindow(slot, 30*time.Minute, 0)
	c.Check(w.Contains(slot), jc.IsTrue)
	c.Check(w.Contains(slot.Add(-30*time.Minute)), jc.IsFalse)
	c.Check(w.Contains(slot.Add(-29*time.Minute)), jc.IsTrue)
	c.Check(w.Contains(slot.Add(time.Second)), jc.IsFalse)
}

func (s *windowSuite) TestCatchUpWidensBackwards(c *gc.C) {
	slot := time.Date(2026, 3, 10, 9, 0, 0, 0, kst)
	w := reminder.DueWindow(slot, 30*time.Minute, 2)
	c.Check(w.Start.Equal(slot.Add(-90*time.Minute)), jc.IsTrue)
	c.Check(w.End.Equal(slot), jc.IsTrue)

	neg := reminder.DueWindow(slot, 30*time.Minute, -1)
	c.Check(neg.Start.Equal(slot.Add(-30*time.Minute)), jc.IsTrue)
}

func (s *windowSuite) TestEveryAllowedTimeFallsInExactlyOneTick(c *gc.C) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, kst)
	sc := &reminder.Schedule{ID: 1, OffsetValue: 1, OffsetUnit: reminder.OffsetDay, IsEnabled: true}
	deadline := day.AddDate(0, 0, 1).Add(17 * time.Hour)

	for _, tod := range reminder.AllowedTimesOfDay() {
		sc.TimeOfDay = tod
		fire, err := sc.FireInstant(deadline, kst)
		c.Assert(err, jc.ErrorIsNil)

		hits := 0
		for i := -2; i < 50; i++ {
			tick := day.Add(time.Duration(i)*30*time.Minute + 45*time.Second)
			if reminder.DueWindow(tick, 30*time.Minute, 0).Contains(fire) {
				hits++
			}
		}
		c.Check(hits, gc.Equals, 1, gc.Commentf("time of day %s", tod))
	}
}
