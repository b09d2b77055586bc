package app_test

import (
	"context"
	"time"

	"github.com/juju/clock/testclock"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"docbox_notifier/internal/app"
	"docbox_notifier/internal/domain/box"
	"docbox_notifier/internal/domain/notification"
)

type deadlineSuite struct {
	boxes  *fakeBoxes
	notifs *fakeNotifications
	sender *recordingSender
}

var _ = gc.Suite(&deadlineSuite{})

func (s *deadlineSuite) SetUpTest(c *gc.C) {
	s.boxes = newFakeBoxes()
	s.notifs = &fakeNotifications{}
	s.sender = &recordingSender{reject: map[string]bool{}}
}

func (s *deadlineSuite) evaluateAt(c *gc.C, now time.Time) *app.Report {
	clk := testclock.NewClock(now)
	renderer, err := app.NewRenderer()
	c.Assert(err, jc.ErrorIsNil)
	dispatcher := app.NewDispatcher(s.sender, renderer, clk, 5*time.Second, quietLogger(), nil)
	svc := app.NewDeadlineService(s.boxes, s.notifs, dispatcher, clk, app.DeadlineConfig{
		Location:   kst,
		RunTime:    "09:00",
		BoxTimeout: 5 * time.Second,
	}, quietLogger())
	report, err := svc.Evaluate(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	return report
}

func (s *deadlineSuite) categories() map[int64]notification.Category {
	out := map[int64]notification.Category{}
	for _, l := range s.notifs.allLogs() {
		out[l.BoxID] = l.Category
	}
	return out
}

func (s *deadlineSuite) addFixtures() {
	s.boxes.add(openBox(1, at(time.March, 13, 12, 0))) // D-3
	s.boxes.add(openBox(2, at(time.March, 10, 18, 0))) // closes today
	expired := openBox(3, at(time.March, 10, 8, 0))
	expired.Status = box.StatusClosedExpired
	s.boxes.add(expired)
	s.boxes.add(openBox(4, at(time.March, 12, 12, 0))) // D-2, nothing
	someone := openBox(5, at(time.March, 10, 18, 0))
	someone.Status = box.StatusOpenSomeone
	s.boxes.add(someone)
}

func (s *deadlineSuite) TestCategoriesAtRunTime(c *gc.C) {
	s.addFixtures()

	report := s.evaluateAt(c, at(time.March, 10, 9, 0))
	c.Check(report.Counts["sent"], gc.Equals, 3)
	c.Check(s.categories(), jc.DeepEquals, map[int64]notification.Category{
		1: notification.CategoryD3,
		2: notification.CategoryDDayOpen,
		3: notification.CategoryDDayClosed,
	})
	for _, l := range s.notifs.allLogs() {
		c.Check(l.NotifyDate.Equal(at(time.March, 10, 0, 0)), jc.IsTrue)
	}
}

func (s *deadlineSuite) TestOwnerIsTheRecipient(c *gc.C) {
	s.boxes.add(openBox(1, at(time.March, 13, 12, 0)))

	s.evaluateAt(c, at(time.March, 10, 9, 0))
	batch := s.sender.lastBatch()
	c.Assert(batch, gc.HasLen, 1)
	c.Check(batch[0].To, gc.Equals, "owner1@example.com")
	c.Check(batch[0].Subject, gc.Equals, `"Box 1" closes in 3 days`)
	logs := s.notifs.allLogs()
	c.Assert(logs, gc.HasLen, 1)
	c.Check(logs[0].RecipientEmail, gc.Equals, "owner1@example.com")
}

func (s *deadlineSuite) TestAtMostOneNotificationPerBoxCategoryAndDay(c *gc.C) {
	s.addFixtures()

	s.evaluateAt(c, at(time.March, 10, 9, 0))
	report := s.evaluateAt(c, at(time.March, 10, 15, 0))
	c.Check(report.Counts["sent"], gc.Equals, 0)
	c.Check(report.Counts["alreadySent"], gc.Equals, 3)
	c.Check(s.sender.batchCount(), gc.Equals, 3)
	c.Check(s.notifs.allLogs(), gc.HasLen, 3)
}

func (s *deadlineSuite) TestDDayWaitsForRunTime(c *gc.C) {
	s.addFixtures()

	s.evaluateAt(c, at(time.March, 10, 7, 0))
	c.Check(s.categories(), jc.DeepEquals, map[int64]notification.Category{
		1: notification.CategoryD3,
	})
}

func (s *deadlineSuite) TestOptedOutOwnerGetsNothing(c *gc.C) {
	b := openBox(1, at(time.March, 13, 12, 0))
	b.OwnerNotifyDeadline = false
	s.boxes.add(b)

	s.evaluateAt(c, at(time.March, 10, 9, 0))
	c.Check(s.sender.batchCount(), gc.Equals, 0)
}

func (s *deadlineSuite) TestOwnerWithoutEmailIsSkipped(c *gc.C) {
	b := openBox(1, at(time.March, 13, 12, 0))
	b.OwnerEmail = ""
	s.boxes.add(b)

	report := s.evaluateAt(c, at(time.March, 10, 9, 0))
	c.Check(report.Counts["skipped"], gc.Equals, 1)
	c.Check(s.sender.batchCount(), gc.Equals, 0)
}

func (s *deadlineSuite) TestProviderRefusalIsRetriedNextRun(c *gc.C) {
	s.boxes.add(openBox(1, at(time.March, 13, 12, 0)))
	s.sender.reject["owner1@example.com"] = true

	report := s.evaluateAt(c, at(time.March, 10, 9, 0))
	c.Check(report.Counts["failed"], gc.Equals, 1)
	c.Check(s.notifs.allLogs(), gc.HasLen, 0)

	delete(s.sender.reject, "owner1@example.com")
	report = s.evaluateAt(c, at(time.March, 10, 9, 30))
	c.Check(report.Counts["sent"], gc.Equals, 1)
}

func (s *deadlineSuite) TestBoxExpiringAfterRunTimeGetsOnlyDDayOpen(c *gc.C) {
	s.boxes.add(openBox(7, at(time.March, 10, 12, 0)))

	s.evaluateAt(c, at(time.March, 10, 9, 0))
	_, err := s.boxes.ExpireOpenBefore(context.Background(), at(time.March, 10, 12, 30))
	c.Assert(err, jc.ErrorIsNil)
	report := s.evaluateAt(c, at(time.March, 10, 15, 0))

	c.Check(report.Counts["sent"], gc.Equals, 0)
	c.Check(s.sender.batchCount(), gc.Equals, 1)
	logs := s.notifs.allLogs()
	c.Assert(logs, gc.HasLen, 1)
	c.Check(logs[0].Category, gc.Equals, notification.CategoryDDayOpen)
}

func (s *deadlineSuite) TestDeadlinePassedBeforeStatusStepIsDDayClosed(c *gc.C) {
	// The daily run can beat the 09:00 reminder tick that expires the box.
	s.boxes.add(openBox(8, at(time.March, 10, 8, 45)))

	s.evaluateAt(c, at(time.March, 10, 9, 0))
	c.Check(s.categories(), jc.DeepEquals, map[int64]notification.Category{
		8: notification.CategoryDDayClosed,
	})

	_, err := s.boxes.ExpireOpenBefore(context.Background(), at(time.March, 10, 9, 0))
	c.Assert(err, jc.ErrorIsNil)
	report := s.evaluateAt(c, at(time.March, 10, 9, 30))
	c.Check(report.Counts["alreadySent"], gc.Equals, 1)
	c.Check(s.sender.batchCount(), gc.Equals, 1)
}
