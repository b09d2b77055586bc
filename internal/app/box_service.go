package app

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/domain/box"
	"docbox_notifier/internal/domain/reminder"
)

// BoxService handles owner-initiated changes that the scheduler depends on:
// manual status changes and the reminder schedule set.
type BoxService struct {
	boxes     box.Repository
	reminders reminder.Repository
	clock     clock.Clock
	logger    *logrus.Entry
}

func NewBoxService(boxes box.Repository, reminders reminder.Repository, clk clock.Clock, logger *logrus.Entry) *BoxService {
	return &BoxService{boxes: boxes, reminders: reminders, clock: clk, logger: logger}
}

// ChangeStatus applies a manual status change after checking it is allowed.
func (s *BoxService) ChangeStatus(ctx context.Context, boxID int64, to box.Status) (*box.Box, error) {
	b, err := s.boxes.GetByID(ctx, boxID)
	if err != nil {
		return nil, err
	}
	if err := box.ValidateManualTransition(b.Status, to, b.Deadline, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.boxes.UpdateStatus(ctx, boxID, to); err != nil {
		return nil, fmt.Errorf("failed to update status of box %d: %w", boxID, err)
	}
	s.logger.WithFields(logrus.Fields{"box_id": boxID, "from": b.Status, "to": to}).Info("Box status changed manually")
	b.Status = to
	return b, nil
}

// ReplaceSchedules validates and stores the full reminder schedule set of a box.
func (s *BoxService) ReplaceSchedules(ctx context.Context, boxID int64, schedules []*reminder.Schedule) ([]*reminder.Schedule, error) {
	if err := reminder.ValidateSet(schedules); err != nil {
		return nil, err
	}
	if _, err := s.boxes.GetByID(ctx, boxID); err != nil {
		return nil, err
	}
	for _, sc := range schedules {
		sc.BoxID = boxID
	}
	if err := s.reminders.ReplaceSchedules(ctx, boxID, schedules); err != nil {
		return nil, fmt.Errorf("failed to replace schedules of box %d: %w", boxID, err)
	}
	s.logger.WithFields(logrus.Fields{"box_id": boxID, "count": len(schedules)}).Info("Reminder schedules replaced")
	return s.reminders.ListSchedules(ctx, boxID)
}

// ReminderLogs returns the reminder send history of a box.
func (s *BoxService) ReminderLogs(ctx context.Context, boxID int64) ([]*reminder.Log, error) {
	if _, err := s.boxes.GetByID(ctx, boxID); err != nil {
		return nil, err
	}
	return s.reminders.ListLogs(ctx, boxID)
}
