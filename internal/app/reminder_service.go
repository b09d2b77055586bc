package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/domain/box"
	"docbox_notifier/internal/domain/reminder"
)

// ReminderConfig holds the timing parameters of the reminder evaluator.
// TickInterval must equal the cadence of the cron job driving Evaluate.
type ReminderConfig struct {
	Location       *time.Location
	TickInterval   time.Duration
	CatchUpWindows int
	BoxTimeout     time.Duration
}

// ReminderService evaluates reminder schedules at each tick and sends the due ones.
type ReminderService struct {
	// mu serializes passes, so a manual trigger and a tick never check
	// the same log row concurrently.
	mu sync.Mutex

	boxes      box.Repository
	reminders  reminder.Repository
	dispatcher *Dispatcher
	clock      clock.Clock
	cfg        ReminderConfig
	logger     *logrus.Entry
}

func NewReminderService(
	boxes box.Repository,
	reminders reminder.Repository,
	dispatcher *Dispatcher,
	clk clock.Clock,
	cfg ReminderConfig,
	logger *logrus.Entry,
) *ReminderService {
	return &ReminderService{
		boxes:      boxes,
		reminders:  reminders,
		dispatcher: dispatcher,
		clock:      clk,
		cfg:        cfg,
		logger:     logger,
	}
}

// Evaluate runs one reminder pass for the tick at the current clock time.
// Safe to call repeatedly and concurrently: passes run one at a time and
// sends already logged for a fire instant are skipped.
func (s *ReminderService) Evaluate(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	window := reminder.DueWindow(now, s.cfg.TickInterval, s.cfg.CatchUpWindows)
	report := newReport(now)
	logCtx := s.logger.WithFields(logrus.Fields{
		"window_start": window.Start.Format(time.RFC3339),
		"window_end":   window.End.Format(time.RFC3339),
	})
	logCtx.Info("Evaluating reminder schedules")

	boxes, err := s.boxes.ListOpenWithDeadlineAfter(ctx, window.Start)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list reminder candidate boxes")
		return report, fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	var deliveries []Delivery
	for _, b := range boxes {
		if ctx.Err() != nil {
			logCtx.WithField("remaining", len(boxes)-report.Counts[countBoxes]).Warn("Tick deadline reached, leaving remaining boxes for the next tick")
			break
		}
		report.Counts[countBoxes]++
		bctx, cancel := context.WithTimeout(ctx, s.cfg.BoxTimeout)
		due, err := s.evaluateBox(bctx, b, window, report)
		cancel()
		if err != nil {
			logCtx.WithError(err).WithField("box_id", b.ID).Error("Failed to evaluate box, continuing with others")
			report.add(Detail{BoxID: b.ID, State: "ERROR", Reason: err.Error()}, countErrors)
			continue
		}
		deliveries = append(deliveries, due...)
	}
	report.Counts[countDue] = len(deliveries)

	outcomes, err := s.dispatcher.Dispatch(ctx, deliveries)
	if err != nil {
		for i := range deliveries {
			d := deliveries[i].detail()
			d.State = string(reminder.StateDue)
			d.Outcome = string(OutcomeFailed)
			d.Reason = err.Error()
			report.add(d, countFailed)
		}
		return report, err
	}
	for _, o := range outcomes {
		report.addOutcome(o, string(reminder.StateDue), string(reminder.StateSent))
	}
	logCtx.WithFields(logrus.Fields{
		"boxes": report.Counts[countBoxes],
		"due":   report.Counts[countDue],
		"sent":  report.Counts[countSent] + report.Counts[countPartial],
	}).Info("Reminder evaluation finished")
	return report, nil
}

// evaluateBox resolves every schedule of b to SCHEDULED, DUE, SENT or SKIPPED
// and returns one delivery per DUE schedule.
func (s *ReminderService) evaluateBox(ctx context.Context, b *box.Box, window reminder.Window, report *Report) ([]Delivery, error) {
	logCtx := s.logger.WithField("box_id", b.ID)

	if !b.Status.IsOpen() {
		report.add(Detail{BoxID: b.ID, State: string(reminder.StateSkipped), Reason: "box is closed"}, countSkipped)
		return nil, nil
	}
	if !b.HasSubmitter {
		// Open submission boxes have nobody identifiable to remind.
		return nil, nil
	}

	schedules, err := s.reminders.ListSchedules(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	if len(schedules) == 0 {
		if len(b.RemindTypes) == 0 {
			return nil, nil
		}
		for _, rt := range b.RemindTypes {
			if rt != box.RemindTypeEmail {
				logCtx.WithField("remind_type", rt).Warn("Legacy remind type has no transport, ignoring")
			}
		}
		if !b.HasRemindType(box.RemindTypeEmail) {
			report.add(Detail{BoxID: b.ID, Legacy: true, State: string(reminder.StateSkipped), Reason: "no supported legacy channel"}, countSkipped)
			return nil, nil
		}
		schedules = []*reminder.Schedule{reminder.LegacySchedule(b.ID)}
	} else if len(schedules) > reminder.MaxReminderCount {
		logCtx.WithField("count", len(schedules)).Warn("Box has more reminder schedules than allowed, evaluating the oldest ones")
		sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })
		schedules = schedules[:reminder.MaxReminderCount]
	}

	var (
		recipients []Recipient
		loaded     bool
		firing     = make(map[time.Time]bool)
		due        []Delivery
	)
	for _, sc := range schedules {
		d := Detail{BoxID: b.ID, ScheduleID: sc.ID, Legacy: sc.IsLegacy()}
		if !sc.IsEnabled {
			continue
		}
		fire, err := sc.FireInstant(b.Deadline, s.cfg.Location)
		if err != nil {
			logCtx.WithError(err).WithField("schedule_id", sc.ID).Warn("Skipping invalid reminder schedule")
			d.State, d.Reason = string(reminder.StateSkipped), err.Error()
			report.add(d, countSkipped)
			continue
		}
		at := fire
		d.FireAt = &at
		if !window.Contains(fire) {
			d.State = string(reminder.StateScheduled)
			report.add(d, countScheduled)
			continue
		}

		key := sc.TriggerKey(fire)
		d.TriggerKey = key
		exists, err := s.reminders.LogExists(ctx, b.ID, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check reminder log %s: %w", key, err)
		}
		if exists {
			d.State, d.Reason = string(reminder.StateSent), "already logged"
			report.add(d, countAlreadySent)
			continue
		}
		if firing[fire.UTC()] {
			d.State, d.Reason = string(reminder.StateSkipped), "another schedule fires at the same instant"
			report.add(d, countSkipped)
			continue
		}

		if !loaded {
			subs, err := s.boxes.ListSubmitters(ctx, b.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list submitters: %w", err)
			}
			for _, sub := range box.FilterRemindable(subs) {
				recipients = append(recipients, Recipient{SubmitterID: sub.ID, Name: sub.Name, Email: sub.Email})
			}
			loaded = true
		}
		if len(recipients) == 0 {
			d.State, d.Reason = string(reminder.StateSkipped), "no pending submitters"
			report.add(d, countSkipped)
			continue
		}

		firing[fire.UTC()] = true
		due = append(due, Delivery{
			BoxID:      b.ID,
			Kind:       KindReminder,
			Channel:    reminder.ChannelEmail,
			ScheduleID: sc.ID,
			Legacy:     sc.IsLegacy(),
			TriggerKey: key,
			FireAt:     fire,
			Template:   TemplateReminder,
			Data: TemplateData{
				BoxID:    b.ID,
				BoxTitle: b.Title,
				Deadline: b.Deadline.In(s.cfg.Location).Format("2006-01-02 15:04"),
			},
			Recipients: recipients,
			Recorder: &reminderRecorder{
				repo:       s.reminders,
				boxID:      b.ID,
				scheduleID: sc.ID,
				triggerKey: key,
				channel:    reminder.ChannelEmail,
				auto:       !IsManualTrigger(ctx),
			},
		})
	}
	return due, nil
}

type reminderRecorder struct {
	repo       reminder.Repository
	boxID      int64
	scheduleID int64
	triggerKey string
	channel    reminder.Channel
	auto       bool
}

func (r *reminderRecorder) Record(ctx context.Context, sentAt time.Time, accepted []Recipient) (bool, error) {
	l := &reminder.Log{
		BoxID:      r.boxID,
		ScheduleID: sql.NullInt64{Int64: r.scheduleID, Valid: r.scheduleID != 0},
		TriggerKey: r.triggerKey,
		Channel:    r.channel,
		IsAuto:     r.auto,
		SentAt:     sentAt,
	}
	for _, a := range accepted {
		l.Recipients = append(l.Recipients, reminder.Recipient{SubmitterID: a.SubmitterID, Email: a.Email})
	}
	return r.repo.CreateLog(ctx, l)
}
