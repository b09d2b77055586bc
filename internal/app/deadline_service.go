package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/domain/box"
	"docbox_notifier/internal/domain/notification"
	"docbox_notifier/internal/domain/reminder"
)

// DeadlineConfig holds the timing parameters of the daily owner notification run.
type DeadlineConfig struct {
	Location   *time.Location
	RunTime    reminder.TimeOfDay
	BoxTimeout time.Duration
}

// DeadlineService sends D-3 and D-Day notifications to box owners.
type DeadlineService struct {
	// mu serializes passes, so a manual trigger and a tick never check
	// the same log row concurrently.
	mu sync.Mutex

	boxes      box.Repository
	notifs     notification.Repository
	dispatcher *Dispatcher
	clock      clock.Clock
	cfg        DeadlineConfig
	logger     *logrus.Entry
}

func NewDeadlineService(
	boxes box.Repository,
	notifs notification.Repository,
	dispatcher *Dispatcher,
	clk clock.Clock,
	cfg DeadlineConfig,
	logger *logrus.Entry,
) *DeadlineService {
	return &DeadlineService{
		boxes:      boxes,
		notifs:     notifs,
		dispatcher: dispatcher,
		clock:      clk,
		cfg:        cfg,
		logger:     logger,
	}
}

var categoryTemplates = map[notification.Category]string{
	notification.CategoryD3:         TemplateDeadlineD3,
	notification.CategoryDDayOpen:   TemplateDeadlineDDayOpen,
	notification.CategoryDDayClosed: TemplateDeadlineDDayClosed,
}

// Evaluate runs the daily deadline notification pass. At most one
// notification per box, category and day is ever sent.
func (s *DeadlineService) Evaluate(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	loc := s.cfg.Location
	today := notification.StartOfDay(now, loc)
	hour, minute := s.cfg.RunTime.Clock()
	runAt := time.Date(today.Year(), today.Month(), today.Day(), hour, minute, 0, 0, loc)
	report := newReport(now)
	logCtx := s.logger.WithField("date", today.Format("2006-01-02"))
	logCtx.Info("Evaluating deadline notifications")

	boxes, err := s.boxes.ListForDeadlineNotification(ctx, today, today.AddDate(0, 0, notification.LookaheadDays+1))
	if err != nil {
		logCtx.WithError(err).Error("Failed to list deadline notification candidates")
		return report, fmt.Errorf("failed to list deadline notification candidates: %w", err)
	}

	var deliveries []Delivery
	for _, b := range boxes {
		if ctx.Err() != nil {
			logCtx.Warn("Tick deadline reached, remaining boxes not evaluated")
			break
		}
		report.Counts[countBoxes]++
		category, ok := notification.Classify(b, now, runAt, loc)
		if !ok {
			continue
		}
		d := Detail{BoxID: b.ID, Category: string(category)}
		if !b.OwnerNotifyDeadline {
			d.State, d.Reason = string(reminder.StateSkipped), "owner opted out"
			report.add(d, countSkipped)
			continue
		}
		if b.OwnerEmail == "" {
			logCtx.WithField("box_id", b.ID).Warn("Box owner has no email address")
			d.State, d.Reason = string(reminder.StateSkipped), "owner has no email"
			report.add(d, countSkipped)
			continue
		}

		bctx, cancel := context.WithTimeout(ctx, s.cfg.BoxTimeout)
		exists, err := s.notifs.LogExists(bctx, b.ID, category, today)
		cancel()
		if err != nil {
			logCtx.WithError(err).WithField("box_id", b.ID).Error("Failed to check notification log, continuing with others")
			d.State, d.Reason = "ERROR", err.Error()
			report.add(d, countErrors)
			continue
		}
		if exists {
			d.State, d.Reason = string(reminder.StateSent), "already logged"
			report.add(d, countAlreadySent)
			continue
		}

		deliveries = append(deliveries, Delivery{
			BoxID:    b.ID,
			Kind:     KindDeadline,
			Channel:  reminder.ChannelEmail,
			Category: string(category),
			Template: categoryTemplates[category],
			Data: TemplateData{
				BoxID:    b.ID,
				BoxTitle: b.Title,
				Deadline: b.Deadline.In(loc).Format("2006-01-02 15:04"),
			},
			Recipients: []Recipient{{Name: b.OwnerName, Email: b.OwnerEmail}},
			Recorder: &notificationRecorder{
				repo:       s.notifs,
				boxID:      b.ID,
				category:   category,
				notifyDate: today,
				email:      b.OwnerEmail,
			},
		})
	}
	report.Counts[countDue] = len(deliveries)

	outcomes, err := s.dispatcher.Dispatch(ctx, deliveries)
	if err != nil {
		for i := range deliveries {
			d := deliveries[i].detail()
			d.State, d.Outcome, d.Reason = string(reminder.StateDue), string(OutcomeFailed), err.Error()
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
		"sent":  report.Counts[countSent],
	}).Info("Deadline notification evaluation finished")
	return report, nil
}

type notificationRecorder struct {
	repo       notification.Repository
	boxID      int64
	category   notification.Category
	notifyDate time.Time
	email      string
}

func (r *notificationRecorder) Record(ctx context.Context, sentAt time.Time, _ []Recipient) (bool, error) {
	return r.repo.CreateLog(ctx, &notification.Log{
		BoxID:          r.boxID,
		Category:       r.category,
		NotifyDate:     r.notifyDate,
		RecipientEmail: r.email,
		SentAt:         sentAt,
	})
}
