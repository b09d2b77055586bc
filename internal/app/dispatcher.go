package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/domain/mail"
	"docbox_notifier/internal/domain/reminder"
)

// recordTimeout bounds the log write that follows a successful send. It runs
// detached from the delivery timeout so an accepted batch is still logged.
const recordTimeout = 10 * time.Second

// DeliveryKind tells reminder sends from owner notifications.
type DeliveryKind string

const (
	KindReminder DeliveryKind = "reminder"
	KindDeadline DeliveryKind = "deadline"
)

// OutcomeStatus is the result of dispatching one Delivery.
type OutcomeStatus string

const (
	OutcomeSent      OutcomeStatus = "sent"
	OutcomePartial   OutcomeStatus = "partial"   // some recipients refused by the provider
	OutcomeFailed    OutcomeStatus = "failed"    // nothing logged, eligible for retry
	OutcomeDeferred  OutcomeStatus = "deferred"  // tick deadline reached before sending
	OutcomeDuplicate OutcomeStatus = "duplicate" // sent, but another run logged first
)

// Recipient is one addressee of a delivery.
type Recipient struct {
	SubmitterID int64 // zero for box owners
	Name        string
	Email       string
}

// Recorder writes the idempotency log for a delivery. It returns false when
// an equivalent log already exists.
type Recorder interface {
	Record(ctx context.Context, sentAt time.Time, accepted []Recipient) (bool, error)
}

// Delivery is one resolved (box, recipients, channel, template) tuple.
type Delivery struct {
	BoxID      int64
	Kind       DeliveryKind
	Channel    reminder.Channel
	ScheduleID int64
	Legacy     bool
	TriggerKey string
	Category   string
	FireAt     time.Time
	Template   string
	Data       TemplateData
	Recipients []Recipient
	Recorder   Recorder
}

func (d *Delivery) detail() Detail {
	det := Detail{
		BoxID:      d.BoxID,
		ScheduleID: d.ScheduleID,
		Legacy:     d.Legacy,
		Category:   d.Category,
		TriggerKey: d.TriggerKey,
	}
	if !d.FireAt.IsZero() {
		at := d.FireAt
		det.FireAt = &at
	}
	return det
}

// Outcome is what happened to a Delivery.
type Outcome struct {
	Delivery *Delivery
	Status   OutcomeStatus
	Accepted []Recipient
	Rejected []mail.Result
	Err      error
}

// Dispatcher renders, sends and logs deliveries, one provider call per delivery.
type Dispatcher struct {
	sender   mail.Sender
	renderer *Renderer
	clock    clock.Clock
	timeout  time.Duration
	logger   *logrus.Entry
	metrics  Metrics
}

func NewDispatcher(sender mail.Sender, renderer *Renderer, clk clock.Clock, timeout time.Duration, logger *logrus.Entry, metrics Metrics) *Dispatcher {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Dispatcher{
		sender:   sender,
		renderer: renderer,
		clock:    clk,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch sends every delivery independently. It only returns an error for
// a configuration problem, in which case nothing was sent.
func (d *Dispatcher) Dispatch(ctx context.Context, deliveries []Delivery) ([]Outcome, error) {
	if len(deliveries) == 0 {
		return nil, nil
	}
	if err := d.sender.Ready(); err != nil {
		d.logger.WithError(err).Error("Mail sender not ready, aborting dispatch step")
		return nil, fmt.Errorf("%w: %v", ErrMailerNotConfigured, err)
	}

	outcomes := make([]Outcome, 0, len(deliveries))
	for i := range deliveries {
		del := &deliveries[i]
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{Delivery: del, Status: OutcomeDeferred, Err: err})
			d.metrics.Dispatched(del.Kind, OutcomeDeferred)
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, d.timeout)
		out := d.deliver(dctx, del)
		cancel()
		outcomes = append(outcomes, out)
		d.metrics.Dispatched(del.Kind, out.Status)
	}
	return outcomes, nil
}

func (d *Dispatcher) deliver(ctx context.Context, del *Delivery) Outcome {
	logCtx := d.logger.WithFields(logrus.Fields{
		"box_id":     del.BoxID,
		"kind":       del.Kind,
		"trigger":    del.TriggerKey,
		"category":   del.Category,
		"recipients": len(del.Recipients),
	})

	byEmail := make(map[string]Recipient, len(del.Recipients))
	msgs := make([]mail.Message, 0, len(del.Recipients))
	for _, r := range del.Recipients {
		data := del.Data
		data.RecipientName = r.Name
		if data.RecipientName == "" {
			data.RecipientName = r.Email
		}
		subject, body, err := d.renderer.Render(del.Template, data)
		if err != nil {
			logCtx.WithError(err).Error("Failed to compose email")
			return Outcome{Delivery: del, Status: OutcomeFailed, Err: err}
		}
		key := strings.ToLower(strings.TrimSpace(r.Email))
		if _, dup := byEmail[key]; dup {
			continue
		}
		byEmail[key] = r
		msgs = append(msgs, mail.Message{To: r.Email, Subject: subject, HTMLBody: body})
	}

	res, err := d.sender.SendBatch(ctx, msgs)
	if err != nil {
		logCtx.WithError(err).Warn("Batch send failed, no log written")
		return Outcome{Delivery: del, Status: OutcomeFailed, Err: fmt.Errorf("%w: %v", ErrProviderUnavailable, err)}
	}

	accepted := make([]Recipient, 0, len(msgs))
	for _, to := range res.Accepted() {
		if r, ok := byEmail[strings.ToLower(strings.TrimSpace(to))]; ok {
			accepted = append(accepted, r)
		}
	}
	rejected := res.Rejected()
	if len(accepted) == 0 {
		logCtx.WithField("rejected", len(rejected)).Warn("Provider refused every message, no log written")
		return Outcome{Delivery: del, Status: OutcomeFailed, Rejected: rejected, Err: fmt.Errorf("all %d messages rejected", len(msgs))}
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	created, err := del.Recorder.Record(rctx, d.clock.Now(), accepted)
	if err != nil {
		// The mail went out but the guard row did not. The next tick may send again.
		logCtx.WithError(err).Error("Sent but failed to write log")
		return Outcome{Delivery: del, Status: OutcomeFailed, Accepted: accepted, Rejected: rejected, Err: err}
	}
	if !created {
		logCtx.Warn("Sent, but a log for this trigger was written concurrently")
		return Outcome{Delivery: del, Status: OutcomeDuplicate, Accepted: accepted, Rejected: rejected}
	}

	status := OutcomeSent
	if len(rejected) > 0 {
		status = OutcomePartial
		logCtx.WithField("rejected", len(rejected)).Warn("Some messages were refused by the provider")
	}
	logCtx.WithField("accepted", len(accepted)).Info("Delivery sent and logged")
	return Outcome{Delivery: del, Status: status, Accepted: accepted, Rejected: rejected}
}
