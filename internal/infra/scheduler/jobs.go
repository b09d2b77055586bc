package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/app"
	"docbox_notifier/internal/domain/alert"
)

const alertTimeout = 10 * time.Second

// Job names, also used as metric labels.
const (
	JobReminderTick  = "reminder-tick"
	JobDeadlineDaily = "deadline-daily"
)

// Evaluator is a reminder or deadline notification pass.
type Evaluator interface {
	Evaluate(ctx context.Context) (*app.Report, error)
}

// Transitioner is the status transition engine.
type Transitioner interface {
	ExpireOverdue(ctx context.Context) (*app.TransitionResult, error)
}

// Locker runs fn only if this instance holds the scheduler lock.
type Locker interface {
	TryRun(ctx context.Context, fn func(ctx context.Context)) (bool, error)
}

// TickObserver receives per-run timings.
type TickObserver interface {
	TickFinished(job string, took time.Duration, err error)
	TickSkipped(job string)
}

// Runner turns the services into scheduled jobs.
type Runner struct {
	Reminders Evaluator
	Status    Transitioner
	Deadlines Evaluator
	Clock     clock.Clock
	Locker    Locker // nil runs every tick unconditionally
	Alerter   alert.Alerter
	Observer  TickObserver
	Logger    *logrus.Entry
}

// Jobs returns the two scheduled jobs: the half-hourly reminder tick and the
// daily deadline notification run.
func (r *Runner) Jobs(reminderSpec, dailySpec string) []JobSpec {
	return []JobSpec{
		{Name: JobReminderTick, Spec: reminderSpec, Job: r.ReminderTick},
		{Name: JobDeadlineDaily, Spec: dailySpec, Job: r.DeadlineDaily},
	}
}

// ReminderTick sends due reminders, then expires overdue boxes. Reminders go
// first so they still see the box as open. A reminder failure does not stop
// the status step.
func (r *Runner) ReminderTick(ctx context.Context) error {
	return r.run(ctx, JobReminderTick, func(ctx context.Context, logCtx *logrus.Entry) error {
		var errs []error
		report, err := r.Reminders.Evaluate(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("reminders: %w", err))
		}
		if report != nil {
			logCtx.WithField("counts", report.Counts).Info("Reminder step done")
		}
		result, err := r.Status.ExpireOverdue(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("status transition: %w", err))
		} else {
			logCtx.WithField("expired", result.Count).Info("Status step done")
		}
		return errors.Join(errs...)
	})
}

// DeadlineDaily sends D-3 and D-Day owner notifications.
func (r *Runner) DeadlineDaily(ctx context.Context) error {
	return r.run(ctx, JobDeadlineDaily, func(ctx context.Context, logCtx *logrus.Entry) error {
		report, err := r.Deadlines.Evaluate(ctx)
		if report != nil {
			logCtx.WithField("counts", report.Counts).Info("Deadline notification step done")
		}
		return err
	})
}

func (r *Runner) run(ctx context.Context, job string, fn func(context.Context, *logrus.Entry) error) error {
	logCtx := r.Logger.WithFields(logrus.Fields{"job": job, "run_id": uuid.NewString()})
	started := r.Clock.Now()

	var err error
	body := func(ctx context.Context) { err = fn(ctx, logCtx) }
	if r.Locker == nil {
		body(ctx)
	} else {
		ran, lockErr := r.Locker.TryRun(ctx, body)
		switch {
		case lockErr != nil:
			err = lockErr
		case !ran:
			logCtx.Info("Another instance holds the scheduler lock, skipping tick")
			if r.Observer != nil {
				r.Observer.TickSkipped(job)
			}
			return nil
		}
	}

	took := r.Clock.Now().Sub(started)
	if r.Observer != nil {
		r.Observer.TickFinished(job, took, err)
	}
	if err != nil {
		logCtx.WithError(err).WithField("took", took.String()).Error("Scheduled job failed")
		r.alert(ctx, logCtx, fmt.Sprintf("docbox-notifier: %s failed (run %s): %v", job, logCtx.Data["run_id"], err))
		return err
	}
	logCtx.WithField("took", took.String()).Info("Scheduled job finished")
	return nil
}

func (r *Runner) alert(ctx context.Context, logCtx *logrus.Entry, text string) {
	if r.Alerter == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()
	if err := r.Alerter.Alert(actx, text); err != nil {
		logCtx.WithError(err).Warn("Failed to deliver failure alert")
	}
}
