package scheduler

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronScheduler is the cron-backed Registrar. Every job runs wrapped in
// cron.Recover and cron.SkipIfStillRunning, so a tick never overlaps itself.
type CronScheduler struct {
	cronEngine   *cron.Cron
	softDeadline time.Duration
	logger       *logrus.Entry
}

func NewCronScheduler(loc *time.Location, softDeadline time.Duration, logger *logrus.Entry) *CronScheduler {
	cl := cronLogger{entry: logger}
	return &CronScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		softDeadline: softDeadline,
		logger:       logger,
	}
}

// Register adds job under a standard five-field cron spec.
func (s *CronScheduler) Register(name, spec string, job Job) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return errors.NewNotValid(err, "cron spec "+spec)
	}
	_, err := s.cronEngine.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.softDeadline)
		defer cancel()
		s.logger.WithField("job", name).Debug("Cron job triggered")
		// Job errors are logged and alerted by the job itself.
		_ = job(ctx)
	})
	if err != nil {
		return errors.Annotatef(err, "adding cron job %q", name)
	}
	s.logger.WithFields(logrus.Fields{"job": name, "spec": spec}).Info("Cron job registered")
	return nil
}

func (s *CronScheduler) Start() {
	s.logger.WithField("jobs", len(s.cronEngine.Entries())).Info("Starting scheduler")
	s.cronEngine.Start()
}

// Stop stops scheduling new runs and waits for running jobs, up to ctx.
func (s *CronScheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping scheduler...")
	select {
	case <-s.cronEngine.Stop().Done():
		s.logger.Info("Scheduler gracefully stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with jobs still running")
	}
}
