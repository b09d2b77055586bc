package mailer

import (
	"context"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/domain/mail"
)

// LogSender writes messages to the log instead of sending them. It is only
// ready in development; elsewhere it reports the missing SMTP configuration.
type LogSender struct {
	logger      *logrus.Entry
	development bool
}

func NewLogSender(logger *logrus.Entry, development bool) *LogSender {
	return &LogSender{logger: logger, development: development}
}

func (s *LogSender) Ready() error {
	if !s.development {
		return errors.NotValidf("SMTP settings missing outside development")
	}
	return nil
}

func (s *LogSender) SendBatch(_ context.Context, msgs []mail.Message) (mail.BatchResult, error) {
	res := mail.BatchResult{Results: make([]mail.Result, 0, len(msgs))}
	for _, m := range msgs {
		s.logger.WithFields(logrus.Fields{
			"to":      m.To,
			"subject": m.Subject,
			"bytes":   len(m.HTMLBody),
		}).Info("Email (not sent, log sender)")
		res.Results = append(res.Results, mail.Result{To: m.To, Accepted: true})
	}
	return res, nil
}
