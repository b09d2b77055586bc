package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	jujuerrors "github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/domain/mail"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers a batch over a single SMTP session.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *logrus.Entry
}

func NewSMTPSender(cfg SMTPConfig, logger *logrus.Entry) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger}
}

func (s *SMTPSender) Ready() error {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return jujuerrors.NotValidf("SMTP settings (host %q, from %q)", s.cfg.Host, s.cfg.From)
	}
	return nil
}

// ErrSessionBroken is returned when the SMTP session fails mid-batch. The
// batch counts as not sent, so the caller writes no log and retries it later.
const ErrSessionBroken = jujuerrors.ConstError("SMTP session broke mid-batch")

// SendBatch opens one session and sends every message through it. A refusal
// of one message is recorded in its Result and the session moves on to the
// next. Any other failure fails the whole batch with an error.
func (s *SMTPSender) SendBatch(ctx context.Context, msgs []mail.Message) (mail.BatchResult, error) {
	res := mail.BatchResult{Results: make([]mail.Result, 0, len(msgs))}
	if len(msgs) == 0 {
		return res, nil
	}

	c, err := s.dial(ctx)
	if err != nil {
		return res, err
	}
	defer c.Close()

	for i, m := range msgs {
		err := s.sendOne(c, m)
		if err == nil {
			res.Results = append(res.Results, mail.Result{To: m.To, Accepted: true})
			continue
		}

		var reply *textproto.Error
		if !errors.As(err, &reply) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"sent":      i,
				"remaining": len(msgs) - i,
			}).Warn("SMTP session broke mid-batch")
			return res, fmt.Errorf("%w after %d of %d messages: %w", ErrSessionBroken, i, len(msgs), err)
		}
		s.logger.WithError(err).WithField("to", m.To).Warn("SMTP server refused message")
		res.Results = append(res.Results, mail.Result{To: m.To, Err: err})
		if rerr := c.Reset(); rerr != nil {
			return res, fmt.Errorf("%w: RSET after refusal: %w", ErrSessionBroken, rerr)
		}
	}
	if err := c.Quit(); err != nil {
		s.logger.WithError(err).Debug("SMTP QUIT failed after batch")
	}
	return res, nil
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SMTP dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SMTP handshake with %s: %w", addr, err)
	}
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			c.Close()
			return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := c.Auth(auth); err != nil {
			c.Close()
			return nil, fmt.Errorf("SMTP auth: %w", err)
		}
	}
	return c, nil
}

func (s *SMTPSender) sendOne(c *smtp.Client, m mail.Message) error {
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(m.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(composeMessage(s.cfg.From, m, time.Now())); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// stripHeaderBreaks removes CR and LF so values cannot inject headers.
func stripHeaderBreaks(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

func composeMessage(from string, m mail.Message, now time.Time) []byte {
	var buf bytes.Buffer
	header := func(k, v string) {
		buf.WriteString(k + ": " + v + "\r\n")
	}
	header("From", stripHeaderBreaks(from))
	header("To", stripHeaderBreaks(m.To))
	header("Subject", mime.QEncoding.Encode("utf-8", stripHeaderBreaks(m.Subject)))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	buf.WriteString("\r\n")
	buf.WriteString(m.HTMLBody)
	return buf.Bytes()
}
