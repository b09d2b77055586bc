// internal/infra/telegram/alerter.go
package telegram

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// maxMessageLen is Telegram's limit for one text message.
const maxMessageLen = 4096

// Sender is the part of *telebot.Bot used for alerts.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// NewBot creates a send-only bot. Offline skips the getMe round trip and no
// poller is started, since the service never reads updates.
func NewBot(token string) (*telebot.Bot, error) {
	bot, err := telebot.NewBot(telebot.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}

// Alerter implements alert.Alerter by messaging an ops chat.
type Alerter struct {
	bot    Sender
	chat   telebot.ChatID
	logger *logrus.Entry
}

func NewAlerter(bot Sender, chatID int64, logger *logrus.Entry) *Alerter {
	return &Alerter{bot: bot, chat: telebot.ChatID(chatID), logger: logger}
}

func (a *Alerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text = truncate(text, maxMessageLen)
	if _, err := a.bot.Send(a.chat, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		a.logger.WithError(err).WithField("chat_id", int64(a.chat)).Error("Failed to send Telegram alert")
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
