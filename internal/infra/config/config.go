package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/errors"

	"docbox_notifier/internal/domain/reminder"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL    string
	DBMaxOpenConns int
	LogLevel       string
	Environment    string
	HTTPAddr       string
	CronSecret     string

	Timezone string
	Location *time.Location

	CronSpecReminderTick string // drives reminders then status expiry
	CronSpecDaily        string // drives deadline notifications
	DailyRunTime         reminder.TimeOfDay

	ReminderTickInterval   time.Duration // must match CronSpecReminderTick cadence
	ReminderCatchUpWindows int
	DispatchTimeout        time.Duration
	BoxTimeout             time.Duration
	TickSoftDeadline       time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	LeaderLock bool

	TelegramToken string
	AlertChatID   int64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg, err := fromEnv(os.Getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv(getenv func(string) string) (*AppConfig, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &AppConfig{
		DatabaseURL:          getenv("DATABASE_URL"),
		LogLevel:             strings.ToLower(get("LOG_LEVEL", "info")),
		Environment:          strings.ToLower(get("ENVIRONMENT", "development")),
		HTTPAddr:             get("HTTP_ADDR", ":8080"),
		CronSecret:           getenv("CRON_SECRET"),
		Timezone:             get("TIMEZONE", "Asia/Seoul"),
		CronSpecReminderTick: get("CRON_SPEC_REMINDER_TICK", "*/30 * * * *"),
		CronSpecDaily:        get("CRON_SPEC_DAILY", "0 9 * * *"),
		DailyRunTime:         reminder.TimeOfDay(get("DAILY_RUN_TIME", "09:00")),
		SMTPHost:             getenv("SMTP_HOST"),
		SMTPUsername:         getenv("SMTP_USERNAME"),
		SMTPPassword:         getenv("SMTP_PASSWORD"),
		MailFrom:             getenv("MAIL_FROM"),
		TelegramToken:        getenv("TELEGRAM_TOKEN"),
	}

	var err error
	if cfg.Location, err = time.LoadLocation(cfg.Timezone); err != nil {
		return nil, errors.NewNotValid(err, fmt.Sprintf("TIMEZONE %q", cfg.Timezone))
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"REMINDER_TICK_INTERVAL", "30m", &cfg.ReminderTickInterval},
		{"DISPATCH_TIMEOUT", "30s", &cfg.DispatchTimeout},
		{"BOX_EVAL_TIMEOUT", "30s", &cfg.BoxTimeout},
		{"TICK_SOFT_DEADLINE", "25m", &cfg.TickSoftDeadline},
	}
	for _, d := range durations {
		if *d.dst, err = time.ParseDuration(get(d.key, d.def)); err != nil {
			return nil, errors.NewNotValid(err, "invalid "+d.key)
		}
	}

	if cfg.ReminderCatchUpWindows, err = strconv.Atoi(get("REMINDER_CATCHUP_WINDOWS", "0")); err != nil {
		return nil, errors.NewNotValid(err, "invalid REMINDER_CATCHUP_WINDOWS")
	}
	if cfg.DBMaxOpenConns, err = strconv.Atoi(get("DB_MAX_OPEN_CONNS", "10")); err != nil {
		return nil, errors.NewNotValid(err, "invalid DB_MAX_OPEN_CONNS")
	}
	if cfg.SMTPPort, err = strconv.Atoi(get("SMTP_PORT", "587")); err != nil {
		return nil, errors.NewNotValid(err, "invalid SMTP_PORT")
	}
	if cfg.LeaderLock, err = strconv.ParseBool(get("SCHEDULER_LEADER_LOCK", "false")); err != nil {
		return nil, errors.NewNotValid(err, "invalid SCHEDULER_LEADER_LOCK")
	}
	if chatID := getenv("ALERT_TELEGRAM_CHAT_ID"); chatID != "" {
		if cfg.AlertChatID, err = strconv.ParseInt(chatID, 10, 64); err != nil {
			return nil, errors.NewNotValid(err, "invalid ALERT_TELEGRAM_CHAT_ID")
		}
	}
	return cfg, nil
}

// Validate checks values that parsed but cannot work together.
func (c *AppConfig) Validate() error {
	if c.DatabaseURL == "" {
		return errors.NotValidf("empty DATABASE_URL")
	}
	if c.DBMaxOpenConns < 2 {
		return errors.NotValidf("DB_MAX_OPEN_CONNS %d (need at least 2)", c.DBMaxOpenConns)
	}
	if c.ReminderTickInterval <= 0 || (24*time.Hour)%c.ReminderTickInterval != 0 {
		return errors.NotValidf("REMINDER_TICK_INTERVAL %s (must divide 24h)", c.ReminderTickInterval)
	}
	if c.ReminderTickInterval%time.Minute != 0 {
		return errors.NotValidf("REMINDER_TICK_INTERVAL %s (must be whole minutes)", c.ReminderTickInterval)
	}
	if c.ReminderCatchUpWindows < 0 {
		return errors.NotValidf("negative REMINDER_CATCHUP_WINDOWS")
	}
	if _, err := reminder.ParseTimeOfDay(string(c.DailyRunTime)); err != nil {
		return errors.NewNotValid(err, "DAILY_RUN_TIME")
	}
	for name, d := range map[string]time.Duration{
		"DISPATCH_TIMEOUT":   c.DispatchTimeout,
		"BOX_EVAL_TIMEOUT":   c.BoxTimeout,
		"TICK_SOFT_DEADLINE": c.TickSoftDeadline,
	} {
		if d <= 0 {
			return errors.NotValidf("%s %s", name, d)
		}
	}
	if c.TickSoftDeadline > c.ReminderTickInterval {
		return errors.NotValidf("TICK_SOFT_DEADLINE %s longer than REMINDER_TICK_INTERVAL %s", c.TickSoftDeadline, c.ReminderTickInterval)
	}
	if c.SMTPHost != "" && c.MailFrom == "" {
		return errors.NotValidf("SMTP_HOST set without MAIL_FROM")
	}
	if (c.TelegramToken == "") != (c.AlertChatID == 0) {
		return errors.NotValidf("TELEGRAM_TOKEN and ALERT_TELEGRAM_CHAT_ID must be set together")
	}
	return nil
}

// IsProduction reports whether the service runs in a production-like environment.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

// SMTPConfigured reports whether enough is set to talk to an SMTP server.
func (c *AppConfig) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.MailFrom != ""
}
