package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"docbox_notifier/internal/app"
	"docbox_notifier/internal/domain/alert"
	"docbox_notifier/internal/domain/mail"
	"docbox_notifier/internal/infra/config"
	idb "docbox_notifier/internal/infra/database"
	"docbox_notifier/internal/infra/httpapi"
	"docbox_notifier/internal/infra/logger"
	"docbox_notifier/internal/infra/mailer"
	"docbox_notifier/internal/infra/metrics"
	"docbox_notifier/internal/infra/scheduler"
	"docbox_notifier/internal/infra/telegram"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Component("main")

	pool := idb.DefaultPool
	pool.MaxOpen = cfg.DBMaxOpenConns
	pool.MaxIdle = cfg.DBMaxOpenConns / 2
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := idb.Open(connectCtx, cfg.DatabaseURL, pool)
	cancelConnect()
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	log.Info("Database connection established")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = idb.ApplyMigrations(migrateCtx, db, logger.Component("migrations"))
	cancelMigrate()
	if err != nil {
		log.WithError(err).Fatal("Could not apply database migrations")
	}

	boxRepo := idb.NewPostgresBoxRepository(db)
	reminderRepo := idb.NewPostgresReminderRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "docbox"),
	)

	var sender mail.Sender
	if cfg.SMTPConfigured() {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, logger.Component("smtp"))
	} else {
		sender = mailer.NewLogSender(logger.Component("mail"), !cfg.IsProduction())
		if cfg.IsProduction() {
			log.Error("SMTP is not configured; every dispatch step will fail until it is")
		}
	}

	renderer, err := app.NewRenderer()
	if err != nil {
		log.WithError(err).Fatal("Could not parse email templates")
	}

	clk := clock.WallClock
	dispatcher := app.NewDispatcher(sender, renderer, clk, cfg.DispatchTimeout, logger.Component("dispatcher"), collector)
	statusService := app.NewStatusService(boxRepo, clk, logger.Component("status"), collector)
	reminderService := app.NewReminderService(boxRepo, reminderRepo, dispatcher, clk, app.ReminderConfig{
		Location:       cfg.Location,
		TickInterval:   cfg.ReminderTickInterval,
		CatchUpWindows: cfg.ReminderCatchUpWindows,
		BoxTimeout:     cfg.BoxTimeout,
	}, logger.Component("reminders"))
	deadlineService := app.NewDeadlineService(boxRepo, notificationRepo, dispatcher, clk, app.DeadlineConfig{
		Location:   cfg.Location,
		RunTime:    cfg.DailyRunTime,
		BoxTimeout: cfg.BoxTimeout,
	}, logger.Component("deadlines"))
	boxService := app.NewBoxService(boxRepo, reminderRepo, clk, logger.Component("boxes"))

	var alerter alert.Alerter = alert.Nop{}
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken)
		if err != nil {
			log.WithError(err).Fatal("Could not create Telegram bot")
		}
		alerter = telegram.NewAlerter(bot, cfg.AlertChatID, logger.Component("telegram"))
		log.Info("Telegram failure alerts enabled")
	}

	runner := &scheduler.Runner{
		Reminders: reminderService,
		Status:    statusService,
		Deadlines: deadlineService,
		Clock:     clk,
		Alerter:   alerter,
		Observer:  collector,
		Logger:    logger.Component("scheduler"),
	}
	var leaderLock *idb.AdvisoryLock
	if cfg.LeaderLock {
		leaderLock = idb.NewAdvisoryLock(db, idb.SchedulerLockKey, logger.Component("leader-lock"))
		runner.Locker = leaderLock
		log.Info("Scheduler leader lock enabled")
	}

	cronScheduler := scheduler.NewCronScheduler(cfg.Location, cfg.TickSoftDeadline, logger.Component("cron"))
	if err := scheduler.Setup(cronScheduler, runner.Jobs(cfg.CronSpecReminderTick, cfg.CronSpecDaily)); err != nil {
		log.WithError(err).Fatal("Could not register scheduled jobs")
	}
	cronScheduler.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := httpapi.Deps{
		Status:     statusService,
		Reminders:  reminderService,
		Deadlines:  deadlineService,
		Boxes:      boxService,
		DB:         db,
		MailReady:  sender.Ready,
		Gatherer:   registry,
		CronSecret: cfg.CronSecret,
		Logger:     logger.Component("http"),
	}
	if leaderLock != nil {
		deps.Locker = leaderLock
	}
	router := httpapi.NewRouter(deps)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	cronScheduler.Stop(ctx)
	log.Info("Application shut down gracefully")
}
