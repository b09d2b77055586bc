package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"docbox_notifier/internal/app"
	"docbox_notifier/internal/domain/box"
	"docbox_notifier/internal/domain/reminder"
)

const healthTimeout = 3 * time.Second

// Evaluator is a reminder or deadline notification pass.
type Evaluator interface {
	Evaluate(ctx context.Context) (*app.Report, error)
}

// Transitioner is the status transition engine.
type Transitioner interface {
	ExpireOverdue(ctx context.Context) (*app.TransitionResult, error)
}

// BoxManager handles owner-initiated box changes.
type BoxManager interface {
	ChangeStatus(ctx context.Context, boxID int64, to box.Status) (*box.Box, error)
	ReplaceSchedules(ctx context.Context, boxID int64, schedules []*reminder.Schedule) ([]*reminder.Schedule, error)
	ReminderLogs(ctx context.Context, boxID int64) ([]*reminder.Log, error)
}

// Locker is the scheduler lock shared with the cron jobs.
type Locker interface {
	TryRun(ctx context.Context, fn func(ctx context.Context)) (bool, error)
}

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps is everything the router serves.
type Deps struct {
	Status     Transitioner
	Reminders  Evaluator
	Deadlines  Evaluator
	Boxes      BoxManager
	Locker     Locker // nil when the leader lock is disabled
	DB         Pinger
	MailReady  func() error
	Gatherer   prometheus.Gatherer
	CronSecret string
	Logger     *logrus.Entry
}

type handler struct {
	deps Deps
}

// NewRouter builds the gin engine with the manual trigger, box and ops routes.
func NewRouter(deps Deps) *gin.Engine {
	h := &handler{deps: deps}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger))

	router.GET("/healthz", h.health)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api", bearerAuth(deps.CronSecret))
	{
		cron := api.Group("/cron")
		cron.GET("/status-transition", h.statusTransition)
		cron.GET("/reminders", h.reminders)
		cron.GET("/deadline-notifications", h.deadlineNotifications)

		boxes := api.Group("/boxes/:id")
		boxes.GET("/reminder-logs", h.reminderLogs)
		boxes.PUT("/reminder-schedules", h.replaceSchedules)
		boxes.POST("/status", h.changeStatus)
	}
	return router
}

// bearerAuth requires "Authorization: Bearer <secret>". An empty secret
// disables the check.
func bearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}
		c.Next()
	}
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
			"took":   time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
			return
		}
		entry.Debug("HTTP request")
	}
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	body := gin.H{"status": "ok", "database": "ok", "mailer": "ok"}
	code := http.StatusOK
	if h.deps.DB != nil {
		if err := h.deps.DB.PingContext(ctx); err != nil {
			body["status"], body["database"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if h.deps.MailReady != nil {
		if err := h.deps.MailReady(); err != nil {
			body["status"], body["mailer"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, body)
}
