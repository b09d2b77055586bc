package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"docbox_notifier/internal/app"
)

// cronResponse is the body of every manual trigger endpoint.
type cronResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Counts  map[string]int `json:"counts"`
	Details interface{}    `json:"details"`
}

func (h *handler) statusTransition(c *gin.Context) {
	result, err := h.deps.Status.ExpireOverdue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, cronResponse{
			Message: err.Error(),
			Counts:  map[string]int{},
			Details: []int64{},
		})
		return
	}
	c.JSON(http.StatusOK, cronResponse{
		Success: true,
		Message: "status transition completed",
		Counts:  map[string]int{"expired": result.Count},
		Details: result.BoxIDs,
	})
}

func (h *handler) reminders(c *gin.Context) {
	h.evaluate(c, h.deps.Reminders, "reminder evaluation completed")
}

func (h *handler) deadlineNotifications(c *gin.Context) {
	h.evaluate(c, h.deps.Deadlines, "deadline notification evaluation completed")
}

// evaluate runs ev as a manual trigger. It takes the scheduler lock when one
// is configured, so a manual run never overlaps a tick on another instance.
func (h *handler) evaluate(c *gin.Context, ev Evaluator, okMessage string) {
	ctx := app.ManualTrigger(c.Request.Context())

	var (
		report *app.Report
		err    error
	)
	run := func(ctx context.Context) { report, err = ev.Evaluate(ctx) }
	if h.deps.Locker == nil {
		run(ctx)
	} else {
		ran, lockErr := h.deps.Locker.TryRun(ctx, run)
		switch {
		case lockErr != nil:
			err = lockErr
		case !ran:
			c.JSON(http.StatusConflict, cronResponse{
				Message: "scheduled jobs are running on another instance, try again later",
				Counts:  map[string]int{},
				Details: []app.Detail{},
			})
			return
		}
	}

	resp := cronResponse{Success: err == nil, Message: okMessage, Counts: map[string]int{}, Details: []app.Detail{}}
	if report != nil {
		resp.Counts, resp.Details = report.Counts, report.Details
	}
	if err != nil {
		resp.Message = err.Error()
		code := http.StatusInternalServerError
		if app.IsConfigurationError(err) {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
