package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	jujuerrors "github.com/juju/errors"

	"docbox_notifier/internal/domain/box"
	"docbox_notifier/internal/domain/reminder"
	idb "docbox_notifier/internal/infra/database"
)

type scheduleJSON struct {
	ID          int64  `json:"id,omitempty"`
	OffsetValue int    `json:"offsetValue"`
	OffsetUnit  string `json:"offsetUnit"`
	TimeOfDay   string `json:"timeOfDay"`
	IsEnabled   *bool  `json:"isEnabled,omitempty"`
}

type replaceSchedulesRequest struct {
	Schedules []scheduleJSON `json:"schedules"`
}

type changeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type recipientJSON struct {
	SubmitterID int64  `json:"submitterId"`
	Email       string `json:"email"`
}

type reminderLogJSON struct {
	ID         int64           `json:"id"`
	ScheduleID *int64          `json:"scheduleId"`
	TriggerKey string          `json:"triggerKey"`
	Channel    string          `json:"channel"`
	IsAuto     bool            `json:"isAuto"`
	SentAt     time.Time       `json:"sentAt"`
	Recipients []recipientJSON `json:"recipients"`
}

func boxID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid box id"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors to HTTP status codes.
func (h *handler) writeError(c *gin.Context, err error) {
	var transition *box.ErrInvalidTransition
	switch {
	case errors.Is(err, idb.ErrBoxNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, jujuerrors.NotValid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.deps.Logger.WithError(err).Error("Box request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *handler) reminderLogs(c *gin.Context) {
	id, ok := boxID(c)
	if !ok {
		return
	}
	logs, err := h.deps.Boxes.ReminderLogs(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]reminderLogJSON, 0, len(logs))
	for _, l := range logs {
		item := reminderLogJSON{
			ID:         l.ID,
			TriggerKey: l.TriggerKey,
			Channel:    string(l.Channel),
			IsAuto:     l.IsAuto,
			SentAt:     l.SentAt,
			Recipients: make([]recipientJSON, 0, len(l.Recipients)),
		}
		if l.ScheduleID.Valid {
			sid := l.ScheduleID.Int64
			item.ScheduleID = &sid
		}
		for _, r := range l.Recipients {
			item.Recipients = append(item.Recipients, recipientJSON{SubmitterID: r.SubmitterID, Email: r.Email})
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"logs": out})
}

func (h *handler) replaceSchedules(c *gin.Context) {
	id, ok := boxID(c)
	if !ok {
		return
	}
	var req replaceSchedulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	schedules := make([]*reminder.Schedule, 0, len(req.Schedules))
	for _, s := range req.Schedules {
		enabled := true
		if s.IsEnabled != nil {
			enabled = *s.IsEnabled
		}
		schedules = append(schedules, &reminder.Schedule{
			OffsetValue: s.OffsetValue,
			OffsetUnit:  reminder.OffsetUnit(s.OffsetUnit),
			TimeOfDay:   reminder.TimeOfDay(s.TimeOfDay),
			IsEnabled:   enabled,
		})
	}

	saved, err := h.deps.Boxes.ReplaceSchedules(c.Request.Context(), id, schedules)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]scheduleJSON, 0, len(saved))
	for _, s := range saved {
		enabled := s.IsEnabled
		out = append(out, scheduleJSON{
			ID:          s.ID,
			OffsetValue: s.OffsetValue,
			OffsetUnit:  string(s.OffsetUnit),
			TimeOfDay:   string(s.TimeOfDay),
			IsEnabled:   &enabled,
		})
	}
	c.JSON(http.StatusOK, gin.H{"schedules": out})
}

func (h *handler) changeStatus(c *gin.Context) {
	id, ok := boxID(c)
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	b, err := h.deps.Boxes.ChangeStatus(c.Request.Context(), id, box.Status(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": b.ID, "status": b.Status, "deadline": b.Deadline})
}
