package notification

import "time"

// Log records one deadline notification sent to a box owner.
// Corresponds to the 'deadline_notification_logs' table.
type Log struct {
	ID             int64
	BoxID          int64
	Category       Category
	NotifyDate     time.Time // local calendar date, midnight
	RecipientEmail string
	SentAt         time.Time
}
