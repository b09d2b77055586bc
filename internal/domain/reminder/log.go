// internal/domain/reminder/log.go
package reminder

import (
	"database/sql"
	"time"
)

// Log is the append-only record of one reminder send. Its existence for a
// (BoxID, TriggerKey) pair is what prevents a second send.
// Corresponds to the 'reminder_logs' table.
type Log struct {
	ID         int64
	BoxID      int64
	ScheduleID sql.NullInt64 // NULL for the legacy rule
	TriggerKey string
	Channel    Channel
	IsAuto     bool // true for scheduler sends
	SentAt     time.Time
	Recipients []Recipient
}

// Recipient is one submitter a reminder was delivered to.
type Recipient struct {
	SubmitterID int64
	Email       string
}
