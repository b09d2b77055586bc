package reminder

import "context"

// Repository defines persistence for schedules and reminder logs.
type Repository interface {
	ListSchedules(ctx context.Context, boxID int64) ([]*Schedule, error)
	// ReplaceSchedules swaps the whole schedule set of a box in one transaction.
	ReplaceSchedules(ctx context.Context, boxID int64, schedules []*Schedule) error

	LogExists(ctx context.Context, boxID int64, triggerKey string) (bool, error)
	// CreateLog inserts the log and its recipients. It returns false without
	// error when a log for the same trigger already exists.
	CreateLog(ctx context.Context, l *Log) (bool, error)
	ListLogs(ctx context.Context, boxID int64) ([]*Log, error)
}
