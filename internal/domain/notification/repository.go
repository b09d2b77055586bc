// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository defines persistence for deadline notification logs.
type Repository interface {
	LogExists(ctx context.Context, boxID int64, category Category, notifyDate time.Time) (bool, error)
	// CreateLog returns false without error when the (box, category, date) log already exists.
	CreateLog(ctx context.Context, l *Log) (bool, error)
}
