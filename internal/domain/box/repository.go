package box

import (
	"context"
	"time"
)

// Repository defines the box and submitter queries used by the scheduler.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Box, error)

	// ExpireOpenBefore moves every OPEN box whose deadline is before cutoff to
	// CLOSED_EXPIRED in a single statement and returns the affected IDs.
	ExpireOpenBefore(ctx context.Context, cutoff time.Time) ([]int64, error)

	// ListOpenWithDeadlineAfter lists boxes in an open status whose deadline is after t.
	ListOpenWithDeadlineAfter(ctx context.Context, t time.Time) ([]*Box, error)

	// ListForDeadlineNotification lists OPEN and CLOSED_EXPIRED boxes whose owner
	// has not opted out and whose deadline is in [from, to).
	ListForDeadlineNotification(ctx context.Context, from, to time.Time) ([]*Box, error)

	UpdateStatus(ctx context.Context, id int64, status Status) error

	ListSubmitters(ctx context.Context, boxID int64) ([]*Submitter, error)
}
