package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// SchedulerLockKey is the advisory lock key shared by every scheduler instance.
const SchedulerLockKey int64 = 0x646f63626f78 // "docbox"

const unlockTimeout = 5 * time.Second

// AdvisoryLock runs jobs under a session level pg_try_advisory_lock, so only
// one instance executes a tick when several are deployed.
type AdvisoryLock struct {
	db     *sql.DB
	key    int64
	logger *logrus.Entry
}

func NewAdvisoryLock(db *sql.DB, key int64, logger *logrus.Entry) *AdvisoryLock {
	return &AdvisoryLock{db: db, key: key, logger: logger}
}

// TryRun calls fn if the lock could be taken and reports whether it ran.
func (l *AdvisoryLock) TryRun(ctx context.Context, fn func(ctx context.Context)) (bool, error) {
	// The lock belongs to a session, so acquire and release on one connection.
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get connection for advisory lock: %w", err)
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&acquired); err != nil {
		return false, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	if !acquired {
		return false, nil
	}
	defer l.unlock(ctx, conn)

	fn(ctx)
	return true, nil
}

// unlock releases the lock. If that fails the session may still hold it, so
// the connection is discarded instead of going back to the pool.
func (l *AdvisoryLock) unlock(ctx context.Context, conn *sql.Conn) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()

	var released bool
	err := conn.QueryRowContext(uctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&released)
	if err == nil && released {
		return
	}
	entry := l.logger.WithField("lock_key", l.key)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("Failed to release scheduler advisory lock, dropping the connection")
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
}
