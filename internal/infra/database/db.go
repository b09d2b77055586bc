package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Pool sizes the connection pool. One tick holds at most a couple of
// connections at a time, plus one for the advisory lock.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultPool is used when the caller leaves Pool zero.
var DefaultPool = Pool{
	MaxOpen:     10,
	MaxIdle:     5,
	MaxLifetime: 5 * time.Minute,
	MaxIdleTime: time.Minute,
}

// Open connects to Postgres and waits for the first ping, bounded by ctx.
func Open(ctx context.Context, dsn string, pool Pool) (*sql.DB, error) {
	if pool == (Pool{}) {
		pool = DefaultPool
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)
	db.SetConnMaxIdleTime(pool.MaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
