package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docbox_notifier/internal/domain/notification"
)

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// notifyDate renders the local calendar date; the DATE column must not be
// shifted by the session time zone.
func notifyDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func (r *PostgresNotificationRepository) LogExists(ctx context.Context, boxID int64, category notification.Category, date time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
	              SELECT 1 FROM deadline_notification_logs
	              WHERE document_box_id = $1 AND category = $2 AND notify_date = $3::date)`
	if err := r.db.QueryRowContext(ctx, query, boxID, category, notifyDate(date)).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking deadline notification log: %w", err)
	}
	return exists, nil
}

func (r *PostgresNotificationRepository) CreateLog(ctx context.Context, l *notification.Log) (bool, error) {
	query := `INSERT INTO deadline_notification_logs (document_box_id, category, notify_date, recipient_email, sent_at)
	          VALUES ($1, $2, $3::date, $4, $5)
	          ON CONFLICT (document_box_id, category, notify_date) DO NOTHING
	          RETURNING id`
	err := r.db.QueryRowContext(ctx, query, l.BoxID, l.Category, notifyDate(l.NotifyDate), l.RecipientEmail, l.SentAt).Scan(&l.ID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error creating deadline notification log: %w", err)
	}
	return true, nil
}
