package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial scheduler schema",
		SQL: `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(320) NOT NULL DEFAULT '',
			name VARCHAR(255) NOT NULL DEFAULT '',
			deadline_notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS document_boxes (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id),
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			deadline TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'OPEN',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_document_boxes_status_deadline ON document_boxes(status, deadline);

		CREATE TABLE IF NOT EXISTS document_box_remind_types (
			document_box_id BIGINT NOT NULL REFERENCES document_boxes(id),
			remind_type VARCHAR(10) NOT NULL,
			PRIMARY KEY (document_box_id, remind_type)
		);

		CREATE TABLE IF NOT EXISTS submitters (
			id BIGSERIAL PRIMARY KEY,
			document_box_id BIGINT NOT NULL REFERENCES document_boxes(id),
			name VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(320) NOT NULL DEFAULT '',
			phone VARCHAR(40) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_submitters_box ON submitters(document_box_id);

		CREATE TABLE IF NOT EXISTS reminder_schedules (
			id BIGSERIAL PRIMARY KEY,
			document_box_id BIGINT NOT NULL REFERENCES document_boxes(id) ON DELETE CASCADE,
			offset_value INT NOT NULL,
			offset_unit VARCHAR(10) NOT NULL,
			time_of_day VARCHAR(5) NOT NULL,
			is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_reminder_schedules_box ON reminder_schedules(document_box_id);

		CREATE TABLE IF NOT EXISTS reminder_logs (
			id BIGSERIAL PRIMARY KEY,
			document_box_id BIGINT NOT NULL REFERENCES document_boxes(id),
			schedule_id BIGINT NULL,
			trigger_key VARCHAR(100) NOT NULL,
			channel VARCHAR(10) NOT NULL,
			is_auto BOOLEAN NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT reminder_logs_box_trigger_unique UNIQUE (document_box_id, trigger_key)
		);

		CREATE TABLE IF NOT EXISTS reminder_recipients (
			reminder_log_id BIGINT NOT NULL REFERENCES reminder_logs(id) ON DELETE CASCADE,
			submitter_id BIGINT NOT NULL,
			email VARCHAR(320) NOT NULL,
			PRIMARY KEY (reminder_log_id, submitter_id)
		);

		CREATE TABLE IF NOT EXISTS deadline_notification_logs (
			id BIGSERIAL PRIMARY KEY,
			document_box_id BIGINT NOT NULL REFERENCES document_boxes(id),
			category VARCHAR(20) NOT NULL,
			notify_date DATE NOT NULL,
			recipient_email VARCHAR(320) NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT deadline_notification_logs_unique UNIQUE (document_box_id, category, notify_date)
		);
		`,
	},
	{
		Version:     2,
		Description: "Add has_submitter to document boxes",
		SQL: `
		-- Nullable on purpose: boxes created before the column existed read as
		-- having designated submitters.
		ALTER TABLE document_boxes ADD COLUMN IF NOT EXISTS has_submitter BOOLEAN NULL;
		`,
	},
}

// ApplyMigrations brings the schema up to the latest version.
func ApplyMigrations(ctx context.Context, db *sql.DB, logger *logrus.Entry) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.WithField("version", current).Info("Current schema version")

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		logger.WithFields(logrus.Fields{"version": m.Version, "description": m.Description}).Info("Applying migration")
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		applied++
	}
	if applied > 0 {
		logger.WithField("applied", applied).Info("Schema migrations applied")
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	txn, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback()

	if _, err := txn.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := txn.ExecContext(ctx, `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`, m.Version, m.Description); err != nil {
		return err
	}
	return txn.Commit()
}
