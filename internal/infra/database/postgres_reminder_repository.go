package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"docbox_notifier/internal/domain/reminder"
)

type PostgresReminderRepository struct {
	db *sql.DB
}

func NewPostgresReminderRepository(db *sql.DB) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db}
}

func (r *PostgresReminderRepository) ListSchedules(ctx context.Context, boxID int64) ([]*reminder.Schedule, error) {
	query := `SELECT id, document_box_id, offset_value, offset_unit, time_of_day, is_enabled, created_at
	          FROM reminder_schedules WHERE document_box_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, boxID)
	if err != nil {
		return nil, fmt.Errorf("error listing reminder schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*reminder.Schedule
	for rows.Next() {
		var s reminder.Schedule
		if err := rows.Scan(&s.ID, &s.BoxID, &s.OffsetValue, &s.OffsetUnit, &s.TimeOfDay, &s.IsEnabled, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning reminder schedule row: %w", err)
		}
		schedules = append(schedules, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder schedule rows: %w", err)
	}
	return schedules, nil
}

func (r *PostgresReminderRepository) ReplaceSchedules(ctx context.Context, boxID int64, schedules []*reminder.Schedule) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schedule replace: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if _, err := txn.ExecContext(ctx, `DELETE FROM reminder_schedules WHERE document_box_id = $1`, boxID); err != nil {
		return fmt.Errorf("error deleting reminder schedules: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO reminder_schedules (document_box_id, offset_value, offset_unit, time_of_day, is_enabled)
	                                      VALUES ($1, $2, $3, $4, $5)
	                                      RETURNING id, created_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for schedule insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range schedules {
		err := stmt.QueryRowContext(ctx, boxID, s.OffsetValue, s.OffsetUnit, s.TimeOfDay, s.IsEnabled).Scan(&s.ID, &s.CreatedAt)
		if err != nil {
			return fmt.Errorf("error inserting reminder schedule for box %d: %w", boxID, err)
		}
	}
	return txn.Commit()
}

func (r *PostgresReminderRepository) LogExists(ctx context.Context, boxID int64, triggerKey string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM reminder_logs WHERE document_box_id = $1 AND trigger_key = $2)`
	if err := r.db.QueryRowContext(ctx, query, boxID, triggerKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking reminder log: %w", err)
	}
	return exists, nil
}

func (r *PostgresReminderRepository) CreateLog(ctx context.Context, l *reminder.Log) (bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for reminder log: %w", err)
	}
	defer txn.Rollback()

	query := `INSERT INTO reminder_logs (document_box_id, schedule_id, trigger_key, channel, is_auto, sent_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (document_box_id, trigger_key) DO NOTHING
	          RETURNING id`
	err = txn.QueryRowContext(ctx, query, l.BoxID, l.ScheduleID, l.TriggerKey, l.Channel, l.IsAuto, l.SentAt).Scan(&l.ID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error creating reminder log: %w", err)
	}

	if len(l.Recipients) > 0 {
		stmt, err := txn.PrepareContext(ctx, `INSERT INTO reminder_recipients (reminder_log_id, submitter_id, email) VALUES ($1, $2, $3)`)
		if err != nil {
			return false, fmt.Errorf("failed to prepare statement for reminder recipients: %w", err)
		}
		defer stmt.Close()
		for _, rc := range l.Recipients {
			if _, err := stmt.ExecContext(ctx, l.ID, rc.SubmitterID, rc.Email); err != nil {
				return false, fmt.Errorf("error inserting reminder recipient %d: %w", rc.SubmitterID, err)
			}
		}
	}

	if err := txn.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit reminder log: %w", err)
	}
	return true, nil
}

func (r *PostgresReminderRepository) ListLogs(ctx context.Context, boxID int64) ([]*reminder.Log, error) {
	query := `SELECT id, document_box_id, schedule_id, trigger_key, channel, is_auto, sent_at
	          FROM reminder_logs WHERE document_box_id = $1 ORDER BY sent_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, boxID)
	if err != nil {
		return nil, fmt.Errorf("error listing reminder logs: %w", err)
	}
	defer rows.Close()

	var (
		logs []*reminder.Log
		ids  []int64
		byID = make(map[int64]*reminder.Log)
	)
	for rows.Next() {
		var l reminder.Log
		if err := rows.Scan(&l.ID, &l.BoxID, &l.ScheduleID, &l.TriggerKey, &l.Channel, &l.IsAuto, &l.SentAt); err != nil {
			return nil, fmt.Errorf("error scanning reminder log row: %w", err)
		}
		logs = append(logs, &l)
		ids = append(ids, l.ID)
		byID[l.ID] = &l
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder log rows: %w", err)
	}
	if len(ids) == 0 {
		return logs, nil
	}

	recRows, err := r.db.QueryContext(ctx, `SELECT reminder_log_id, submitter_id, email
	                                        FROM reminder_recipients WHERE reminder_log_id = ANY($1)
	                                        ORDER BY reminder_log_id, submitter_id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error listing reminder recipients: %w", err)
	}
	defer recRows.Close()
	for recRows.Next() {
		var (
			logID int64
			rc    reminder.Recipient
		)
		if err := recRows.Scan(&logID, &rc.SubmitterID, &rc.Email); err != nil {
			return nil, fmt.Errorf("error scanning reminder recipient row: %w", err)
		}
		if l, ok := byID[logID]; ok {
			l.Recipients = append(l.Recipients, rc)
		}
	}
	if err = recRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder recipient rows: %w", err)
	}
	return logs, nil
}
