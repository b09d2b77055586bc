package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"docbox_notifier/internal/domain/box"
)

// ErrBoxNotFound is returned when no document box matches the given ID.
var ErrBoxNotFound = fmt.Errorf("document box not found")

type PostgresBoxRepository struct {
	db *sql.DB
}

func NewPostgresBoxRepository(db *sql.DB) *PostgresBoxRepository {
	return &PostgresBoxRepository{db: db}
}

const selectBoxColumns = `
	SELECT b.id, b.title, b.description, b.deadline, b.status, b.has_submitter,
	       b.owner_id, u.name, u.email, u.deadline_notifications_enabled,
	       ARRAY(SELECT rt.remind_type FROM document_box_remind_types rt
	             WHERE rt.document_box_id = b.id ORDER BY rt.remind_type) AS remind_types,
	       b.created_at, b.updated_at
	FROM document_boxes b
	JOIN users u ON u.id = b.owner_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBox(row rowScanner) (*box.Box, error) {
	var (
		b            box.Box
		hasSubmitter sql.NullBool
		remindTypes  []string
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Description, &b.Deadline, &b.Status, &hasSubmitter,
		&b.OwnerID, &b.OwnerName, &b.OwnerEmail, &b.OwnerNotifyDeadline,
		pq.Array(&remindTypes),
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.HasSubmitter = hasSubmitterOrDefault(hasSubmitter)
	for _, rt := range remindTypes {
		b.RemindTypes = append(b.RemindTypes, box.RemindType(rt))
	}
	return &b, nil
}

// hasSubmitterOrDefault maps the nullable has_submitter column. Rows created
// before the column existed are treated as having designated submitters.
func hasSubmitterOrDefault(v sql.NullBool) bool {
	if !v.Valid {
		return true
	}
	return v.Bool
}

func (r *PostgresBoxRepository) queryBoxes(ctx context.Context, query string, args ...any) ([]*box.Box, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boxes []*box.Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning document box row: %w", err)
		}
		boxes = append(boxes, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document box rows: %w", err)
	}
	return boxes, nil
}

func (r *PostgresBoxRepository) GetByID(ctx context.Context, id int64) (*box.Box, error) {
	b, err := scanBox(r.db.QueryRowContext(ctx, selectBoxColumns+` WHERE b.id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBoxNotFound
		}
		return nil, fmt.Errorf("error getting document box by ID: %w", err)
	}
	return b, nil
}

func (r *PostgresBoxRepository) ExpireOpenBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `UPDATE document_boxes
	          SET status = $1, updated_at = NOW()
	          WHERE status = $2 AND deadline < $3
	          RETURNING id`
	rows, err := r.db.QueryContext(ctx, query, box.StatusClosedExpired, box.StatusOpen, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error expiring overdue document boxes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning expired box id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired box ids: %w", err)
	}
	return ids, nil
}

func (r *PostgresBoxRepository) ListOpenWithDeadlineAfter(ctx context.Context, t time.Time) ([]*box.Box, error) {
	statuses := make([]string, 0, len(box.OpenStatuses))
	for _, s := range box.OpenStatuses {
		statuses = append(statuses, string(s))
	}
	query := selectBoxColumns + ` WHERE b.status = ANY($1) AND b.deadline > $2 ORDER BY b.deadline, b.id`
	boxes, err := r.queryBoxes(ctx, query, pq.Array(statuses), t)
	if err != nil {
		return nil, fmt.Errorf("error listing open document boxes: %w", err)
	}
	return boxes, nil
}

func (r *PostgresBoxRepository) ListForDeadlineNotification(ctx context.Context, from, to time.Time) ([]*box.Box, error) {
	query := selectBoxColumns + `
	WHERE b.status IN ($1, $2)
	  AND u.deadline_notifications_enabled = TRUE
	  AND b.deadline >= $3 AND b.deadline < $4
	ORDER BY b.deadline, b.id`
	boxes, err := r.queryBoxes(ctx, query, box.StatusOpen, box.StatusClosedExpired, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing deadline notification candidates: %w", err)
	}
	return boxes, nil
}

func (r *PostgresBoxRepository) UpdateStatus(ctx context.Context, id int64, status box.Status) error {
	query := `UPDATE document_boxes SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("error updating document box status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected for status update: %w", err)
	}
	if rowsAffected == 0 {
		return ErrBoxNotFound
	}
	return nil
}

func (r *PostgresBoxRepository) ListSubmitters(ctx context.Context, boxID int64) ([]*box.Submitter, error) {
	query := `SELECT id, document_box_id, name, email, phone, status, created_at
	          FROM submitters WHERE document_box_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, boxID)
	if err != nil {
		return nil, fmt.Errorf("error listing submitters: %w", err)
	}
	defer rows.Close()

	var subs []*box.Submitter
	for rows.Next() {
		var s box.Submitter
		if err := rows.Scan(&s.ID, &s.BoxID, &s.Name, &s.Email, &s.Phone, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning submitter row: %w", err)
		}
		subs = append(subs, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submitter rows: %w", err)
	}
	return subs, nil
}
