// Package emaillogs records every outgoing order email so organizers can
// audit what was sent.
package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketline/backend/internal/models"
)

// Email statuses.
const (
	StatusQueued = "queued"
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// ListFilter narrows the email log query.
type ListFilter struct {
	OrderCode string
	Status    string
}

// Repository handles email log persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create records a queued email.
func (r *Repository) Create(ctx context.Context, log *models.EmailLog) error {
	if log.Status == "" {
		log.Status = StatusQueued
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO email_logs (event_id, order_code, recipient, subject, body, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`,
		log.EventID, log.OrderCode, log.Recipient, log.Subject, log.Body, log.Status, log.Error,
	).Scan(&log.ID, &log.CreatedAt)
}

// MarkSent flips a log entry to sent.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = $2, error = '' WHERE id = $1`, id, StatusSent)
	return err
}

// MarkFailed flips a log entry to failed and stores the error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE email_logs SET status = $2, error = $3 WHERE id = $1`, id, StatusFailed, reason)
	return err
}

// List returns the event's email log, newest first.
func (r *Repository) List(ctx context.Context, eventID uuid.UUID, f ListFilter) ([]models.EmailLog, error) {
	q := `SELECT id, event_id, order_code, recipient, subject, body, status, error, created_at
		FROM email_logs WHERE event_id = $1`
	args := []interface{}{eventID}

	if f.OrderCode != "" {
		args = append(args, f.OrderCode)
		q += fmt.Sprintf(" AND order_code = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.EmailLog{}
	for rows.Next() {
		var l models.EmailLog
		if err := rows.Scan(&l.ID, &l.EventID, &l.OrderCode, &l.Recipient, &l.Subject,
			&l.Body, &l.Status, &l.Error, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
