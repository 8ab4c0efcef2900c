package quotas

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketline/backend/internal/models"
)

// Querier is satisfied by both pgxpool.Pool and pgx.Tx so availability can
// be checked inside the transaction that commits an order.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CheckOptions tune how usage is counted.
type CheckOptions struct {
	// IgnoreCartID excludes one cart's positions, used when that cart is
	// being converted into the order under check.
	IgnoreCartID string
	// CountWaitingList includes waiting list entries in the usage.
	CountWaitingList bool
}

// Repository loads quotas and their usage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a quota repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for callers that open transactions.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// ForItems returns all quotas of the event covering any of the items,
// restricted to the given subevent (nil for events without subevents).
func ForItems(ctx context.Context, q Querier, eventID uuid.UUID, subeventID *uuid.UUID, itemIDs []uuid.UUID) ([]models.Quota, error) {
	const sql = `SELECT DISTINCT q.id, q.event_id, q.subevent_id, q.name, q.size
		FROM quotas q
		JOIN quota_items qi ON qi.quota_id = q.id
		WHERE q.event_id = $1 AND qi.item_id = ANY($2)
		  AND (q.subevent_id IS NOT DISTINCT FROM $3)
		ORDER BY q.name`
	rows, err := q.Query(ctx, sql, eventID, itemIDs, subeventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotas []models.Quota
	for rows.Next() {
		var quota models.Quota
		if err := rows.Scan(&quota.ID, &quota.EventID, &quota.SubEventID, &quota.Name, &quota.Size); err != nil {
			return nil, err
		}
		quotas = append(quotas, quota)
	}
	return quotas, rows.Err()
}

// ItemsOf returns the item ids linked to a quota.
func ItemsOf(ctx context.Context, q Querier, quotaID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT item_id FROM quota_items WHERE quota_id = $1`, quotaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UsageOf counts the demand against one quota at the given instant.
func UsageOf(ctx context.Context, q Querier, quota models.Quota, now time.Time, opts CheckOptions) (Usage, error) {
	var u Usage

	const committed = `SELECT count(*)
		FROM order_positions op
		JOIN orders o ON o.id = op.order_id
		JOIN quota_items qi ON qi.item_id = op.item_id AND qi.quota_id = $1
		WHERE o.status IN ('n', 'p')
		  AND (op.subevent_id IS NOT DISTINCT FROM $2)`
	if err := q.QueryRow(ctx, committed, quota.ID, quota.SubEventID).Scan(&u.Committed); err != nil {
		return u, err
	}

	const carts = `SELECT count(*)
		FROM cart_positions cp
		JOIN quota_items qi ON qi.item_id = cp.item_id AND qi.quota_id = $1
		WHERE cp.expires > $2
		  AND (cp.subevent_id IS NOT DISTINCT FROM $3)
		  AND cp.cart_id <> $4`
	if err := q.QueryRow(ctx, carts, quota.ID, now, quota.SubEventID, opts.IgnoreCartID).Scan(&u.Carts); err != nil {
		return u, err
	}

	if opts.CountWaitingList {
		const waiting = `SELECT count(*)
			FROM waiting_list_entries wl
			JOIN quota_items qi ON qi.item_id = wl.item_id AND qi.quota_id = $1
			WHERE (wl.subevent_id IS NOT DISTINCT FROM $2)`
		if err := q.QueryRow(ctx, waiting, quota.ID, quota.SubEventID).Scan(&u.WaitingList); err != nil {
			return u, err
		}
	}
	return u, nil
}

// AvailabilityOf checks one quota.
func AvailabilityOf(ctx context.Context, q Querier, quota models.Quota, now time.Time, opts CheckOptions) (Availability, error) {
	if quota.Size == nil {
		return Availability{Unlimited: true}, nil
	}
	u, err := UsageOf(ctx, q, quota, now, opts)
	if err != nil {
		return Availability{}, err
	}
	return Compute(quota.Size, u), nil
}
