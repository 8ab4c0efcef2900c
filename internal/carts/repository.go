// Package carts manages cart position reservations. A cart position holds
// quota until it expires or is converted into an order.
package carts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketline/backend/internal/models"
)

// Repository handles cart position persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a cart repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create reserves a cart position until expires.
func (r *Repository) Create(ctx context.Context, p *models.CartPosition) error {
	const q = `INSERT INTO cart_positions (event_id, cart_id, item_id, variation_id, subevent_id, price, expires)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, datetime`
	return r.pool.QueryRow(ctx, q,
		p.EventID, p.CartID, p.ItemID, p.VariationID, p.SubEventID, p.Price, p.Expires,
	).Scan(&p.ID, &p.Datetime)
}

// ByCartIDs loads all positions of the given carts within one event. Used to
// verify carts named in consume_carts exist before an order consumes them.
func ByCartIDs(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, cartIDs []string) ([]models.CartPosition, error) {
	const q = `SELECT id, event_id, cart_id, item_id, variation_id, subevent_id, price, datetime, expires
		FROM cart_positions WHERE event_id = $1 AND cart_id = ANY($2)`
	rows, err := tx.Query(ctx, q, eventID, cartIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []models.CartPosition
	for rows.Next() {
		var p models.CartPosition
		if err := rows.Scan(&p.ID, &p.EventID, &p.CartID, &p.ItemID, &p.VariationID,
			&p.SubEventID, &p.Price, &p.Datetime, &p.Expires); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// DeleteByCartIDs removes all positions of the given carts, releasing their
// quota. Runs inside the order-creation transaction.
func DeleteByCartIDs(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, cartIDs []string) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM cart_positions WHERE event_id = $1 AND cart_id = ANY($2)`, eventID, cartIDs)
	return err
}

// DeleteExpired removes cart positions whose reservation ran out before now.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_positions WHERE expires <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
