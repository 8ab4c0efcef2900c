package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/internal/plugins"
)

// ErrNotFound signals a missing order or position within the event scope.
var ErrNotFound = errors.New("order not found")

// ListFilter narrows the order list query.
type ListFilter struct {
	Code          string
	Status        string
	Email         string
	Locale        string
	ModifiedSince *time.Time
}

// PositionFilter narrows the order position list query.
type PositionFilter struct {
	OrderCode    string
	OrderStatus  string
	Item         *uuid.UUID
	ItemIn       []uuid.UUID
	Variation    *uuid.UUID
	SubEvent     *uuid.UUID
	SubEventIn   []uuid.UUID
	AttendeeName string
	Secret       string
	Search       string // substring over order code, attendee name and secret prefix
}

// Repository handles order persistence and hydration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an order repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for services that open transactions.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

const orderColumns = `id, event_id, code, status, email, locale, secret, datetime, expires,
	payment_date, payment_provider, payment_info, total, comment, last_modified`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.EventID, &o.Code, &o.Status, &o.Email, &o.Locale, &o.Secret,
		&o.Datetime, &o.Expires, &o.PaymentDate, &o.PaymentProvider, &o.PaymentInfo,
		&o.Total, &o.Comment, &o.LastModified)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns the event's orders matching the filter, newest first, fully
// hydrated with fees, positions and invoice addresses.
func (r *Repository) List(ctx context.Context, event *models.Event, f ListFilter) ([]models.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE event_id = $1`
	args := []interface{}{event.ID}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		q += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.Code != "" {
		add("code = $%d", f.Code)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Email != "" {
		add("lower(email) = lower($%d)", f.Email)
	}
	if f.Locale != "" {
		add("locale = $%d", f.Locale)
	}
	if f.ModifiedSince != nil {
		add("last_modified >= $%d", *f.ModifiedSince)
	}
	q += " ORDER BY datetime DESC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := r.hydrate(ctx, event, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// GetByCode returns one hydrated order, or ErrNotFound.
func (r *Repository) GetByCode(ctx context.Context, event *models.Event, code string) (*models.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE event_id = $1 AND code = $2`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, event.ID, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, event, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) hydrate(ctx context.Context, event *models.Event, o *models.Order) error {
	o.Fees = []models.OrderFee{}
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, fee_type, value, description, internal_type, tax_rate, tax_value, tax_rule_id
		 FROM order_fees WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var f models.OrderFee
		if err := rows.Scan(&f.ID, &f.OrderID, &f.FeeType, &f.Value, &f.Description,
			&f.InternalType, &f.TaxRate, &f.TaxValue, &f.TaxRuleID); err != nil {
			rows.Close()
			return err
		}
		o.Fees = append(o.Fees, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	positions, err := r.loadPositions(ctx, event,
		`WHERE op.order_id = $1 ORDER BY op.positionid`, o.ID)
	if err != nil {
		return err
	}
	for i := range positions {
		positions[i].OrderCode = o.Code
		positions[i].Downloads = downloadsFor(event, o.Status)
	}
	o.Positions = positions
	o.Downloads = downloadsFor(event, o.Status)

	var ia models.InvoiceAddress
	err = r.pool.QueryRow(ctx,
		`SELECT order_id, is_business, company, name, street, zipcode, city, country,
			internal_reference, vat_id, vat_id_validated, last_modified
		 FROM invoice_addresses WHERE order_id = $1`, o.ID).Scan(
		&ia.OrderID, &ia.IsBusiness, &ia.Company, &ia.Name, &ia.Street, &ia.Zipcode,
		&ia.City, &ia.Country, &ia.InternalReference, &ia.VatID, &ia.VatIDValidated, &ia.LastModified)
	if err == nil {
		o.InvoiceAddress = &ia
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}

// downloadsFor lists the ticket output formats available for an order. Only
// paid orders have downloadable tickets.
func downloadsFor(event *models.Event, status string) []string {
	if status != models.OrderStatusPaid {
		return []string{}
	}
	return plugins.TicketOutputs(event.Plugins)
}

func (r *Repository) loadPositions(ctx context.Context, event *models.Event, where string, args ...interface{}) ([]models.OrderPosition, error) {
	q := `SELECT op.id, op.order_id, op.event_id, o.code, o.status, op.positionid, op.item_id,
		op.variation_id, op.subevent_id, op.price, op.attendee_name, op.attendee_email,
		op.secret, op.addon_to, op.tax_rate, op.tax_value, op.tax_rule_id, op.pseudonymization_id
		FROM order_positions op JOIN orders o ON o.id = op.order_id ` + where
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []models.OrderPosition{}
	var statuses []string
	for rows.Next() {
		var p models.OrderPosition
		var status string
		if err := rows.Scan(&p.ID, &p.OrderID, &p.EventID, &p.OrderCode, &status, &p.PositionID,
			&p.ItemID, &p.VariationID, &p.SubEventID, &p.Price, &p.AttendeeName, &p.AttendeeEmail,
			&p.Secret, &p.AddonTo, &p.TaxRate, &p.TaxValue, &p.TaxRuleID, &p.PseudonymizationID); err != nil {
			return nil, err
		}
		positions = append(positions, p)
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range positions {
		positions[i].Downloads = downloadsFor(event, statuses[i])
		if err := r.loadAnswers(ctx, &positions[i]); err != nil {
			return nil, err
		}
	}
	return positions, nil
}

func (r *Repository) loadAnswers(ctx context.Context, p *models.OrderPosition) error {
	p.Answers = []models.Answer{}
	rows, err := r.pool.Query(ctx,
		`SELECT id, position_id, question_id, answer FROM answers WHERE position_id = $1 ORDER BY id`, p.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.PositionID, &a.QuestionID, &a.Answer); err != nil {
			rows.Close()
			return err
		}
		a.OptionIDs = []uuid.UUID{}
		p.Answers = append(p.Answers, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range p.Answers {
		orows, err := r.pool.Query(ctx,
			`SELECT option_id FROM answer_options WHERE answer_id = $1`, p.Answers[i].ID)
		if err != nil {
			return err
		}
		for orows.Next() {
			var id uuid.UUID
			if err := orows.Scan(&id); err != nil {
				orows.Close()
				return err
			}
			p.Answers[i].OptionIDs = append(p.Answers[i].OptionIDs, id)
		}
		orows.Close()
		if err := orows.Err(); err != nil {
			return err
		}
	}
	return nil
}

// ListPositions returns the event's order positions matching the filter.
func (r *Repository) ListPositions(ctx context.Context, event *models.Event, f PositionFilter) ([]models.OrderPosition, error) {
	where := `WHERE op.event_id = $1`
	args := []interface{}{event.ID}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.OrderCode != "" {
		add("o.code = $%d", f.OrderCode)
	}
	if f.OrderStatus != "" {
		add("o.status = $%d", f.OrderStatus)
	}
	if f.Item != nil {
		add("op.item_id = $%d", *f.Item)
	}
	if len(f.ItemIn) > 0 {
		add("op.item_id = ANY($%d)", f.ItemIn)
	}
	if f.Variation != nil {
		add("op.variation_id = $%d", *f.Variation)
	}
	if f.SubEvent != nil {
		add("op.subevent_id = $%d", *f.SubEvent)
	}
	if len(f.SubEventIn) > 0 {
		add("op.subevent_id = ANY($%d)", f.SubEventIn)
	}
	if f.AttendeeName != "" {
		add("lower(op.attendee_name) = lower($%d)", f.AttendeeName)
	}
	if f.Secret != "" {
		add("op.secret = $%d", f.Secret)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%", f.Search+"%")
		where += fmt.Sprintf(
			" AND (o.code ILIKE $%d OR op.attendee_name ILIKE $%d OR op.secret LIKE $%d)",
			len(args)-1, len(args)-1, len(args))
	}
	where += " ORDER BY o.code, op.positionid"

	return r.loadPositions(ctx, event, where, args...)
}

// GetPosition returns one hydrated position by id, or ErrNotFound.
func (r *Repository) GetPosition(ctx context.Context, event *models.Event, id uuid.UUID) (*models.OrderPosition, error) {
	positions, err := r.loadPositions(ctx, event,
		`WHERE op.event_id = $1 AND op.id = $2`, event.ID, id)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, ErrNotFound
	}
	return &positions[0], nil
}
