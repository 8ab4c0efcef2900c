package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketline/backend/internal/models"
)

const eventColumns = `id, organizer_id, slug, name, live, currency, date_from, date_to,
	date_admission, presale_start, presale_end, is_public, location, has_subevents,
	plugins, meta_data, settings, created_at, last_modified`

// ListFilter narrows the event list query.
type ListFilter struct {
	Live          *bool
	IsPublic      *bool
	HasSubevents  *bool
	Currency      *string
	CurrencyIn    []string
	Search        string // case-insensitive substring over slug and name
	ModifiedSince *time.Time
}

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var plugins string
	err := row.Scan(
		&e.ID, &e.OrganizerID, &e.Slug, &e.Name, &e.Live, &e.Currency, &e.DateFrom, &e.DateTo,
		&e.DateAdmission, &e.PresaleStart, &e.PresaleEnd, &e.IsPublic, &e.Location, &e.HasSubevents,
		&plugins, &e.MetaData, &e.Settings, &e.CreatedAt, &e.LastModified,
	)
	if err != nil {
		return nil, err
	}
	e.Plugins = splitModules(plugins)
	return &e, nil
}

func splitModules(s string) []string {
	if s == "" {
		return []string{}
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinModules(modules []string) string {
	return strings.Join(modules, ",")
}

// List returns the organizer's events matching the filter, newest first.
func (r *Repository) List(ctx context.Context, organizerID uuid.UUID, f ListFilter) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1`
	args := []interface{}{organizerID}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		q += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.Live != nil {
		add("live = $%d", *f.Live)
	}
	if f.IsPublic != nil {
		add("is_public = $%d", *f.IsPublic)
	}
	if f.HasSubevents != nil {
		add("has_subevents = $%d", *f.HasSubevents)
	}
	if f.Currency != nil {
		add("currency = $%d", *f.Currency)
	}
	if len(f.CurrencyIn) > 0 {
		add("currency = ANY($%d)", f.CurrencyIn)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		q += fmt.Sprintf(" AND (slug ILIKE $%d OR name::text ILIKE $%d)", len(args), len(args))
	}
	if f.ModifiedSince != nil {
		add("last_modified >= $%d", *f.ModifiedSince)
	}
	q += " ORDER BY date_from DESC NULLS LAST, slug"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetBySlug returns one event of the organizer, or nil.
func (r *Repository) GetBySlug(ctx context.Context, organizerID uuid.UUID, slug string) (*models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1 AND slug = $2`
	e, err := scanEvent(r.pool.QueryRow(ctx, q, organizerID, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SlugExists reports whether the organizer already uses the slug.
func (r *Repository) SlugExists(ctx context.Context, organizerID uuid.UUID, slug string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM events WHERE organizer_id = $1 AND slug = $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, organizerID, slug).Scan(&exists)
	return exists, err
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (organizer_id, slug, name, live, currency, date_from, date_to,
		date_admission, presale_start, presale_end, is_public, location, has_subevents,
		plugins, meta_data, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, last_modified`
	return r.pool.QueryRow(ctx, q,
		e.OrganizerID, e.Slug, e.Name, e.Live, e.Currency, e.DateFrom, e.DateTo,
		e.DateAdmission, e.PresaleStart, e.PresaleEnd, e.IsPublic, e.Location, e.HasSubevents,
		joinModules(e.Plugins), e.MetaData, e.Settings,
	).Scan(&e.ID, &e.CreatedAt, &e.LastModified)
}

// Update persists a changed event and bumps last_modified.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $2, live = $3, currency = $4, date_from = $5,
		date_to = $6, date_admission = $7, presale_start = $8, presale_end = $9,
		is_public = $10, location = $11, has_subevents = $12, plugins = $13,
		meta_data = $14, settings = $15, last_modified = now()
		WHERE id = $1
		RETURNING last_modified`
	return r.pool.QueryRow(ctx, q,
		e.ID, e.Name, e.Live, e.Currency, e.DateFrom, e.DateTo, e.DateAdmission,
		e.PresaleStart, e.PresaleEnd, e.IsPublic, e.Location, e.HasSubevents,
		joinModules(e.Plugins), e.MetaData, e.Settings,
	).Scan(&e.LastModified)
}

// LiveReadiness loads the facts validateLive needs.
func (r *Repository) LiveReadiness(ctx context.Context, e *models.Event) (LiveReadiness, error) {
	var res LiveReadiness
	const q = `SELECT
		(SELECT count(*) FROM quotas WHERE event_id = $1),
		(SELECT count(*) FROM items WHERE event_id = $1 AND active AND default_price > 0)`
	if err := r.pool.QueryRow(ctx, q, e.ID).Scan(&res.QuotaCount, &res.PaidItemCount); err != nil {
		return res, err
	}
	res.PaymentEnabled = len(e.Settings.PaymentProviders) > 0
	return res, nil
}

// HasSales reports whether any order or cart position references the event.
// Events with sales cannot be deleted.
func (r *Repository) HasSales(ctx context.Context, eventID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM order_positions WHERE event_id = $1)
		OR EXISTS (SELECT 1 FROM cart_positions WHERE event_id = $1)`
	var has bool
	err := r.pool.QueryRow(ctx, q, eventID).Scan(&has)
	return has, err
}

// Delete removes the event and all dependent rows (cascading).
func (r *Repository) Delete(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	return err
}

// Clone inserts the new event and copies configuration (tax rules, items,
// variations, quotas, questions) from the source event in one transaction.
func (r *Repository) Clone(ctx context.Context, src uuid.UUID, e *models.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertEvent = `INSERT INTO events (organizer_id, slug, name, live, currency, date_from, date_to,
		date_admission, presale_start, presale_end, is_public, location, has_subevents,
		plugins, meta_data, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, last_modified`
	if err := tx.QueryRow(ctx, insertEvent,
		e.OrganizerID, e.Slug, e.Name, e.Live, e.Currency, e.DateFrom, e.DateTo,
		e.DateAdmission, e.PresaleStart, e.PresaleEnd, e.IsPublic, e.Location, e.HasSubevents,
		joinModules(e.Plugins), e.MetaData, e.Settings,
	).Scan(&e.ID, &e.CreatedAt, &e.LastModified); err != nil {
		return fmt.Errorf("insert cloned event: %w", err)
	}

	// Tax rules first so items can remap their references.
	taxMap := map[uuid.UUID]uuid.UUID{}
	rows, err := tx.Query(ctx, `SELECT id, name, rate, price_includes_tax FROM tax_rules WHERE event_id = $1`, src)
	if err != nil {
		return err
	}
	type taxRow struct {
		id       uuid.UUID
		name     string
		rate     interface{}
		includes bool
	}
	var taxes []taxRow
	for rows.Next() {
		var t taxRow
		if err := rows.Scan(&t.id, &t.name, &t.rate, &t.includes); err != nil {
			rows.Close()
			return err
		}
		taxes = append(taxes, t)
	}
	rows.Close()
	for _, t := range taxes {
		var newID uuid.UUID
		if err := tx.QueryRow(ctx,
			`INSERT INTO tax_rules (event_id, name, rate, price_includes_tax) VALUES ($1, $2, $3, $4) RETURNING id`,
			e.ID, t.name, t.rate, t.includes,
		).Scan(&newID); err != nil {
			return fmt.Errorf("clone tax rule: %w", err)
		}
		taxMap[t.id] = newID
	}

	itemMap := map[uuid.UUID]uuid.UUID{}
	type itemRow struct {
		id        uuid.UUID
		name      models.LocalizedString
		price     interface{}
		active    bool
		admission bool
		taxRuleID *uuid.UUID
		position  int
	}
	rows, err = tx.Query(ctx,
		`SELECT id, name, default_price, active, admission, tax_rule_id, position FROM items WHERE event_id = $1`, src)
	if err != nil {
		return err
	}
	var items []itemRow
	for rows.Next() {
		var it itemRow
		if err := rows.Scan(&it.id, &it.name, &it.price, &it.active, &it.admission, &it.taxRuleID, &it.position); err != nil {
			rows.Close()
			return err
		}
		items = append(items, it)
	}
	rows.Close()
	for _, it := range items {
		var taxID *uuid.UUID
		if it.taxRuleID != nil {
			if mapped, ok := taxMap[*it.taxRuleID]; ok {
				taxID = &mapped
			}
		}
		var newID uuid.UUID
		if err := tx.QueryRow(ctx,
			`INSERT INTO items (event_id, name, default_price, active, admission, tax_rule_id, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			e.ID, it.name, it.price, it.active, it.admission, taxID, it.position,
		).Scan(&newID); err != nil {
			return fmt.Errorf("clone item: %w", err)
		}
		itemMap[it.id] = newID
		if _, err := tx.Exec(ctx,
			`INSERT INTO item_variations (item_id, value, default_price, position)
			 SELECT $1, value, default_price, position FROM item_variations WHERE item_id = $2`,
			newID, it.id,
		); err != nil {
			return fmt.Errorf("clone variations: %w", err)
		}
	}

	type quotaRow struct {
		id   uuid.UUID
		name string
		size *int
	}
	rows, err = tx.Query(ctx, `SELECT id, name, size FROM quotas WHERE event_id = $1 AND subevent_id IS NULL`, src)
	if err != nil {
		return err
	}
	var quotas []quotaRow
	for rows.Next() {
		var qr quotaRow
		if err := rows.Scan(&qr.id, &qr.name, &qr.size); err != nil {
			rows.Close()
			return err
		}
		quotas = append(quotas, qr)
	}
	rows.Close()
	for _, qr := range quotas {
		var newID uuid.UUID
		if err := tx.QueryRow(ctx,
			`INSERT INTO quotas (event_id, name, size) VALUES ($1, $2, $3) RETURNING id`,
			e.ID, qr.name, qr.size,
		).Scan(&newID); err != nil {
			return fmt.Errorf("clone quota: %w", err)
		}
		qrows, err := tx.Query(ctx, `SELECT item_id FROM quota_items WHERE quota_id = $1`, qr.id)
		if err != nil {
			return err
		}
		var oldItems []uuid.UUID
		for qrows.Next() {
			var id uuid.UUID
			if err := qrows.Scan(&id); err != nil {
				qrows.Close()
				return err
			}
			oldItems = append(oldItems, id)
		}
		qrows.Close()
		for _, old := range oldItems {
			if mapped, ok := itemMap[old]; ok {
				if _, err := tx.Exec(ctx,
					`INSERT INTO quota_items (quota_id, item_id) VALUES ($1, $2)`, newID, mapped); err != nil {
					return fmt.Errorf("clone quota items: %w", err)
				}
			}
		}
	}

	type questionRow struct {
		id         uuid.UUID
		question   models.LocalizedString
		qtype      string
		required   bool
		identifier string
		position   int
	}
	rows, err = tx.Query(ctx,
		`SELECT id, question, type, required, identifier, position FROM questions WHERE event_id = $1`, src)
	if err != nil {
		return err
	}
	var questions []questionRow
	for rows.Next() {
		var qr questionRow
		if err := rows.Scan(&qr.id, &qr.question, &qr.qtype, &qr.required, &qr.identifier, &qr.position); err != nil {
			rows.Close()
			return err
		}
		questions = append(questions, qr)
	}
	rows.Close()
	for _, qr := range questions {
		var newID uuid.UUID
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (event_id, question, type, required, identifier, position)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			e.ID, qr.question, qr.qtype, qr.required, qr.identifier, qr.position,
		).Scan(&newID); err != nil {
			return fmt.Errorf("clone question: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO question_options (question_id, answer, identifier)
			 SELECT $1, answer, identifier FROM question_options WHERE question_id = $2`,
			newID, qr.id,
		); err != nil {
			return fmt.Errorf("clone question options: %w", err)
		}
		qrows, err := tx.Query(ctx, `SELECT item_id FROM question_items WHERE question_id = $1`, qr.id)
		if err != nil {
			return err
		}
		var oldItems []uuid.UUID
		for qrows.Next() {
			var id uuid.UUID
			if err := qrows.Scan(&id); err != nil {
				qrows.Close()
				return err
			}
			oldItems = append(oldItems, id)
		}
		qrows.Close()
		for _, old := range oldItems {
			if mapped, ok := itemMap[old]; ok {
				if _, err := tx.Exec(ctx,
					`INSERT INTO question_items (question_id, item_id) VALUES ($1, $2)`, newID, mapped); err != nil {
					return fmt.Errorf("clone question items: %w", err)
				}
			}
		}
	}

	return tx.Commit(ctx)
}
