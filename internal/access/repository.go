package access

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketline/backend/internal/models"
)

const teamColumns = `t.id, t.organizer_id, t.name, t.all_events, t.can_create_events,
	t.can_change_event_settings, t.can_change_items, t.can_view_orders,
	t.can_change_orders, t.can_view_vouchers, t.can_change_vouchers`

// Repository resolves organizers, events and team membership for the
// authorization layer.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an access repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OrganizerBySlug returns an organizer by slug, or nil.
func (r *Repository) OrganizerBySlug(ctx context.Context, slug string) (*models.Organizer, error) {
	const q = `SELECT id, name, slug, created_at FROM organizers WHERE slug = $1`
	var o models.Organizer
	err := r.pool.QueryRow(ctx, q, slug).Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// EventBySlug resolves an event within an organizer for scope resolution.
// Only the columns the authorization layer and handlers commonly need are
// loaded; resource repositories load their own projections.
func (r *Repository) EventBySlug(ctx context.Context, organizerID uuid.UUID, slug string) (*models.Event, error) {
	const q = `SELECT id, organizer_id, slug, name, live, currency, date_from, date_to,
		date_admission, presale_start, presale_end, is_public, location, has_subevents,
		plugins, meta_data, settings, created_at, last_modified
		FROM events WHERE organizer_id = $1 AND slug = $2`
	var e models.Event
	var plugins string
	err := r.pool.QueryRow(ctx, q, organizerID, slug).Scan(
		&e.ID, &e.OrganizerID, &e.Slug, &e.Name, &e.Live, &e.Currency, &e.DateFrom, &e.DateTo,
		&e.DateAdmission, &e.PresaleStart, &e.PresaleEnd, &e.IsPublic, &e.Location, &e.HasSubevents,
		&plugins, &e.MetaData, &e.Settings, &e.CreatedAt, &e.LastModified,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Plugins = splitPlugins(plugins)
	return &e, nil
}

func splitPlugins(s string) []string {
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

// OrganizerTeams returns the teams through which the principal belongs to
// the organizer, regardless of event scoping.
func (r *Repository) OrganizerTeams(ctx context.Context, organizerID uuid.UUID, p Principal) ([]models.Team, error) {
	if p.Token != nil {
		const q = `SELECT ` + teamColumns + ` FROM teams t
			JOIN team_api_tokens tok ON tok.team_id = t.id
			WHERE t.organizer_id = $1 AND tok.id = $2`
		return r.queryTeams(ctx, q, organizerID, p.Token.ID)
	}
	const q = `SELECT ` + teamColumns + ` FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE t.organizer_id = $1 AND m.user_id = $2`
	return r.queryTeams(ctx, q, organizerID, p.User.ID)
}

// EventTeams returns the principal's teams within the organizer that cover
// the given event, either via all_events or an explicit event grant.
func (r *Repository) EventTeams(ctx context.Context, organizerID, eventID uuid.UUID, p Principal) ([]models.Team, error) {
	const cover = ` AND (t.all_events OR EXISTS (
		SELECT 1 FROM team_events te WHERE te.team_id = t.id AND te.event_id = $3))`
	if p.Token != nil {
		const q = `SELECT ` + teamColumns + ` FROM teams t
			JOIN team_api_tokens tok ON tok.team_id = t.id
			WHERE t.organizer_id = $1 AND tok.id = $2` + cover
		return r.queryTeams(ctx, q, organizerID, p.Token.ID, eventID)
	}
	const q = `SELECT ` + teamColumns + ` FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE t.organizer_id = $1 AND m.user_id = $2` + cover
	return r.queryTeams(ctx, q, organizerID, p.User.ID, eventID)
}

func (r *Repository) queryTeams(ctx context.Context, q string, args ...interface{}) ([]models.Team, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.OrganizerID, &t.Name, &t.AllEvents, &t.CanCreateEvents,
			&t.CanChangeEventSettings, &t.CanChangeItems, &t.CanViewOrders,
			&t.CanChangeOrders, &t.CanViewVouchers, &t.CanChangeVouchers); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
