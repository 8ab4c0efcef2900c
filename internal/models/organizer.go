package models

import (
	"time"

	"github.com/google/uuid"
)

// Organizer owns events and teams.
type Organizer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a session-authenticated platform user.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Team grants a bounded permission set within one organizer, either for all
// of the organizer's events or for an explicit event list.
type Team struct {
	ID                     uuid.UUID `json:"id"`
	OrganizerID            uuid.UUID `json:"organizer"`
	Name                   string    `json:"name"`
	AllEvents              bool      `json:"all_events"`
	CanCreateEvents        bool      `json:"can_create_events"`
	CanChangeEventSettings bool      `json:"can_change_event_settings"`
	CanChangeItems         bool      `json:"can_change_items"`
	CanViewOrders          bool      `json:"can_view_orders"`
	CanChangeOrders        bool      `json:"can_change_orders"`
	CanViewVouchers        bool      `json:"can_view_vouchers"`
	CanChangeVouchers      bool      `json:"can_change_vouchers"`
}

// TeamAPIToken is a bearer credential mapped 1:1 to a team's permission set.
type TeamAPIToken struct {
	ID        uuid.UUID `json:"id"`
	TeamID    uuid.UUID `json:"team"`
	Name      string    `json:"name"`
	Token     string    `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
