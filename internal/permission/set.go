// Package permission models capability sets granted by teams. Membership is
// a pure function over an explicit set-valued type; handlers declare the
// capability they need and never inspect team rows directly.
package permission

import "github.com/ticketline/backend/internal/models"

// Capability identifies one grantable permission.
type Capability string

const (
	CanCreateEvents        Capability = "can_create_events"
	CanChangeEventSettings Capability = "can_change_event_settings"
	CanChangeItems         Capability = "can_change_items"
	CanViewOrders          Capability = "can_view_orders"
	CanChangeOrders        Capability = "can_change_orders"
	CanViewVouchers        Capability = "can_view_vouchers"
	CanChangeVouchers      Capability = "can_change_vouchers"
)

// Set is an immutable capability set resolved for a principal at a given
// organizer or event scope.
type Set map[Capability]struct{}

// Has reports membership. The zero Set has nothing.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Union merges two sets; a principal in several teams holds the union of
// their grants.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for c := range s {
		out[c] = struct{}{}
	}
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

// FromTeam converts a team's boolean grant columns into a Set.
func FromTeam(t models.Team) Set {
	s := make(Set)
	grant := func(ok bool, c Capability) {
		if ok {
			s[c] = struct{}{}
		}
	}
	grant(t.CanCreateEvents, CanCreateEvents)
	grant(t.CanChangeEventSettings, CanChangeEventSettings)
	grant(t.CanChangeItems, CanChangeItems)
	grant(t.CanViewOrders, CanViewOrders)
	grant(t.CanChangeOrders, CanChangeOrders)
	grant(t.CanViewVouchers, CanViewVouchers)
	grant(t.CanChangeVouchers, CanChangeVouchers)
	return s
}

// FromTeams resolves the union of several teams' grants.
func FromTeams(teams []models.Team) Set {
	s := make(Set)
	for _, t := range teams {
		s = s.Union(FromTeam(t))
	}
	return s
}
