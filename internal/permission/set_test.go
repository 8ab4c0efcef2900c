package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticketline/backend/internal/models"
)

func TestFromTeam(t *testing.T) {
	team := models.Team{
		CanCreateEvents: true,
		CanViewOrders:   true,
	}
	s := FromTeam(team)
	assert.True(t, s.Has(CanCreateEvents))
	assert.True(t, s.Has(CanViewOrders))
	assert.False(t, s.Has(CanChangeOrders))
	assert.False(t, s.Has(CanChangeEventSettings))
}

func TestFromTeamsUnion(t *testing.T) {
	teams := []models.Team{
		{CanViewOrders: true},
		{CanChangeOrders: true},
		{},
	}
	s := FromTeams(teams)
	assert.True(t, s.Has(CanViewOrders))
	assert.True(t, s.Has(CanChangeOrders))
	assert.False(t, s.Has(CanCreateEvents))
}

func TestZeroSetHasNothing(t *testing.T) {
	var s Set
	assert.False(t, s.Has(CanViewOrders))
}
