package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnown(t *testing.T) {
	assert.True(t, Known("ticketline.plugins.banktransfer"))
	assert.False(t, Known("ticketline.plugins.doesnotexist"))
	// hidden plugins are not exposed
	assert.False(t, Known("ticketline.plugins.autocheckin"))
}

func TestVisibleFiltersAndSorts(t *testing.T) {
	got := Visible([]string{
		"ticketline.plugins.ticketoutputpdf",
		"ticketline.plugins.doesnotexist",
		"ticketline.plugins.banktransfer",
	})
	assert.Equal(t, []string{
		"ticketline.plugins.banktransfer",
		"ticketline.plugins.ticketoutputpdf",
	}, got)
}

func TestTicketOutputs(t *testing.T) {
	assert.Empty(t, TicketOutputs([]string{"ticketline.plugins.banktransfer"}))
	assert.Equal(t, []string{"pdf"}, TicketOutputs([]string{"ticketline.plugins.ticketoutputpdf"}))
}
