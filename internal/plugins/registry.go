// Package plugins exposes the set of installable feature modules. The
// registry is static: plugins ship with the binary, events select a subset.
package plugins

import "sort"

// Plugin describes one installable feature module.
type Plugin struct {
	Module  string
	Name    string
	Visible bool // hidden plugins never appear in API payloads
}

var registry = map[string]Plugin{
	"ticketline.plugins.banktransfer": {
		Module:  "ticketline.plugins.banktransfer",
		Name:    "Bank transfer payments",
		Visible: true,
	},
	"ticketline.plugins.stripe": {
		Module:  "ticketline.plugins.stripe",
		Name:    "Stripe payments",
		Visible: true,
	},
	"ticketline.plugins.ticketoutputpdf": {
		Module:  "ticketline.plugins.ticketoutputpdf",
		Name:    "PDF ticket output",
		Visible: true,
	},
	"ticketline.plugins.sendmail": {
		Module:  "ticketline.plugins.sendmail",
		Name:    "Attendee mailing",
		Visible: true,
	},
	"ticketline.plugins.statistics": {
		Module:  "ticketline.plugins.statistics",
		Name:    "Statistics",
		Visible: true,
	},
	"ticketline.plugins.autocheckin": {
		Module:  "ticketline.plugins.autocheckin",
		Name:    "Automatic check-in",
		Visible: false,
	},
}

// Known reports whether the module names a visible, installable plugin.
func Known(module string) bool {
	p, ok := registry[module]
	return ok && p.Visible
}

// Visible filters the given module list down to visible registry members,
// sorted for stable API output.
func Visible(modules []string) []string {
	out := make([]string, 0, len(modules))
	for _, m := range modules {
		if Known(m) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// TicketOutputs returns the enabled ticket-output plugin modules for a
// plugin selection. Only presence is queried; rendering happens elsewhere.
func TicketOutputs(modules []string) []string {
	var out []string
	for _, m := range modules {
		if m == "ticketline.plugins.ticketoutputpdf" && Known(m) {
			out = append(out, "pdf")
		}
	}
	return out
}
