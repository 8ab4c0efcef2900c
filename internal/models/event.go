package models

import (
	"time"

	"github.com/google/uuid"
)

// LocalizedString maps locale codes to display strings, e.g. {"en": "Dummy"}.
type LocalizedString map[string]string

// EventSettings is the per-event configuration blob held in a JSONB column.
type EventSettings struct {
	// PaymentProviders lists the enabled payment provider identifiers.
	PaymentProviders []string `json:"payment_providers"`
	// InvoiceGenerate is the invoice-generation policy: "off", "paid" or "create".
	InvoiceGenerate string `json:"invoice_generate"`
	// InvoiceFrom is the seller address snapshot printed on invoices.
	InvoiceFrom string `json:"invoice_from"`
}

// PaymentProviderEnabled reports whether the given provider identifier is
// enabled for the event. The synthetic "free" provider is always available.
func (s EventSettings) PaymentProviderEnabled(provider string) bool {
	if provider == "free" {
		return true
	}
	for _, p := range s.PaymentProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// Event is a ticketed event owned by one organizer.
type Event struct {
	ID            uuid.UUID       `json:"-"`
	OrganizerID   uuid.UUID       `json:"-"`
	Slug          string          `json:"slug"`
	Name          LocalizedString `json:"name"`
	Live          bool            `json:"live"`
	Currency      string          `json:"currency"`
	DateFrom      *time.Time      `json:"date_from"`
	DateTo        *time.Time      `json:"date_to"`
	DateAdmission *time.Time      `json:"date_admission"`
	PresaleStart  *time.Time      `json:"presale_start"`
	PresaleEnd    *time.Time      `json:"presale_end"`
	IsPublic      bool            `json:"is_public"`
	Location      *string         `json:"location"`
	HasSubevents  bool            `json:"has_subevents"`
	Plugins       []string        `json:"plugins"`
	MetaData      LocalizedString `json:"meta_data"`
	Settings      EventSettings   `json:"-"`
	CreatedAt     time.Time       `json:"-"`
	LastModified  time.Time       `json:"last_modified"`
}

// SubEvent is a date-specific occurrence under an event with has_subevents=true.
type SubEvent struct {
	ID           uuid.UUID       `json:"id"`
	EventID      uuid.UUID       `json:"-"`
	Name         LocalizedString `json:"name"`
	Active       bool            `json:"active"`
	DateFrom     *time.Time      `json:"date_from"`
	DateTo       *time.Time      `json:"date_to"`
	PresaleStart *time.Time      `json:"presale_start"`
	PresaleEnd   *time.Time      `json:"presale_end"`
	Location     *string         `json:"location"`
}
