package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is a generated snapshot of an order's financials at a point in
// time. Cancellation invoices reference the invoice they void.
type Invoice struct {
	ID             uuid.UUID  `json:"-"`
	EventID        uuid.UUID  `json:"-"`
	OrderID        uuid.UUID  `json:"-"`
	OrderCode      string     `json:"order"`
	InvoiceNo      int        `json:"-"`
	Number         string     `json:"number"`
	IsCancellation bool       `json:"is_cancellation"`
	RefersID       *uuid.UUID `json:"-"`
	Refers         *string    `json:"refers"` // number of the referenced invoice
	Date           time.Time  `json:"date"`
	Locale         string     `json:"locale"`
	InvoiceTo      string     `json:"invoice_to"`
	InvoiceFrom    string     `json:"invoice_from"`
	CreatedAt      time.Time  `json:"-"`

	Lines []InvoiceLine `json:"lines"`
}

// InvoiceLine is one snapshot line of an invoice.
type InvoiceLine struct {
	ID          uuid.UUID       `json:"-"`
	InvoiceID   uuid.UUID       `json:"-"`
	Description string          `json:"description"`
	GrossValue  decimal.Decimal `json:"gross_value"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxValue    decimal.Decimal `json:"tax_value"`
	Position    int             `json:"position"`
}
