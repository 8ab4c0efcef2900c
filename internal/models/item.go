package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxRule describes how tax is computed for items and fees of one event.
// Prices are treated as tax-inclusive unless PriceIncludesTax is false.
type TaxRule struct {
	ID               uuid.UUID       `json:"id"`
	EventID          uuid.UUID       `json:"-"`
	Name             string          `json:"name"`
	Rate             decimal.Decimal `json:"rate"`
	PriceIncludesTax bool            `json:"price_includes_tax"`
}

// Item is a sellable product of an event.
type Item struct {
	ID           uuid.UUID       `json:"id"`
	EventID      uuid.UUID       `json:"-"`
	Name         LocalizedString `json:"name"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	Active       bool            `json:"active"`
	Admission    bool            `json:"admission"`
	TaxRuleID    *uuid.UUID      `json:"tax_rule"`
	Position     int             `json:"position"`
}

// ItemVariation is a variant of an item (e.g. a size).
type ItemVariation struct {
	ID           uuid.UUID        `json:"id"`
	ItemID       uuid.UUID        `json:"-"`
	Value        string           `json:"value"`
	DefaultPrice *decimal.Decimal `json:"default_price"`
	Position     int              `json:"position"`
}

// Quota is a capacity pool bounding how many units of its items can be
// reserved or sold.
type Quota struct {
	ID         uuid.UUID   `json:"id"`
	EventID    uuid.UUID   `json:"-"`
	SubEventID *uuid.UUID  `json:"subevent"`
	Name       string      `json:"name"`
	Size       *int        `json:"size"` // nil means unlimited
	ItemIDs    []uuid.UUID `json:"items"`
}

// Question types. Single-character tags as persisted.
const (
	QuestionTypeNumber         = "N"
	QuestionTypeString         = "S"
	QuestionTypeText           = "T"
	QuestionTypeBoolean        = "B"
	QuestionTypeChoice         = "C"
	QuestionTypeChoiceMultiple = "M"
	QuestionTypeFile           = "F"
	QuestionTypeDate           = "D"
	QuestionTypeTime           = "H"
	QuestionTypeDatetime       = "W"
)

// Question is an attendee question attached to one or more items.
type Question struct {
	ID         uuid.UUID        `json:"id"`
	EventID    uuid.UUID        `json:"-"`
	Question   LocalizedString  `json:"question"`
	Type       string           `json:"type"`
	Required   bool             `json:"required"`
	Identifier string           `json:"identifier"`
	Position   int              `json:"position"`
	ItemIDs    []uuid.UUID      `json:"items"`
	Options    []QuestionOption `json:"options"`
}

// IsChoiceType reports whether answers to this question reference options.
func (q Question) IsChoiceType() bool {
	return q.Type == QuestionTypeChoice || q.Type == QuestionTypeChoiceMultiple
}

// QuestionOption is one selectable answer of a choice question.
type QuestionOption struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"-"`
	Answer     string    `json:"answer"`
	Identifier string    `json:"identifier"`
}
