package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order status codes as persisted.
const (
	OrderStatusPending  = "n"
	OrderStatusPaid     = "p"
	OrderStatusExpired  = "e"
	OrderStatusCanceled = "c"
	OrderStatusRefunded = "r"
)

// Order fee types.
const (
	FeeTypePayment  = "payment"
	FeeTypeShipping = "shipping"
	FeeTypeService  = "service"
	FeeTypeOther    = "other"
)

// ValidFeeType reports whether t is a known fee type choice.
func ValidFeeType(t string) bool {
	switch t {
	case FeeTypePayment, FeeTypeShipping, FeeTypeService, FeeTypeOther:
		return true
	}
	return false
}

// Order is the aggregate root of a purchase within one event. Its code is
// unique per event.
type Order struct {
	ID              uuid.UUID       `json:"-"`
	EventID         uuid.UUID       `json:"-"`
	Code            string          `json:"code"`
	Status          string          `json:"status"`
	Email           *string         `json:"email"`
	Locale          string          `json:"locale"`
	Secret          string          `json:"secret"`
	Datetime        time.Time       `json:"datetime"`
	Expires         time.Time       `json:"expires"`
	PaymentDate     *time.Time      `json:"payment_date"`
	PaymentProvider string          `json:"payment_provider"`
	PaymentInfo     []byte          `json:"-"`
	Total           decimal.Decimal `json:"total"`
	Comment         string          `json:"comment"`
	LastModified    time.Time       `json:"last_modified"`

	Fees           []OrderFee      `json:"fees"`
	Positions      []OrderPosition `json:"positions"`
	InvoiceAddress *InvoiceAddress `json:"invoice_address"`
	Downloads      []string        `json:"downloads"`
}

// OrderFee is a non-item order line item, e.g. a payment surcharge.
type OrderFee struct {
	ID           uuid.UUID       `json:"-"`
	OrderID      uuid.UUID       `json:"-"`
	FeeType      string          `json:"fee_type"`
	Value        decimal.Decimal `json:"value"`
	Description  string          `json:"description"`
	InternalType string          `json:"internal_type"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	TaxValue     decimal.Decimal `json:"tax_value"`
	TaxRuleID    *uuid.UUID      `json:"tax_rule"`
}

// OrderPosition is one purchased unit within an order. AddonTo, when set,
// references the positionid of an earlier position in the same order.
type OrderPosition struct {
	ID                 uuid.UUID       `json:"id"`
	OrderID            uuid.UUID       `json:"-"`
	EventID            uuid.UUID       `json:"-"`
	OrderCode          string          `json:"order"`
	PositionID         int             `json:"positionid"`
	ItemID             uuid.UUID       `json:"item"`
	VariationID        *uuid.UUID      `json:"variation"`
	SubEventID         *uuid.UUID      `json:"subevent"`
	Price              decimal.Decimal `json:"price"`
	AttendeeName       *string         `json:"attendee_name"`
	AttendeeEmail      *string         `json:"attendee_email"`
	Secret             string          `json:"secret"`
	AddonTo            *int            `json:"addon_to"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	TaxValue           decimal.Decimal `json:"tax_value"`
	TaxRuleID          *uuid.UUID      `json:"tax_rule"`
	PseudonymizationID string          `json:"pseudonymization_id"`

	Answers   []Answer `json:"answers"`
	Downloads []string `json:"downloads"`
}

// Answer is a stored response to an attendee question, normalized to a
// canonical string form.
type Answer struct {
	ID         uuid.UUID   `json:"-"`
	PositionID uuid.UUID   `json:"-"`
	QuestionID uuid.UUID   `json:"question"`
	Answer     string      `json:"answer"`
	OptionIDs  []uuid.UUID `json:"options"`
}

// InvoiceAddress is the optional billing address of an order.
type InvoiceAddress struct {
	OrderID           uuid.UUID `json:"-"`
	IsBusiness        bool      `json:"is_business"`
	Company           string    `json:"company"`
	Name              string    `json:"name"`
	Street            string    `json:"street"`
	Zipcode           string    `json:"zipcode"`
	City              string    `json:"city"`
	Country           string    `json:"country"`
	InternalReference string    `json:"internal_reference"`
	VatID             string    `json:"vat_id"`
	VatIDValidated    bool      `json:"vat_id_validated"`
	LastModified      time.Time `json:"last_modified"`
}
