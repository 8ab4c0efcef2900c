package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartPosition is a time-limited reservation against a quota prior to order
// finalization. Expired positions no longer consume quota and are reclaimed
// by the sweeper.
type CartPosition struct {
	ID          uuid.UUID       `json:"id"`
	EventID     uuid.UUID       `json:"-"`
	CartID      string          `json:"cart_id"`
	ItemID      uuid.UUID       `json:"item"`
	VariationID *uuid.UUID      `json:"variation"`
	SubEventID  *uuid.UUID      `json:"subevent"`
	Price       decimal.Decimal `json:"price"`
	Datetime    time.Time       `json:"datetime"`
	Expires     time.Time       `json:"expires"`
}

// WaitingListEntry records interest in an item while quota is exhausted.
type WaitingListEntry struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"-"`
	ItemID      uuid.UUID  `json:"item"`
	VariationID *uuid.UUID `json:"variation"`
	SubEventID  *uuid.UUID `json:"subevent"`
	Email       string     `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EmailLog records an outgoing order email.
type EmailLog struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"-"`
	OrderCode string    `json:"order_code"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    string    `json:"status"` // queued, sent, failed
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}
