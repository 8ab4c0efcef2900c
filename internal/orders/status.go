// Package orders implements the order resource: creation, retrieval and the
// lifecycle transitions between pending, paid, expired, canceled and
// refunded.
package orders

import (
	"errors"

	"github.com/ticketline/backend/internal/models"
)

// Transition error messages.
const (
	msgNotPendingOrExpired = "The order is not pending or expired."
	msgNotPaid             = "The order is not paid."
	msgNotPending          = "The order is not pending."
	msgExtendNotPossible   = "The expiry date of a paid, canceled or refunded order cannot be changed."
)

// ErrInvalidTransition wraps a rejected lifecycle change; the message is
// client-facing.
type ErrInvalidTransition struct {
	Message string
}

func (e ErrInvalidTransition) Error() string { return e.Message }

// ErrQuotaExceeded is returned when reviving an order would oversell a quota.
type ErrQuotaExceeded struct {
	QuotaName string
}

func (e ErrQuotaExceeded) Error() string {
	return "There is not enough quota available on quota \"" + e.QuotaName + "\" to perform the operation."
}

var errUnknownStatus = errors.New("unknown order status")

// CanMarkPaid reports whether the order may be marked as paid. Reviving an
// expired order additionally requires a quota check, which the caller runs
// under the event lock.
func CanMarkPaid(status string) error {
	switch status {
	case models.OrderStatusPending, models.OrderStatusExpired:
		return nil
	case models.OrderStatusPaid, models.OrderStatusCanceled, models.OrderStatusRefunded:
		return ErrInvalidTransition{msgNotPendingOrExpired}
	}
	return errUnknownStatus
}

// CanMarkCanceled reports whether the order may be canceled.
func CanMarkCanceled(status string) error {
	switch status {
	case models.OrderStatusPending, models.OrderStatusExpired:
		return nil
	case models.OrderStatusPaid, models.OrderStatusCanceled, models.OrderStatusRefunded:
		return ErrInvalidTransition{msgNotPendingOrExpired}
	}
	return errUnknownStatus
}

// CanMarkRefunded reports whether the order may be refunded. Only paid
// orders qualify; a canceled order never held money.
func CanMarkRefunded(status string) error {
	switch status {
	case models.OrderStatusPaid:
		return nil
	case models.OrderStatusPending, models.OrderStatusExpired, models.OrderStatusCanceled, models.OrderStatusRefunded:
		return ErrInvalidTransition{msgNotPaid}
	}
	return errUnknownStatus
}

// CanMarkPending reports whether the order may move back from paid to
// pending, e.g. after a chargeback.
func CanMarkPending(status string) error {
	switch status {
	case models.OrderStatusPaid:
		return nil
	case models.OrderStatusPending, models.OrderStatusExpired, models.OrderStatusCanceled, models.OrderStatusRefunded:
		return ErrInvalidTransition{msgNotPaid}
	}
	return errUnknownStatus
}

// CanMarkExpired reports whether the order may be expired.
func CanMarkExpired(status string) error {
	switch status {
	case models.OrderStatusPending:
		return nil
	case models.OrderStatusPaid, models.OrderStatusExpired, models.OrderStatusCanceled, models.OrderStatusRefunded:
		return ErrInvalidTransition{msgNotPending}
	}
	return errUnknownStatus
}

// CanExtend reports whether the order's expiry date may be moved. Extending
// an expired order revives it to pending after a quota check.
func CanExtend(status string) error {
	switch status {
	case models.OrderStatusPending, models.OrderStatusExpired:
		return nil
	case models.OrderStatusPaid, models.OrderStatusCanceled, models.OrderStatusRefunded:
		return ErrInvalidTransition{msgExtendNotPossible}
	}
	return errUnknownStatus
}
