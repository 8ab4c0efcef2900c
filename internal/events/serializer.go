package events

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ticketline/backend/internal/models"
	"github.com/ticketline/backend/internal/plugins"
	"github.com/ticketline/backend/pkg/response"
)

// Validation messages for the event resource.
const (
	msgSlugTaken       = "This slug has already been used for a different event."
	msgSlugInvalid     = "The event slug contains invalid characters."
	msgSlugImmutable   = "The event slug cannot be changed."
	msgDatesInverted   = "The event cannot end before it starts."
	msgPresaleInverted = "The event's presale cannot end before it starts."
	msgCreatedLive     = "Events cannot be created as 'live'. Quotas and payment must be added to the event before sales can go live."
	msgLiveNoQuota     = "You need to configure at least one quota to sell anything."
	msgLiveNoPayment   = "You have configured at least one paid product but have not enabled any payment methods."
)

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]+$`)

// EventRequest is the body for event create and update. Pointer fields
// distinguish "absent" from "zero" so PATCH semantics work.
type EventRequest struct {
	Name          models.LocalizedString `json:"name"`
	Slug          *string                `json:"slug"`
	Live          *bool                  `json:"live"`
	Currency      *string                `json:"currency"`
	DateFrom      *time.Time             `json:"date_from"`
	DateTo        *time.Time             `json:"date_to"`
	DateAdmission *time.Time             `json:"date_admission"`
	PresaleStart  *time.Time             `json:"presale_start"`
	PresaleEnd    *time.Time             `json:"presale_end"`
	IsPublic      *bool                  `json:"is_public"`
	Location      *string                `json:"location"`
	HasSubevents  *bool                  `json:"has_subevents"`
	Plugins       *[]string              `json:"plugins"`
	MetaData      models.LocalizedString `json:"meta_data"`
}

// LiveReadiness carries the persisted facts the live checks need.
type LiveReadiness struct {
	QuotaCount     int
	PaidItemCount  int // active items with a non-zero price
	PaymentEnabled bool
}

// validateDates rejects inverted date and presale ranges. Checks run on the
// merged view of current and requested values.
func validateDates(dateFrom, dateTo, presaleStart, presaleEnd *time.Time) response.FieldErrors {
	errs := response.FieldErrors{}
	if dateFrom != nil && dateTo != nil && dateTo.Before(*dateFrom) {
		errs["non_field_errors"] = []string{msgDatesInverted}
	}
	if presaleStart != nil && presaleEnd != nil && presaleEnd.Before(*presaleStart) {
		errs["non_field_errors"] = []string{msgPresaleInverted}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validateSlug checks the slug character set.
func validateSlug(slug string) response.FieldErrors {
	if slug == "" || !slugPattern.MatchString(slug) {
		return response.FieldErrors{"slug": []string{msgSlugInvalid}}
	}
	return nil
}

// validateLive enforces that an event only goes live with at least one
// quota and, if anything costs money, an enabled payment method.
func validateLive(r LiveReadiness) response.FieldErrors {
	if r.QuotaCount == 0 {
		return response.FieldErrors{"live": []string{msgLiveNoQuota}}
	}
	if r.PaidItemCount > 0 && !r.PaymentEnabled {
		return response.FieldErrors{"live": []string{msgLiveNoPayment}}
	}
	return nil
}

// validatePlugins checks every requested module against the registry.
func validatePlugins(modules []string) response.FieldErrors {
	for _, m := range modules {
		if !plugins.Known(m) {
			return response.FieldErrors{"plugins": []string{fmt.Sprintf("Unknown plugin: '%s'.", m)}}
		}
	}
	return nil
}
