package invoices

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticketline/backend/internal/models"
)

func TestInvoiceNumber(t *testing.T) {
	assert.Equal(t, "DUMMY-00001", InvoiceNumber("dummy", 1))
	assert.Equal(t, "30C3-00042", InvoiceNumber("30c3", 42))
	assert.Equal(t, "DUMMY-12345", InvoiceNumber("dummy", 12345))
}

func TestAddressBlock(t *testing.T) {
	assert.Equal(t, "", addressBlock(nil))

	ia := &models.InvoiceAddress{
		Company: "Sample company",
		City:    "Sample City",
		Country: "NZ",
	}
	assert.Equal(t, "Sample company\n\n\nSample City\nNZ", addressBlock(ia))

	ia = &models.InvoiceAddress{
		Company: "ACME Ltd",
		Name:    "Fo",
		Street:  "Bar",
		Zipcode: "12345",
		City:    "Sample City",
		Country: "NZ",
	}
	assert.Equal(t, "ACME Ltd\nFo\nBar\n12345 Sample City\nNZ", addressBlock(ia))
}

func TestFeeDescription(t *testing.T) {
	assert.Equal(t, "Payment fee", feeDescription("payment", ""))
	assert.Equal(t, "Service fee", feeDescription("service", ""))
	assert.Equal(t, "Custom text", feeDescription("payment", "Custom text"))
	assert.Equal(t, "Fee", feeDescription("", ""))
}

func TestLocalized(t *testing.T) {
	name := models.LocalizedString{"en": "Budget Ticket", "de": "Sparticket"}
	assert.Equal(t, "Budget Ticket", localized(name, "en"))
	assert.Equal(t, "Sparticket", localized(name, "de"))
	assert.Equal(t, "Budget Ticket", localized(name, "fr")) // falls back to English
	assert.Equal(t, "", localized(models.LocalizedString{}, "en"))
}
