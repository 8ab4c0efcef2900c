// Package invoices generates and serves invoice snapshots. An invoice
// freezes an order's financial lines at generation time; later changes to
// the order produce a cancellation plus a new invoice rather than editing
// the old one.
package invoices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ticketline/backend/internal/models"
)

// Generator builds invoice records.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates an invoice generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// addressBlock renders the recipient address the way it is printed on the
// invoice. Empty lines are kept so the layout stays stable.
func addressBlock(ia *models.InvoiceAddress) string {
	if ia == nil {
		return ""
	}
	lines := []string{
		ia.Company,
		ia.Name,
		ia.Street,
		strings.TrimSpace(ia.Zipcode + " " + ia.City),
		ia.Country,
	}
	return strings.Join(lines, "\n")
}

// orderLines snapshots the order's positions and fees as invoice lines.
func orderLines(ctx context.Context, tx pgx.Tx, order *models.Order) ([]models.InvoiceLine, error) {
	var lines []models.InvoiceLine

	rows, err := tx.Query(ctx,
		`SELECT i.name, op.attendee_name, op.price, op.tax_rate, op.tax_value
		 FROM order_positions op JOIN items i ON i.id = op.item_id
		 WHERE op.order_id = $1 ORDER BY op.positionid`, order.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name models.LocalizedString
		var attendee *string
		var line models.InvoiceLine
		if err := rows.Scan(&name, &attendee, &line.GrossValue, &line.TaxRate, &line.TaxValue); err != nil {
			rows.Close()
			return nil, err
		}
		line.Description = localized(name, order.Locale)
		if attendee != nil && *attendee != "" {
			line.Description += "\nAttendee: " + *attendee
		}
		lines = append(lines, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx,
		`SELECT fee_type, description, value, tax_rate, tax_value
		 FROM order_fees WHERE order_id = $1 ORDER BY id`, order.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var feeType, description string
		var line models.InvoiceLine
		if err := rows.Scan(&feeType, &description, &line.GrossValue, &line.TaxRate, &line.TaxValue); err != nil {
			rows.Close()
			return nil, err
		}
		line.Description = feeDescription(feeType, description)
		lines = append(lines, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lines {
		lines[i].Position = i
	}
	return lines, nil
}

func localized(name models.LocalizedString, locale string) string {
	if v, ok := name[locale]; ok && v != "" {
		return v
	}
	if v, ok := name["en"]; ok && v != "" {
		return v
	}
	for _, v := range name {
		return v
	}
	return ""
}

func feeDescription(feeType, description string) string {
	if description != "" {
		return description
	}
	if feeType == "" {
		return "Fee"
	}
	return strings.ToUpper(feeType[:1]) + feeType[1:] + " fee"
}

func loadAddress(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*models.InvoiceAddress, error) {
	var ia models.InvoiceAddress
	err := tx.QueryRow(ctx,
		`SELECT order_id, is_business, company, name, street, zipcode, city, country,
			internal_reference, vat_id, vat_id_validated, last_modified
		 FROM invoice_addresses WHERE order_id = $1`, orderID).Scan(
		&ia.OrderID, &ia.IsBusiness, &ia.Company, &ia.Name, &ia.Street, &ia.Zipcode,
		&ia.City, &ia.Country, &ia.InternalReference, &ia.VatID, &ia.VatIDValidated, &ia.LastModified)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ia, nil
}

// InvoiceNumber formats the human-readable invoice number.
func InvoiceNumber(eventSlug string, no int) string {
	return fmt.Sprintf("%s-%05d", strings.ToUpper(eventSlug), no)
}

func nextInvoiceNo(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (int, error) {
	var no int
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(invoice_no), 0) + 1 FROM invoices WHERE event_id = $1`, eventID).Scan(&no)
	return no, err
}

func insertInvoice(ctx context.Context, tx pgx.Tx, inv *models.Invoice, lines []models.InvoiceLine) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO invoices (event_id, order_id, invoice_no, number, is_cancellation, refers_id,
			date, locale, invoice_to, invoice_from)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		inv.EventID, inv.OrderID, inv.InvoiceNo, inv.Number, inv.IsCancellation, inv.RefersID,
		inv.Date, inv.Locale, inv.InvoiceTo, inv.InvoiceFrom,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return err
	}
	for i := range lines {
		lines[i].InvoiceID = inv.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO invoice_lines (invoice_id, description, gross_value, tax_rate, tax_value, position)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			inv.ID, lines[i].Description, lines[i].GrossValue, lines[i].TaxRate, lines[i].TaxValue, lines[i].Position,
		).Scan(&lines[i].ID)
		if err != nil {
			return err
		}
	}
	inv.Lines = lines
	return nil
}

// IssueForOrder generates a new invoice for the order inside the given
// transaction. Satisfies the order service's issuer interface.
func (g *Generator) IssueForOrder(ctx context.Context, tx pgx.Tx, event *models.Event, order *models.Order) error {
	_, err := g.issue(ctx, tx, event, order)
	return err
}

func (g *Generator) issue(ctx context.Context, tx pgx.Tx, event *models.Event, order *models.Order) (*models.Invoice, error) {
	no, err := nextInvoiceNo(ctx, tx, event.ID)
	if err != nil {
		return nil, err
	}

	ia := order.InvoiceAddress
	if ia == nil {
		ia, err = loadAddress(ctx, tx, order.ID)
		if err != nil {
			return nil, err
		}
	}

	inv := &models.Invoice{
		EventID:     event.ID,
		OrderID:     order.ID,
		OrderCode:   order.Code,
		InvoiceNo:   no,
		Number:      InvoiceNumber(event.Slug, no),
		Date:        time.Now(),
		Locale:      order.Locale,
		InvoiceTo:   addressBlock(ia),
		InvoiceFrom: event.Settings.InvoiceFrom,
	}

	lines, err := orderLines(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if err := insertInvoice(ctx, tx, inv, lines); err != nil {
		return nil, err
	}
	g.logger.Info("invoice issued",
		zap.String("event", event.Slug),
		zap.String("order", order.Code),
		zap.String("number", inv.Number),
	)
	return inv, nil
}

// Regenerate rebuilds an existing invoice in place from the order's current
// state. The number and date are kept.
func (g *Generator) Regenerate(ctx context.Context, tx pgx.Tx, event *models.Event, inv *models.Invoice, order *models.Order) error {
	ia, err := loadAddress(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	inv.InvoiceTo = addressBlock(ia)
	inv.InvoiceFrom = event.Settings.InvoiceFrom

	if _, err := tx.Exec(ctx,
		`UPDATE invoices SET invoice_to = $2, invoice_from = $3 WHERE id = $1`,
		inv.ID, inv.InvoiceTo, inv.InvoiceFrom); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, inv.ID); err != nil {
		return err
	}
	lines, err := orderLines(ctx, tx, order)
	if err != nil {
		return err
	}
	for i := range lines {
		lines[i].InvoiceID = inv.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO invoice_lines (invoice_id, description, gross_value, tax_rate, tax_value, position)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			inv.ID, lines[i].Description, lines[i].GrossValue, lines[i].TaxRate, lines[i].TaxValue, lines[i].Position,
		).Scan(&lines[i].ID)
		if err != nil {
			return err
		}
	}
	inv.Lines = lines
	g.logger.Info("invoice regenerated", zap.String("number", inv.Number))
	return nil
}

// Reissue voids an invoice with a cancellation and issues a fresh one from
// the order's current state.
func (g *Generator) Reissue(ctx context.Context, tx pgx.Tx, event *models.Event, inv *models.Invoice, order *models.Order) error {
	if _, err := g.cancel(ctx, tx, event, inv); err != nil {
		return err
	}
	if _, err := g.issue(ctx, tx, event, order); err != nil {
		return err
	}
	return nil
}

// cancel writes a cancellation invoice referencing inv, with negated lines.
func (g *Generator) cancel(ctx context.Context, tx pgx.Tx, event *models.Event, inv *models.Invoice) (*models.Invoice, error) {
	no, err := nextInvoiceNo(ctx, tx, event.ID)
	if err != nil {
		return nil, err
	}
	cancellation := &models.Invoice{
		EventID:        event.ID,
		OrderID:        inv.OrderID,
		OrderCode:      inv.OrderCode,
		InvoiceNo:      no,
		Number:         InvoiceNumber(event.Slug, no),
		IsCancellation: true,
		RefersID:       &inv.ID,
		Date:           time.Now(),
		Locale:         inv.Locale,
		InvoiceTo:      inv.InvoiceTo,
		InvoiceFrom:    inv.InvoiceFrom,
	}

	lines := make([]models.InvoiceLine, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = models.InvoiceLine{
			Description: l.Description,
			GrossValue:  l.GrossValue.Neg(),
			TaxRate:     l.TaxRate,
			TaxValue:    l.TaxValue.Neg(),
			Position:    i,
		}
	}
	if err := insertInvoice(ctx, tx, cancellation, lines); err != nil {
		return nil, err
	}
	g.logger.Info("cancellation invoice issued",
		zap.String("number", cancellation.Number),
		zap.String("refers", inv.Number),
	)
	return cancellation, nil
}
