package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketline/backend/internal/models"
)

// ErrNotFound signals a missing invoice within the event scope.
var ErrNotFound = errors.New("invoice not found")

// ListFilter narrows the invoice list query. Refers matches by the number of
// the referenced invoice.
type ListFilter struct {
	OrderCode      string
	Number         string
	Locale         string
	IsCancellation *bool
	Refers         string
}

// Repository loads invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an invoice repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for handlers that open transactions.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

const invoiceColumns = `i.id, i.event_id, i.order_id, o.code, i.invoice_no, i.number,
	i.is_cancellation, i.refers_id, ref.number, i.date, i.locale, i.invoice_to, i.invoice_from, i.created_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(&inv.ID, &inv.EventID, &inv.OrderID, &inv.OrderCode, &inv.InvoiceNo, &inv.Number,
		&inv.IsCancellation, &inv.RefersID, &inv.Refers, &inv.Date, &inv.Locale,
		&inv.InvoiceTo, &inv.InvoiceFrom, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// List returns the event's invoices matching the filter in numbering order.
func (r *Repository) List(ctx context.Context, event *models.Event, f ListFilter) ([]models.Invoice, error) {
	q := `SELECT ` + invoiceColumns + `
		FROM invoices i
		JOIN orders o ON o.id = i.order_id
		LEFT JOIN invoices ref ON ref.id = i.refers_id
		WHERE i.event_id = $1`
	args := []interface{}{event.ID}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		q += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.OrderCode != "" {
		add("o.code = $%d", f.OrderCode)
	}
	if f.Number != "" {
		add("i.number = $%d", f.Number)
	}
	if f.Locale != "" {
		add("i.locale = $%d", f.Locale)
	}
	if f.IsCancellation != nil {
		add("i.is_cancellation = $%d", *f.IsCancellation)
	}
	if f.Refers != "" {
		add("ref.number = $%d", f.Refers)
	}
	q += " ORDER BY i.invoice_no"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range invoices {
		if err := r.loadLines(ctx, &invoices[i]); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

// GetByNumber returns one invoice with its lines, or ErrNotFound.
func (r *Repository) GetByNumber(ctx context.Context, event *models.Event, number string) (*models.Invoice, error) {
	q := `SELECT ` + invoiceColumns + `
		FROM invoices i
		JOIN orders o ON o.id = i.order_id
		LEFT JOIN invoices ref ON ref.id = i.refers_id
		WHERE i.event_id = $1 AND i.number = $2`
	inv, err := scanInvoice(r.pool.QueryRow(ctx, q, event.ID, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *Repository) loadLines(ctx context.Context, inv *models.Invoice) error {
	inv.Lines = []models.InvoiceLine{}
	rows, err := r.pool.Query(ctx,
		`SELECT id, invoice_id, description, gross_value, tax_rate, tax_value, position
		 FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l models.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.GrossValue,
			&l.TaxRate, &l.TaxValue, &l.Position); err != nil {
			return err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return rows.Err()
}
