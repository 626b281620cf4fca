package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, tenant_id, contact_id, sequential_number, number, issue_date, due_date,
	currency, country_code, status, payment_link_ref, external_payment_ref, notes,
	finalized_at, paid_at, cancelled_at, created_at, updated_at`

// Create persiste la cabecera y las líneas.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `, subtotal, tax_total, grand_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err := r.q.Exec(ctx, query,
		invoice.ID, invoice.TenantID, invoice.ContactID, invoice.SequentialNumber, nullIfEmpty(invoice.Number),
		dateOnly(invoice.IssueDate), dateOnly(invoice.DueDate),
		invoice.Currency, invoice.CountryCode, string(invoice.Status),
		nullIfEmpty(invoice.PaymentLinkRef), nullIfEmpty(invoice.ExternalPaymentRef), invoice.Notes,
		invoice.FinalizedAt, invoice.PaidAt, invoice.CancelledAt, invoice.CreatedAt, invoice.UpdatedAt,
		invoice.Subtotal(), invoice.TaxTotal(), invoice.GrandTotal(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: factura %s", domain.ErrDuplicate, invoice.ID)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	for _, item := range invoice.LineItems() {
		if err := r.AddLineItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// Update actualiza la cabecera. Las líneas se persisten con AddLineItem / DeleteLineItem.
func (r *InvoiceRepo) Update(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET sequential_number    = $2,
		    number               = $3,
		    status               = $4,
		    payment_link_ref     = $5,
		    external_payment_ref = $6,
		    notes                = $7,
		    finalized_at         = $8,
		    paid_at              = $9,
		    cancelled_at         = $10,
		    subtotal             = $11,
		    tax_total            = $12,
		    grand_total          = $13,
		    updated_at           = $14
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		invoice.ID,
		invoice.SequentialNumber,
		nullIfEmpty(invoice.Number),
		string(invoice.Status),
		nullIfEmpty(invoice.PaymentLinkRef),
		nullIfEmpty(invoice.ExternalPaymentRef),
		invoice.Notes,
		invoice.FinalizedAt,
		invoice.PaidAt,
		invoice.CancelledAt,
		invoice.Subtotal(),
		invoice.TaxTotal(),
		invoice.GrandTotal(),
		invoice.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: consecutivo %v ya asignado", domain.ErrDuplicate, invoice.SequentialNumber)
		}
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoice.ID)
	}
	return nil
}

// AddLineItem persiste una línea.
func (r *InvoiceRepo) AddLineItem(ctx context.Context, item entity.LineItem) error {
	query := `
		INSERT INTO invoice_line_items (id, invoice_id, description, quantity, unit_price, tax_rate, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		item.ID, item.InvoiceID, item.Description, item.Quantity, item.UnitPrice, item.TaxRate, item.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("insert invoice line item: %w", err)
	}
	return nil
}

// DeleteLineItem elimina una línea de la factura.
func (r *InvoiceRepo) DeleteLineItem(ctx context.Context, invoiceID, itemID string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM invoice_line_items WHERE invoice_id = $1 AND id = $2`, invoiceID, itemID)
	if err != nil {
		return fmt.Errorf("delete invoice line item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: línea %s", domain.ErrNotFound, itemID)
	}
	return nil
}

// GetByID obtiene la factura completa (cabecera + líneas).
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate igual que GetByID con SELECT ... FOR UPDATE.
func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.get(ctx, id, true)
}

func (r *InvoiceRepo) get(ctx context.Context, id string, lock bool) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	items, err := r.lineItems(ctx, []string{inv.ID})
	if err != nil {
		return nil, err
	}
	inv.RestoreLineItems(items[inv.ID])
	return inv, nil
}

// List aplica filtros y paginación. overdue se proyecta en SQL igual que CurrentStatus:
// sent con due_date anterior al día de AsOf.
func (r *InvoiceRepo) List(ctx context.Context, f repository.InvoiceFilter) ([]*entity.Invoice, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{f.TenantID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	asOf := f.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	switch f.Status {
	case "":
	case entity.StatusOverdue:
		where = append(where, "status = 'sent'", "due_date < "+arg(dateOnly(asOf))+"::date")
	case entity.StatusSent:
		where = append(where, "status = 'sent'", "due_date >= "+arg(dateOnly(asOf))+"::date")
	default:
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.ContactID != "" {
		where = append(where, "contact_id = "+arg(f.ContactID))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	limit, offset := f.Limit, f.Offset
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE ` + cond +
		` ORDER BY issue_date DESC, created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var list []*entity.Invoice
	ids := make([]string, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return list, total, nil
	}

	items, err := r.lineItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, inv := range list {
		inv.RestoreLineItems(items[inv.ID])
	}
	return list, total, nil
}

// lineItems carga las líneas de varias facturas agrupadas por invoice_id.
func (r *InvoiceRepo) lineItems(ctx context.Context, invoiceIDs []string) (map[string][]entity.LineItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, unit_price, tax_rate, sort_order
		FROM invoice_line_items WHERE invoice_id = ANY($1::uuid[]) ORDER BY invoice_id, sort_order`
	rows, err := r.q.Query(ctx, query, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("list invoice line items: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]entity.LineItem, len(invoiceIDs))
	for rows.Next() {
		var l entity.LineItem
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.SortOrder); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		out[l.InvoiceID] = append(out[l.InvoiceID], l)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var number, paymentLink, externalRef, notes *string
	var status string
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.ContactID, &inv.SequentialNumber, &number,
		&inv.IssueDate, &inv.DueDate, &inv.Currency, &inv.CountryCode, &status,
		&paymentLink, &externalRef, &notes,
		&inv.FinalizedAt, &inv.PaidAt, &inv.CancelledAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = entity.InvoiceStatus(status)
	inv.Number = derefStr(number)
	inv.PaymentLinkRef = derefStr(paymentLink)
	inv.ExternalPaymentRef = derefStr(externalRef)
	inv.Notes = derefStr(notes)
	return &inv, nil
}
