package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/money"
	"github.com/jhoicas/crm-invoicing/internal/domain/numbering"
)

// InvoiceStatus estados de la factura.
//
//	draft → sent → paid
//	draft → sent → (overdue, solo lectura) → paid
//	draft|sent → cancelled
//
// overdue nunca se persiste: es una proyección de CurrentStatus sobre sent + fecha de vencimiento.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusSent      InvoiceStatus = "sent"
	StatusOverdue   InvoiceStatus = "overdue"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
)

// IsTerminal paid y cancelled no admiten más transiciones.
func (s InvoiceStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// ParseInvoiceStatus valida un estado recibido desde fuera (filtros HTTP, DB).
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch st := InvoiceStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusDraft, StatusSent, StatusOverdue, StatusPaid, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: estado de factura desconocido %q", domain.ErrInvalidInput, s)
}

// Invoice es el agregado de factura: posee sus líneas y recalcula los totales en cada mutación.
// Contact y Organization se referencian por ID, no se poseen.
type Invoice struct {
	ID                 string
	TenantID           string
	SequentialNumber   *int64 // nil hasta finalizar
	Number             string // número visible (PREFIJO-AAAA-00042), vacío en draft
	IssueDate          time.Time
	DueDate            time.Time
	Currency           string
	CountryCode        string
	Status             InvoiceStatus // estado almacenado: nunca overdue
	ContactID          string
	PaymentLinkRef     string
	ExternalPaymentRef string
	Notes              string
	FinalizedAt        *time.Time
	PaidAt             *time.Time
	CancelledAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	lineItems []LineItem
	totals    money.Totals
}

// DraftParams datos para abrir una factura en borrador.
type DraftParams struct {
	ID          string
	TenantID    string
	ContactID   string
	IssueDate   time.Time
	DueDate     time.Time
	Currency    string
	CountryCode string
	Notes       string
	Now         time.Time
}

// NewDraftInvoice crea una factura en draft, sin líneas y sin número.
func NewDraftInvoice(p DraftParams) (*Invoice, error) {
	if p.TenantID == "" || p.ContactID == "" {
		return nil, fmt.Errorf("%w: tenant y contacto son obligatorios", domain.ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: moneda ISO inválida %q", domain.ErrInvalidInput, p.Currency)
	}
	country := strings.ToUpper(strings.TrimSpace(p.CountryCode))
	if len(country) != 2 {
		return nil, fmt.Errorf("%w: código de país inválido %q", domain.ErrInvalidInput, p.CountryCode)
	}
	if p.IssueDate.IsZero() || p.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: fechas de emisión y vencimiento obligatorias", domain.ErrInvalidInput)
	}
	if p.DueDate.Before(p.IssueDate) {
		return nil, fmt.Errorf("%w: el vencimiento no puede ser anterior a la emisión", domain.ErrInvalidInput)
	}
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	inv := &Invoice{
		ID:          id,
		TenantID:    p.TenantID,
		IssueDate:   p.IssueDate,
		DueDate:     p.DueDate,
		Currency:    currency,
		CountryCode: country,
		Status:      StatusDraft,
		ContactID:   p.ContactID,
		Notes:       p.Notes,
		CreatedAt:   p.Now,
		UpdatedAt:   p.Now,
	}
	inv.recompute()
	return inv, nil
}

// RestoreLineItems carga las líneas persistidas en el agregado (lectura desde repositorio).
// No valida estado: solo el repositorio debe usarlo.
func (inv *Invoice) RestoreLineItems(items []LineItem) {
	inv.lineItems = make([]LineItem, len(items))
	copy(inv.lineItems, items)
	inv.sortLines()
	inv.recompute()
}

// LineItems copia de las líneas en orden.
func (inv *Invoice) LineItems() []LineItem {
	out := make([]LineItem, len(inv.lineItems))
	copy(out, inv.lineItems)
	return out
}

// Totals totales derivados, siempre recalculados tras la última mutación.
func (inv *Invoice) Totals() money.Totals {
	return inv.totals
}

// Subtotal, TaxTotal y GrandTotal atajos sobre Totals.
func (inv *Invoice) Subtotal() decimal.Decimal   { return inv.totals.Subtotal }
func (inv *Invoice) TaxTotal() decimal.Decimal   { return inv.totals.TaxTotal }
func (inv *Invoice) GrandTotal() decimal.Decimal { return inv.totals.GrandTotal }

// IsEditable solo un borrador admite cambios en las líneas.
func (inv *Invoice) IsEditable() bool {
	return inv.Status == StatusDraft
}

// AddLineItem agrega una línea a un borrador. Sin ID se genera uno; sin SortOrder va al final.
func (inv *Invoice) AddLineItem(item LineItem, now time.Time) (LineItem, error) {
	if !inv.IsEditable() {
		return LineItem{}, domain.NewStateError("addLineItem", string(inv.Status), string(StatusDraft))
	}
	if err := item.Validate(); err != nil {
		return LineItem{}, err
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	for _, existing := range inv.lineItems {
		if existing.ID == item.ID {
			return LineItem{}, fmt.Errorf("%w: la línea %s ya existe", domain.ErrInvalidInput, item.ID)
		}
	}
	if item.SortOrder <= 0 {
		item.SortOrder = inv.nextSortOrder()
	}
	item.InvoiceID = inv.ID
	item.Description = strings.TrimSpace(item.Description)

	inv.lineItems = append(inv.lineItems, item)
	inv.sortLines()
	inv.recompute()
	inv.UpdatedAt = now
	return item, nil
}

// RemoveLineItem quita una línea de un borrador.
func (inv *Invoice) RemoveLineItem(id string, now time.Time) error {
	if !inv.IsEditable() {
		return domain.NewStateError("removeLineItem", string(inv.Status), string(StatusDraft))
	}
	for i, l := range inv.lineItems {
		if l.ID == id {
			inv.lineItems = append(inv.lineItems[:i], inv.lineItems[i+1:]...)
			inv.recompute()
			inv.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: línea %s", domain.ErrNotFound, id)
}

// Finalize asigna el consecutivo definitivo y pasa a sent. Es el único paso irreversible:
// a partir de aquí las líneas quedan bloqueadas.
// Sin líneas falla con ErrEmptyInvoice sin consumir consecutivo.
func (inv *Invoice) Finalize(ctx context.Context, seq numbering.Sequencer, format numbering.Formatter, now time.Time) error {
	if inv.Status != StatusDraft {
		return domain.NewStateError("finalize", string(inv.Status), string(StatusDraft))
	}
	if len(inv.lineItems) == 0 {
		return domain.ErrEmptyInvoice
	}
	n, err := seq.Next(ctx, inv.TenantID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSequenceAllocation, err)
	}
	inv.SequentialNumber = &n
	inv.Number = format.Format(n, inv.IssueDate)
	inv.Status = StatusSent
	inv.FinalizedAt = &now
	inv.UpdatedAt = now
	return nil
}

// Cancel anula la factura desde draft o sent.
func (inv *Invoice) Cancel(now time.Time) error {
	if inv.Status.IsTerminal() {
		return domain.NewStateError("cancel", string(inv.Status), string(StatusDraft), string(StatusSent))
	}
	inv.Status = StatusCancelled
	inv.CancelledAt = &now
	inv.UpdatedAt = now
	return nil
}

// MarkPaid registra el pago desde sent (u overdue, que se almacena como sent).
// Si ya está pagada es un no-op sin error: los proveedores de pago repiten notificaciones.
// La primera referencia externa registrada se conserva.
func (inv *Invoice) MarkPaid(externalRef string, now time.Time) error {
	if inv.Status == StatusPaid {
		return nil
	}
	if inv.Status != StatusSent {
		return domain.NewStateError("markPaid", string(inv.Status), string(StatusSent), string(StatusOverdue))
	}
	inv.Status = StatusPaid
	inv.ExternalPaymentRef = externalRef
	inv.PaidAt = &now
	inv.UpdatedAt = now
	return nil
}

// SetPaymentLink guarda la referencia del enlace de pago (solo facturas emitidas y sin pagar).
func (inv *Invoice) SetPaymentLink(ref string, now time.Time) error {
	if inv.Status != StatusSent {
		return domain.NewStateError("setPaymentLink", string(inv.Status), string(StatusSent), string(StatusOverdue))
	}
	inv.PaymentLinkRef = ref
	inv.UpdatedAt = now
	return nil
}

// CurrentStatus proyección pura en el instante asOf: una factura sent cuyo día de
// vencimiento ya terminó se lee como overdue. No modifica el estado almacenado.
func (inv *Invoice) CurrentStatus(asOf time.Time) InvoiceStatus {
	if inv.Status == StatusSent && IsPastDue(inv.DueDate, asOf) {
		return StatusOverdue
	}
	return inv.Status
}

// IsPastDue el vencimiento es inclusivo: la factura vence al terminar el día dueDate.
func IsPastDue(dueDate, asOf time.Time) bool {
	y, m, d := dueDate.Date()
	endOfDueDay := time.Date(y, m, d, 0, 0, 0, 0, dueDate.Location()).AddDate(0, 0, 1)
	return !asOf.Before(endOfDueDay)
}

func (inv *Invoice) nextSortOrder() int {
	maxOrder := 0
	for _, l := range inv.lineItems {
		if l.SortOrder > maxOrder {
			maxOrder = l.SortOrder
		}
	}
	return maxOrder + 1
}

func (inv *Invoice) sortLines() {
	sort.SliceStable(inv.lineItems, func(i, j int) bool {
		return inv.lineItems[i].SortOrder < inv.lineItems[j].SortOrder
	})
}

func (inv *Invoice) recompute() {
	lines := make([]money.Line, len(inv.lineItems))
	for i, l := range inv.lineItems {
		lines[i] = l.toMoneyLine()
	}
	inv.totals = money.ComputeTotals(lines)
}
