package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/taxrate"
)

// Format variante de documento.
type Format string

const (
	FormatSwissQRBill Format = "swiss_qr_bill"
	FormatEUInvoice   Format = "eu_invoice"
)

// FormatFor elige la variante según el país del acreedor: CH y LI usan QR-factura.
func FormatFor(creditorCountry string) Format {
	switch strings.ToUpper(strings.TrimSpace(creditorCountry)) {
	case "CH", "LI":
		return FormatSwissQRBill
	}
	return FormatEUInvoice
}

// Renderer contrato común de las variantes.
type Renderer interface {
	Render(ctx context.Context, inv *entity.Invoice, org *entity.Organization, contact *entity.Contact) ([]byte, error)
}

var (
	_ Renderer = (*SwissQRBillRenderer)(nil)
	_ Renderer = (*EUInvoiceRenderer)(nil)
	_ Renderer = (*Dispatcher)(nil)
)

// Dispatcher delega en la variante que corresponde al acreedor.
type Dispatcher struct {
	renderers map[Format]Renderer
}

// NewDispatcher construye el dispatcher con ambas variantes sobre la misma tabla de tasas.
func NewDispatcher(rates *taxrate.Table) *Dispatcher {
	return &Dispatcher{renderers: map[Format]Renderer{
		FormatSwissQRBill: NewSwissQRBillRenderer(rates),
		FormatEUInvoice:   NewEUInvoiceRenderer(rates),
	}}
}

// Render implementa Renderer.
func (d *Dispatcher) Render(ctx context.Context, inv *entity.Invoice, org *entity.Organization, contact *entity.Contact) ([]byte, error) {
	if org == nil {
		return nil, fmt.Errorf("%w: organización requerida", domain.ErrInvalidInput)
	}
	r, ok := d.renderers[FormatFor(org.CountryCode)]
	if !ok {
		return nil, fmt.Errorf("pdf: sin renderer para %s", org.CountryCode)
	}
	return r.Render(ctx, inv, org, contact)
}
