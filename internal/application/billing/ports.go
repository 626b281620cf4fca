package billing

import (
	"context"
	"time"

	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/numbering"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
)

// BillingTxRunner ejecuta fn dentro de una transacción con el repositorio de facturas y el
// consecutivo atados a ella. Si fn devuelve error se hace rollback: un finalize fallido no
// consume número.
type BillingTxRunner interface {
	RunBilling(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		sequencer numbering.Sequencer,
	) error) error
}

// InvoiceRenderer genera el documento de cobro (PDF) de la factura.
type InvoiceRenderer interface {
	Render(ctx context.Context, inv *entity.Invoice, org *entity.Organization, contact *entity.Contact) ([]byte, error)
}

// PaymentLink enlace de pago creado en el proveedor.
type PaymentLink struct {
	Reference string // ID de la sesión en el proveedor
	URL       string
}

// PaymentLinkProvider crea enlaces de pago por el total de la factura.
type PaymentLinkProvider interface {
	CreatePaymentLink(ctx context.Context, inv *entity.Invoice) (PaymentLink, error)
}

// Options parámetros de los casos de uso de facturación.
type Options struct {
	OperationTimeout time.Duration
	Formatter        numbering.Formatter
	// Now reloj inyectable; nil = time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = 5 * time.Second
	}
	if o.Formatter == (numbering.Formatter{}) {
		o.Formatter = numbering.DefaultFormatter()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
