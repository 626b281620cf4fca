// Package payments adapta Stripe Checkout como proveedor de enlaces de pago
// y verifica las notificaciones (webhooks) que confirman el cobro.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/money"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

// MetadataInvoiceID clave de metadata con la que el webhook ubica la factura.
const MetadataInvoiceID = "invoice_id"

var _ billing.PaymentLinkProvider = (*StripeProvider)(nil)

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configura el proveedor.
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Backends   *stripe.Backends
	Logger     *logger.Logger

	sessions sessionAPI
}

// StripeProvider crea sesiones de Stripe Checkout por el total de la factura.
type StripeProvider struct {
	sessions   sessionAPI
	successURL string
	cancelURL  string
	log        *logger.Logger
}

// NewStripeProvider construye el proveedor con el cliente oficial de stripe-go.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" && cfg.sessions == nil {
		return nil, errors.New("stripe: secret key requerida")
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return nil, errors.New("stripe: success y cancel URL son requeridas")
	}
	sessions := cfg.sessions
	if sessions == nil {
		sessions = client.New(key, cfg.Backends).CheckoutSessions
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &StripeProvider{
		sessions:   sessions,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		log:        log,
	}, nil
}

// CreatePaymentLink implementa billing.PaymentLinkProvider.
// El monto es el total de la factura en centavos; la clave de idempotencia evita sesiones
// duplicadas si el cliente reintenta la misma solicitud.
func (p *StripeProvider) CreatePaymentLink(ctx context.Context, inv *entity.Invoice) (billing.PaymentLink, error) {
	if inv == nil {
		return billing.PaymentLink{}, fmt.Errorf("%w: factura requerida", domain.ErrInvalidInput)
	}
	cents := money.ToCents(inv.GrandTotal())
	if cents <= 0 {
		return billing.PaymentLink{}, fmt.Errorf("%w: el total a cobrar debe ser mayor que cero", domain.ErrInvalidInput)
	}

	metadata := map[string]string{
		MetadataInvoiceID: inv.ID,
		"tenant_id":       inv.TenantID,
		"invoice_number":  inv.Number,
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(inv.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(inv.Currency)),
				UnitAmount: stripe.Int64(cents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Invoice " + inv.Number),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: copyMetadata(metadata),
		},
		Metadata: metadata,
	}
	params.Context = ctx
	params.SetIdempotencyKey("invoice-" + inv.ID + "-" + strconv.FormatInt(cents, 10))

	session, err := p.sessions.New(params)
	if err != nil {
		return billing.PaymentLink{}, fmt.Errorf("stripe: crear checkout session: %w", err)
	}
	p.log.Debug().Str("invoice_id", inv.ID).Str("session_id", session.ID).Int64("amount", cents).
		Msg("stripe checkout session creada")
	return billing.PaymentLink{Reference: session.ID, URL: session.URL}, nil
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
