package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// ErrInvalidSignature la firma del webhook no corresponde al secreto configurado.
var ErrInvalidSignature = errors.New("stripe: firma de webhook inválida")

// Confirmation pago confirmado por el proveedor.
type Confirmation struct {
	EventID     string
	InvoiceID   string
	ExternalRef string // payment intent, o la sesión si Stripe no lo informa
}

// WebhookVerifier valida la firma de Stripe y extrae la confirmación de pago.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier construye el verificador con el secreto del endpoint (whsec_...).
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Parse verifica la firma y devuelve la confirmación. Devuelve (nil, nil) para eventos que
// no confirman un pago (otros tipos o sesiones aún sin cobrar).
func (v *WebhookVerifier) Parse(payload []byte, signatureHeader string) (*Confirmation, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return nil, nil
	}
	if event.Data == nil {
		return nil, errors.New("stripe: evento sin datos")
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("stripe: decodificar checkout session: %w", err)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, nil
	}

	invoiceID := strings.TrimSpace(session.Metadata[MetadataInvoiceID])
	if invoiceID == "" {
		invoiceID = strings.TrimSpace(session.ClientReferenceID)
	}
	if invoiceID == "" {
		return nil, fmt.Errorf("stripe: sesión %s sin %s", session.ID, MetadataInvoiceID)
	}

	ref := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ref = session.PaymentIntent.ID
	}
	return &Confirmation{EventID: event.ID, InvoiceID: invoiceID, ExternalRef: ref}, nil
}
