package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/application/dto"
	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/infrastructure/payments"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

// ConfirmationParser verifica y decodifica la notificación del proveedor de pagos.
type ConfirmationParser interface {
	Parse(payload []byte, signatureHeader string) (*payments.Confirmation, error)
}

// PaymentConfirmer aplica la confirmación a la factura.
type PaymentConfirmer interface {
	ApplyPaymentConfirmation(ctx context.Context, invoiceID, externalRef string) error
}

var (
	_ ConfirmationParser = (*payments.WebhookVerifier)(nil)
	_ PaymentConfirmer   = (*billing.PaymentReconciler)(nil)
)

// WebhookHandler endpoint público que recibe los webhooks de Stripe.
//
//	200 → procesado, repetido, irrelevante o no aplicable (Stripe no reintenta)
//	400 → firma inválida
//	503 → fallo transitorio (Stripe reintenta la entrega)
type WebhookHandler struct {
	parser    ConfirmationParser
	confirmer PaymentConfirmer
	log       *logger.Logger
}

// NewWebhookHandler construye el handler.
func NewWebhookHandler(parser ConfirmationParser, confirmer PaymentConfirmer, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{parser: parser, confirmer: confirmer, log: log}
}

// Stripe POST /api/webhooks/stripe
func (h *WebhookHandler) Stripe(c *fiber.Ctx) error {
	conf, err := h.parser.Parse(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		h.log.Warn().Err(err).Msg("webhook de stripe rechazado")
		if errors.Is(err, payments.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_SIGNATURE", Message: "firma inválida"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_EVENT", Message: err.Error()})
	}
	if conf == nil {
		return c.JSON(fiber.Map{"received": true})
	}

	err = h.confirmer.ApplyPaymentConfirmation(c.Context(), conf.InvoiceID, conf.ExternalRef)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"received": true, "invoice_id": conf.InvoiceID})
	case domain.IsRetryable(err):
		return writeError(c, err)
	case errors.Is(err, domain.ErrInvalidState):
		// Pago sobre una factura anulada o en borrador: se registra y no se reintenta.
		h.log.Error().Err(err).Str("invoice_id", conf.InvoiceID).Str("event_id", conf.EventID).
			Msg("pago recibido para factura que no admite cobro")
		return c.JSON(fiber.Map{"received": true, "ignored": true})
	case errors.Is(err, domain.ErrInvalidInput):
		// invoice_id ausente o malformado en la metadata: reintentar no lo corrige.
		h.log.Error().Err(err).Str("invoice_id", conf.InvoiceID).Str("event_id", conf.EventID).
			Msg("confirmación de pago con referencia de factura inválida")
		return c.JSON(fiber.Map{"received": true, "ignored": true})
	default:
		return writeError(c, err)
	}
}
