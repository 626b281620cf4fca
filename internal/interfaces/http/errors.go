package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/application/dto"
	"github.com/jhoicas/crm-invoicing/internal/domain"
)

// writeError traduce errores de dominio a status + dto.ErrorResponse.
// Las violaciones de reglas devuelven el mensaje que explica qué falló.
func writeError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrForbidden):
		status, code = fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrDuplicate):
		status, code = fiber.StatusConflict, "DUPLICATE"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = fiber.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domain.ErrEmptyInvoice):
		status, code = fiber.StatusUnprocessableEntity, "EMPTY_INVOICE"
	case errors.Is(err, domain.ErrMissingBankDetails):
		status, code = fiber.StatusUnprocessableEntity, "MISSING_BANK_DETAILS"
	case errors.Is(err, billing.ErrPaymentsDisabled):
		status, code = fiber.StatusServiceUnavailable, "PAYMENTS_DISABLED"
	case domain.IsRetryable(err):
		status, code = fiber.StatusServiceUnavailable, "RETRYABLE"
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
