package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrForbidden    = errors.New("acceso denegado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrDuplicate    = errors.New("recurso duplicado")

	// Reglas de facturación: terminales para la operación que las dispara.
	ErrInvalidState       = errors.New("operación no permitida en el estado actual de la factura")
	ErrEmptyInvoice       = errors.New("la factura no tiene líneas")
	ErrMissingBankDetails = errors.New("faltan datos bancarios del acreedor")

	// Fallos transitorios: el caller (o el proveedor de pagos) reintenta.
	ErrSequenceAllocation    = errors.New("no se pudo asignar el consecutivo de factura")
	ErrPaymentReconciliation = errors.New("no se pudo conciliar la confirmación de pago")
)

// StateError explica qué precondición de estado falló: operación, estado actual y estados permitidos.
// errors.Is(err, ErrInvalidState) es verdadero para cualquier StateError.
type StateError struct {
	Operation string
	Current   string
	Required  []string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s requiere estado %s, estado actual %s",
		ErrInvalidState.Error(), e.Operation, strings.Join(e.Required, " o "), e.Current)
}

// Is permite errors.Is(err, ErrInvalidState).
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// NewStateError construye el error de transición inválida.
func NewStateError(operation, current string, required ...string) *StateError {
	return &StateError{Operation: operation, Current: current, Required: required}
}

// IsRetryable indica si el error es transitorio (el caller puede reintentar sin riesgo).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSequenceAllocation) || errors.Is(err, ErrPaymentReconciliation)
}
