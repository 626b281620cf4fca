package entity

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/money"
)

// LineItem representa una línea de la factura. Pertenece exclusivamente a una Invoice.
type LineItem struct {
	ID          string
	InvoiceID   string
	Description string
	Quantity    decimal.Decimal // > 0, máximo 3 decimales
	UnitPrice   decimal.Decimal // monto en moneda, máximo 2 decimales
	TaxRate     decimal.Decimal // porcentaje (8.1 = 8,1 %)
	SortOrder   int
}

// LineTotal = round(cantidad × precio unitario, 2).
func (l LineItem) LineTotal() decimal.Decimal {
	return money.ComputeLineTotal(l.Quantity, l.UnitPrice)
}

// Validate revisa las reglas de la línea antes de agregarla.
func (l LineItem) Validate() error {
	if strings.TrimSpace(l.Description) == "" {
		return fmt.Errorf("%w: descripción requerida", domain.ErrInvalidInput)
	}
	if !l.Quantity.IsPositive() {
		return fmt.Errorf("%w: la cantidad debe ser mayor que cero", domain.ErrInvalidInput)
	}
	if !money.HasMaxPlaces(l.Quantity, money.QuantityPlaces) {
		return fmt.Errorf("%w: la cantidad admite máximo %d decimales", domain.ErrInvalidInput, money.QuantityPlaces)
	}
	if l.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: el precio unitario no puede ser negativo", domain.ErrInvalidInput)
	}
	if !money.HasMaxPlaces(l.UnitPrice, money.CurrencyPlaces) {
		return fmt.Errorf("%w: el precio unitario admite máximo %d decimales", domain.ErrInvalidInput, money.CurrencyPlaces)
	}
	if l.TaxRate.IsNegative() || l.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: tasa de impuesto fuera de rango", domain.ErrInvalidInput)
	}
	if !money.HasMaxPlaces(l.TaxRate, money.RatePlaces) {
		return fmt.Errorf("%w: la tasa admite máximo %d decimales", domain.ErrInvalidInput, money.RatePlaces)
	}
	return nil
}

func (l LineItem) toMoneyLine() money.Line {
	return money.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice, TaxRate: l.TaxRate}
}
