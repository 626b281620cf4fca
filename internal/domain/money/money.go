// Package money es el motor de cálculo de montos de factura.
//
// Toda la aritmética usa decimal de punto fijo (shopspring/decimal), nunca float.
// Regla de redondeo: half-up a 2 decimales, aplicada una vez por línea (cantidad × precio)
// y una vez por tramo de impuesto (base agregada × tasa). El impuesto nunca se redondea por línea.
package money

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// CurrencyPlaces decimales de un monto en moneda.
	CurrencyPlaces int32 = 2
	// QuantityPlaces decimales máximos de una cantidad.
	QuantityPlaces int32 = 3
	// RatePlaces decimales máximos de una tasa de impuesto en porcentaje (ej: 8.1, 5.5).
	RatePlaces int32 = 2
)

var hundred = decimal.NewFromInt(100)

// Line es la entrada mínima del motor: cantidad, precio unitario y tasa (%).
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
}

// TaxBracket agrupa las líneas con la misma tasa: base sumada e impuesto redondeado una sola vez.
type TaxBracket struct {
	Rate decimal.Decimal
	Base decimal.Decimal
	Tax  decimal.Decimal
}

// Totals resultado derivado de un conjunto de líneas.
// Invariantes: GrandTotal == Subtotal + TaxTotal y TaxTotal == Σ Breakdown[i].Tax.
type Totals struct {
	Subtotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal
	Breakdown  []TaxBracket
}

// Round redondea half-up a 2 decimales.
// decimal.Round es "half away from zero": coincide con half-up para montos no negativos.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// RoundQuantity redondea una cantidad a 3 decimales.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// HasMaxPlaces indica si d no tiene más de places decimales significativos.
func HasMaxPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// ComputeLineTotal = round(cantidad × precio unitario, 2).
func ComputeLineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return Round(quantity.Mul(unitPrice))
}

// ComputeTax = round(base × tasa / 100, 2).
func ComputeTax(base, ratePercent decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(ratePercent).Div(hundred))
}

// ComputeTaxBreakdown agrupa por tasa idéntica. Cada tramo suma los totales de línea ya
// redondeados y redondea el impuesto del tramo una única vez.
// Orden: tasa descendente (la tasa normal primero, tasa cero al final). Los tramos de tasa 0 se conservan.
func ComputeTaxBreakdown(lines []Line) []TaxBracket {
	byRate := make(map[string]*TaxBracket)
	for _, l := range lines {
		key := l.TaxRate.String()
		b, ok := byRate[key]
		if !ok {
			b = &TaxBracket{Rate: l.TaxRate, Base: decimal.Zero}
			byRate[key] = b
		}
		b.Base = b.Base.Add(ComputeLineTotal(l.Quantity, l.UnitPrice))
	}

	out := make([]TaxBracket, 0, len(byRate))
	for _, b := range byRate {
		b.Tax = ComputeTax(b.Base, b.Rate)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Rate.GreaterThan(out[j].Rate)
	})
	return out
}

// ComputeTotals calcula subtotal, desglose, impuesto total y total a pagar.
// Determinista: las mismas líneas producen siempre el mismo resultado.
func ComputeTotals(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(ComputeLineTotal(l.Quantity, l.UnitPrice))
	}
	breakdown := ComputeTaxBreakdown(lines)
	taxTotal := decimal.Zero
	for _, b := range breakdown {
		taxTotal = taxTotal.Add(b.Tax)
	}
	return Totals{
		Subtotal:   subtotal,
		TaxTotal:   taxTotal,
		GrandTotal: subtotal.Add(taxTotal),
		Breakdown:  breakdown,
	}
}

// ToCents convierte un monto (ya redondeado a 2 decimales) a centavos enteros.
// Es el formato que cruza hacia proveedores de pago.
func ToCents(amount decimal.Decimal) int64 {
	return Round(amount).Shift(CurrencyPlaces).IntPart()
}

// FromCents es la inversa de ToCents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -CurrencyPlaces)
}
