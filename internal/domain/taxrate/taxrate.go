// Package taxrate es la tabla de tasas de IVA por país.
//
// La tabla es inmutable: se construye una sola vez al iniciar (tasas integradas más un
// archivo opcional) y se inyecta donde se necesite. Un país desconocido resuelve a la
// jurisdicción de respaldo configurada en vez de fallar, para que crear una factura
// nunca quede bloqueado por falta de datos fiscales.
package taxrate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/jhoicas/crm-invoicing/internal/domain/money"
)

// Class clasifica una tasa dentro de su país.
type Class string

const (
	ClassStandard Class = "standard"
	ClassReduced  Class = "reduced"
	ClassZero     Class = "zero"
)

// TaxRate tasa de impuesto en porcentaje (ej: 8.1 = 8,1 %).
type TaxRate struct {
	Label string
	Rate  decimal.Decimal
	Class Class
}

// Jurisdiction agrupa las tasas de un país con su moneda y la etiqueta del impuesto.
type Jurisdiction struct {
	CountryCode string
	Currency    string    // ISO 4217
	VATLabel    string    // MWST, TVA, IVA, USt, VAT...
	Rates       []TaxRate // orden: tasa descendente
}

// StandardRate devuelve la tasa normal o 0 si el país no tiene.
func (j Jurisdiction) StandardRate() decimal.Decimal {
	for _, r := range j.Rates {
		if r.Class == ClassStandard {
			return r.Rate
		}
	}
	return decimal.Zero
}

// Table tabla inmutable de jurisdicciones.
type Table struct {
	jurisdictions map[string]Jurisdiction
	fallback      string
}

// NewTable valida y construye la tabla. fallback debe existir entre las jurisdicciones.
func NewTable(jurisdictions []Jurisdiction, fallback string) (*Table, error) {
	byCode := make(map[string]Jurisdiction, len(jurisdictions))
	for _, j := range jurisdictions {
		code := normalize(j.CountryCode)
		if len(code) != 2 {
			return nil, fmt.Errorf("taxrate: código de país inválido %q", j.CountryCode)
		}
		if _, err := currency.ParseISO(j.Currency); err != nil {
			return nil, fmt.Errorf("taxrate: moneda inválida %q para %s: %w", j.Currency, code, err)
		}
		standards := 0
		rates := make([]TaxRate, len(j.Rates))
		copy(rates, j.Rates)
		for _, r := range rates {
			if r.Rate.IsNegative() || r.Rate.GreaterThan(decimal.NewFromInt(100)) {
				return nil, fmt.Errorf("taxrate: tasa fuera de rango %s para %s", r.Rate, code)
			}
			if !money.HasMaxPlaces(r.Rate, money.RatePlaces) {
				return nil, fmt.Errorf("taxrate: la tasa %s de %s admite máximo %d decimales", r.Rate, code, money.RatePlaces)
			}
			if r.Class == ClassStandard {
				standards++
			}
		}
		if standards > 1 {
			return nil, fmt.Errorf("taxrate: %s tiene %d tasas normales, máximo una", code, standards)
		}
		sort.SliceStable(rates, func(a, b int) bool { return rates[a].Rate.GreaterThan(rates[b].Rate) })
		j.CountryCode = code
		j.Currency = strings.ToUpper(j.Currency)
		j.Rates = rates
		byCode[code] = j
	}
	fb := normalize(fallback)
	if _, ok := byCode[fb]; !ok {
		return nil, fmt.Errorf("taxrate: jurisdicción de respaldo %q no definida", fallback)
	}
	return &Table{jurisdictions: byCode, fallback: fb}, nil
}

// Resolve devuelve la jurisdicción del país; usedFallback indica que el país no estaba en la tabla.
func (t *Table) Resolve(countryCode string) (j Jurisdiction, usedFallback bool) {
	if j, ok := t.jurisdictions[normalize(countryCode)]; ok {
		return j, false
	}
	return t.jurisdictions[t.fallback], true
}

// Known indica si el país tiene jurisdicción propia (sin respaldo).
func (t *Table) Known(countryCode string) bool {
	_, ok := t.jurisdictions[normalize(countryCode)]
	return ok
}

// FallbackCountry código de la jurisdicción de respaldo.
func (t *Table) FallbackCountry() string { return t.fallback }

// RatesFor devuelve las tasas del país (copia; la tabla no se puede modificar desde fuera).
func (t *Table) RatesFor(countryCode string) []TaxRate {
	j, _ := t.Resolve(countryCode)
	out := make([]TaxRate, len(j.Rates))
	copy(out, j.Rates)
	return out
}

// DefaultRate tasa normal del país, o 0 si no tiene.
func (t *Table) DefaultRate(countryCode string) decimal.Decimal {
	j, _ := t.Resolve(countryCode)
	return j.StandardRate()
}

// CurrencyFor moneda ISO 4217 del país.
func (t *Table) CurrencyFor(countryCode string) string {
	j, _ := t.Resolve(countryCode)
	return j.Currency
}

// VATLabelFor etiqueta del impuesto para documentos (ej: "MWST", "TVA").
func (t *Table) VATLabelFor(countryCode string) string {
	j, _ := t.Resolve(countryCode)
	return j.VATLabel
}

// LabelForRate etiqueta de la fila del desglose para una tasa: "MWST 8.1%".
// Si la tasa está registrada con etiqueta propia se añade entre paréntesis.
func (t *Table) LabelForRate(countryCode string, rate decimal.Decimal) string {
	j, _ := t.Resolve(countryCode)
	base := fmt.Sprintf("%s %s%%", j.VATLabel, rate.String())
	for _, r := range j.Rates {
		if r.Rate.Equal(rate) && r.Label != "" {
			return base + " (" + r.Label + ")"
		}
	}
	return base
}

// Countries lista los códigos de país conocidos, ordenados.
func (t *Table) Countries() []string {
	out := make([]string, 0, len(t.jurisdictions))
	for code := range t.jurisdictions {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
