package money_test

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/crm-invoicing/internal/domain/money"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		qty      string
		price    string
		expected string
	}{
		{"entero", "2", "49.95", "99.90"},
		{"cantidad con 3 decimales", "1.125", "10.00", "11.25"},
		{"half-up en el centavo", "0.5", "0.05", "0.03"},
		{"precio cero", "3", "0", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := money.ComputeLineTotal(d(tt.qty), d(tt.price))
			assert.True(t, got.Equal(d(tt.expected)), "got %s, want %s", got, tt.expected)
		})
	}
}

func TestRound_HalfUp(t *testing.T) {
	assert.Equal(t, "0.13", money.Round(d("0.125")).StringFixed(2), "half-up, no banker's rounding")
	assert.Equal(t, "0.12", money.Round(d("0.1249")).StringFixed(2))
	assert.Equal(t, "2.54", money.Round(d("2.541")).StringFixed(2))
}

// Escenario CH: dos tramos (8.1% y 2.6%).
// 8.1% de 99.90 = 8.0919 → 8.09 (half-up sobre el tramo); 2.6% de 120.00 = 3.12.
func TestComputeTotals_EscenarioSuiza(t *testing.T) {
	lines := []money.Line{
		{Quantity: d("2"), UnitPrice: d("49.95"), TaxRate: d("8.1")},
		{Quantity: d("1"), UnitPrice: d("120.00"), TaxRate: d("2.6")},
	}
	totals := money.ComputeTotals(lines)

	assert.Equal(t, "219.90", totals.Subtotal.StringFixed(2))
	require.Len(t, totals.Breakdown, 2)
	assert.Equal(t, "8.1", totals.Breakdown[0].Rate.String())
	assert.Equal(t, "99.90", totals.Breakdown[0].Base.StringFixed(2))
	assert.Equal(t, "8.09", totals.Breakdown[0].Tax.StringFixed(2))
	assert.Equal(t, "2.6", totals.Breakdown[1].Rate.String())
	assert.Equal(t, "120.00", totals.Breakdown[1].Base.StringFixed(2))
	assert.Equal(t, "3.12", totals.Breakdown[1].Tax.StringFixed(2))
	assert.Equal(t, "11.21", totals.TaxTotal.StringFixed(2))
	assert.Equal(t, "231.11", totals.GrandTotal.StringFixed(2))
}

// El impuesto se redondea por tramo: 100 líneas de 0.33 al 7.7% dan 2.54, no 3.00.
func TestComputeTotals_SinDerivaPorLinea(t *testing.T) {
	lines := make([]money.Line, 100)
	for i := range lines {
		lines[i] = money.Line{Quantity: d("1"), UnitPrice: d("0.33"), TaxRate: d("7.7")}
	}
	totals := money.ComputeTotals(lines)

	require.Len(t, totals.Breakdown, 1)
	assert.Equal(t, "33.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "2.54", totals.TaxTotal.StringFixed(2))
}

func TestComputeTaxBreakdown_TasaCeroConservaFila(t *testing.T) {
	lines := []money.Line{
		{Quantity: d("1"), UnitPrice: d("100"), TaxRate: d("19")},
		{Quantity: d("2"), UnitPrice: d("50"), TaxRate: d("0")},
	}
	breakdown := money.ComputeTaxBreakdown(lines)

	require.Len(t, breakdown, 2)
	assert.True(t, breakdown[1].Rate.IsZero())
	assert.Equal(t, "100.00", breakdown[1].Base.StringFixed(2))
	assert.True(t, breakdown[1].Tax.IsZero())
}

func TestComputeTaxBreakdown_TasasEquivalentesSeAgrupan(t *testing.T) {
	lines := []money.Line{
		{Quantity: d("1"), UnitPrice: d("10"), TaxRate: d("8.1")},
		{Quantity: d("1"), UnitPrice: d("10"), TaxRate: d("8.10")},
	}
	assert.Len(t, money.ComputeTaxBreakdown(lines), 1)
}

func TestComputeTotals_SinLineas(t *testing.T) {
	totals := money.ComputeTotals(nil)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.GrandTotal.IsZero())
	assert.Empty(t, totals.Breakdown)
}

// Propiedades sobre líneas generadas: subtotal exacto, total = subtotal + impuesto,
// bases de tramos suman el subtotal y el cálculo es idempotente.
func TestComputeTotals_Propiedades(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rates := []string{"0", "2.6", "3.8", "5.5", "7", "8.1", "10", "19", "20", "22"}

	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(25)
		lines := make([]money.Line, n)
		for i := range lines {
			lines[i] = money.Line{
				Quantity:  decimal.New(int64(1+rng.Intn(100_000)), -3),
				UnitPrice: decimal.New(int64(rng.Intn(1_000_000)), -2),
				TaxRate:   d(rates[rng.Intn(len(rates))]),
			}
		}

		totals := money.ComputeTotals(lines)

		expectedSubtotal := decimal.Zero
		for _, l := range lines {
			expectedSubtotal = expectedSubtotal.Add(money.ComputeLineTotal(l.Quantity, l.UnitPrice))
		}
		require.True(t, totals.Subtotal.Equal(expectedSubtotal), "iter %d: subtotal", iter)
		require.True(t, totals.GrandTotal.Equal(totals.Subtotal.Add(totals.TaxTotal)), "iter %d: grand total", iter)

		sumBase, sumTax := decimal.Zero, decimal.Zero
		for _, b := range totals.Breakdown {
			sumBase = sumBase.Add(b.Base)
			sumTax = sumTax.Add(b.Tax)
			require.True(t, money.HasMaxPlaces(b.Tax, money.CurrencyPlaces), "iter %d: impuesto con más de 2 decimales", iter)
		}
		require.True(t, sumBase.Equal(totals.Subtotal), "iter %d: bases", iter)
		require.True(t, sumTax.Equal(totals.TaxTotal), "iter %d: impuestos", iter)

		again := money.ComputeTotals(lines)
		require.Equal(t, totals.GrandTotal.String(), again.GrandTotal.String(), "iter %d: idempotencia", iter)
		require.Equal(t, totals.TaxTotal.String(), again.TaxTotal.String(), "iter %d: idempotencia", iter)
	}
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(23111), money.ToCents(d("231.11")))
	assert.Equal(t, int64(1000), money.ToCents(d("10")))
	assert.Equal(t, "231.11", money.FromCents(23111).StringFixed(2))
}
