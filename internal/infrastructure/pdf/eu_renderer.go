package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/qrbill"
	"github.com/jhoicas/crm-invoicing/internal/domain/taxrate"
)

var euLabels = labels{
	Title:        "INVOICE",
	Draft:        "DRAFT",
	DraftNumber:  "Draft (no number)",
	IssueDate:    "Date",
	DueDate:      "Due",
	Creditor:     "FROM",
	Debtor:       "BILL TO",
	VATNumber:    "VAT No.",
	Pos:          "#",
	Description:  "Description",
	Quantity:     "Qty",
	UnitPrice:    "Unit price",
	Rate:         "VAT",
	Total:        "Amount",
	Breakdown:    "VAT breakdown",
	Base:         "Net",
	Tax:          "VAT",
	Subtotal:     "Subtotal",
	TaxTotal:     "VAT",
	GrandTotal:   "Total",
	Notes:        "Notes",
	thousandsSep: ".",
	decimalSep:   ",",
}

// EUInvoiceRenderer factura estilo SEPA: datos bancarios como texto y, si la factura
// está en EUR con IBAN válido, un código EPC (GiroCode) para la transferencia.
// No exige datos bancarios: los faltantes se imprimen como "—".
type EUInvoiceRenderer struct {
	rates *taxrate.Table
}

// NewEUInvoiceRenderer construye el renderer.
func NewEUInvoiceRenderer(rates *taxrate.Table) *EUInvoiceRenderer {
	return &EUInvoiceRenderer{rates: rates}
}

// Render genera el PDF.
func (r *EUInvoiceRenderer) Render(
	_ context.Context,
	inv *entity.Invoice,
	org *entity.Organization,
	contact *entity.Contact,
) ([]byte, error) {
	if inv == nil || org == nil {
		return nil, fmt.Errorf("%w: factura y organización son obligatorias", domain.ErrInvalidInput)
	}
	// el desglose usa las etiquetas del país de la factura (IVA, TVA, USt...)
	country := inv.CountryCode
	l := layout{
		labels:   euLabels,
		vatLabel: r.rates.VATLabelFor(country),
		rateLabel: func(rate decimal.Decimal) string {
			return r.rates.LabelForRate(country, rate)
		},
	}

	m := newDocument(inv, org, "Invoice "+nonEmpty(inv.Number, euLabels.DraftNumber))
	m.AddRows(invoiceRows(inv, org, contact, l)...)
	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(bankDetailsRows(inv, org)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// bankDetailsRows datos de pago y, si aplica, el código EPC.
func bankDetailsRows(inv *entity.Invoice, org *entity.Organization) []core.Row {
	iban := "—"
	if strings.TrimSpace(org.IBAN) != "" {
		iban = qrbill.FormatIBAN(org.IBAN)
	}
	reference := nonEmpty(inv.Number, "—")
	details := []core.Component{
		text.New("PAYMENT DETAILS", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		text.New("Account holder: "+org.Name, props.Text{Size: 8, Top: 7}),
		text.New("IBAN: "+iban, props.Text{Size: 8, Top: 11}),
		text.New("BIC: "+nonEmpty(org.BIC, "—"), props.Text{Size: 8, Top: 15}),
		text.New("Reference: "+reference, props.Text{Size: 8, Top: 19}),
		text.New(fmt.Sprintf("Please pay %s %s by %s.",
			inv.Currency, formatAmount(inv.GrandTotal(), euLabels), inv.DueDate.Format(dateLayout)),
			props.Text{Size: 8, Top: 25, Color: colorGray}),
	}

	payload, ok := EPCPayload(inv, org)
	if !ok {
		return []core.Row{row.New(32).Add(col.New(12).Add(details...))}
	}
	return []core.Row{row.New(40).Add(
		col.New(8).Add(details...),
		col.New(4).Add(code.NewQr(payload, props.Rect{Center: true, Percent: 90})),
	)}
}

// EPCPayload contenido del QR EPC069-12 (SEPA Credit Transfer, versión 002).
// Solo para EUR, IBAN válido y factura emitida con total positivo.
func EPCPayload(inv *entity.Invoice, org *entity.Organization) (string, bool) {
	if inv.Currency != "EUR" || !isFinalized(inv) || !inv.GrandTotal().IsPositive() {
		return "", false
	}
	if qrbill.ValidateIBAN(org.IBAN) != nil || strings.TrimSpace(org.Name) == "" {
		return "", false
	}
	name := org.Name
	if len([]rune(name)) > 70 {
		name = string([]rune(name)[:70])
	}
	fields := []string{
		"BCD",
		"002",
		"1", // UTF-8
		"SCT",
		strings.ToUpper(strings.TrimSpace(org.BIC)),
		name,
		qrbill.NormalizeIBAN(org.IBAN),
		"EUR" + inv.GrandTotal().StringFixed(2),
		"", // purpose
		"", // referencia estructurada
		"Invoice " + inv.Number,
	}
	return strings.Join(fields, "\n"), true
}
