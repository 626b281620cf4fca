package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	mimage "github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/linestyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/qrbill"
	"github.com/jhoicas/crm-invoicing/internal/domain/taxrate"
)

var swissLabels = labels{
	Title:        "RECHNUNG",
	Draft:        "ENTWURF",
	DraftNumber:  "Entwurf (ohne Nummer)",
	IssueDate:    "Datum",
	DueDate:      "Zahlbar bis",
	Creditor:     "RECHNUNGSSTELLER",
	Debtor:       "RECHNUNGSEMPFÄNGER",
	VATNumber:    "UID",
	Pos:          "Pos.",
	Description:  "Beschreibung",
	Quantity:     "Menge",
	UnitPrice:    "Preis",
	Rate:         "MWST",
	Total:        "Total",
	Breakdown:    "MWST-Zusammenstellung",
	Base:         "Basis",
	Tax:          "Steuer",
	Subtotal:     "Zwischensumme",
	TaxTotal:     "Steuer",
	GrandTotal:   "Total",
	Notes:        "Bemerkungen",
	thousandsSep: "'",
	decimalSep:   ".",
}

// SwissQRBillRenderer factura con la sección de pago QR-factura (Swiss Payment Standards 0200).
// Exige IBAN CH/LI válido y dirección completa del acreedor.
type SwissQRBillRenderer struct {
	rates *taxrate.Table
}

// NewSwissQRBillRenderer construye el renderer.
func NewSwissQRBillRenderer(rates *taxrate.Table) *SwissQRBillRenderer {
	return &SwissQRBillRenderer{rates: rates}
}

// Render genera el PDF: páginas de factura y la sección de pago en página propia.
func (r *SwissQRBillRenderer) Render(
	_ context.Context,
	inv *entity.Invoice,
	org *entity.Organization,
	contact *entity.Contact,
) ([]byte, error) {
	if inv == nil || org == nil {
		return nil, fmt.Errorf("%w: factura y organización son obligatorias", domain.ErrInvalidInput)
	}
	bill, err := BuildQRBill(inv, org, contact)
	if err != nil {
		return nil, err
	}
	payload, err := bill.Payload()
	if err != nil {
		return nil, fmt.Errorf("pdf: payload QR: %w", err)
	}

	country := inv.CountryCode
	l := layout{
		labels:   swissLabels,
		vatLabel: r.rates.VATLabelFor(country),
		rateLabel: func(rate decimal.Decimal) string {
			return r.rates.LabelForRate(country, rate)
		},
	}

	m := newDocument(inv, org, "Rechnung "+nonEmpty(inv.Number, swissLabels.DraftNumber))
	m.AddRows(invoiceRows(inv, org, contact, l)...)
	m.AddPages(paymentPartPage(bill, payload))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// BuildQRBill arma los datos de la sección de pago desde la factura.
// Falla con ErrMissingBankDetails si el IBAN o la dirección del acreedor no sirven.
func BuildQRBill(inv *entity.Invoice, org *entity.Organization, contact *entity.Contact) (qrbill.Bill, error) {
	if err := qrbill.ValidateSwissIBAN(org.IBAN); err != nil {
		return qrbill.Bill{}, fmt.Errorf("%w: %v", domain.ErrMissingBankDetails, err)
	}
	creditor := qrbill.Address{
		Name:           org.Name,
		Street:         org.Street,
		BuildingNumber: org.BuildingNumber,
		PostalCode:     org.PostalCode,
		Town:           org.City,
		CountryCode:    org.CountryCode,
	}
	if err := creditor.Validate(); err != nil {
		return qrbill.Bill{}, fmt.Errorf("%w: %v", domain.ErrMissingBankDetails, err)
	}
	if inv.Currency != "CHF" && inv.Currency != "EUR" {
		return qrbill.Bill{}, fmt.Errorf("%w: la QR-factura solo admite CHF o EUR, la factura está en %s",
			domain.ErrInvalidInput, inv.Currency)
	}

	var seq int64
	if inv.SequentialNumber != nil {
		seq = *inv.SequentialNumber
	}
	refType, ref, err := qrbill.ReferenceFor(org.IBAN, seq)
	if err != nil {
		return qrbill.Bill{}, fmt.Errorf("pdf: referencia de pago: %w", err)
	}

	bill := qrbill.Bill{
		Account:       org.IBAN,
		Creditor:      creditor,
		Currency:      inv.Currency,
		ReferenceType: refType,
		Reference:     ref,
	}
	if total := inv.GrandTotal(); total.IsPositive() {
		bill.Amount = &total
	}
	if contact != nil {
		bill.Debtor = &qrbill.Address{
			Name:           contact.Name,
			Street:         contact.Street,
			BuildingNumber: contact.BuildingNumber,
			PostalCode:     contact.PostalCode,
			Town:           contact.City,
			CountryCode:    contact.CountryCode,
		}
	}
	if isFinalized(inv) {
		bill.Message = "Rechnung " + inv.Number
		// Swico S1: /10/ número de factura, /11/ fecha de emisión AAMMDD
		bill.BillingInfo = fmt.Sprintf("//S1/10/%s/11/%s", inv.Number, inv.IssueDate.Format("060102"))
	}
	return bill, nil
}

// ── Sección de pago ───────────────────────────────────────────────────────────

// paymentPartPage recibo (izq) y sección de pago (der) al pie de una página propia.
func paymentPartPage(bill qrbill.Bill, payload string) core.Page {
	heading := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 6, Top: top})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 8, Top: top})
	}

	account := accountBlock(bill)
	amount := ""
	if bill.Amount != nil {
		amount = formatSwissAmount(*bill.Amount)
	}
	debtor := "—"
	if bill.Debtor != nil {
		debtor = addressBlock(*bill.Debtor)
	}

	receipt := []core.Component{
		text.New("Empfangsschein", props.Text{Style: fontstyle.Bold, Size: 11}),
		heading("Konto / Zahlbar an", 8),
		value(account, 11),
	}
	payment := []core.Component{
		heading("Konto / Zahlbar an", 0),
		value(account, 3),
	}
	if bill.ReferenceType != qrbill.ReferenceNone {
		ref := qrbill.FormatReference(bill.ReferenceType, bill.Reference)
		receipt = append(receipt, heading("Referenz", 30), value(ref, 33))
		payment = append(payment, heading("Referenz", 24), value(ref, 27))
	}
	receipt = append(receipt, heading("Zahlbar durch", 38), value(debtor, 41))
	if bill.Message != "" || bill.BillingInfo != "" {
		payment = append(payment,
			heading("Zusätzliche Informationen", 33),
			value(strings.TrimSpace(bill.Message+"\n"+bill.BillingInfo), 36))
	}
	payment = append(payment, heading("Zahlbar durch", 46), value(debtor, 49))

	return page.New().Add(
		row.New(165),
		line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.2, Style: linestyle.Dashed}),
		row.New(70).Add(
			col.New(4).Add(receipt...),
			col.New(3).Add(
				text.New("Zahlteil", props.Text{Style: fontstyle.Bold, Size: 11}),
				code.NewQr(payload, props.Rect{Center: true, Percent: 75, Top: 8}),
				mimage.NewFromBytes(swissCrossPNG(), extension.Png, props.Rect{Center: true, Percent: 12, Top: 8}),
			),
			col.New(5).Add(payment...),
		),
		row.New(16).Add(
			col.New(4).Add(
				heading("Währung", 0), value(bill.Currency, 3),
				heading("Betrag", 8), value(nonEmpty(amount, "________"), 11),
			),
			col.New(3).Add(
				heading("Währung", 0), value(bill.Currency, 3),
				heading("Betrag", 8), value(nonEmpty(amount, "________"), 11),
			),
			col.New(5).Add(
				text.New("Annahmestelle", props.Text{Style: fontstyle.Bold, Size: 6, Top: 11}),
			),
		),
	)
}

func accountBlock(bill qrbill.Bill) string {
	return qrbill.FormatIBAN(bill.Account) + "\n" + addressBlock(bill.Creditor)
}

func addressBlock(a qrbill.Address) string {
	street := strings.TrimSpace(a.Street + " " + a.BuildingNumber)
	town := strings.TrimSpace(a.PostalCode + " " + a.Town)
	parts := []string{a.Name}
	if street != "" {
		parts = append(parts, street)
	}
	parts = append(parts, town)
	return strings.Join(parts, "\n")
}

// formatSwissAmount la sección de pago separa miles con espacio: "1 234.50".
func formatSwissAmount(d decimal.Decimal) string {
	return formatAmount(d, labels{thousandsSep: " ", decimalSep: "."})
}

// swissCrossPNG cruz suiza de 7×7 mm sobre el centro del QR: cuadrado negro con
// borde blanco y cruz blanca.
var swissCrossPNG = sync.OnceValue(func() []byte {
	const size = 70
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black := color.RGBA{A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := white
			inSquare := x >= 5 && x < size-5 && y >= 5 && y < size-5
			vertical := x >= 29 && x < 41 && y >= 17 && y < 53
			horizontal := y >= 29 && y < 41 && x >= 17 && x < 53
			if inSquare && !vertical && !horizontal {
				c = black
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
})
