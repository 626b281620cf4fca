// Package pdf genera el documento de cobro de una factura con Maroto v2.
//
// Dos variantes comparten la misma estructura de página:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Acreedor + IVA/UID  │  N° Factura + Fechas          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ACREEDOR: Dirección / Tel / Email                           │
//	│  DEUDOR: Nombre + dirección                                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Pos | Descripción | Cant | P.Unit | IVA | Total      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DESGLOSE IVA: una fila por tasa (incluye tasa 0)            │
//	│  TOTALES: Subtotal / IVA / TOTAL                             │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PIE: QR-factura suiza (página propia) o datos bancarios UE  │
//	└─────────────────────────────────────────────────────────────┘
//
// La fecha de creación del PDF se fija a la fecha de emisión y los catálogos de
// fuentes e imágenes se escriben ordenados: la misma factura produce los mismos
// bytes salvo /ModDate, que gofpdf sella con la hora de generación.
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/money"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary   = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray      = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorLightGray = &props.Color{Red: 190, Green: 190, Blue: 190}
	colorWhite     = &props.Color{Red: 255, Green: 255, Blue: 255}
)

const dateLayout = "02.01.2006"

// labels textos de cada variante.
type labels struct {
	Title        string
	Draft        string
	DraftNumber  string
	IssueDate    string
	DueDate      string
	Creditor     string
	Debtor       string
	VATNumber    string
	Pos          string
	Description  string
	Quantity     string
	UnitPrice    string
	Rate         string
	Total        string
	Breakdown    string
	Base         string
	Tax          string
	Subtotal     string
	TaxTotal     string
	GrandTotal   string
	Notes        string
	thousandsSep string
	decimalSep   string
}

// layout parámetros comunes de ambas variantes.
type layout struct {
	labels   labels
	vatLabel string
	// rateLabel etiqueta de una tasa en el desglose (ej: "MWST 8.1% (Normalsatz)").
	rateLabel func(rate decimal.Decimal) string
}

// gofpdf recorre sus mapas de fuentes e imágenes en orden aleatorio salvo que
// se active el orden de catálogo; maroto no expone la instancia, así que se
// fija el valor por defecto antes de crear cualquier documento.
func init() {
	gofpdf.SetDefaultCatalogSort(true)
}

// newDocument configura A4 con la fecha de creación fija.
func newDocument(inv *entity.Invoice, org *entity.Organization, title string) core.Maroto {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(title, true).
		WithAuthor(org.Name, true).
		WithCreationDate(inv.IssueDate).
		Build()
	return maroto.New(cfg)
}

// invoiceRows arma el cuerpo común de la factura.
func invoiceRows(inv *entity.Invoice, org *entity.Organization, contact *entity.Contact, l layout) []core.Row {
	var rows []core.Row
	if !isFinalized(inv) {
		rows = append(rows, watermarkRow(l.labels.Draft))
	}
	rows = append(rows, headerRow(inv, org, l))
	rows = append(rows, line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	rows = append(rows, creditorRow(org, l))
	rows = append(rows, debtorRow(contact, l))
	rows = append(rows, line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	rows = append(rows, tableHeaderRow(l))
	rows = append(rows, tableDetailRows(inv, l)...)

	rows = append(rows, line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	rows = append(rows, breakdownRows(inv.Totals().Breakdown, l)...)
	rows = append(rows, totalsRow(inv, l))

	if strings.TrimSpace(inv.Notes) != "" {
		rows = append(rows, row.New(12).Add(col.New(12).Add(
			text.New(l.labels.Notes, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2}),
			text.New(inv.Notes, props.Text{Size: 8, Top: 6, Color: colorGray}),
		)))
	}
	return rows
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// watermarkRow marca de agua para borradores.
func watermarkRow(label string) core.Row {
	return row.New(14).Add(col.New(12).Add(
		text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 26, Align: align.Center, Color: colorLightGray, Top: 1,
		}),
	))
}

// headerRow: acreedor + IVA (izq) y N° Factura + fechas (der).
func headerRow(inv *entity.Invoice, org *entity.Organization, l layout) core.Row {
	number := inv.Number
	if !isFinalized(inv) {
		number = l.labels.DraftNumber
	}
	return row.New(22).Add(
		col.New(7).Add(
			text.New(org.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(l.labels.VATNumber+": "+nonEmpty(org.VATNumber, "—"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(l.labels.Title, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(number, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 6,
			}),
			text.New(l.labels.IssueDate+": "+inv.IssueDate.Format(dateLayout), props.Text{
				Size: 8, Align: align.Right, Top: 13, Color: colorGray,
			}),
			text.New(l.labels.DueDate+": "+inv.DueDate.Format(dateLayout), props.Text{
				Size: 8, Align: align.Right, Top: 17, Color: colorGray,
			}),
		),
	)
}

// creditorRow: datos del emisor.
func creditorRow(org *entity.Organization, l layout) core.Row {
	line1, line2 := org.AddressLines()
	return row.New(12).Add(
		col.New(12).Add(
			text.New(l.labels.Creditor, props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("%s, %s   |   Tel: %s   |   Email: %s",
				nonEmpty(line1, "—"),
				nonEmpty(line2, "—"),
				nonEmpty(org.Phone, "—"),
				nonEmpty(org.Email, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

// debtorRow: datos del deudor. Sin contacto se deja el bloque con "—".
func debtorRow(contact *entity.Contact, l layout) core.Row {
	name, line1, line2 := "—", "", ""
	if contact != nil {
		name = contact.Name
		line1, line2 = contact.AddressLines()
	}
	return row.New(18).Add(
		col.New(12).Add(
			text.New(l.labels.Debtor, props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(strings.TrimSpace(line1+"\n"+line2), props.Text{Size: 8, Top: 11, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de líneas.
func tableHeaderRow(l layout) core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h(l.labels.Pos, 1, align.Center),
		h(l.labels.Description, 5, align.Left),
		h(l.labels.Quantity, 1, align.Right),
		h(l.labels.UnitPrice, 2, align.Right),
		h(l.labels.Rate, 1, align.Center),
		h(l.labels.Total, 2, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

// tableDetailRows: una fila por línea, en orden.
func tableDetailRows(inv *entity.Invoice, l layout) []core.Row {
	items := inv.LineItems()
	result := make([]core.Row, 0, len(items))
	for i, item := range items {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				fmt.Sprintf("%d", i+1),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				item.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(1).Add(text.New(
				formatQuantity(item.Quantity, l.labels),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				formatAmount(item.UnitPrice, l.labels),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				item.TaxRate.String()+"%",
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				formatAmount(item.LineTotal(), l.labels),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// breakdownRows: desglose por tasa. Las tasas 0 se muestran igual que las demás.
func breakdownRows(brackets []money.TaxBracket, l layout) []core.Row {
	rows := []core.Row{
		row.New(6).Add(
			col.New(6).Add(text.New(l.labels.Breakdown, props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			})),
			col.New(3).Add(text.New(l.labels.Base, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Top: 1, Right: 1,
			})),
			col.New(3).Add(text.New(l.labels.Tax, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Top: 1, Right: 1,
			})),
		),
	}
	for _, b := range brackets {
		rows = append(rows, row.New(5).Add(
			col.New(6).Add(text.New(l.rateLabel(b.Rate), props.Text{Size: 8, Top: 0.5})),
			col.New(3).Add(text.New(formatAmount(b.Base, l.labels), props.Text{
				Size: 8, Align: align.Right, Top: 0.5, Right: 1,
			})),
			col.New(3).Add(text.New(formatAmount(b.Tax, l.labels), props.Text{
				Size: 8, Align: align.Right, Top: 0.5, Right: 1,
			})),
		))
	}
	return rows
}

// totalsRow: bloque de totales alineado a la derecha.
func totalsRow(inv *entity.Invoice, l layout) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top,
		})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2, Top: 12,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1, Top: 12,
		})
	}

	return row.New(20).Add(
		col.New(5), // espacio izquierdo
		col.New(4).Add(
			label(l.labels.Subtotal+":", 2),
			label(l.labels.TaxTotal+" ("+l.vatLabel+"):", 7),
			grandLabel(l.labels.GrandTotal+" "+inv.Currency+":"),
		),
		col.New(3).Add(
			value(formatAmount(inv.Subtotal(), l.labels), 2),
			value(formatAmount(inv.TaxTotal(), l.labels), 7),
			grandValue(formatAmount(inv.GrandTotal(), l.labels)),
		),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func isFinalized(inv *entity.Invoice) bool {
	return inv.SequentialNumber != nil && inv.Number != ""
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

// formatAmount dos decimales con separador de miles: "1'234.50" (CH) o "1.234,50" (UE).
func formatAmount(d decimal.Decimal, l labels) string {
	s := money.Round(d).StringFixed(money.CurrencyPlaces)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	out := groupThousands(intPart, l.thousandsSep) + l.decimalSep + frac
	if neg {
		return "-" + out
	}
	return out
}

// formatQuantity cantidad sin ceros sobrantes (1.5, 2, 0.125).
func formatQuantity(d decimal.Decimal, l labels) string {
	return strings.Replace(d.String(), ".", l.decimalSep, 1)
}

// groupThousands inserta sep cada tres dígitos. Ej: "1000000" → "1'000'000".
func groupThousands(s, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteByte(c)
	}
	return b.String()
}
