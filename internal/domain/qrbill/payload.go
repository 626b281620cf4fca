package qrbill

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

const (
	qrType         = "SPC"
	qrVersion      = "0200"
	qrCoding       = "1" // UTF-8 restringido a caracteres latinos
	qrTrailer      = "EPD"
	addressTypeS   = "S" // dirección estructurada
	maxPayloadSize = 997
	maxMessageLen  = 140
)

var (
	minAmount = decimal.RequireFromString("0.01")
	maxAmount = decimal.RequireFromString("999999999.99")
)

// Address dirección estructurada (tipo S) del acreedor o deudor.
type Address struct {
	Name           string
	Street         string
	BuildingNumber string
	PostalCode     string
	Town           string
	CountryCode    string
}

// IsEmpty indica que no hay datos de dirección.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Name+a.Street+a.BuildingNumber+a.PostalCode+a.Town+a.CountryCode) == ""
}

// Validate el acreedor requiere nombre, código postal, localidad y país.
func (a Address) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Name) == "" {
		missing = append(missing, "nombre")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "código postal")
	}
	if strings.TrimSpace(a.Town) == "" {
		missing = append(missing, "localidad")
	}
	if len(strings.TrimSpace(a.CountryCode)) != 2 {
		missing = append(missing, "país")
	}
	if len(missing) > 0 {
		return fmt.Errorf("qrbill: dirección incompleta, falta: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Bill datos de la sección de pago.
type Bill struct {
	Account       string // IBAN o QR-IBAN
	Creditor      Address
	Amount        *decimal.Decimal // nil = monto abierto
	Currency      string           // CHF o EUR
	Debtor        *Address         // nil = deudor en blanco
	ReferenceType ReferenceType
	Reference     string
	Message       string // información no estructurada (Ustrd)
	BillingInfo   string // información de facturación estructurada (StrdBkgInf)
}

// Validate aplica las reglas de la norma antes de generar el payload.
func (b Bill) Validate() error {
	if err := ValidateSwissIBAN(b.Account); err != nil {
		return err
	}
	if err := b.Creditor.Validate(); err != nil {
		return fmt.Errorf("acreedor: %w", err)
	}
	if b.Currency != "CHF" && b.Currency != "EUR" {
		return fmt.Errorf("qrbill: moneda no admitida %q (solo CHF o EUR)", b.Currency)
	}
	if b.Amount != nil && (b.Amount.LessThan(minAmount) || b.Amount.GreaterThan(maxAmount)) {
		return fmt.Errorf("qrbill: monto fuera de rango %s", b.Amount.StringFixed(2))
	}
	qrIBAN := IsQRIBAN(b.Account)
	switch b.ReferenceType {
	case ReferenceQRR:
		if !qrIBAN {
			return fmt.Errorf("qrbill: la referencia QRR requiere un QR-IBAN")
		}
		if err := ValidateQRReference(b.Reference); err != nil {
			return err
		}
	case ReferenceSCOR:
		if qrIBAN {
			return fmt.Errorf("qrbill: un QR-IBAN requiere referencia QRR")
		}
		if err := ValidateCreditorReference(b.Reference); err != nil {
			return err
		}
	case ReferenceNone:
		if qrIBAN {
			return fmt.Errorf("qrbill: un QR-IBAN requiere referencia QRR")
		}
		if b.Reference != "" {
			return fmt.Errorf("qrbill: el tipo NON no admite referencia")
		}
	default:
		return fmt.Errorf("qrbill: tipo de referencia desconocido %q", b.ReferenceType)
	}
	if utf8.RuneCountInString(b.Message)+utf8.RuneCountInString(b.BillingInfo) > maxMessageLen {
		return fmt.Errorf("qrbill: mensaje e información de facturación superan %d caracteres", maxMessageLen)
	}
	return nil
}

// Payload genera el contenido del QR (un elemento por línea, separador LF, sin separador final).
func (b Bill) Payload() (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	fields := []string{qrType, qrVersion, qrCoding, NormalizeIBAN(b.Account)}
	fields = append(fields, addressFields(&b.Creditor)...)
	fields = append(fields, "", "", "", "", "", "", "") // acreedor final: reservado
	amount := ""
	if b.Amount != nil {
		amount = b.Amount.StringFixed(2)
	}
	fields = append(fields, amount, b.Currency)
	fields = append(fields, addressFields(b.Debtor)...)
	fields = append(fields,
		string(b.ReferenceType),
		strings.ReplaceAll(b.Reference, " ", ""),
		clean(b.Message, maxMessageLen),
		qrTrailer,
	)
	if b.BillingInfo != "" {
		fields = append(fields, clean(b.BillingInfo, maxMessageLen))
	}
	payload := strings.Join(fields, "\n")
	if utf8.RuneCountInString(payload) > maxPayloadSize {
		return "", fmt.Errorf("qrbill: payload supera %d caracteres", maxPayloadSize)
	}
	return payload, nil
}

func addressFields(a *Address) []string {
	if a == nil || a.IsEmpty() {
		return []string{"", "", "", "", "", "", ""}
	}
	return []string{
		addressTypeS,
		clean(a.Name, 70),
		clean(a.Street, 70),
		clean(a.BuildingNumber, 16),
		clean(a.PostalCode, 16),
		clean(a.Town, 35),
		strings.ToUpper(strings.TrimSpace(a.CountryCode)),
	}
}

// clean normaliza a NFC, reemplaza caracteres fuera del juego latino por su letra base
// (o los descarta), quita saltos de línea y trunca a max caracteres.
func clean(s string, max int) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count == max {
			break
		}
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		if _, ok := charmap.ISO8859_1.EncodeRune(r); !ok || r < 0x20 {
			base, _ := utf8.DecodeRuneInString(norm.NFD.String(string(r)))
			if _, ok := charmap.ISO8859_1.EncodeRune(base); !ok || base < 0x20 {
				continue
			}
			r = base
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
