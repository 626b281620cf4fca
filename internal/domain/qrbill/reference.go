package qrbill

import (
	"fmt"
	"strings"
)

// ReferenceType tipo de referencia del pago.
type ReferenceType string

const (
	ReferenceQRR  ReferenceType = "QRR"  // referencia QR de 27 dígitos, obligatoria con QR-IBAN
	ReferenceSCOR ReferenceType = "SCOR" // Creditor Reference ISO 11649 (RF...)
	ReferenceNone ReferenceType = "NON"
)

var mod10Table = [10]int{0, 9, 4, 6, 8, 2, 7, 1, 3, 5}

// mod10Recursive dígito de control módulo 10 recursivo (referencia QR).
func mod10Recursive(digits string) int {
	carry := 0
	for _, r := range digits {
		carry = mod10Table[(carry+int(r-'0'))%10]
	}
	return (10 - carry) % 10
}

// QRReference arma una referencia QRR de 27 dígitos a partir de hasta 26 dígitos.
func QRReference(digits string) (string, error) {
	if digits == "" || len(digits) > 26 || !isDigits(digits) {
		return "", fmt.Errorf("qrbill: la referencia QR requiere de 1 a 26 dígitos, recibido %q", digits)
	}
	body := strings.Repeat("0", 26-len(digits)) + digits
	return body + fmt.Sprintf("%d", mod10Recursive(body)), nil
}

// ValidateQRReference revisa longitud y dígito de control.
func ValidateQRReference(ref string) error {
	s := strings.ReplaceAll(ref, " ", "")
	if len(s) != 27 || !isDigits(s) {
		return fmt.Errorf("qrbill: la referencia QR debe tener 27 dígitos")
	}
	if mod10Recursive(s[:26]) != int(s[26]-'0') {
		return fmt.Errorf("qrbill: dígito de control de la referencia QR inválido")
	}
	return nil
}

// CreditorReference arma una referencia ISO 11649 (RFxx + hasta 21 alfanuméricos).
func CreditorReference(ref string) (string, error) {
	s := strings.ToUpper(strings.ReplaceAll(ref, " ", ""))
	if s == "" || len(s) > 21 || !isAlnum(s) {
		return "", fmt.Errorf("qrbill: la referencia de acreedor requiere de 1 a 21 alfanuméricos, recibido %q", ref)
	}
	check := 98 - mod97(s+"RF00")
	return fmt.Sprintf("RF%02d%s", check, s), nil
}

// ValidateCreditorReference revisa el prefijo RF y los dígitos de control.
func ValidateCreditorReference(ref string) error {
	s := strings.ToUpper(strings.ReplaceAll(ref, " ", ""))
	if len(s) < 5 || len(s) > 25 || !strings.HasPrefix(s, "RF") || !isAlnum(s) {
		return fmt.Errorf("qrbill: referencia de acreedor inválida %q", ref)
	}
	if mod97(s[4:]+s[:4]) != 1 {
		return fmt.Errorf("qrbill: dígitos de control de la referencia de acreedor inválidos")
	}
	return nil
}

// FormatReference agrupa la referencia para impresión (QRR: 2 + bloques de 5; SCOR: bloques de 4).
func FormatReference(t ReferenceType, ref string) string {
	switch t {
	case ReferenceQRR:
		return groupRight(ref, 5, true)
	case ReferenceSCOR:
		return groupRight(ref, 4, false)
	}
	return ref
}

// ReferenceFor deriva la referencia de pago del consecutivo de la factura según la cuenta:
// QR-IBAN → QRR, IBAN normal → SCOR. Sin consecutivo (borrador) no hay referencia.
func ReferenceFor(account string, sequential int64) (ReferenceType, string, error) {
	if sequential <= 0 {
		if IsQRIBAN(account) {
			// un QR-IBAN siempre exige QRR; el borrador usa una referencia de ceros.
			ref, err := QRReference("0")
			return ReferenceQRR, ref, err
		}
		return ReferenceNone, "", nil
	}
	digits := fmt.Sprintf("%d", sequential)
	if IsQRIBAN(account) {
		ref, err := QRReference(digits)
		return ReferenceQRR, ref, err
	}
	ref, err := CreditorReference(digits)
	return ReferenceSCOR, ref, err
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
