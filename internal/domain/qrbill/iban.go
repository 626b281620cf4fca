// Package qrbill arma el contenido del código QR de la QR-factura suiza
// (Swiss Payment Standards, versión 0200): IBAN/QR-IBAN, referencias QRR y SCOR y el payload SPC.
package qrbill

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeIBAN quita espacios y pasa a mayúsculas.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}

// ValidateIBAN revisa formato y dígitos de control (ISO 13616, módulo 97).
func ValidateIBAN(iban string) error {
	s := NormalizeIBAN(iban)
	if len(s) < 15 || len(s) > 34 {
		return fmt.Errorf("qrbill: longitud de IBAN inválida (%d)", len(s))
	}
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		isUpper := r >= 'A' && r <= 'Z'
		if !isDigit && !isUpper {
			return fmt.Errorf("qrbill: carácter inválido en IBAN: %q", r)
		}
		if i < 2 && !isUpper {
			return fmt.Errorf("qrbill: el IBAN debe iniciar con el código de país")
		}
		if i >= 2 && i < 4 && !isDigit {
			return fmt.Errorf("qrbill: dígitos de control del IBAN inválidos")
		}
	}
	if mod97(s[4:]+s[:4]) != 1 {
		return fmt.Errorf("qrbill: dígitos de control del IBAN no coinciden")
	}
	return nil
}

// ValidateSwissIBAN exige un IBAN CH o LI de 21 caracteres válido.
func ValidateSwissIBAN(iban string) error {
	s := NormalizeIBAN(iban)
	if !strings.HasPrefix(s, "CH") && !strings.HasPrefix(s, "LI") {
		return fmt.Errorf("qrbill: la QR-factura requiere un IBAN de CH o LI")
	}
	if len(s) != 21 {
		return fmt.Errorf("qrbill: un IBAN suizo tiene 21 caracteres, recibido %d", len(s))
	}
	return ValidateIBAN(s)
}

// IsQRIBAN un QR-IBAN tiene IID (posiciones 5-9) entre 30000 y 31999.
func IsQRIBAN(iban string) bool {
	s := NormalizeIBAN(iban)
	if len(s) != 21 || (!strings.HasPrefix(s, "CH") && !strings.HasPrefix(s, "LI")) {
		return false
	}
	iid, err := strconv.Atoi(s[4:9])
	if err != nil {
		return false
	}
	return iid >= 30000 && iid <= 31999
}

// FormatIBAN agrupa de a 4 caracteres para impresión: "CH44 3199 9123 0008 8901 2".
func FormatIBAN(iban string) string {
	return groupRight(NormalizeIBAN(iban), 4, false)
}

// mod97 calcula el resto módulo 97 convirtiendo letras a números (A=10 … Z=35).
func mod97(s string) int {
	rem := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			v := int(r-'A') + 10
			rem = (rem*100 + v) % 97
		}
	}
	return rem
}

// groupRight agrupa s en bloques de n. fromRight agrupa desde el final (referencias QRR).
func groupRight(s string, n int, fromRight bool) string {
	if len(s) <= n {
		return s
	}
	var b strings.Builder
	first := n
	if fromRight && len(s)%n != 0 {
		first = len(s) % n
	}
	b.WriteString(s[:first])
	for i := first; i < len(s); i += n {
		end := i + n
		if end > len(s) {
			end = len(s)
		}
		b.WriteByte(' ')
		b.WriteString(s[i:end])
	}
	return b.String()
}
