package entity

import (
	"strings"
	"time"
)

// Organization datos del acreedor (tenant) que emite la factura: dirección, IVA y banco.
// La factura la referencia sin poseerla.
type Organization struct {
	ID             string
	Name           string
	Street         string
	BuildingNumber string
	PostalCode     string
	City           string
	CountryCode    string // país del acreedor: decide el formato del documento
	VATNumber      string // ej: CHE-123.456.789 MWST, DE123456789
	IBAN           string // IBAN o QR-IBAN
	BIC            string
	Email          string
	Phone          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AddressLines dirección en dos líneas para documentos.
func (o *Organization) AddressLines() (string, string) {
	return joinAddress(o.Street, o.BuildingNumber, o.PostalCode, o.City, o.CountryCode)
}

func joinAddress(street, building, postal, city, country string) (string, string) {
	line1 := strings.TrimSpace(street + " " + building)
	line2 := strings.TrimSpace(postal + " " + city)
	if country != "" {
		if line2 != "" {
			line2 = country + "-" + line2
		} else {
			line2 = country
		}
	}
	return line1, line2
}
