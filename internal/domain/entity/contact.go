package entity

import "time"

// Contact es el deudor de la factura (cliente del CRM).
type Contact struct {
	ID             string
	TenantID       string
	Name           string
	Street         string
	BuildingNumber string
	PostalCode     string
	City           string
	CountryCode    string
	Email          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AddressLines dirección en dos líneas para documentos.
func (c *Contact) AddressLines() (string, string) {
	return joinAddress(c.Street, c.BuildingNumber, c.PostalCode, c.City, c.CountryCode)
}
