package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Los montos cruzan la frontera HTTP como strings decimales ("231.11"), nunca como float.

// CreateInvoiceRequest body para POST /api/invoices.
// Sin currency se usa la moneda del país; sin due_date, emisión + 30 días.
type CreateInvoiceRequest struct {
	ContactID   string               `json:"contact_id"`
	CountryCode string               `json:"country_code"`
	Currency    string               `json:"currency,omitempty"`
	IssueDate   string               `json:"issue_date,omitempty"` // YYYY-MM-DD, por defecto hoy
	DueDate     string               `json:"due_date,omitempty"`   // YYYY-MM-DD
	Notes       string               `json:"notes,omitempty"`
	Items       []InvoiceItemRequest `json:"items,omitempty"`
}

// InvoiceItemRequest línea de factura. Sin tax_rate se usa la tasa normal del país de la factura.
type InvoiceItemRequest struct {
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	SortOrder   int              `json:"sort_order,omitempty"`
}

// InvoiceResponse factura con líneas y totales derivados.
type InvoiceResponse struct {
	ID                 string                `json:"id"`
	TenantID           string                `json:"tenant_id"`
	ContactID          string                `json:"contact_id"`
	SequentialNumber   *int64                `json:"sequential_number,omitempty"`
	Number             string                `json:"number,omitempty"`
	IssueDate          string                `json:"issue_date"`
	DueDate            string                `json:"due_date"`
	Currency           string                `json:"currency"`
	CountryCode        string                `json:"country_code"`
	Status             string                `json:"status"` // proyectado: sent vencida → overdue
	Subtotal           decimal.Decimal       `json:"subtotal"`
	TaxTotal           decimal.Decimal       `json:"tax_total"`
	GrandTotal         decimal.Decimal       `json:"grand_total"`
	TaxBreakdown       []TaxBracketResponse  `json:"tax_breakdown"`
	Items              []InvoiceItemResponse `json:"items"`
	PaymentLinkRef     string                `json:"payment_link_ref,omitempty"`
	ExternalPaymentRef string                `json:"external_payment_ref,omitempty"`
	Notes              string                `json:"notes,omitempty"`
	FinalizedAt        *time.Time            `json:"finalized_at,omitempty"`
	PaidAt             *time.Time            `json:"paid_at,omitempty"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// InvoiceItemResponse línea en la respuesta.
type InvoiceItemResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	LineTotal   decimal.Decimal `json:"line_total"`
	SortOrder   int             `json:"sort_order"`
}

// TaxBracketResponse fila del desglose de IVA.
type TaxBracketResponse struct {
	Rate  decimal.Decimal `json:"rate"`
	Label string          `json:"label"`
	Base  decimal.Decimal `json:"base"`
	Tax   decimal.Decimal `json:"tax"`
}

// InvoiceListResponse lista paginada de facturas.
type InvoiceListResponse struct {
	Items []InvoiceResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// PaymentLinkResponse enlace de pago creado en el proveedor.
type PaymentLinkResponse struct {
	InvoiceID string `json:"invoice_id"`
	Reference string `json:"reference"`
	URL       string `json:"url"`
}

// TaxRateResponse tasa de un país.
type TaxRateResponse struct {
	Label string          `json:"label"`
	Rate  decimal.Decimal `json:"rate"`
	Class string          `json:"class"`
}

// TaxRatesResponse tasas de un país; fallback indica que se usó la jurisdicción de respaldo.
type TaxRatesResponse struct {
	CountryCode         string            `json:"country_code"`
	ResolvedCountryCode string            `json:"resolved_country_code"`
	Fallback            bool              `json:"fallback"`
	Currency            string            `json:"currency"`
	VATLabel            string            `json:"vat_label"`
	DefaultRate         decimal.Decimal   `json:"default_rate"`
	Rates               []TaxRateResponse `json:"rates"`
}

// CreateContactRequest body para POST /api/contacts.
type CreateContactRequest struct {
	Name           string `json:"name"`
	Street         string `json:"street,omitempty"`
	BuildingNumber string `json:"building_number,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	City           string `json:"city,omitempty"`
	CountryCode    string `json:"country_code"`
	Email          string `json:"email,omitempty"`
}

// ContactResponse contacto (deudor) en respuestas.
type ContactResponse struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id"`
	Name           string `json:"name"`
	Street         string `json:"street,omitempty"`
	BuildingNumber string `json:"building_number,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	City           string `json:"city,omitempty"`
	CountryCode    string `json:"country_code"`
	Email          string `json:"email,omitempty"`
}

// OrganizationRequest body para PUT /api/organization.
type OrganizationRequest struct {
	Name           string `json:"name"`
	Street         string `json:"street,omitempty"`
	BuildingNumber string `json:"building_number,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	City           string `json:"city,omitempty"`
	CountryCode    string `json:"country_code"`
	VATNumber      string `json:"vat_number,omitempty"`
	IBAN           string `json:"iban,omitempty"`
	BIC            string `json:"bic,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// OrganizationResponse datos del acreedor.
type OrganizationResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Street         string    `json:"street,omitempty"`
	BuildingNumber string    `json:"building_number,omitempty"`
	PostalCode     string    `json:"postal_code,omitempty"`
	City           string    `json:"city,omitempty"`
	CountryCode    string    `json:"country_code"`
	VATNumber      string    `json:"vat_number,omitempty"`
	IBAN           string    `json:"iban,omitempty"`
	BIC            string    `json:"bic,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	DocumentFormat string    `json:"document_format"`
	UpdatedAt      time.Time `json:"updated_at"`
}
