package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/application/dto"
)

// InvoiceService casos de uso de facturas que expone la API.
type InvoiceService interface {
	CreateDraft(ctx context.Context, tenantID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, tenantID, status, contactID string, limit, offset int) (*dto.InvoiceListResponse, error)
	AddLineItem(ctx context.Context, tenantID, invoiceID string, in dto.InvoiceItemRequest) (*dto.InvoiceResponse, error)
	RemoveLineItem(ctx context.Context, tenantID, invoiceID, itemID string) (*dto.InvoiceResponse, error)
	Finalize(ctx context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error)
	Cancel(ctx context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error)
	CreatePaymentLink(ctx context.Context, tenantID, invoiceID string) (*dto.PaymentLinkResponse, error)
	TaxRates(country string) *dto.TaxRatesResponse
}

// InvoicePDFService genera el documento de cobro.
type InvoicePDFService interface {
	DownloadInvoicePDF(ctx context.Context, tenantID, invoiceID string) ([]byte, string, error)
}

var (
	_ InvoiceService    = (*billing.InvoiceUseCase)(nil)
	_ InvoicePDFService = (*billing.PDFUseCase)(nil)
)

// InvoiceHandler maneja las peticiones HTTP de facturación (protegido).
type InvoiceHandler struct {
	uc  InvoiceService
	pdf InvoicePDFService
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(uc InvoiceService, pdf InvoicePDFService) *InvoiceHandler {
	return &InvoiceHandler{uc: uc, pdf: pdf}
}

// Create abre una factura en borrador.
// POST /api/invoices
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.CreateInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.CreateDraft(c.Context(), tenantID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List GET /api/invoices?status=overdue&contact_id=...&limit=20&offset=0
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return invalidBody(c)
	}
	page.DefaultPage()
	out, err := h.uc.ListInvoices(c.Context(), tenantID, c.Query("status"), c.Query("contact_id"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetByID GET /api/invoices/:id
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	out, err := h.uc.GetInvoice(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// AddItem POST /api/invoices/:id/items
func (h *InvoiceHandler) AddItem(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.InvoiceItemRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.AddLineItem(c.Context(), tenantID, c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// RemoveItem DELETE /api/invoices/:id/items/:itemId
func (h *InvoiceHandler) RemoveItem(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	out, err := h.uc.RemoveLineItem(c.Context(), tenantID, c.Params("id"), c.Params("itemId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Finalize POST /api/invoices/:id/finalize
func (h *InvoiceHandler) Finalize(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	out, err := h.uc.Finalize(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Cancel POST /api/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	out, err := h.uc.Cancel(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// PaymentLink POST /api/invoices/:id/payment-link
func (h *InvoiceHandler) PaymentLink(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	out, err := h.uc.CreatePaymentLink(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// PDF GET /api/invoices/:id/pdf
func (h *InvoiceHandler) PDF(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	body, filename, err := h.pdf.DownloadInvoicePDF(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(body)
}

// TaxRates GET /api/tax-rates/:country
func (h *InvoiceHandler) TaxRates(c *fiber.Ctx) error {
	return c.JSON(h.uc.TaxRates(c.Params("country")))
}
