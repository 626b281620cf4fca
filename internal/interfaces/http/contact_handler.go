package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/application/dto"
)

// ContactService contactos (deudores) del tenant.
type ContactService interface {
	Create(ctx context.Context, tenantID string, in dto.CreateContactRequest) (*dto.ContactResponse, error)
	Get(ctx context.Context, tenantID, id string) (*dto.ContactResponse, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]*dto.ContactResponse, error)
}

var _ ContactService = (*billing.ContactUseCase)(nil)

// ContactHandler maneja las peticiones HTTP de contactos (protegido).
type ContactHandler struct {
	uc ContactService
}

// NewContactHandler construye el handler.
func NewContactHandler(uc ContactService) *ContactHandler {
	return &ContactHandler{uc: uc}
}

// Create POST /api/contacts
func (h *ContactHandler) Create(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.CreateContactRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.Create(c.Context(), tenantID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID GET /api/contacts/:id
func (h *ContactHandler) GetByID(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	out, err := h.uc.Get(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// List GET /api/contacts?limit=20&offset=0
func (h *ContactHandler) List(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return invalidBody(c)
	}
	page.DefaultPage()
	list, err := h.uc.List(c.Context(), tenantID, page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}
