package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/application/dto"
)

// OrganizationService datos del acreedor del tenant.
type OrganizationService interface {
	Get(ctx context.Context, tenantID string) (*dto.OrganizationResponse, error)
	Upsert(ctx context.Context, tenantID string, in dto.OrganizationRequest) (*dto.OrganizationResponse, error)
}

var _ OrganizationService = (*billing.OrganizationUseCase)(nil)

// OrganizationHandler GET/PUT /api/organization.
type OrganizationHandler struct {
	uc OrganizationService
}

// NewOrganizationHandler construye el handler.
func NewOrganizationHandler(uc OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{uc: uc}
}

// Get GET /api/organization
func (h *OrganizationHandler) Get(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	out, err := h.uc.Get(c.Context(), tenantID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Put PUT /api/organization
func (h *OrganizationHandler) Put(c *fiber.Ctx) error {
	tenantID := GetCompanyID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.OrganizationRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.Upsert(c.Context(), tenantID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
