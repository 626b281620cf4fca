package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/crm-invoicing/internal/application/dto"
	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
)

// ContactUseCase casos de uso para contactos (deudores de las facturas).
type ContactUseCase struct {
	repo repository.ContactRepository
	now  func() time.Time
}

// NewContactUseCase construye el caso de uso.
func NewContactUseCase(repo repository.ContactRepository) *ContactUseCase {
	return &ContactUseCase{repo: repo, now: time.Now}
}

// Create crea un nuevo contacto del tenant.
func (uc *ContactUseCase) Create(ctx context.Context, tenantID string, in dto.CreateContactRequest) (*dto.ContactResponse, error) {
	name := strings.TrimSpace(in.Name)
	country := strings.ToUpper(strings.TrimSpace(in.CountryCode))
	if name == "" || len(country) != 2 {
		return nil, fmt.Errorf("%w: name y country_code (ISO de 2 letras) son requeridos", domain.ErrInvalidInput)
	}
	now := uc.now()
	contact := &entity.Contact{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		Name:           name,
		Street:         strings.TrimSpace(in.Street),
		BuildingNumber: strings.TrimSpace(in.BuildingNumber),
		PostalCode:     strings.TrimSpace(in.PostalCode),
		City:           strings.TrimSpace(in.City),
		CountryCode:    country,
		Email:          strings.TrimSpace(in.Email),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.repo.Create(ctx, contact); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("billing: crear contacto: %w", err)
	}
	return toContactResponse(contact), nil
}

// Get devuelve un contacto del tenant.
func (uc *ContactUseCase) Get(ctx context.Context, tenantID, id string) (*dto.ContactResponse, error) {
	c, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("billing: obtener contacto: %w", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	if c.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}
	return toContactResponse(c), nil
}

// List lista contactos del tenant.
func (uc *ContactUseCase) List(ctx context.Context, tenantID string, limit, offset int) ([]*dto.ContactResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	list, err := uc.repo.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ContactResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toContactResponse(c))
	}
	return out, nil
}

func toContactResponse(c *entity.Contact) *dto.ContactResponse {
	return &dto.ContactResponse{
		ID:             c.ID,
		TenantID:       c.TenantID,
		Name:           c.Name,
		Street:         c.Street,
		BuildingNumber: c.BuildingNumber,
		PostalCode:     c.PostalCode,
		City:           c.City,
		CountryCode:    c.CountryCode,
		Email:          c.Email,
	}
}
