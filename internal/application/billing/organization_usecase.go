package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/crm-invoicing/internal/application/dto"
	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/qrbill"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
)

// OrganizationUseCase datos del acreedor de cada tenant (dirección, IVA y banco).
type OrganizationUseCase struct {
	repo repository.OrganizationRepository
	// formatFor devuelve el formato de documento según el país del acreedor.
	formatFor func(country string) string
	now       func() time.Time
}

// NewOrganizationUseCase construye el caso de uso con el puerto de persistencia.
func NewOrganizationUseCase(repo repository.OrganizationRepository, formatFor func(country string) string) *OrganizationUseCase {
	return &OrganizationUseCase{repo: repo, formatFor: formatFor, now: time.Now}
}

// Get devuelve la organización del tenant o domain.ErrNotFound si aún no se configuró.
func (uc *OrganizationUseCase) Get(ctx context.Context, tenantID string) (*dto.OrganizationResponse, error) {
	org, err := uc.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing: obtener organización: %w", err)
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return uc.toResponse(org), nil
}

// Upsert crea o reemplaza los datos del acreedor. El IBAN se valida (mod 97) y se guarda compacto.
func (uc *OrganizationUseCase) Upsert(ctx context.Context, tenantID string, in dto.OrganizationRequest) (*dto.OrganizationResponse, error) {
	name := strings.TrimSpace(in.Name)
	country := strings.ToUpper(strings.TrimSpace(in.CountryCode))
	if name == "" || len(country) != 2 {
		return nil, fmt.Errorf("%w: name y country_code (ISO de 2 letras) son requeridos", domain.ErrInvalidInput)
	}
	iban := qrbill.NormalizeIBAN(in.IBAN)
	if iban != "" {
		if err := qrbill.ValidateIBAN(iban); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}

	now := uc.now()
	org := &entity.Organization{
		ID:             tenantID,
		Name:           name,
		Street:         strings.TrimSpace(in.Street),
		BuildingNumber: strings.TrimSpace(in.BuildingNumber),
		PostalCode:     strings.TrimSpace(in.PostalCode),
		City:           strings.TrimSpace(in.City),
		CountryCode:    country,
		VATNumber:      strings.TrimSpace(in.VATNumber),
		IBAN:           iban,
		BIC:            strings.ToUpper(strings.TrimSpace(in.BIC)),
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.repo.Upsert(ctx, org); err != nil {
		return nil, fmt.Errorf("billing: guardar organización: %w", err)
	}
	return uc.toResponse(org), nil
}

func (uc *OrganizationUseCase) toResponse(o *entity.Organization) *dto.OrganizationResponse {
	out := &dto.OrganizationResponse{
		ID:             o.ID,
		Name:           o.Name,
		Street:         o.Street,
		BuildingNumber: o.BuildingNumber,
		PostalCode:     o.PostalCode,
		City:           o.City,
		CountryCode:    o.CountryCode,
		VATNumber:      o.VATNumber,
		IBAN:           o.IBAN,
		BIC:            o.BIC,
		Email:          o.Email,
		Phone:          o.Phone,
		UpdatedAt:      o.UpdatedAt,
	}
	if uc.formatFor != nil {
		out.DocumentFormat = uc.formatFor(o.CountryCode)
	}
	return out
}
