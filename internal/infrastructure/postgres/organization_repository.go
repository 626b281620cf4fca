package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
)

var _ repository.OrganizationRepository = (*OrganizationRepo)(nil)

// OrganizationRepo implementación de OrganizationRepository.
type OrganizationRepo struct {
	q Querier
}

// NewOrganizationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOrganizationRepository(q Querier) *OrganizationRepo {
	return &OrganizationRepo{q: q}
}

// GetByID obtiene los datos del acreedor.
func (r *OrganizationRepo) GetByID(ctx context.Context, id string) (*entity.Organization, error) {
	query := `
		SELECT id, name, street, building_number, postal_code, city, country_code,
		       vat_number, iban, bic, email, phone, created_at, updated_at
		FROM organizations WHERE id = $1`
	var o entity.Organization
	err := r.q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.Name, &o.Street, &o.BuildingNumber, &o.PostalCode, &o.City, &o.CountryCode,
		&o.VATNumber, &o.IBAN, &o.BIC, &o.Email, &o.Phone, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &o, nil
}

// Upsert crea o reemplaza los datos del acreedor.
func (r *OrganizationRepo) Upsert(ctx context.Context, o *entity.Organization) error {
	query := `
		INSERT INTO organizations (id, name, street, building_number, postal_code, city, country_code,
		                           vat_number, iban, bic, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, street = EXCLUDED.street, building_number = EXCLUDED.building_number,
		    postal_code = EXCLUDED.postal_code, city = EXCLUDED.city, country_code = EXCLUDED.country_code,
		    vat_number = EXCLUDED.vat_number, iban = EXCLUDED.iban, bic = EXCLUDED.bic,
		    email = EXCLUDED.email, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		o.ID, o.Name, o.Street, o.BuildingNumber, o.PostalCode, o.City, o.CountryCode,
		o.VATNumber, o.IBAN, o.BIC, o.Email, o.Phone, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert organization: %w", err)
	}
	return nil
}
