package repository

import (
	"context"
	"time"

	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
)

// InvoiceFilter filtros del listado. Status overdue se resuelve contra AsOf
// (sent con vencimiento anterior al día de AsOf), nunca contra una columna.
type InvoiceFilter struct {
	TenantID  string
	Status    entity.InvoiceStatus // vacío = todos
	ContactID string
	AsOf      time.Time
	Limit     int
	Offset    int
}

// InvoiceRepository define el puerto de persistencia para el agregado Invoice.
// Los métodos de lectura devuelven (nil, nil) si la factura no existe.
type InvoiceRepository interface {
	// Create persiste la cabecera y las líneas del agregado.
	Create(ctx context.Context, invoice *entity.Invoice) error
	// Update actualiza cabecera (estado, número, referencias de pago, fechas y totales).
	Update(ctx context.Context, invoice *entity.Invoice) error
	AddLineItem(ctx context.Context, item entity.LineItem) error
	DeleteLineItem(ctx context.Context, invoiceID, itemID string) error
	// GetByID carga el agregado completo con sus líneas.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// GetByIDForUpdate igual que GetByID pero bloquea la fila (solo dentro de una transacción).
	GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error)
	// List devuelve la página pedida y el total de coincidencias.
	List(ctx context.Context, filter InvoiceFilter) ([]*entity.Invoice, int, error)
}

// SequenceRepository entrega el siguiente consecutivo por tenant.
// La implementación SQL debe ejecutarse en la misma transacción que persiste la factura.
type SequenceRepository interface {
	Next(ctx context.Context, tenantID string) (int64, error)
}

// OrganizationRepository datos del acreedor; el ID de la organización es el ID del tenant.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Organization, error)
	Upsert(ctx context.Context, org *entity.Organization) error
}

// ContactRepository deudores del CRM.
type ContactRepository interface {
	Create(ctx context.Context, contact *entity.Contact) error
	GetByID(ctx context.Context, id string) (*entity.Contact, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Contact, error)
}
