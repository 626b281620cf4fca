package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/crm-invoicing/internal/domain/numbering"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
)

var (
	_ repository.SequenceRepository = (*SequenceRepo)(nil)
	_ numbering.Sequencer           = (*SequenceRepo)(nil)
)

// SequenceRepo consecutivo por tenant sobre invoice_sequences.
//
// El upsert bloquea la fila del tenant hasta el fin de la transacción: dos finalize
// concurrentes del mismo tenant se serializan y un rollback devuelve el número.
// Fuera de una transacción no hay garantía de numeración sin huecos.
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador. Pasar la tx del finalize.
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Next reserva y devuelve el siguiente consecutivo del tenant (empieza en 1).
func (r *SequenceRepo) Next(ctx context.Context, tenantID string) (int64, error) {
	const query = `
		INSERT INTO invoice_sequences (company_id, last_value, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (company_id)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1, updated_at = now()
		RETURNING last_value`
	var next int64
	if err := r.q.QueryRow(ctx, query, tenantID).Scan(&next); err != nil {
		return 0, fmt.Errorf("next invoice sequence: %w", err)
	}
	return next, nil
}
