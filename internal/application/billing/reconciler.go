package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/numbering"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

// PaymentReconciler aplica las confirmaciones de pago del proveedor.
// Es idempotente: una confirmación repetida para una factura ya pagada no cambia nada.
type PaymentReconciler struct {
	txRunner    BillingTxRunner
	invoiceRepo repository.InvoiceRepository
	log         *logger.Logger
	opts        Options
}

// NewPaymentReconciler construye el conciliador.
func NewPaymentReconciler(txRunner BillingTxRunner, invoiceRepo repository.InvoiceRepository, log *logger.Logger, opts Options) *PaymentReconciler {
	return &PaymentReconciler{txRunner: txRunner, invoiceRepo: invoiceRepo, log: log, opts: opts.withDefaults()}
}

// ApplyPaymentConfirmation marca la factura como pagada.
//
// Retorna:
//   - nil                           si quedó pagada (o ya lo estaba).
//   - domain.ErrPaymentReconciliation si la factura no existe o falla la persistencia;
//     el proveedor debe reintentar la entrega.
//   - domain.ErrInvalidState        si la factura está en draft o cancelled (no se reintenta).
//   - domain.ErrInvalidInput        si invoice_id está vacío o no es un UUID (no se reintenta).
func (r *PaymentReconciler) ApplyPaymentConfirmation(ctx context.Context, invoiceID, externalRef string) error {
	if strings.TrimSpace(invoiceID) == "" {
		return fmt.Errorf("%w: invoice_id vacío en la confirmación", domain.ErrInvalidInput)
	}
	if _, err := uuid.Parse(invoiceID); err != nil {
		r.log.Warn().Str("invoice_id", invoiceID).Str("external_ref", externalRef).
			Msg("confirmación de pago con invoice_id malformado")
		return fmt.Errorf("%w: invoice_id %q no es un UUID", domain.ErrInvalidInput, invoiceID)
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.OperationTimeout)
	defer cancel()

	inv, err := r.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPaymentReconciliation, err)
	}
	if inv == nil {
		r.log.Warn().Str("invoice_id", invoiceID).Str("external_ref", externalRef).
			Msg("confirmación de pago para factura inexistente")
		return fmt.Errorf("%w: factura %s no encontrada", domain.ErrPaymentReconciliation, invoiceID)
	}
	if inv.Status == entity.StatusPaid {
		r.log.Debug().Str("invoice_id", invoiceID).Msg("confirmación repetida, factura ya pagada")
		return nil
	}

	var alreadyPaid bool
	err = r.txRunner.RunBilling(ctx, func(repo repository.InvoiceRepository, _ numbering.Sequencer) error {
		locked, err := repo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("factura %s desapareció durante la conciliación", invoiceID)
		}
		alreadyPaid = locked.Status == entity.StatusPaid
		if err := locked.MarkPaid(externalRef, r.opts.Now()); err != nil {
			return err
		}
		if alreadyPaid {
			return nil
		}
		return repo.Update(ctx, locked)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			r.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("confirmación de pago rechazada")
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrPaymentReconciliation, err)
	}
	if !alreadyPaid {
		r.log.Info().Str("invoice_id", invoiceID).Str("external_ref", externalRef).Msg("factura pagada")
	}
	return nil
}
