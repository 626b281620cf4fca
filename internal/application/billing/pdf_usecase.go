package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
)

// PDFUseCase genera el documento de cobro de una factura.
// Los borradores también se pueden descargar: el renderer los marca con marca de agua y sin QR.
type PDFUseCase struct {
	invoiceRepo repository.InvoiceRepository
	orgRepo     repository.OrganizationRepository
	contactRepo repository.ContactRepository
	renderer    InvoiceRenderer
	opts        Options
}

// NewPDFUseCase construye el caso de uso inyectando todas sus dependencias.
func NewPDFUseCase(
	invoiceRepo repository.InvoiceRepository,
	orgRepo repository.OrganizationRepository,
	contactRepo repository.ContactRepository,
	renderer InvoiceRenderer,
	opts Options,
) *PDFUseCase {
	return &PDFUseCase{
		invoiceRepo: invoiceRepo,
		orgRepo:     orgRepo,
		contactRepo: contactRepo,
		renderer:    renderer,
		opts:        opts.withDefaults(),
	}
}

// DownloadInvoicePDF carga factura, acreedor y deudor y genera el PDF.
//
// Retorna:
//   - (pdfBytes, filename, nil)     si todo sale bien.
//   - domain.ErrNotFound            si la factura no existe.
//   - domain.ErrForbidden           si la factura no pertenece al tenant del token.
//   - domain.ErrMissingBankDetails  si la organización no está configurada o el formato
//     exige datos bancarios que faltan.
func (uc *PDFUseCase) DownloadInvoicePDF(
	ctx context.Context,
	tenantID, invoiceID string,
) (pdfBytes []byte, filename string, err error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opts.OperationTimeout)
	defer cancel()

	// ── 1. Cargar factura ─────────────────────────────────────────────────────
	inv, err := loadOwned(ctx, uc.invoiceRepo, tenantID, invoiceID, false)
	if err != nil {
		return nil, "", err
	}

	// ── 2. Cargar acreedor ────────────────────────────────────────────────────
	org, err := uc.orgRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener organización: %w", err)
	}
	if org == nil {
		return nil, "", fmt.Errorf("%w: la organización no está configurada", domain.ErrMissingBankDetails)
	}

	// ── 3. Cargar deudor (opcional en el documento) ───────────────────────────
	contact, err := uc.contactRepo.GetByID(ctx, inv.ContactID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener contacto: %w", err)
	}

	// ── 4. Generar PDF ────────────────────────────────────────────────────────
	pdfBytes, err = uc.renderer.Render(ctx, inv, org, contact)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	return pdfBytes, pdfFilename(inv), nil
}

func pdfFilename(inv *entity.Invoice) string {
	if inv.Number == "" {
		return fmt.Sprintf("borrador_%s.pdf", inv.ID)
	}
	return inv.Number + ".pdf"
}
