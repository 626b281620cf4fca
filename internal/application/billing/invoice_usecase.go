package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/crm-invoicing/internal/application/dto"
	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/numbering"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
	"github.com/jhoicas/crm-invoicing/internal/domain/taxrate"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

const (
	dateLayout     = "2006-01-02"
	defaultDueDays = 30
)

// ErrPaymentsDisabled no hay proveedor de pagos configurado.
var ErrPaymentsDisabled = errors.New("proveedor de pagos no configurado")

// InvoiceUseCase ciclo de vida de la factura: borrador, líneas, emisión, anulación y enlace de pago.
// Toda mutación carga el agregado con bloqueo de fila dentro de una transacción.
type InvoiceUseCase struct {
	txRunner    BillingTxRunner
	invoiceRepo repository.InvoiceRepository
	contactRepo repository.ContactRepository
	rates       *taxrate.Table
	payments    PaymentLinkProvider // nil = pagos deshabilitados
	log         *logger.Logger
	opts        Options
}

// NewInvoiceUseCase construye el caso de uso. payments puede ser nil.
func NewInvoiceUseCase(
	txRunner BillingTxRunner,
	invoiceRepo repository.InvoiceRepository,
	contactRepo repository.ContactRepository,
	rates *taxrate.Table,
	payments PaymentLinkProvider,
	log *logger.Logger,
	opts Options,
) *InvoiceUseCase {
	return &InvoiceUseCase{
		txRunner:    txRunner,
		invoiceRepo: invoiceRepo,
		contactRepo: contactRepo,
		rates:       rates,
		payments:    payments,
		log:         log,
		opts:        opts.withDefaults(),
	}
}

// CreateDraft abre una factura en borrador, opcionalmente con líneas iniciales.
func (uc *InvoiceUseCase) CreateDraft(ctx context.Context, tenantID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if tenantID == "" || strings.TrimSpace(in.ContactID) == "" {
		return nil, fmt.Errorf("%w: contact_id es requerido", domain.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, uc.opts.OperationTimeout)
	defer cancel()

	contact, err := uc.contactRepo.GetByID(ctx, in.ContactID)
	if err != nil {
		return nil, fmt.Errorf("billing: obtener contacto: %w", err)
	}
	if contact == nil {
		return nil, fmt.Errorf("%w: contacto %s", domain.ErrNotFound, in.ContactID)
	}
	if contact.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}

	country := strings.ToUpper(strings.TrimSpace(in.CountryCode))
	if country == "" {
		country = contact.CountryCode
	}
	if _, fallback := uc.rates.Resolve(country); fallback {
		uc.log.Warn().Str("country", country).Str("fallback", uc.rates.FallbackCountry()).
			Msg("país sin tasas configuradas, se usa la jurisdicción de respaldo")
	}
	currency := in.Currency
	if currency == "" {
		currency = uc.rates.CurrencyFor(country)
	}

	now := uc.opts.Now()
	issue, err := parseDate(in.IssueDate, dateOnly(now))
	if err != nil {
		return nil, err
	}
	due, err := parseDate(in.DueDate, issue.AddDate(0, 0, defaultDueDays))
	if err != nil {
		return nil, err
	}

	inv, err := entity.NewDraftInvoice(entity.DraftParams{
		TenantID:    tenantID,
		ContactID:   contact.ID,
		IssueDate:   issue,
		DueDate:     due,
		Currency:    currency,
		CountryCode: country,
		Notes:       strings.TrimSpace(in.Notes),
		Now:         now,
	})
	if err != nil {
		return nil, err
	}
	for _, item := range in.Items {
		if _, err := inv.AddLineItem(uc.lineFromRequest(country, item), now); err != nil {
			return nil, err
		}
	}

	err = uc.txRunner.RunBilling(ctx, func(invoiceRepo repository.InvoiceRepository, _ numbering.Sequencer) error {
		return invoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("billing: crear factura: %w", err)
	}
	uc.log.Info().Str("invoice_id", inv.ID).Str("tenant_id", tenantID).Int("lines", len(inv.LineItems())).
		Msg("factura en borrador creada")
	return uc.toResponse(inv, now), nil
}

// GetInvoice devuelve la factura con su estado proyectado.
func (uc *InvoiceUseCase) GetInvoice(ctx context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opts.OperationTimeout)
	defer cancel()
	inv, err := loadOwned(ctx, uc.invoiceRepo, tenantID, invoiceID, false)
	if err != nil {
		return nil, err
	}
	return uc.toResponse(inv, uc.opts.Now()), nil
}

// ListInvoices lista facturas del tenant. status admite overdue (proyección sobre sent).
func (uc *InvoiceUseCase) ListInvoices(ctx context.Context, tenantID, status, contactID string, limit, offset int) (*dto.InvoiceListResponse, error) {
	var st entity.InvoiceStatus
	if status != "" {
		parsed, err := entity.ParseInvoiceStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, uc.opts.OperationTimeout)
	defer cancel()

	now := uc.opts.Now()
	list, total, err := uc.invoiceRepo.List(ctx, repository.InvoiceFilter{
		TenantID:  tenantID,
		Status:    st,
		ContactID: contactID,
		AsOf:      now,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("billing: listar facturas: %w", err)
	}
	items := make([]dto.InvoiceResponse, 0, len(list))
	for _, inv := range list {
		items = append(items, *uc.toResponse(inv, now))
	}
	return &dto.InvoiceListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset, Total: total},
	}, nil
}

// AddLineItem agrega una línea a un borrador y persiste los totales recalculados.
func (uc *InvoiceUseCase) AddLineItem(ctx context.Context, tenantID, invoiceID string, in dto.InvoiceItemRequest) (*dto.InvoiceResponse, error) {
	return uc.mutate(ctx, tenantID, invoiceID, func(ctx context.Context, inv *entity.Invoice, repo repository.InvoiceRepository, _ numbering.Sequencer, now time.Time) error {
		item, err := inv.AddLineItem(uc.lineFromRequest(inv.CountryCode, in), now)
		if err != nil {
			return err
		}
		if err := repo.AddLineItem(ctx, item); err != nil {
			return err
		}
		return repo.Update(ctx, inv)
	})
}

// RemoveLineItem quita una línea de un borrador.
func (uc *InvoiceUseCase) RemoveLineItem(ctx context.Context, tenantID, invoiceID, itemID string) (*dto.InvoiceResponse, error) {
	return uc.mutate(ctx, tenantID, invoiceID, func(ctx context.Context, inv *entity.Invoice, repo repository.InvoiceRepository, _ numbering.Sequencer, now time.Time) error {
		if err := inv.RemoveLineItem(itemID, now); err != nil {
			return err
		}
		if err := repo.DeleteLineItem(ctx, inv.ID, itemID); err != nil {
			return err
		}
		return repo.Update(ctx, inv)
	})
}

// Finalize asigna el consecutivo y emite la factura (draft → sent).
// Fallos de infraestructura se reportan como ErrSequenceAllocation (reintentable).
func (uc *InvoiceUseCase) Finalize(ctx context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error) {
	out, err := uc.mutate(ctx, tenantID, invoiceID, func(ctx context.Context, inv *entity.Invoice, repo repository.InvoiceRepository, seq numbering.Sequencer, now time.Time) error {
		if err := inv.Finalize(ctx, seq, uc.opts.Formatter, now); err != nil {
			return err
		}
		return repo.Update(ctx, inv)
	})
	if err != nil {
		if !isDomainError(err) {
			err = fmt.Errorf("%w: %w", domain.ErrSequenceAllocation, err)
		}
		uc.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("no se pudo emitir la factura")
		return nil, err
	}
	uc.log.Info().Str("invoice_id", invoiceID).Str("number", out.Number).Msg("factura emitida")
	return out, nil
}

// Cancel anula la factura (desde draft o sent).
func (uc *InvoiceUseCase) Cancel(ctx context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error) {
	out, err := uc.mutate(ctx, tenantID, invoiceID, func(ctx context.Context, inv *entity.Invoice, repo repository.InvoiceRepository, _ numbering.Sequencer, now time.Time) error {
		if err := inv.Cancel(now); err != nil {
			return err
		}
		return repo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("invoice_id", invoiceID).Msg("factura anulada")
	return out, nil
}

// CreatePaymentLink crea un enlace de pago por el total y guarda su referencia.
// Solo para facturas emitidas y sin pagar (sent u overdue).
func (uc *InvoiceUseCase) CreatePaymentLink(ctx context.Context, tenantID, invoiceID string) (*dto.PaymentLinkResponse, error) {
	if uc.payments == nil {
		return nil, ErrPaymentsDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, uc.opts.OperationTimeout)
	defer cancel()

	inv, err := loadOwned(ctx, uc.invoiceRepo, tenantID, invoiceID, false)
	if err != nil {
		return nil, err
	}
	if inv.Status != entity.StatusSent {
		return nil, domain.NewStateError("createPaymentLink", string(inv.CurrentStatus(uc.opts.Now())),
			string(entity.StatusSent), string(entity.StatusOverdue))
	}

	link, err := uc.payments.CreatePaymentLink(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("billing: crear enlace de pago: %w", err)
	}

	err = uc.txRunner.RunBilling(ctx, func(repo repository.InvoiceRepository, _ numbering.Sequencer) error {
		locked, err := loadOwned(ctx, repo, tenantID, invoiceID, true)
		if err != nil {
			return err
		}
		if err := locked.SetPaymentLink(link.Reference, uc.opts.Now()); err != nil {
			return err
		}
		return repo.Update(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("invoice_id", invoiceID).Str("reference", link.Reference).Msg("enlace de pago creado")
	return &dto.PaymentLinkResponse{InvoiceID: invoiceID, Reference: link.Reference, URL: link.URL}, nil
}

// TaxRates tasas vigentes de un país (o de la jurisdicción de respaldo).
func (uc *InvoiceUseCase) TaxRates(country string) *dto.TaxRatesResponse {
	j, fallback := uc.rates.Resolve(country)
	out := &dto.TaxRatesResponse{
		CountryCode:         strings.ToUpper(strings.TrimSpace(country)),
		ResolvedCountryCode: j.CountryCode,
		Fallback:            fallback,
		Currency:            j.Currency,
		VATLabel:            j.VATLabel,
		DefaultRate:         j.StandardRate(),
		Rates:               make([]dto.TaxRateResponse, 0, len(j.Rates)),
	}
	for _, r := range j.Rates {
		out.Rates = append(out.Rates, dto.TaxRateResponse{Label: r.Label, Rate: r.Rate, Class: string(r.Class)})
	}
	return out
}

// ── helpers ───────────────────────────────────────────────────────────────────

type mutation func(ctx context.Context, inv *entity.Invoice, repo repository.InvoiceRepository, seq numbering.Sequencer, now time.Time) error

// mutate carga la factura con bloqueo, aplica fn y confirma; cualquier error hace rollback.
func (uc *InvoiceUseCase) mutate(ctx context.Context, tenantID, invoiceID string, fn mutation) (*dto.InvoiceResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opts.OperationTimeout)
	defer cancel()

	now := uc.opts.Now()
	var result *entity.Invoice
	err := uc.txRunner.RunBilling(ctx, func(repo repository.InvoiceRepository, seq numbering.Sequencer) error {
		inv, err := loadOwned(ctx, repo, tenantID, invoiceID, true)
		if err != nil {
			return err
		}
		if err := fn(ctx, inv, repo, seq, now); err != nil {
			return err
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uc.toResponse(result, now), nil
}

// loadOwned carga la factura y verifica que pertenece al tenant.
func loadOwned(ctx context.Context, repo repository.InvoiceRepository, tenantID, invoiceID string, forUpdate bool) (*entity.Invoice, error) {
	var (
		inv *entity.Invoice
		err error
	)
	if forUpdate {
		inv, err = repo.GetByIDForUpdate(ctx, invoiceID)
	} else {
		inv, err = repo.GetByID(ctx, invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("billing: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoiceID)
	}
	if inv.TenantID != tenantID {
		return nil, domain.ErrForbidden
	}
	return inv, nil
}

func (uc *InvoiceUseCase) lineFromRequest(country string, in dto.InvoiceItemRequest) entity.LineItem {
	rate := uc.rates.DefaultRate(country)
	if in.TaxRate != nil {
		rate = *in.TaxRate
	}
	return entity.LineItem{
		Description: in.Description,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		TaxRate:     rate,
		SortOrder:   in.SortOrder,
	}
}

func (uc *InvoiceUseCase) toResponse(inv *entity.Invoice, now time.Time) *dto.InvoiceResponse {
	totals := inv.Totals()
	out := &dto.InvoiceResponse{
		ID:                 inv.ID,
		TenantID:           inv.TenantID,
		ContactID:          inv.ContactID,
		SequentialNumber:   inv.SequentialNumber,
		Number:             inv.Number,
		IssueDate:          inv.IssueDate.Format(dateLayout),
		DueDate:            inv.DueDate.Format(dateLayout),
		Currency:           inv.Currency,
		CountryCode:        inv.CountryCode,
		Status:             string(inv.CurrentStatus(now)),
		Subtotal:           totals.Subtotal,
		TaxTotal:           totals.TaxTotal,
		GrandTotal:         totals.GrandTotal,
		TaxBreakdown:       make([]dto.TaxBracketResponse, 0, len(totals.Breakdown)),
		Items:              make([]dto.InvoiceItemResponse, 0, len(inv.LineItems())),
		PaymentLinkRef:     inv.PaymentLinkRef,
		ExternalPaymentRef: inv.ExternalPaymentRef,
		Notes:              inv.Notes,
		FinalizedAt:        inv.FinalizedAt,
		PaidAt:             inv.PaidAt,
		CancelledAt:        inv.CancelledAt,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
	for _, b := range totals.Breakdown {
		out.TaxBreakdown = append(out.TaxBreakdown, dto.TaxBracketResponse{
			Rate:  b.Rate,
			Label: uc.rates.LabelForRate(inv.CountryCode, b.Rate),
			Base:  b.Base,
			Tax:   b.Tax,
		})
	}
	for _, l := range inv.LineItems() {
		out.Items = append(out.Items, dto.InvoiceItemResponse{
			ID:          l.ID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			LineTotal:   l.LineTotal(),
			SortOrder:   l.SortOrder,
		})
	}
	return out
}

// isDomainError errores de reglas de negocio: se devuelven tal cual, nunca como transitorios.
func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound, domain.ErrForbidden, domain.ErrInvalidInput, domain.ErrInvalidState,
		domain.ErrEmptyInvoice, domain.ErrSequenceAllocation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func parseDate(s string, def time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: fecha inválida %q (formato AAAA-MM-DD)", domain.ErrInvalidInput, s)
	}
	return t, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

