package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/application/dto"
	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/infrastructure/payments"
	apphttp "github.com/jhoicas/crm-invoicing/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/crm-invoicing/pkg/jwt"
	"github.com/jhoicas/crm-invoicing/pkg/logger"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

type fakeInvoices struct {
	err         error
	lastTenant  string
	lastCreate  dto.CreateInvoiceRequest
	lastItem    dto.InvoiceItemRequest
	lastStatus  string
	lastContact string
	lastLimit   int
	lastOffset  int
	removed     string
}

func (f *fakeInvoices) resp(id string) (*dto.InvoiceResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.InvoiceResponse{ID: id, TenantID: f.lastTenant, Status: "draft", GrandTotal: decimal.RequireFromString("231.11")}, nil
}

func (f *fakeInvoices) CreateDraft(_ context.Context, tenantID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	f.lastTenant, f.lastCreate = tenantID, in
	return f.resp("inv-new")
}

func (f *fakeInvoices) GetInvoice(_ context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error) {
	f.lastTenant = tenantID
	return f.resp(invoiceID)
}

func (f *fakeInvoices) ListInvoices(_ context.Context, tenantID, status, contactID string, limit, offset int) (*dto.InvoiceListResponse, error) {
	f.lastTenant, f.lastStatus, f.lastContact, f.lastLimit, f.lastOffset = tenantID, status, contactID, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return &dto.InvoiceListResponse{Items: []dto.InvoiceResponse{}, Page: dto.PageResponse{Limit: limit, Offset: offset}}, nil
}

func (f *fakeInvoices) AddLineItem(_ context.Context, tenantID, invoiceID string, in dto.InvoiceItemRequest) (*dto.InvoiceResponse, error) {
	f.lastTenant, f.lastItem = tenantID, in
	return f.resp(invoiceID)
}

func (f *fakeInvoices) RemoveLineItem(_ context.Context, tenantID, invoiceID, itemID string) (*dto.InvoiceResponse, error) {
	f.lastTenant, f.removed = tenantID, itemID
	return f.resp(invoiceID)
}

func (f *fakeInvoices) Finalize(_ context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error) {
	f.lastTenant = tenantID
	return f.resp(invoiceID)
}

func (f *fakeInvoices) Cancel(_ context.Context, tenantID, invoiceID string) (*dto.InvoiceResponse, error) {
	f.lastTenant = tenantID
	return f.resp(invoiceID)
}

func (f *fakeInvoices) CreatePaymentLink(_ context.Context, tenantID, invoiceID string) (*dto.PaymentLinkResponse, error) {
	f.lastTenant = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return &dto.PaymentLinkResponse{InvoiceID: invoiceID, Reference: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (f *fakeInvoices) TaxRates(country string) *dto.TaxRatesResponse {
	return &dto.TaxRatesResponse{CountryCode: strings.ToUpper(country), ResolvedCountryCode: "CH", Fallback: true, Currency: "CHF"}
}

type fakePDF struct{ err error }

func (f *fakePDF) DownloadInvoicePDF(_ context.Context, _, _ string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("%PDF-1.4 fake"), "RE-2026-00001.pdf", nil
}

type fakeContacts struct{ created dto.CreateContactRequest }

func (f *fakeContacts) Create(_ context.Context, tenantID string, in dto.CreateContactRequest) (*dto.ContactResponse, error) {
	f.created = in
	return &dto.ContactResponse{ID: "c-1", TenantID: tenantID, Name: in.Name, CountryCode: in.CountryCode}, nil
}

func (f *fakeContacts) Get(_ context.Context, _, id string) (*dto.ContactResponse, error) {
	if id == "otro-tenant" {
		return nil, domain.ErrForbidden
	}
	return &dto.ContactResponse{ID: id}, nil
}

func (f *fakeContacts) List(_ context.Context, _ string, _, _ int) ([]*dto.ContactResponse, error) {
	return []*dto.ContactResponse{{ID: "c-1"}}, nil
}

type fakeOrganization struct{}

func (fakeOrganization) Get(_ context.Context, _ string) (*dto.OrganizationResponse, error) {
	return nil, domain.ErrNotFound
}

func (fakeOrganization) Upsert(_ context.Context, tenantID string, in dto.OrganizationRequest) (*dto.OrganizationResponse, error) {
	if in.IBAN == "" {
		return nil, fmt.Errorf("%w: iban requerido", domain.ErrInvalidInput)
	}
	return &dto.OrganizationResponse{ID: tenantID, Name: in.Name, IBAN: in.IBAN, DocumentFormat: "swiss_qr_bill"}, nil
}

type fakeParser struct {
	conf *payments.Confirmation
	err  error
	sig  string
}

func (f *fakeParser) Parse(_ []byte, signatureHeader string) (*payments.Confirmation, error) {
	f.sig = signatureHeader
	return f.conf, f.err
}

type fakeConfirmer struct {
	err       error
	invoiceID string
	ref       string
}

func (f *fakeConfirmer) ApplyPaymentConfirmation(_ context.Context, invoiceID, externalRef string) error {
	f.invoiceID, f.ref = invoiceID, externalRef
	return f.err
}

// ── Harness ───────────────────────────────────────────────────────────────────

type harness struct {
	app       *fiber.App
	invoices  *fakeInvoices
	pdf       *fakePDF
	contacts  *fakeContacts
	parser    *fakeParser
	confirmer *fakeConfirmer
}

func newHarness() *harness {
	h := &harness{
		invoices:  &fakeInvoices{},
		pdf:       &fakePDF{},
		contacts:  &fakeContacts{},
		parser:    &fakeParser{},
		confirmer: &fakeConfirmer{},
	}
	h.app = fiber.New()
	apphttp.Router(h.app, apphttp.RouterDeps{
		Invoices:      h.invoices,
		InvoicePDF:    h.pdf,
		Contacts:      h.contacts,
		Organization:  fakeOrganization{},
		Confirmations: h.parser,
		Reconciler:    h.confirmer,
		Logger:        logger.Nop(),
		JWTSecret:     testJWTSecret,
		JWTIssuer:     testIssuer,
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, role, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) dto.ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var e dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

// ── Invoices ──────────────────────────────────────────────────────────────────

func TestInvoiceHandler_CreateUsaTenantDelToken(t *testing.T) {
	h := newHarness()
	body := `{"contact_id":"c-ch","country_code":"CH","items":[{"description":"Beratung","quantity":"10","unit_price":"15.50","tax_rate":"8.1"}]}`

	resp := h.do(t, http.MethodPost, "/api/invoices", pkgjwt.RoleBilling, body)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, testCompanyID, h.invoices.lastTenant)
	assert.Equal(t, "c-ch", h.invoices.lastCreate.ContactID)
	require.Len(t, h.invoices.lastCreate.Items, 1)
	assert.True(t, h.invoices.lastCreate.Items[0].UnitPrice.Equal(decimal.RequireFromString("15.50")))
	require.NotNil(t, h.invoices.lastCreate.Items[0].TaxRate)
	assert.True(t, h.invoices.lastCreate.Items[0].TaxRate.Equal(decimal.RequireFromString("8.1")))

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "231.11", out["grand_total"], "los montos viajan como string decimal")
}

func TestInvoiceHandler_CreateCuerpoInvalido(t *testing.T) {
	h := newHarness()
	resp := h.do(t, http.MethodPost, "/api/invoices", pkgjwt.RoleBilling, `{"contact_id":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BODY", decodeError(t, resp).Code)
}

func TestInvoiceHandler_ViewerNoPuedeMutar(t *testing.T) {
	h := newHarness()
	for _, path := range []string{"/api/invoices", "/api/invoices/inv-1/finalize", "/api/invoices/inv-1/cancel", "/api/invoices/inv-1/payment-link"} {
		resp := h.do(t, http.MethodPost, path, pkgjwt.RoleViewer, `{}`)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	resp := h.do(t, http.MethodGet, "/api/invoices/inv-1", pkgjwt.RoleViewer, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "viewer sí puede leer")
}

func TestInvoiceHandler_SinTokenRetorna401(t *testing.T) {
	h := newHarness()
	resp := h.do(t, http.MethodGet, "/api/invoices", "", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInvoiceHandler_ListPasaFiltros(t *testing.T) {
	h := newHarness()
	resp := h.do(t, http.MethodGet, "/api/invoices?status=overdue&contact_id=c-de&limit=5&offset=10", pkgjwt.RoleViewer, "")
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "overdue", h.invoices.lastStatus)
	assert.Equal(t, "c-de", h.invoices.lastContact)
	assert.Equal(t, 5, h.invoices.lastLimit)
	assert.Equal(t, 10, h.invoices.lastOffset)
}

func TestInvoiceHandler_LineItems(t *testing.T) {
	h := newHarness()
	resp := h.do(t, http.MethodPost, "/api/invoices/inv-1/items", pkgjwt.RoleBilling, `{"description":"Hosting","quantity":"1","unit_price":"80"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Hosting", h.invoices.lastItem.Description)
	assert.Nil(t, h.invoices.lastItem.TaxRate, "sin tax_rate se usa la tasa normal del país")

	resp = h.do(t, http.MethodDelete, "/api/invoices/inv-1/items/item-7", pkgjwt.RoleBilling, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "item-7", h.invoices.removed)
}

func TestInvoiceHandler_MapeoDeErrores(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no encontrada", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"otro tenant", domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"validación", fmt.Errorf("%w: cantidad negativa", domain.ErrInvalidInput), http.StatusBadRequest, "VALIDATION"},
		{"estado", domain.NewStateError("finalize", "paid", "draft"), http.StatusConflict, "INVALID_STATE"},
		{"vacía", domain.ErrEmptyInvoice, http.StatusUnprocessableEntity, "EMPTY_INVOICE"},
		{"consecutivo", fmt.Errorf("%w: timeout", domain.ErrSequenceAllocation), http.StatusServiceUnavailable, "RETRYABLE"},
		{"interno", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.invoices.err = tc.err
			resp := h.do(t, http.MethodPost, "/api/invoices/inv-1/finalize", pkgjwt.RoleBilling, "")
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.code == "RETRYABLE" {
				assert.Equal(t, "1", resp.Header.Get("Retry-After"))
			}
			assert.Equal(t, tc.code, decodeError(t, resp).Code)
		})
	}
}

func TestInvoiceHandler_EstadoInvalidoExplicaLaTransicion(t *testing.T) {
	h := newHarness()
	h.invoices.err = domain.NewStateError("cancel", "paid", "draft", "sent")
	resp := h.do(t, http.MethodPost, "/api/invoices/inv-1/cancel", pkgjwt.RoleBilling, "")
	e := decodeError(t, resp)
	assert.Contains(t, e.Message, "cancel")
	assert.Contains(t, e.Message, "paid")
}

func TestInvoiceHandler_PaymentLink(t *testing.T) {
	h := newHarness()
	resp := h.do(t, http.MethodPost, "/api/invoices/inv-1/payment-link", pkgjwt.RoleBilling, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out dto.PaymentLinkResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "cs_test_1", out.Reference)

	h.invoices.err = billing.ErrPaymentsDisabled
	resp2 := h.do(t, http.MethodPost, "/api/invoices/inv-1/payment-link", pkgjwt.RoleBilling, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
	assert.Equal(t, "PAYMENTS_DISABLED", decodeError(t, resp2).Code)
}

func TestInvoiceHandler_PDF(t *testing.T) {
	h := newHarness()
	resp := h.do(t, http.MethodGet, "/api/invoices/inv-1/pdf", pkgjwt.RoleViewer, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="RE-2026-00001.pdf"`)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(body), "%PDF"))

	h.pdf.err = domain.ErrMissingBankDetails
	resp2 := h.do(t, http.MethodGet, "/api/invoices/inv-1/pdf", pkgjwt.RoleViewer, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp2.StatusCode)
	assert.Equal(t, "MISSING_BANK_DETAILS", decodeError(t, resp2).Code)
}

func TestInvoiceHandler_TaxRates(t *testing.T) {
	h := newHarness()
	resp := h.do(t, http.MethodGet, "/api/tax-rates/xx", pkgjwt.RoleViewer, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.TaxRatesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "XX", out.CountryCode)
	assert.True(t, out.Fallback)
}

// ── Contacts / Organization ───────────────────────────────────────────────────

func TestContactHandler(t *testing.T) {
	h := newHarness()
	resp := h.do(t, http.MethodPost, "/api/contacts", pkgjwt.RoleBilling, `{"name":"Muster AG","country_code":"CH"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Muster AG", h.contacts.created.Name)

	resp = h.do(t, http.MethodGet, "/api/contacts", pkgjwt.RoleViewer, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/contacts/otro-tenant", pkgjwt.RoleViewer, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", decodeError(t, resp).Code)
}

func TestOrganizationHandler(t *testing.T) {
	h := newHarness()

	resp := h.do(t, http.MethodGet, "/api/organization", pkgjwt.RoleViewer, "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodPut, "/api/organization", pkgjwt.RoleBilling, `{"name":"Acme","iban":"CH9300762011623852957"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "solo admin configura la organización")

	resp = h.do(t, http.MethodPut, "/api/organization", pkgjwt.RoleAdmin, `{"name":"Acme","country_code":"CH"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", decodeError(t, resp).Code)

	resp = h.do(t, http.MethodPut, "/api/organization", pkgjwt.RoleAdmin, `{"name":"Acme","country_code":"CH","iban":"CH9300762011623852957"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.OrganizationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, testCompanyID, out.ID)
	assert.Equal(t, "swiss_qr_bill", out.DocumentFormat)
}

// ── Webhook de Stripe ─────────────────────────────────────────────────────────

func postWebhook(t *testing.T, h *harness) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestWebhook_PagoConfirmado(t *testing.T) {
	h := newHarness()
	h.parser.conf = &payments.Confirmation{EventID: "evt_1", InvoiceID: "inv-1", ExternalRef: "pi_123"}

	resp := postWebhook(t, h)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "público: no requiere JWT")
	assert.Equal(t, "t=1,v1=abc", h.parser.sig)
	assert.Equal(t, "inv-1", h.confirmer.invoiceID)
	assert.Equal(t, "pi_123", h.confirmer.ref)
}

func TestWebhook_FirmaInvalida(t *testing.T) {
	h := newHarness()
	h.parser.err = payments.ErrInvalidSignature

	resp := postWebhook(t, h)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_SIGNATURE", decodeError(t, resp).Code)
	assert.Empty(t, h.confirmer.invoiceID)
}

func TestWebhook_EventoIrrelevante(t *testing.T) {
	h := newHarness()
	resp := postWebhook(t, h)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, h.confirmer.invoiceID)
}

func TestWebhook_FalloTransitorioPideReintento(t *testing.T) {
	h := newHarness()
	h.parser.conf = &payments.Confirmation{EventID: "evt_1", InvoiceID: "inv-1", ExternalRef: "pi_123"}
	h.confirmer.err = fmt.Errorf("%w: db caída", domain.ErrPaymentReconciliation)

	resp := postWebhook(t, h)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebhook_FacturaAnuladaNoSeReintenta(t *testing.T) {
	h := newHarness()
	h.parser.conf = &payments.Confirmation{EventID: "evt_1", InvoiceID: "inv-1", ExternalRef: "pi_123"}
	h.confirmer.err = domain.NewStateError("mark_paid", "cancelled", "sent")

	resp := postWebhook(t, h)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["ignored"])
}

func TestWebhook_ReferenciaDeFacturaInvalidaNoSeReintenta(t *testing.T) {
	h := newHarness()
	h.parser.conf = &payments.Confirmation{EventID: "evt_1", InvoiceID: "INV-2026-0001", ExternalRef: "pi_123"}
	h.confirmer.err = fmt.Errorf("%w: invoice_id no es un UUID", domain.ErrInvalidInput)

	resp := postWebhook(t, h)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["ignored"])
	assert.Equal(t, "INV-2026-0001", h.confirmer.invoiceID)
}
