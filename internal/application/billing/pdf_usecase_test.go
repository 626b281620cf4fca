package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/crm-invoicing/internal/application/billing"
	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
)

type fakeRenderer struct {
	err     error
	org     *entity.Organization
	contact *entity.Contact
}

func (f *fakeRenderer) Render(_ context.Context, _ *entity.Invoice, org *entity.Organization, contact *entity.Contact) ([]byte, error) {
	f.org, f.contact = org, contact
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3"), nil
}

func newPDFUseCase(repo *memInvoiceRepo, orgs *memOrgRepo, r *fakeRenderer) *billing.PDFUseCase {
	contacts := newMemContactRepo(&entity.Contact{ID: "c-ch", TenantID: tenantA, Name: "Muster AG", CountryCode: "CH"})
	return billing.NewPDFUseCase(repo, orgs, contacts, r, billing.Options{Now: clock})
}

func orgRepoWith(tenantID string) *memOrgRepo {
	return &memOrgRepo{orgs: map[string]*entity.Organization{
		tenantID: {ID: tenantID, Name: "Acme AG", CountryCode: "CH"},
	}}
}

func TestDownloadInvoicePDF_NombreDeArchivo(t *testing.T) {
	repo := newMemInvoiceRepo()
	sent := storedInvoice(t, repo, tenantA, true)
	draft := storedInvoice(t, repo, tenantA, false)
	r := &fakeRenderer{}
	uc := newPDFUseCase(repo, orgRepoWith(tenantA), r)
	ctx := context.Background()

	body, name, err := uc.DownloadInvoicePDF(ctx, tenantA, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "RE-2026-00001.pdf", name)
	assert.Equal(t, "%PDF-1.3", string(body))
	assert.Equal(t, "Acme AG", r.org.Name)
	require.NotNil(t, r.contact)
	assert.Equal(t, "Muster AG", r.contact.Name)

	_, name, err = uc.DownloadInvoicePDF(ctx, tenantA, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "borrador_"+draft.ID+".pdf", name)
}

func TestDownloadInvoicePDF_Errores(t *testing.T) {
	repo := newMemInvoiceRepo()
	inv := storedInvoice(t, repo, tenantA, true)
	ctx := context.Background()

	_, _, err := newPDFUseCase(repo, orgRepoWith(tenantA), &fakeRenderer{}).DownloadInvoicePDF(ctx, tenantB, inv.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = newPDFUseCase(repo, orgRepoWith(tenantA), &fakeRenderer{}).DownloadInvoicePDF(ctx, tenantA, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = newPDFUseCase(repo, &memOrgRepo{}, &fakeRenderer{}).DownloadInvoicePDF(ctx, tenantA, inv.ID)
	assert.ErrorIs(t, err, domain.ErrMissingBankDetails)

	failing := &fakeRenderer{err: domain.ErrMissingBankDetails}
	_, _, err = newPDFUseCase(repo, orgRepoWith(tenantA), failing).DownloadInvoicePDF(ctx, tenantA, inv.ID)
	assert.ErrorIs(t, err, domain.ErrMissingBankDetails)

	broken := &fakeRenderer{err: errors.New("fuente no encontrada")}
	_, _, err = newPDFUseCase(repo, orgRepoWith(tenantA), broken).DownloadInvoicePDF(ctx, tenantA, inv.ID)
	assert.ErrorContains(t, err, "fuente no encontrada")
}
