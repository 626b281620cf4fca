package billing_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/numbering"
	"github.com/jhoicas/crm-invoicing/internal/domain/repository"
	"github.com/jhoicas/crm-invoicing/internal/domain/taxrate"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newTable(t *testing.T) *taxrate.Table {
	t.Helper()
	table, err := taxrate.NewTable(taxrate.BuiltinJurisdictions(), "CH")
	require.NoError(t, err)
	return table
}

// ── invoices ──────────────────────────────────────────────────────────────────

type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]*entity.Invoice
	failGet  error
	failSave error
}

var _ repository.InvoiceRepository = (*memInvoiceRepo)(nil)

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{invoices: map[string]*entity.Invoice{}}
}

func clone(inv *entity.Invoice) *entity.Invoice {
	c := *inv
	c.RestoreLineItems(inv.LineItems())
	return &c
}

func (r *memInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return r.failSave
	}
	r.invoices[inv.ID] = clone(inv)
	return nil
}

func (r *memInvoiceRepo) Update(_ context.Context, inv *entity.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return r.failSave
	}
	if _, ok := r.invoices[inv.ID]; !ok {
		return errors.New("update de factura inexistente")
	}
	r.invoices[inv.ID] = clone(inv)
	return nil
}

// Las líneas viajan con Update en este fake.
func (r *memInvoiceRepo) AddLineItem(context.Context, entity.LineItem) error    { return nil }
func (r *memInvoiceRepo) DeleteLineItem(context.Context, string, string) error { return nil }

func (r *memInvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return nil, r.failGet
	}
	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	return clone(inv), nil
}

func (r *memInvoiceRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *memInvoiceRepo) List(_ context.Context, f repository.InvoiceFilter) ([]*entity.Invoice, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID != f.TenantID {
			continue
		}
		if f.ContactID != "" && inv.ContactID != f.ContactID {
			continue
		}
		if f.Status != "" && inv.CurrentStatus(f.AsOf) != f.Status {
			continue
		}
		all = append(all, clone(inv))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (r *memInvoiceRepo) put(inv *entity.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = clone(inv)
}

func (r *memInvoiceRepo) snapshot() map[string]*entity.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*entity.Invoice, len(r.invoices))
	for k, v := range r.invoices {
		out[k] = clone(v)
	}
	return out
}

func (r *memInvoiceRepo) restore(s map[string]*entity.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices = s
}

// memTx emula la transacción: si fn falla restaura el estado previo.
type memTx struct {
	repo  *memInvoiceRepo
	seq   numbering.Sequencer
	fail  error
	calls int
}

func (m *memTx) RunBilling(_ context.Context, fn func(repository.InvoiceRepository, numbering.Sequencer) error) error {
	m.calls++
	if m.fail != nil {
		return m.fail
	}
	snap := m.repo.snapshot()
	if err := fn(m.repo, m.seq); err != nil {
		m.repo.restore(snap)
		return err
	}
	return nil
}

// ── contacts / organizations ─────────────────────────────────────────────────

type memContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*entity.Contact
}

var _ repository.ContactRepository = (*memContactRepo)(nil)

func newMemContactRepo(cs ...*entity.Contact) *memContactRepo {
	r := &memContactRepo{contacts: map[string]*entity.Contact{}}
	for _, c := range cs {
		r.contacts[c.ID] = c
	}
	return r
}

func (r *memContactRepo) Create(_ context.Context, c *entity.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *memContactRepo) GetByID(_ context.Context, id string) (*entity.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memContactRepo) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*entity.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Contact
	for _, c := range r.contacts {
		if c.TenantID == tenantID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

type memOrgRepo struct {
	orgs map[string]*entity.Organization
}

var _ repository.OrganizationRepository = (*memOrgRepo)(nil)

func (r *memOrgRepo) GetByID(_ context.Context, id string) (*entity.Organization, error) {
	o, ok := r.orgs[id]
	if !ok {
		return nil, nil
	}
	return o, nil
}

func (r *memOrgRepo) Upsert(_ context.Context, o *entity.Organization) error {
	if r.orgs == nil {
		r.orgs = map[string]*entity.Organization{}
	}
	r.orgs[o.ID] = o
	return nil
}

// storedInvoice crea una factura de prueba directamente en el repositorio.
func storedInvoice(t *testing.T, repo *memInvoiceRepo, tenantID string, finalize bool) *entity.Invoice {
	t.Helper()
	inv, err := entity.NewDraftInvoice(entity.DraftParams{
		TenantID:    tenantID,
		ContactID:   "c-ch",
		IssueDate:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Currency:    "CHF",
		CountryCode: "CH",
		Now:         fixedNow,
	})
	require.NoError(t, err)
	_, err = inv.AddLineItem(entity.LineItem{
		Description: "Beratung",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.RequireFromString("49.95"),
		TaxRate:     decimal.RequireFromString("8.1"),
	}, fixedNow)
	require.NoError(t, err)
	if finalize {
		require.NoError(t, inv.Finalize(context.Background(), numbering.NewMemorySequencer(), numbering.DefaultFormatter(), fixedNow))
	}
	repo.put(inv)
	return inv
}
