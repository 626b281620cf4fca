package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/jhoicas/crm-invoicing/internal/domain"
	"github.com/jhoicas/crm-invoicing/internal/domain/entity"
	"github.com/jhoicas/crm-invoicing/internal/domain/numbering"
)

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func sentInvoice(t *testing.T) *entity.Invoice {
	t.Helper()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	inv, err := entity.NewDraftInvoice(entity.DraftParams{
		TenantID: "tenant-a", ContactID: "c-1", Currency: "CHF", CountryCode: "CH",
		IssueDate: now, DueDate: now.AddDate(0, 0, 30), Now: now,
	})
	require.NoError(t, err)
	_, err = inv.AddLineItem(entity.LineItem{Description: "Beratung", Quantity: decimal.NewFromInt(2),
		UnitPrice: decimal.RequireFromString("49.95"), TaxRate: decimal.RequireFromString("8.1")}, now)
	require.NoError(t, err)
	_, err = inv.AddLineItem(entity.LineItem{Description: "Bücher", Quantity: decimal.NewFromInt(1),
		UnitPrice: decimal.RequireFromString("120.00"), TaxRate: decimal.RequireFromString("2.6")}, now)
	require.NoError(t, err)
	require.NoError(t, inv.Finalize(context.Background(), numbering.NewMemorySequencer(), numbering.DefaultFormatter(), now))
	return inv
}

func newTestProvider(t *testing.T, sessions *fakeSessions) *StripeProvider {
	t.Helper()
	p, err := NewStripeProvider(StripeConfig{
		SuccessURL: "https://crm.example/paid",
		CancelURL:  "https://crm.example/cancel",
		sessions:   sessions,
	})
	require.NoError(t, err)
	return p
}

func TestCreatePaymentLink_ArmaLaSesion(t *testing.T) {
	sessions := &fakeSessions{}
	inv := sentInvoice(t)

	link, err := newTestProvider(t, sessions).CreatePaymentLink(context.Background(), inv)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", link.Reference)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", link.URL)

	p := sessions.params
	require.NotNil(t, p)
	assert.Equal(t, "payment", *p.Mode)
	assert.Equal(t, inv.ID, *p.ClientReferenceID)
	assert.Equal(t, inv.ID, p.Metadata[MetadataInvoiceID])
	assert.Equal(t, inv.ID, p.PaymentIntentData.Metadata[MetadataInvoiceID])
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, int64(23111), *p.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "chf", *p.LineItems[0].PriceData.Currency)
	assert.Equal(t, "Invoice RE-2026-00001", *p.LineItems[0].PriceData.ProductData.Name)
	require.NotNil(t, p.IdempotencyKey)
	assert.Equal(t, "invoice-"+inv.ID+"-23111", *p.IdempotencyKey)
}

func TestCreatePaymentLink_Errores(t *testing.T) {
	_, err := newTestProvider(t, &fakeSessions{}).CreatePaymentLink(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	now := time.Now()
	empty, err := entity.NewDraftInvoice(entity.DraftParams{
		TenantID: "t", ContactID: "c", Currency: "EUR", CountryCode: "DE", IssueDate: now, DueDate: now, Now: now,
	})
	require.NoError(t, err)
	_, err = newTestProvider(t, &fakeSessions{}).CreatePaymentLink(context.Background(), empty)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = newTestProvider(t, &fakeSessions{err: errors.New("card_declined")}).
		CreatePaymentLink(context.Background(), sentInvoice(t))
	assert.ErrorContains(t, err, "card_declined")
}

func TestNewStripeProvider_Validacion(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{SuccessURL: "a", CancelURL: "b"})
	assert.Error(t, err, "sin secret key")

	_, err = NewStripeProvider(StripeConfig{SecretKey: "sk_test_x"})
	assert.Error(t, err, "sin URLs de retorno")

	p, err := NewStripeProvider(StripeConfig{SecretKey: "sk_test_x", SuccessURL: "a", CancelURL: "b"})
	require.NoError(t, err)
	assert.NotNil(t, p.sessions)
}
