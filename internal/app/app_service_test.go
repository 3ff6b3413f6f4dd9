package app_test

import (
	"context"
	"testing"
	"time"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"
	"crm-workflow/internal/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type harness struct {
	svc     app.ApplicationService
	store   *memstore.Store
	logs    *observer.ObservedLogs
	member  core.Actor
	viewer  core.Actor
	company core.Company
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	clock := func() time.Time { return testNow }
	company := store.AddCompany(core.Company{TenantID: 1, Name: "Acme GmbH", Currency: "EUR", PaymentTermsDays: 14})

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	store.AddUser(core.User{TenantID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: string(hash), Role: core.RoleMember, IsActive: true})
	store.AddUser(core.User{TenantID: 1, Username: "bob", PasswordHash: string(hash), Role: core.RoleViewer, IsActive: false})

	obs, logs := observer.New(zapcore.InfoLevel)
	svc := app.NewAppService(
		core.NewWorkflowService(store, core.WithClock(clock)),
		core.NewDocumentService(store, clock),
		store,
		5*time.Second,
		zap.New(obs),
	)
	return &harness{
		svc:     svc,
		store:   store,
		logs:    logs,
		member:  core.Actor{UserID: 7, TenantID: 1, Role: core.RoleMember},
		viewer:  core.Actor{UserID: 8, TenantID: 1, Role: core.RoleViewer},
		company: company,
	}
}

func (h *harness) quoteInput() core.QuoteInput {
	return core.QuoteInput{
		CompanyID: h.company.ID,
		Lines: []core.LineSpec{{
			Name:      "Consulting",
			Quantity:  decimal.NewFromInt(4),
			UnitPrice: decimal.NewFromInt(250),
			TaxPct:    decimal.NewFromInt(19),
		}},
	}
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.svc.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(1), session.TenantID)
	assert.Equal(t, core.RoleMember, session.Role)

	_, err = h.svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)

	_, err = h.svc.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)

	_, err = h.svc.Authenticate(ctx, "bob", "s3cret")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)
}

func TestViewerCannotWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateQuote(ctx, h.viewer, h.quoteInput())
	assert.True(t, core.IsForbidden(err))

	q, err := h.svc.CreateQuote(ctx, h.member, h.quoteInput())
	require.NoError(t, err)

	_, err = h.svc.ConvertQuoteToOrder(ctx, h.viewer, q.ID, nil)
	assert.True(t, core.IsForbidden(err))
	_, err = h.svc.MarkOverdue(ctx, h.viewer, testNow)
	assert.True(t, core.IsForbidden(err))

	// reads stay open to viewers
	got, err := h.svc.GetQuote(ctx, h.viewer, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.Number, got.Number)
}

func TestConversionFlowReturnsDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	q, err := h.svc.CreateQuote(ctx, h.member, h.quoteInput())
	require.NoError(t, err)
	o, err := h.svc.ConvertQuoteToOrder(ctx, h.member, q.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "1190.00", o.Total.StringFixed(2))

	pct := decimal.NewFromInt(25)
	inv, err := h.svc.ConvertOrderToInvoice(ctx, h.member, o.ID, &core.Customizations{Partial: &core.Partial{Percentage: &pct}})
	require.NoError(t, err)
	assert.Equal(t, "297.50", inv.Total.StringFixed(2))
	assert.Equal(t, core.InvoiceDraft, inv.Status)

	rest, err := h.svc.CreateConsolidatedInvoice(ctx, h.member, app.ConsolidatedInvoiceRequest{
		Orders: []core.OrderAllocationRequest{{OrderID: o.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, "892.50", rest.Total.StringFixed(2))

	chain, err := h.svc.GetDocumentChain(ctx, h.viewer, q.ID)
	require.NoError(t, err)
	assert.Len(t, chain.Invoices, 2)

	report, err := h.svc.VerifyOrder(ctx, h.viewer, o.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent())

	assert.Equal(t, 1, h.logs.FilterMessage("quote converted to order").Len())
	assert.Equal(t, 1, h.logs.FilterMessage("consolidated invoice created").Len())
}

func TestRejectedOperationsAreLogged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ConvertOrderToInvoice(ctx, h.member, 999, nil)
	assert.True(t, core.IsNotFound(err))

	entries := h.logs.FilterMessage("operation rejected").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "order_to_invoice", entries[0].ContextMap()["op"])
}

func TestListsNeverReturnNil(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	quotes, err := h.svc.ListQuotes(ctx, h.viewer, core.ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, quotes.Quotes)

	invoices, err := h.svc.ListInvoices(ctx, h.viewer, core.ListFilter{Status: "paid"})
	require.NoError(t, err)
	assert.NotNil(t, invoices.Invoices)

	_, err = h.svc.ListOrders(ctx, h.viewer, core.ListFilter{Status: "shipped"})
	assert.True(t, core.IsValidation(err))
}

func TestTransitionsAndSweeps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	in := h.quoteInput()
	validUntil := testNow.AddDate(0, 0, -1)
	in.ValidUntil = &validUntil
	q, err := h.svc.CreateQuote(ctx, h.member, in)
	require.NoError(t, err)

	q, err = h.svc.TransitionQuote(ctx, h.member, q.ID, app.TransitionRequest{Status: "sent"})
	require.NoError(t, err)
	assert.Equal(t, core.QuoteSent, q.Status)

	expired, err := h.svc.ExpireQuotes(ctx, h.member, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{q.Number}, expired.Numbers)

	overdue, err := h.svc.MarkOverdue(ctx, h.member, testNow)
	require.NoError(t, err)
	assert.Empty(t, overdue.Numbers)
	assert.NotNil(t, overdue.Numbers)
}
