package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"crm-workflow/internal/core"
	"crm-workflow/internal/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memstore.Store
	wf      core.WorkflowService
	docs    core.DocumentService
	actor   core.Actor
	company core.Company
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	clock := func() time.Time { return testNow }
	company := store.AddCompany(core.Company{TenantID: 1, Name: "Acme GmbH", Currency: "EUR", PaymentTermsDays: 14})
	return &fixture{
		store:   store,
		wf:      core.NewWorkflowService(store, core.WithClock(clock), core.WithDefaultPaymentTerms(30)),
		docs:    core.NewDocumentService(store, clock),
		actor:   core.Actor{UserID: 7, TenantID: 1, Role: core.RoleMember},
		company: company,
	}
}

func (f *fixture) quote(t *testing.T, lines ...core.LineSpec) *core.Quote {
	t.Helper()
	q, err := f.docs.CreateQuote(context.Background(), f.actor, core.QuoteInput{CompanyID: f.company.ID, Lines: lines})
	require.NoError(t, err)
	return q
}

// order creates a quote with the given lines and converts it.
func (f *fixture) order(t *testing.T, lines ...core.LineSpec) *core.Order {
	t.Helper()
	q := f.quote(t, lines...)
	o, err := f.wf.ConvertQuoteToOrder(context.Background(), q.ID, f.actor, nil)
	require.NoError(t, err)
	return o
}

func (f *fixture) reload(t *testing.T, orderID int64) *core.Order {
	t.Helper()
	o, err := f.docs.GetOrder(context.Background(), f.actor.TenantID, orderID)
	require.NoError(t, err)
	return o
}

func (f *fixture) assertConsistent(t *testing.T, orderID int64) {
	t.Helper()
	r, err := f.wf.VerifyOrder(context.Background(), orderID, f.actor.TenantID)
	require.NoError(t, err)
	assert.True(t, r.Consistent(), "ledger problems: %v", r.Problems)
}

func TestQuoteToOrder_CopiesTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q := f.quote(t, line("Widget", "10", "100", "0", "0"))
	assertAmount(t, "1000", q.Subtotal)
	assertAmount(t, "0", q.Tax)
	assertAmount(t, "1000", q.Total)
	assert.Equal(t, core.QuoteDraft, q.Status)
	assert.Equal(t, "QUO-2026-00001", q.Number)

	o, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, nil)
	require.NoError(t, err)
	assertAmount(t, "1000", o.Total)
	assertAmount(t, "0", o.InvoicedAmount)
	assertAmount(t, "1000", o.RemainingAmount)
	assert.Equal(t, core.OrderPending, o.Status)
	assert.Equal(t, "ORD-2026-00001", o.Number)
	require.NotNil(t, o.QuoteID)
	assert.Equal(t, q.ID, *o.QuoteID)
	assert.Equal(t, f.actor.UserID, o.CreatedBy)

	q, err = f.docs.GetQuote(ctx, f.actor.TenantID, q.ID)
	require.NoError(t, err)
	require.NotNil(t, q.ConvertedToOrderAt)
	assert.Equal(t, core.QuoteDraft, q.Status, "quote stays live while its order is open")
	f.assertConsistent(t, o.ID)
}

func TestQuoteToOrder_PreservesLines(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t,
		line("Consulting", "12.5", "140", "7.5", "19"),
		line("Licence", "3", "999.99", "0", "19"),
		line("Travel", "1", "312.40", "0", "0"),
	)

	o, err := f.wf.ConvertQuoteToOrder(context.Background(), q.ID, f.actor, nil)
	require.NoError(t, err)
	require.Len(t, o.Lines, len(q.Lines))
	for i, ql := range q.Lines {
		ol := o.Lines[i]
		assert.Equal(t, ql.Name, ol.Name)
		assert.True(t, ql.Quantity.Equal(ol.Quantity))
		assert.True(t, ql.LineTotal.Equal(ol.LineTotal), "line %d: %s != %s", i, ql.LineTotal, ol.LineTotal)
		require.NotNil(t, ol.QuoteItemID)
		assert.Equal(t, ql.ID, *ol.QuoteItemID)
	}
	assert.True(t, q.Subtotal.Equal(o.Subtotal))
	assert.True(t, q.Tax.Equal(o.Tax))
	assert.True(t, q.Discount.Equal(o.Discount))
	assert.True(t, q.Total.Equal(o.Total))
}

func TestQuoteToOrder_CustomLinesRecomputeTotals(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t, line("Widget", "10", "100", "0", "0"))
	notes := "rush delivery"

	o, err := f.wf.ConvertQuoteToOrder(context.Background(), q.ID, f.actor, &core.Customizations{
		Lines: []core.LineSpec{line("Widget", "5", "100", "10", "20")},
		Notes: &notes,
	})
	require.NoError(t, err)
	assertAmount(t, "450", o.Subtotal)
	assertAmount(t, "50", o.Discount)
	assertAmount(t, "90", o.Tax)
	assertAmount(t, "540", o.Total)
	assertAmount(t, "540", o.RemainingAmount)
	assert.Equal(t, notes, o.Notes)
	assert.Nil(t, o.Lines[0].QuoteItemID)
}

func TestOrderToInvoice_PartialThenRemainder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, line("Widget", "10", "100", "0", "0"))

	invID, err := f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, &core.Customizations{
		Partial: &core.Partial{Percentage: decp("40")},
	})
	require.NoError(t, err)
	inv, err := f.docs.GetInvoice(ctx, f.actor.TenantID, invID)
	require.NoError(t, err)
	assertAmount(t, "400", inv.Total)
	assertAmount(t, "400", inv.RemainingAmount)
	assert.Equal(t, core.InvoiceDraft, inv.Status)
	require.Len(t, inv.Lines, 1)
	assert.True(t, inv.Lines[0].Quantity.Equal(dec("4")))
	require.NotNil(t, inv.Lines[0].OrderItemID)
	assert.Equal(t, o.Lines[0].ID, *inv.Lines[0].OrderItemID)
	assert.Equal(t, testNow.AddDate(0, 0, 14), inv.DueDate, "company payment terms apply")
	assert.NotNil(t, inv.AccessToken)

	o = f.reload(t, o.ID)
	assertAmount(t, "400", o.InvoicedAmount)
	assertAmount(t, "600", o.RemainingAmount)
	assert.Equal(t, core.OrderPartiallyInvoiced, o.Status)
	f.assertConsistent(t, o.ID)

	_, err = f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, nil)
	require.NoError(t, err)

	o = f.reload(t, o.ID)
	assertAmount(t, "1000", o.InvoicedAmount)
	assertAmount(t, "0", o.RemainingAmount)
	assert.Equal(t, core.OrderInvoiced, o.Status)
	assert.True(t, o.Lines[0].InvoicedQuantity.Equal(dec("10")))
	assertAmount(t, "1000", o.Lines[0].InvoicedAmount)
	f.assertConsistent(t, o.ID)

	_, err = f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, nil)
	assert.True(t, core.IsConflict(err), "fully invoiced order: got %v", err)
}

func TestConsolidatedInvoice_FullOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o1 := f.order(t, line("A", "10", "100", "0", "0"))
	o2 := f.order(t, line("B", "20", "100", "0", "0"))
	o3 := f.order(t, line("C", "15", "100", "0", "0"))

	invID, err := f.wf.CreateConsolidatedInvoice(ctx, f.actor, []core.OrderAllocationRequest{
		{OrderID: o1.ID}, {OrderID: o2.ID}, {OrderID: o3.ID},
	}, nil)
	require.NoError(t, err)

	inv, err := f.docs.GetInvoice(ctx, f.actor.TenantID, invID)
	require.NoError(t, err)
	assertAmount(t, "4500", inv.Total)
	assert.Len(t, inv.Lines, 3)

	var allocated int
	for _, a := range f.store.Allocations() {
		if a.InvoiceID == invID {
			allocated++
		}
	}
	assert.Equal(t, 3, allocated)

	for _, id := range []int64{o1.ID, o2.ID, o3.ID} {
		o := f.reload(t, id)
		assertAmount(t, "0", o.RemainingAmount, o.Number)
		assert.Equal(t, core.OrderInvoiced, o.Status, o.Number)
		f.assertConsistent(t, id)
	}
}

func TestConsolidated_PartialAllocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o1 := f.order(t, line("A", "10", "100", "0", "20"))
	o2 := f.order(t, line("B", "1", "250", "0", "0"), line("C", "3", "50", "0", "0"))

	invID, err := f.wf.CreateConsolidatedInvoice(ctx, f.actor, []core.OrderAllocationRequest{
		{OrderID: o1.ID, AmountAllocated: decp("300")},
		{OrderID: o2.ID, AmountAllocated: decp("100")},
	}, nil)
	require.NoError(t, err)

	inv, err := f.docs.GetInvoice(ctx, f.actor.TenantID, invID)
	require.NoError(t, err)
	assertAmount(t, "400", inv.Total)
	assertAmount(t, "50", inv.Tax)

	o1 = f.reload(t, o1.ID)
	assertAmount(t, "900", o1.RemainingAmount)
	o2 = f.reload(t, o2.ID)
	assertAmount(t, "300", o2.RemainingAmount)
	assertAmount(t, "62.50", o2.Lines[0].InvoicedAmount)
	assertAmount(t, "37.50", o2.Lines[1].InvoicedAmount)
	f.assertConsistent(t, o1.ID)
	f.assertConsistent(t, o2.ID)
}

func TestConsolidated_FailureLeavesOrdersUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o1 := f.order(t, line("A", "10", "100", "0", "0"))
	o2 := f.order(t, line("B", "1", "500", "0", "0"))

	_, err := f.wf.CreateConsolidatedInvoice(ctx, f.actor, []core.OrderAllocationRequest{
		{OrderID: o1.ID},
		{OrderID: o2.ID, AmountAllocated: decp("500.01")},
	}, nil)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err), "got %v", err)

	o1 = f.reload(t, o1.ID)
	assertAmount(t, "0", o1.InvoicedAmount)
	assertAmount(t, "1000", o1.RemainingAmount)
	assert.Equal(t, core.OrderPending, o1.Status)
	assert.Empty(t, f.store.Allocations())

	invoices, err := f.docs.ListInvoices(ctx, f.actor.TenantID, core.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestConsolidated_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o1 := f.order(t, line("A", "1", "100", "0", "0"))

	other := f.store.AddCompany(core.Company{TenantID: 1, Name: "Globex", Currency: "EUR"})
	q, err := f.docs.CreateQuote(ctx, f.actor, core.QuoteInput{CompanyID: other.ID, Lines: []core.LineSpec{line("B", "1", "100", "0", "0")}})
	require.NoError(t, err)
	o2, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, nil)
	require.NoError(t, err)

	usd := "USD"
	q, err = f.docs.CreateQuote(ctx, f.actor, core.QuoteInput{CompanyID: f.company.ID, Currency: usd, Lines: []core.LineSpec{line("C", "1", "100", "0", "0")}})
	require.NoError(t, err)
	o3, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, nil)
	require.NoError(t, err)

	foreign := core.Actor{UserID: 99, TenantID: 2, Role: core.RoleAdmin}
	foreignCompany := f.store.AddCompany(core.Company{TenantID: 2, Name: "Initech", Currency: "EUR"})
	q, err = f.docs.CreateQuote(ctx, foreign, core.QuoteInput{CompanyID: foreignCompany.ID, Lines: []core.LineSpec{line("D", "1", "100", "0", "0")}})
	require.NoError(t, err)
	foreignOrder, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, foreign, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		actor   core.Actor
		entries []core.OrderAllocationRequest
		check   func(error) bool
	}{
		{"empty", f.actor, nil, core.IsValidation},
		{"duplicate", f.actor, []core.OrderAllocationRequest{{OrderID: o1.ID}, {OrderID: o1.ID}}, core.IsValidation},
		{"different company", f.actor, []core.OrderAllocationRequest{{OrderID: o1.ID}, {OrderID: o2.ID}}, core.IsValidation},
		{"different currency", f.actor, []core.OrderAllocationRequest{{OrderID: o1.ID}, {OrderID: o3.ID}}, core.IsValidation},
		{"zero amount", f.actor, []core.OrderAllocationRequest{{OrderID: o1.ID, AmountAllocated: decp("0")}}, core.IsValidation},
		{"other tenant", foreign, []core.OrderAllocationRequest{{OrderID: o1.ID}}, core.IsValidation},
		{"mixed tenants", f.actor, []core.OrderAllocationRequest{{OrderID: o1.ID}, {OrderID: foreignOrder.ID}}, core.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.wf.CreateConsolidatedInvoice(ctx, tt.actor, tt.entries, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %T: %v", err, err)
		})
	}
	assert.Empty(t, f.store.Allocations())
}

func TestUpdateQuote_ConvertedIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.quote(t, line("Widget", "1", "100", "0", "0"))

	_, err := f.wf.ConvertQuoteToInvoice(ctx, q.ID, f.actor, nil)
	require.NoError(t, err)

	q, err = f.docs.GetQuote(ctx, f.actor.TenantID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, core.QuoteConverted, q.Status)

	_, err = f.docs.UpdateQuote(ctx, f.actor, q.ID, core.QuoteInput{
		CompanyID: f.company.ID,
		Lines:     []core.LineSpec{line("Widget", "2", "100", "0", "0")},
	})
	require.Error(t, err)
	assert.True(t, core.IsConflict(err), "got %v", err)

	err = f.docs.DeleteQuote(ctx, f.actor, q.ID)
	assert.True(t, core.IsConflict(err), "got %v", err)
}

func TestOrderToInvoice_AmountExceedsRemaining(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, line("Widget", "10", "100", "0", "0"))
	_, err := f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, &core.Customizations{Partial: &core.Partial{Amount: decp("250")}})
	require.NoError(t, err)
	before := f.reload(t, o.ID)

	_, err = f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, &core.Customizations{Partial: &core.Partial{Amount: decp("750.01")}})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err), "got %v", err)

	after := f.reload(t, o.ID)
	assert.Equal(t, before.Version, after.Version)
	assertAmount(t, "250", after.InvoicedAmount)
	assertAmount(t, "750", after.RemainingAmount)
	assert.Len(t, f.store.Allocations(), 1)
}

func TestOrderToInvoice_PartialRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, line("Widget", "10", "100", "0", "0"))

	tests := []struct {
		name    string
		partial *core.Partial
	}{
		{"zero percent", &core.Partial{Percentage: decp("0")}},
		{"over hundred percent", &core.Partial{Percentage: decp("100.5")}},
		{"negative amount", &core.Partial{Amount: decp("-1")}},
		{"sub-cent amount", &core.Partial{Amount: decp("10.001")}},
		{"both set", &core.Partial{Percentage: decp("10"), Amount: decp("100")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, &core.Customizations{Partial: tt.partial})
			assert.True(t, core.IsValidation(err), "got %v", err)
		})
	}
	assert.Empty(t, f.store.Allocations())
}

func TestOrderToInvoice_StatusGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, status := range []core.OrderStatus{core.OrderOnHold, core.OrderCancelled} {
		t.Run(string(status), func(t *testing.T) {
			o := f.order(t, line("Widget", "1", "100", "0", "0"))
			_, err := f.docs.TransitionOrder(ctx, f.actor, o.ID, status)
			require.NoError(t, err)
			_, err = f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, nil)
			assert.True(t, core.IsConflict(err), "got %v", err)
		})
	}

	t.Run("fulfilled", func(t *testing.T) {
		o := f.order(t, line("Widget", "1", "100", "0", "0"))
		for _, s := range []core.OrderStatus{core.OrderConfirmed, core.OrderProcessing, core.OrderFulfilled} {
			_, err := f.docs.TransitionOrder(ctx, f.actor, o.ID, s)
			require.NoError(t, err)
		}
		_, err := f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, nil)
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := f.wf.ConvertOrderToInvoice(ctx, 4242, f.actor, nil)
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})
}

func TestOrderToInvoice_ProratesAcrossLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t,
		line("Consulting", "12.5", "140", "7.5", "19"),
		line("Licence", "3", "999.99", "0", "19"),
		line("Travel", "1", "312.40", "0", "0"),
	)
	total := o.Total

	for _, pct := range []string{"33", "50"} {
		invID, err := f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, &core.Customizations{
			Partial: &core.Partial{Percentage: decp(pct)},
		})
		require.NoError(t, err)
		inv, err := f.docs.GetInvoice(ctx, f.actor.TenantID, invID)
		require.NoError(t, err)

		var lineSum = dec("0")
		for _, l := range inv.Lines {
			lineSum = lineSum.Add(l.LineTotal)
			assert.True(t, l.Subtotal.Add(l.TaxAmount).Equal(l.LineTotal))
		}
		assert.True(t, inv.Total.Equal(lineSum), "invoice total %s != line sum %s", inv.Total, lineSum)
		f.assertConsistent(t, o.ID)
	}

	_, err := f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, nil)
	require.NoError(t, err)

	o = f.reload(t, o.ID)
	assert.True(t, o.InvoicedAmount.Equal(total))
	assert.Equal(t, core.OrderInvoiced, o.Status)
	for _, l := range o.Lines {
		assert.True(t, l.InvoicedAmount.Equal(l.LineTotal), "%s: invoiced %s of %s", l.Name, l.InvoicedAmount, l.LineTotal)
		assert.True(t, l.InvoicedQuantity.Equal(l.Quantity), "%s: invoiced qty %s of %s", l.Name, l.InvoicedQuantity, l.Quantity)
	}
	f.assertConsistent(t, o.ID)
}

func TestOrderToInvoice_ConcurrentRequestsCannotOverAllocate(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, line("Widget", "10", "100", "0", "0"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.wf.ConvertOrderToInvoice(context.Background(), o.ID, f.actor, &core.Customizations{
				Partial: &core.Partial{Amount: decp("600")},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, core.IsValidation(err) || core.IsRetryable(err), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	o = f.reload(t, o.ID)
	assertAmount(t, "600", o.InvoicedAmount)
	assertAmount(t, "400", o.RemainingAmount)
	f.assertConsistent(t, o.ID)
}

func TestIdempotencyKey_ReplaysReturnOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.quote(t, line("Widget", "10", "100", "0", "0"))

	c := &core.Customizations{IdempotencyKey: "req-1"}
	first, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, c)
	require.NoError(t, err)
	again, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, c)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	ic := &core.Customizations{IdempotencyKey: "inv-1", Partial: &core.Partial{Percentage: decp("25")}}
	inv1, err := f.wf.ConvertOrderToInvoice(ctx, first.ID, f.actor, ic)
	require.NoError(t, err)
	inv2, err := f.wf.ConvertOrderToInvoice(ctx, first.ID, f.actor, ic)
	require.NoError(t, err)
	assert.Equal(t, inv1, inv2)

	o := f.reload(t, first.ID)
	assertAmount(t, "250", o.InvoicedAmount)
	assert.Len(t, f.store.Allocations(), 1)

	// Same key, different order.
	other := f.order(t, line("Gadget", "1", "10", "0", "0"))
	_, err = f.wf.ConvertOrderToInvoice(ctx, other.ID, f.actor, ic)
	assert.True(t, core.IsConflict(err), "got %v", err)
}

func TestQuoteConversionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("second order from same quote", func(t *testing.T) {
		q := f.quote(t, line("Widget", "1", "100", "0", "0"))
		_, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, nil)
		require.NoError(t, err)
		_, err = f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, nil)
		assert.True(t, core.IsConflict(err), "got %v", err)
		_, err = f.wf.ConvertQuoteToInvoice(ctx, q.ID, f.actor, nil)
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("rejected quote", func(t *testing.T) {
		q := f.quote(t, line("Widget", "1", "100", "0", "0"))
		_, err := f.docs.TransitionQuote(ctx, f.actor, q.ID, core.QuoteSent)
		require.NoError(t, err)
		_, err = f.docs.TransitionQuote(ctx, f.actor, q.ID, core.QuoteRejected)
		require.NoError(t, err)
		_, err = f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, nil)
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("quote converted once its order is fully invoiced", func(t *testing.T) {
		q := f.quote(t, line("Widget", "10", "100", "0", "0"))
		_, err := f.docs.TransitionQuote(ctx, f.actor, q.ID, core.QuoteSent)
		require.NoError(t, err)
		o, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, nil)
		require.NoError(t, err)

		_, err = f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, &core.Customizations{Partial: &core.Partial{Percentage: decp("50")}})
		require.NoError(t, err)
		q, err = f.docs.GetQuote(ctx, f.actor.TenantID, q.ID)
		require.NoError(t, err)
		assert.Equal(t, core.QuoteSent, q.Status)

		_, err = f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, nil)
		require.NoError(t, err)
		q, err = f.docs.GetQuote(ctx, f.actor.TenantID, q.ID)
		require.NoError(t, err)
		assert.Equal(t, core.QuoteConverted, q.Status)
	})

	t.Run("quote to invoice copies lines", func(t *testing.T) {
		q := f.quote(t, line("Widget", "2", "49.99", "10", "20"))
		terms := 45
		invID, err := f.wf.ConvertQuoteToInvoice(ctx, q.ID, f.actor, &core.Customizations{PaymentTermsDays: &terms})
		require.NoError(t, err)
		inv, err := f.docs.GetInvoice(ctx, f.actor.TenantID, invID)
		require.NoError(t, err)
		require.NotNil(t, inv.QuoteID)
		assert.Equal(t, q.ID, *inv.QuoteID)
		assertAmount(t, "107.98", inv.Total)
		assertAmount(t, "89.98", inv.Subtotal)
		assertAmount(t, "10.00", inv.Discount)
		assert.Equal(t, testNow.AddDate(0, 0, 45), inv.DueDate)
		require.Len(t, inv.Lines, 1)
		require.NotNil(t, inv.Lines[0].QuoteItemID)
		assert.Nil(t, inv.Lines[0].OrderItemID)
	})

	t.Run("missing quote", func(t *testing.T) {
		_, err := f.wf.ConvertQuoteToOrder(ctx, 4242, f.actor, nil)
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})
}

func TestGetDocumentChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.quote(t, line("Widget", "10", "100", "0", "0"))
	o, err := f.wf.ConvertQuoteToOrder(ctx, q.ID, f.actor, nil)
	require.NoError(t, err)
	inv1, err := f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, &core.Customizations{Partial: &core.Partial{Amount: decp("300")}})
	require.NoError(t, err)
	inv2, err := f.wf.ConvertOrderToInvoice(ctx, o.ID, f.actor, nil)
	require.NoError(t, err)

	chain, err := f.wf.GetDocumentChain(ctx, q.ID, f.actor.TenantID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, chain.Quote.ID)
	require.Len(t, chain.Orders, 1)
	require.Len(t, chain.Invoices, 2)
	assert.Equal(t, inv1, chain.Invoices[0].ID)
	assert.Equal(t, inv2, chain.Invoices[1].ID)
	assert.Len(t, chain.Allocations, 2)
	require.Len(t, chain.Edges, 3)

	assert.Equal(t, core.DocQuote, chain.Edges[0].From.Type)
	assert.Equal(t, core.DocOrder, chain.Edges[0].To.Type)
	assertAmount(t, "1000", chain.Edges[0].Amount)
	assert.Equal(t, core.DocOrder, chain.Edges[1].From.Type)
	assertAmount(t, "300", chain.Edges[1].Amount)
	assertAmount(t, "700", chain.Edges[2].Amount)

	_, err = f.wf.GetDocumentChain(ctx, q.ID, 2)
	assert.True(t, core.IsNotFound(err), "other tenant must not see the chain: %v", err)
}

func TestGetDocumentChain_DirectInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.quote(t, line("Widget", "1", "100", "0", "0"))
	invID, err := f.wf.ConvertQuoteToInvoice(ctx, q.ID, f.actor, nil)
	require.NoError(t, err)

	chain, err := f.wf.GetDocumentChain(ctx, q.ID, f.actor.TenantID)
	require.NoError(t, err)
	assert.Empty(t, chain.Orders)
	require.Len(t, chain.Invoices, 1)
	assert.Equal(t, invID, chain.Invoices[0].ID)
	require.Len(t, chain.Edges, 1)
	assert.Equal(t, core.DocInvoice, chain.Edges[0].To.Type)
}

func TestDocumentNumbers_AreSequentialPerType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o1 := f.order(t, line("A", "1", "1", "0", "0"))
	o2 := f.order(t, line("B", "1", "1", "0", "0"))
	assert.Equal(t, "ORD-2026-00001", o1.Number)
	assert.Equal(t, "ORD-2026-00002", o2.Number)

	id, err := f.wf.ConvertOrderToInvoice(ctx, o2.ID, f.actor, nil)
	require.NoError(t, err)
	inv, err := f.docs.GetInvoice(ctx, f.actor.TenantID, id)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00001", inv.Number)
}
