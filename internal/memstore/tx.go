package memstore

import (
	"context"
	"errors"
	"time"

	"crm-workflow/internal/core"
)

var errReadOnly = errors.New("memstore: write in read-only transaction")

// tx implements core.Tx over a private copy of the store state.
// Row locks are implicit: only one transaction runs at a time.
type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func copyQuote(q core.Quote) *core.Quote {
	q.Lines = append([]core.QuoteLineItem(nil), q.Lines...)
	return &q
}

func copyOrder(o core.Order) *core.Order {
	o.Lines = append([]core.OrderLineItem(nil), o.Lines...)
	return &o
}

func copyInvoice(inv core.Invoice) *core.Invoice {
	inv.Lines = append([]core.InvoiceLineItem(nil), inv.Lines...)
	return &inv
}

// ── Companies ────────────────────────────────────────────────────────────────

func (t *tx) GetCompany(ctx context.Context, tenantID, companyID int64) (*core.Company, error) {
	c, ok := t.st.companies[companyID]
	if !ok || c.TenantID != tenantID {
		return nil, core.NewNotFound("company", companyID)
	}
	return &c, nil
}

// ── Quotes ───────────────────────────────────────────────────────────────────

func (t *tx) GetQuote(ctx context.Context, tenantID, quoteID int64, lock bool) (*core.Quote, error) {
	q, ok := t.st.quotes[quoteID]
	if !ok || q.TenantID != tenantID {
		return nil, core.NewNotFound("quote", quoteID)
	}
	return copyQuote(q), nil
}

func (t *tx) ListQuotes(ctx context.Context, tenantID int64, f core.ListFilter) ([]core.Quote, error) {
	var out []core.Quote
	for _, id := range sortedIDs(t.st.quotes) {
		q := t.st.quotes[id]
		if q.TenantID != tenantID {
			continue
		}
		if f.Status != "" && string(q.Status) != f.Status {
			continue
		}
		if f.CompanyID != nil && q.CompanyID != *f.CompanyID {
			continue
		}
		out = append(out, *copyQuote(q))
	}
	return limit(out, f.Limit), nil
}

func (t *tx) InsertQuote(ctx context.Context, q *core.Quote) error {
	if err := t.writable(); err != nil {
		return err
	}
	q.ID = t.st.id()
	t.assignQuoteLines(q)
	t.st.quotes[q.ID] = *copyQuote(*q)
	return nil
}

func (t *tx) assignQuoteLines(q *core.Quote) {
	for i := range q.Lines {
		q.Lines[i].ID = t.st.id()
		q.Lines[i].QuoteID = q.ID
	}
}

func (t *tx) UpdateQuote(ctx context.Context, q *core.Quote, lines bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.quotes[q.ID]
	if !ok || existing.TenantID != q.TenantID {
		return core.NewNotFound("quote", q.ID)
	}
	if lines {
		t.assignQuoteLines(q)
	} else {
		q.Lines = existing.Lines
	}
	t.st.quotes[q.ID] = *copyQuote(*q)
	return nil
}

func (t *tx) DeleteQuote(ctx context.Context, tenantID, quoteID int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	q, ok := t.st.quotes[quoteID]
	if !ok || q.TenantID != tenantID {
		return core.NewNotFound("quote", quoteID)
	}
	delete(t.st.quotes, quoteID)
	return nil
}

func (t *tx) ListQuotesValidBefore(ctx context.Context, tenantID int64, asOf time.Time) ([]core.Quote, error) {
	var out []core.Quote
	for _, id := range sortedIDs(t.st.quotes) {
		q := t.st.quotes[id]
		if q.TenantID == tenantID && q.ValidUntil != nil && q.ValidUntil.Before(asOf) && !q.Status.Terminal() {
			out = append(out, *copyQuote(q))
		}
	}
	return out, nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (t *tx) GetOrder(ctx context.Context, tenantID, orderID int64, lock bool) (*core.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, core.NewNotFound("order", orderID)
	}
	return copyOrder(o), nil
}

func (t *tx) ListOrders(ctx context.Context, tenantID int64, f core.ListFilter) ([]core.Order, error) {
	var out []core.Order
	for _, id := range sortedIDs(t.st.orders) {
		o := t.st.orders[id]
		if o.TenantID != tenantID {
			continue
		}
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.CompanyID != nil && o.CompanyID != *f.CompanyID {
			continue
		}
		out = append(out, *copyOrder(o))
	}
	return limit(out, f.Limit), nil
}

func (t *tx) ListOrdersByQuote(ctx context.Context, tenantID, quoteID int64) ([]core.Order, error) {
	var out []core.Order
	for _, id := range sortedIDs(t.st.orders) {
		o := t.st.orders[id]
		if o.TenantID == tenantID && o.QuoteID != nil && *o.QuoteID == quoteID {
			out = append(out, *copyOrder(o))
		}
	}
	return out, nil
}

func (t *tx) FindOrderByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*core.Order, error) {
	for _, o := range t.st.orders {
		if o.TenantID == tenantID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return copyOrder(o), nil
		}
	}
	return nil, core.NewNotFound("order", key)
}

func (t *tx) InsertOrder(ctx context.Context, o *core.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	if o.IdempotencyKey != nil {
		if _, err := t.FindOrderByIdempotencyKey(ctx, o.TenantID, *o.IdempotencyKey); err == nil {
			return core.NewConflict("order", *o.IdempotencyKey, "idempotency key already used")
		}
	}
	o.ID = t.st.id()
	o.Version = 1
	t.assignOrderLines(o)
	t.st.orders[o.ID] = *copyOrder(*o)
	return nil
}

func (t *tx) assignOrderLines(o *core.Order) {
	for i := range o.Lines {
		o.Lines[i].ID = t.st.id()
		o.Lines[i].OrderID = o.ID
	}
}

func (t *tx) UpdateOrder(ctx context.Context, o *core.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.orders[o.ID]
	if !ok || existing.TenantID != o.TenantID {
		return core.NewNotFound("order", o.ID)
	}
	if existing.Version != o.Version {
		return core.NewRetryableConflict("order", o.Number, "modified concurrently (version %d, expected %d)", existing.Version, o.Version)
	}
	o.Version++
	updated := *o
	updated.Lines = existing.Lines
	t.st.orders[o.ID] = *copyOrder(updated)
	return nil
}

func (t *tx) UpdateOrderLines(ctx context.Context, o *core.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.orders[o.ID]
	if !ok || existing.TenantID != o.TenantID {
		return core.NewNotFound("order", o.ID)
	}
	lines := append([]core.OrderLineItem(nil), existing.Lines...)
	for i := range lines {
		for _, l := range o.Lines {
			if l.ID == lines[i].ID {
				lines[i].FulfilledQuantity = l.FulfilledQuantity
				lines[i].InvoicedQuantity = l.InvoicedQuantity
				lines[i].InvoicedAmount = l.InvoicedAmount
			}
		}
	}
	existing.Lines = lines
	t.st.orders[o.ID] = existing
	return nil
}

func (t *tx) ReplaceOrderLines(ctx context.Context, o *core.Order) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.orders[o.ID]
	if !ok || existing.TenantID != o.TenantID {
		return core.NewNotFound("order", o.ID)
	}
	t.assignOrderLines(o)
	existing.Lines = append([]core.OrderLineItem(nil), o.Lines...)
	t.st.orders[o.ID] = existing
	return nil
}

func (t *tx) DeleteOrder(ctx context.Context, tenantID, orderID int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return core.NewNotFound("order", orderID)
	}
	delete(t.st.orders, orderID)
	return nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (t *tx) GetInvoice(ctx context.Context, tenantID, invoiceID int64, lock bool) (*core.Invoice, error) {
	inv, ok := t.st.invoices[invoiceID]
	if !ok || inv.TenantID != tenantID {
		return nil, core.NewNotFound("invoice", invoiceID)
	}
	return copyInvoice(inv), nil
}

func (t *tx) GetInvoiceByToken(ctx context.Context, token string) (*core.Invoice, error) {
	for _, inv := range t.st.invoices {
		if inv.AccessToken != nil && *inv.AccessToken == token {
			return copyInvoice(inv), nil
		}
	}
	return nil, core.NewNotFound("invoice", "token")
}

func (t *tx) ListInvoices(ctx context.Context, tenantID int64, f core.ListFilter) ([]core.Invoice, error) {
	var out []core.Invoice
	for _, id := range sortedIDs(t.st.invoices) {
		inv := t.st.invoices[id]
		if inv.TenantID != tenantID {
			continue
		}
		if f.Status != "" && string(inv.Status) != f.Status {
			continue
		}
		if f.CompanyID != nil && inv.CompanyID != *f.CompanyID {
			continue
		}
		out = append(out, *copyInvoice(inv))
	}
	return limit(out, f.Limit), nil
}

func (t *tx) ListInvoicesByQuote(ctx context.Context, tenantID, quoteID int64) ([]core.Invoice, error) {
	var out []core.Invoice
	for _, id := range sortedIDs(t.st.invoices) {
		inv := t.st.invoices[id]
		if inv.TenantID == tenantID && inv.QuoteID != nil && *inv.QuoteID == quoteID {
			out = append(out, *copyInvoice(inv))
		}
	}
	return out, nil
}

func (t *tx) ListInvoicesByIDs(ctx context.Context, tenantID int64, ids []int64) ([]core.Invoice, error) {
	var out []core.Invoice
	for _, id := range ids {
		if inv, ok := t.st.invoices[id]; ok && inv.TenantID == tenantID {
			out = append(out, *copyInvoice(inv))
		}
	}
	return out, nil
}

func (t *tx) ListInvoicesDueBefore(ctx context.Context, tenantID int64, asOf time.Time) ([]core.Invoice, error) {
	var out []core.Invoice
	for _, id := range sortedIDs(t.st.invoices) {
		inv := t.st.invoices[id]
		if inv.TenantID != tenantID || !inv.DueDate.Before(asOf) {
			continue
		}
		switch inv.Status {
		case core.InvoiceSent, core.InvoiceViewed, core.InvoicePartiallyPaid:
			out = append(out, *copyInvoice(inv))
		}
	}
	return out, nil
}

func (t *tx) FindInvoiceByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*core.Invoice, error) {
	for _, inv := range t.st.invoices {
		if inv.TenantID == tenantID && inv.IdempotencyKey != nil && *inv.IdempotencyKey == key {
			return copyInvoice(inv), nil
		}
	}
	return nil, core.NewNotFound("invoice", key)
}

func (t *tx) InsertInvoice(ctx context.Context, inv *core.Invoice) error {
	if err := t.writable(); err != nil {
		return err
	}
	if inv.IdempotencyKey != nil {
		if _, err := t.FindInvoiceByIdempotencyKey(ctx, inv.TenantID, *inv.IdempotencyKey); err == nil {
			return core.NewConflict("invoice", *inv.IdempotencyKey, "idempotency key already used")
		}
	}
	inv.ID = t.st.id()
	for i := range inv.Lines {
		inv.Lines[i].ID = t.st.id()
		inv.Lines[i].InvoiceID = inv.ID
	}
	t.st.invoices[inv.ID] = *copyInvoice(*inv)
	return nil
}

func (t *tx) UpdateInvoice(ctx context.Context, inv *core.Invoice) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.st.invoices[inv.ID]
	if !ok || existing.TenantID != inv.TenantID {
		return core.NewNotFound("invoice", inv.ID)
	}
	updated := *inv
	updated.Lines = existing.Lines
	t.st.invoices[inv.ID] = *copyInvoice(updated)
	return nil
}

func (t *tx) DeleteInvoice(ctx context.Context, tenantID, invoiceID int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	inv, ok := t.st.invoices[invoiceID]
	if !ok || inv.TenantID != tenantID {
		return core.NewNotFound("invoice", invoiceID)
	}
	delete(t.st.invoices, invoiceID)
	return nil
}

func (t *tx) SumInvoicedByOrderLine(ctx context.Context, tenantID, orderID int64) (map[int64]core.LineInvoicing, error) {
	o, ok := t.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, core.NewNotFound("order", orderID)
	}
	own := make(map[int64]bool, len(o.Lines))
	for _, l := range o.Lines {
		own[l.ID] = true
	}
	sums := make(map[int64]core.LineInvoicing)
	for _, inv := range t.st.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		for _, l := range inv.Lines {
			if l.OrderItemID == nil || !own[*l.OrderItemID] {
				continue
			}
			s := sums[*l.OrderItemID]
			s.Quantity = s.Quantity.Add(l.Quantity)
			s.Amount = s.Amount.Add(l.LineTotal)
			sums[*l.OrderItemID] = s
		}
	}
	return sums, nil
}

// ── Allocations ──────────────────────────────────────────────────────────────

func (t *tx) InsertAllocation(ctx context.Context, a *core.InvoiceOrderAllocation) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.st.allocations {
		if existing.InvoiceID == a.InvoiceID && existing.OrderID == a.OrderID {
			return core.NewConflict("allocation", a.OrderID, "order is already allocated to invoice %d", a.InvoiceID)
		}
	}
	a.ID = t.st.id()
	t.st.allocations = append(t.st.allocations, *a)
	return nil
}

func (t *tx) ListAllocationsByOrders(ctx context.Context, tenantID int64, orderIDs []int64) ([]core.InvoiceOrderAllocation, error) {
	var out []core.InvoiceOrderAllocation
	for _, a := range t.st.allocations {
		if a.TenantID != tenantID {
			continue
		}
		for _, id := range orderIDs {
			if a.OrderID == id {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (t *tx) ListAllocationsByInvoice(ctx context.Context, tenantID, invoiceID int64) ([]core.InvoiceOrderAllocation, error) {
	var out []core.InvoiceOrderAllocation
	for _, a := range t.st.allocations {
		if a.TenantID == tenantID && a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ── Sequences ────────────────────────────────────────────────────────────────

func (t *tx) NextSequence(ctx context.Context, tenantID int64, prefix string, year int) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	k := seqKey{tenantID: tenantID, prefix: prefix, year: year}
	t.st.sequences[k]++
	return t.st.sequences[k], nil
}
