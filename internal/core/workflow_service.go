package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// defaultPaymentTermsDays applies when neither the request nor the company sets terms.
const defaultPaymentTermsDays = 30

// Customizations are optional overrides for a conversion. A nil *Customizations is valid.
type Customizations struct {
	IssueDate        *time.Time `json:"issue_date,omitempty" jsonschema_description:"Issue/order date of the new document; defaults to now"`
	DueDate          *time.Time `json:"due_date,omitempty" jsonschema_description:"Explicit invoice due date; overrides payment terms"`
	PaymentTermsDays *int       `json:"payment_terms_days,omitempty" jsonschema_description:"Days from issue date to due date"`
	DeliveryDate     *time.Time `json:"delivery_date,omitempty"`
	Currency         *string    `json:"currency,omitempty" jsonschema_description:"ISO currency code; quote conversions only"`
	Notes            *string    `json:"notes,omitempty"`
	// Lines replaces the copied quote lines (quote conversions only).
	Lines   []LineSpec `json:"lines,omitempty" jsonschema_description:"Replacement line items; totals are recomputed"`
	Partial *Partial   `json:"partial,omitempty" jsonschema_description:"Bill only part of the order's remaining amount"`
	// IdempotencyKey makes a retried request return the document created the first time.
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema_description:"Client token; a repeat returns the original document"`
}

// Partial selects how much of an order's remaining amount to bill. Set at most one field.
type Partial struct {
	Percentage *decimal.Decimal `json:"percentage,omitempty" jsonschema_description:"Percent of the remaining amount, 0 < p <= 100"`
	Amount     *decimal.Decimal `json:"amount,omitempty" jsonschema_description:"Exact amount to bill, at most the remaining amount"`
}

// OrderAllocationRequest is one order of a consolidated invoice.
// A nil AmountAllocated bills the order's whole remaining amount.
type OrderAllocationRequest struct {
	OrderID         int64            `json:"order_id"`
	AmountAllocated *decimal.Decimal `json:"amount_allocated,omitempty"`
}

func (c *Customizations) validate() error {
	if c.PaymentTermsDays != nil && *c.PaymentTermsDays < 0 {
		return NewValidation("payment_terms_days", "cannot be negative")
	}
	if c.IssueDate != nil && c.DueDate != nil && c.DueDate.Before(*c.IssueDate) {
		return NewValidation("due_date", "cannot be before the issue date")
	}
	if c.Lines != nil {
		if err := ValidateLines(c.Lines); err != nil {
			return err
		}
	}
	if c.Currency != nil && len(*c.Currency) != 3 {
		return NewValidation("currency", "must be a 3-letter ISO code, got %q", *c.Currency)
	}
	if c.Partial != nil && c.Partial.Percentage != nil && c.Partial.Amount != nil {
		return NewValidation("partial", "set either percentage or amount, not both")
	}
	return nil
}

func (c *Customizations) issueDate(now time.Time) time.Time {
	if c.IssueDate != nil {
		return *c.IssueDate
	}
	return now
}

func (c *Customizations) currency(fallback string) string {
	if c.Currency != nil {
		return *c.Currency
	}
	return fallback
}

func (c *Customizations) notes(fallback string) string {
	if c.Notes != nil {
		return *c.Notes
	}
	return fallback
}

func (c *Customizations) key() *string {
	if c.IdempotencyKey == "" {
		return nil
	}
	k := c.IdempotencyKey
	return &k
}

// WorkflowService converts sales documents along quote → order → invoice.
// Each conversion is one transaction: every check runs before the first write,
// and any failure rolls back the whole operation.
type WorkflowService interface {
	ConvertQuoteToOrder(ctx context.Context, quoteID int64, actor Actor, c *Customizations) (*Order, error)
	ConvertQuoteToInvoice(ctx context.Context, quoteID int64, actor Actor, c *Customizations) (int64, error)
	ConvertOrderToInvoice(ctx context.Context, orderID int64, actor Actor, c *Customizations) (int64, error)
	CreateConsolidatedInvoice(ctx context.Context, actor Actor, orders []OrderAllocationRequest, c *Customizations) (int64, error)
	GetDocumentChain(ctx context.Context, quoteID, tenantID int64) (*DocumentChain, error)
	VerifyOrder(ctx context.Context, orderID, tenantID int64) (*LedgerReport, error)
}

// WorkflowOption configures NewWorkflowService.
type WorkflowOption func(*workflowService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) WorkflowOption {
	return func(s *workflowService) { s.now = now }
}

// WithDefaultPaymentTerms sets the fallback due-date offset in days.
func WithDefaultPaymentTerms(days int) WorkflowOption {
	return func(s *workflowService) {
		if days > 0 {
			s.paymentTerms = days
		}
	}
}

type workflowService struct {
	store        Store
	ledger       *AllocationLedger
	now          func() time.Time
	paymentTerms int
}

func NewWorkflowService(store Store, opts ...WorkflowOption) WorkflowService {
	s := &workflowService{store: store, now: time.Now, paymentTerms: defaultPaymentTermsDays}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = NewAllocationLedger(s.now)
	return s
}

// ── Quote → Order ────────────────────────────────────────────────────────────

func (s *workflowService) ConvertQuoteToOrder(ctx context.Context, quoteID int64, actor Actor, c *Customizations) (*Order, error) {
	if c == nil {
		c = &Customizations{}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	var result *Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if key := c.IdempotencyKey; key != "" {
			existing, err := tx.FindOrderByIdempotencyKey(ctx, actor.TenantID, key)
			if err != nil && !IsNotFound(err) {
				return err
			}
			if existing != nil {
				if existing.QuoteID == nil || *existing.QuoteID != quoteID {
					return NewConflict("order", existing.Number, "idempotency key %q belongs to another request", key)
				}
				result = existing
				return nil
			}
		}

		quote, err := tx.GetQuote(ctx, actor.TenantID, quoteID, true)
		if err != nil {
			return err
		}
		if err := guardQuoteConversion(quote); err != nil {
			return err
		}

		now := s.now()
		order := &Order{
			TenantID:       actor.TenantID,
			CompanyID:      quote.CompanyID,
			ContactID:      quote.ContactID,
			QuoteID:        &quote.ID,
			Status:         OrderPending,
			OrderDate:      c.issueDate(now),
			DeliveryDate:   c.DeliveryDate,
			Currency:       c.currency(quote.Currency),
			Notes:          c.notes(quote.Notes),
			IdempotencyKey: c.key(),
			CreatedBy:      actor.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if c.Lines != nil {
			order.applyLines(c.Lines)
		} else {
			order.Lines = make([]OrderLineItem, len(quote.Lines))
			for i, ql := range quote.Lines {
				quoteItemID := ql.ID
				order.Lines[i] = OrderLineItem{
					QuoteItemID: &quoteItemID,
					SortOrder:   i + 1,
					LineSpec:    ql.LineSpec,
					LineTotal:   ql.LineTotal,
				}
			}
			order.setTotals(Totals{Subtotal: quote.Subtotal, Discount: quote.Discount, Tax: quote.Tax, Total: quote.Total})
		}

		if order.Number, err = nextDocumentNumber(ctx, tx, actor.TenantID, DocOrder, now); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to insert order for quote %s: %w", quote.Number, err)
		}

		// The quote stays live until its orders are fully invoiced; see AllocationLedger.settleQuote.
		quote.ConvertedToOrderAt = &now
		quote.UpdatedBy = &actor.UserID
		quote.UpdatedAt = now
		if err := tx.UpdateQuote(ctx, quote, false); err != nil {
			return fmt.Errorf("failed to mark quote %s converted to order: %w", quote.Number, err)
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// guardQuoteConversion rejects quotes that may not produce another document.
func guardQuoteConversion(q *Quote) error {
	if len(q.Lines) == 0 {
		return NewValidation("lines", "quote %s has no line items", q.Number)
	}
	if !q.Status.Convertible() {
		return NewConflict("quote", q.Number, "cannot be converted: status is %s", q.Status)
	}
	if q.ConvertedToOrderAt != nil {
		return NewConflict("quote", q.Number, "already converted to an order on %s", q.ConvertedToOrderAt.Format(time.DateOnly))
	}
	return nil
}

// ── Quote → Invoice ──────────────────────────────────────────────────────────

func (s *workflowService) ConvertQuoteToInvoice(ctx context.Context, quoteID int64, actor Actor, c *Customizations) (int64, error) {
	if c == nil {
		c = &Customizations{}
	}
	if err := c.validate(); err != nil {
		return 0, err
	}

	var invoiceID int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if existing, err := s.replayInvoice(ctx, tx, actor.TenantID, c.IdempotencyKey); err != nil || existing != nil {
			if existing != nil {
				if existing.QuoteID == nil || *existing.QuoteID != quoteID {
					return NewConflict("invoice", existing.Number, "idempotency key %q belongs to another request", c.IdempotencyKey)
				}
				invoiceID = existing.ID
			}
			return err
		}

		quote, err := tx.GetQuote(ctx, actor.TenantID, quoteID, true)
		if err != nil {
			return err
		}
		if err := guardQuoteConversion(quote); err != nil {
			return err
		}
		company, err := tx.GetCompany(ctx, actor.TenantID, quote.CompanyID)
		if err != nil {
			return err
		}

		now := s.now()
		inv := s.newInvoice(actor, company, c, now)
		inv.QuoteID = &quote.ID
		inv.ContactID = quote.ContactID
		inv.Currency = c.currency(quote.Currency)
		inv.Notes = c.notes(quote.Notes)

		specs := quote.Specs()
		var quoteItemIDs []int64
		if c.Lines != nil {
			specs = c.Lines
		} else {
			for _, ql := range quote.Lines {
				quoteItemIDs = append(quoteItemIDs, ql.ID)
			}
		}
		inv.Lines = make([]InvoiceLineItem, len(specs))
		var discount decimal.Decimal
		for i, spec := range specs {
			a := spec.Amounts()
			line := InvoiceLineItem{
				SortOrder: i + 1,
				LineSpec:  spec,
				Subtotal:  a.Taxable,
				TaxAmount: a.Tax,
				LineTotal: a.Total,
			}
			if quoteItemIDs != nil {
				id := quoteItemIDs[i]
				line.QuoteItemID = &id
			}
			inv.Lines[i] = line
			discount = discount.Add(a.Discount)
		}
		inv.recomputeTotals()
		inv.Discount = discount

		if inv.Number, err = nextDocumentNumber(ctx, tx, actor.TenantID, DocInvoice, now); err != nil {
			return err
		}
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to insert invoice for quote %s: %w", quote.Number, err)
		}

		quote.Status = QuoteConverted
		quote.ConvertedToInvoiceAt = &now
		quote.UpdatedBy = &actor.UserID
		quote.UpdatedAt = now
		if err := tx.UpdateQuote(ctx, quote, false); err != nil {
			return fmt.Errorf("failed to mark quote %s converted: %w", quote.Number, err)
		}

		invoiceID = inv.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return invoiceID, nil
}

// ── Order → Invoice ──────────────────────────────────────────────────────────

func (s *workflowService) ConvertOrderToInvoice(ctx context.Context, orderID int64, actor Actor, c *Customizations) (int64, error) {
	if c == nil {
		c = &Customizations{}
	}
	if err := c.validate(); err != nil {
		return 0, err
	}
	if c.Lines != nil || c.Currency != nil {
		return 0, NewValidation("customizations", "order invoices take lines and currency from the order")
	}

	var invoiceID int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if existing, err := s.replayInvoice(ctx, tx, actor.TenantID, c.IdempotencyKey); err != nil || existing != nil {
			if existing != nil {
				if err := sameAllocationTarget(ctx, tx, existing, []int64{orderID}, c.IdempotencyKey); err != nil {
					return err
				}
				invoiceID = existing.ID
			}
			return err
		}

		// Locked read: remaining is taken from the row as it is now, not from the caller's snapshot.
		order, err := tx.GetOrder(ctx, actor.TenantID, orderID, true)
		if err != nil {
			return err
		}
		if !order.Status.Invoiceable() {
			return NewConflict("order", order.Number, "cannot be invoiced: status is %s", order.Status)
		}
		amount, err := billedAmount(order, c.Partial)
		if err != nil {
			return err
		}
		lines, discount, err := sliceOrder(order, amount)
		if err != nil {
			return err
		}
		company, err := tx.GetCompany(ctx, actor.TenantID, order.CompanyID)
		if err != nil {
			return err
		}

		now := s.now()
		inv := s.newInvoice(actor, company, c, now)
		inv.ContactID = order.ContactID
		inv.Currency = order.Currency
		inv.Notes = c.notes(order.Notes)
		inv.Lines = lines
		inv.recomputeTotals()
		inv.Discount = discount
		if !inv.Total.Equal(amount) {
			return fmt.Errorf("invoice lines sum to %s, expected %s", inv.Total.StringFixed(2), amount.StringFixed(2))
		}

		if inv.Number, err = nextDocumentNumber(ctx, tx, actor.TenantID, DocInvoice, now); err != nil {
			return err
		}
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to insert invoice for order %s: %w", order.Number, err)
		}
		if _, err := s.ledger.Record(ctx, tx, &InvoiceOrderAllocation{
			TenantID:        actor.TenantID,
			InvoiceID:       inv.ID,
			OrderID:         order.ID,
			AmountAllocated: amount,
			CreatedBy:       actor.UserID,
		}); err != nil {
			return err
		}

		invoiceID = inv.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return invoiceID, nil
}

// billedAmount resolves the partial-invoicing request against the order's remaining amount.
func billedAmount(order *Order, p *Partial) (decimal.Decimal, error) {
	remaining := order.RemainingAmount
	if !remaining.IsPositive() {
		return decimal.Zero, NewValidation("amount", "order %s has no remaining amount to invoice", order.Number)
	}
	if p == nil || (p.Percentage == nil && p.Amount == nil) {
		return remaining, nil
	}

	if p.Percentage != nil {
		pct := *p.Percentage
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return decimal.Zero, NewValidation("partial.percentage", "must be greater than 0 and at most 100, got %s", pct)
		}
		amount := Round2(remaining.Mul(pct).Div(hundred))
		if !amount.IsPositive() {
			return decimal.Zero, NewValidation("partial.percentage", "%s%% of %s rounds to zero", pct, remaining.StringFixed(2))
		}
		return amount, nil
	}

	amount := *p.Amount
	if err := checkAllocation(order, amount, "partial.amount"); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// checkAllocation validates an explicit amount against the order's remaining amount.
func checkAllocation(order *Order, amount decimal.Decimal, field string) error {
	if !amount.IsPositive() {
		return NewValidation(field, "must be greater than zero, got %s", amount)
	}
	if !isCents(amount) {
		return NewValidation(field, "%s has more than 2 decimal places", amount)
	}
	if amount.GreaterThan(order.RemainingAmount) {
		return NewValidation(field, "amount %s exceeds remaining amount %s of order %s",
			amount.StringFixed(2), order.RemainingAmount.StringFixed(2), order.Number)
	}
	return nil
}

// sliceOrder prorates amount over the order's open line value and returns one
// invoice line per order line that receives a share. The slices sum to amount.
func sliceOrder(order *Order, amount decimal.Decimal) ([]InvoiceLineItem, decimal.Decimal, error) {
	weights := make([]decimal.Decimal, len(order.Lines))
	for i, l := range order.Lines {
		if open := l.Open(); open.IsPositive() {
			weights[i] = open
		} else {
			weights[i] = decimal.Zero
		}
	}
	shares, err := Prorate(amount, weights)
	if err != nil {
		return nil, decimal.Zero, err
	}

	var lines []InvoiceLineItem
	discount := decimal.Zero
	for i, l := range order.Lines {
		share := shares[i]
		if share.IsZero() {
			continue
		}

		qty := l.Quantity.Sub(l.InvoicedQuantity)
		if !share.Equal(weights[i]) {
			qty = minDecimal(qty, RoundQty(l.Quantity.Mul(share).Div(l.LineTotal)))
		}
		net, tax := SplitGross(share, l.TaxPct)
		discount = discount.Add(Round2(l.Amounts().Discount.Mul(share).Div(l.LineTotal)))

		spec := l.LineSpec
		spec.Quantity = qty
		orderItemID := l.ID
		lines = append(lines, InvoiceLineItem{
			OrderItemID: &orderItemID,
			QuoteItemID: l.QuoteItemID,
			LineSpec:    spec,
			Subtotal:    net,
			TaxAmount:   tax,
			LineTotal:   share,
		})
	}
	return lines, discount, nil
}

// ── Consolidated invoice ─────────────────────────────────────────────────────

func (s *workflowService) CreateConsolidatedInvoice(ctx context.Context, actor Actor, requests []OrderAllocationRequest, c *Customizations) (int64, error) {
	if c == nil {
		c = &Customizations{}
	}
	if err := c.validate(); err != nil {
		return 0, err
	}
	if c.Lines != nil || c.Partial != nil || c.Currency != nil {
		return 0, NewValidation("customizations", "consolidated invoices take amounts per order and currency from the orders")
	}
	if len(requests) == 0 {
		return 0, NewValidation("orders", "at least one order is required")
	}
	ids := make([]int64, 0, len(requests))
	seen := make(map[int64]bool, len(requests))
	for _, r := range requests {
		if seen[r.OrderID] {
			return 0, NewValidation("orders", "order %d is listed more than once", r.OrderID)
		}
		seen[r.OrderID] = true
		ids = append(ids, r.OrderID)
	}

	var invoiceID int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if existing, err := s.replayInvoice(ctx, tx, actor.TenantID, c.IdempotencyKey); err != nil || existing != nil {
			if existing != nil {
				if err := sameAllocationTarget(ctx, tx, existing, ids, c.IdempotencyKey); err != nil {
					return err
				}
				invoiceID = existing.ID
			}
			return err
		}

		// Lock in ascending id order so concurrent consolidations cannot deadlock.
		lockOrder := append([]int64(nil), ids...)
		sort.Slice(lockOrder, func(i, j int) bool { return lockOrder[i] < lockOrder[j] })
		orders := make(map[int64]*Order, len(ids))
		for _, id := range lockOrder {
			o, err := tx.GetOrder(ctx, actor.TenantID, id, true)
			if IsNotFound(err) {
				return NewValidation("orders", "order %d does not belong to this tenant", id)
			}
			if err != nil {
				return err
			}
			orders[id] = o
		}

		first := orders[requests[0].OrderID]
		amounts := make([]decimal.Decimal, len(requests))
		total := decimal.Zero
		for i, r := range requests {
			o := orders[r.OrderID]
			if o.CompanyID != first.CompanyID {
				return NewValidation("orders", "order %s belongs to a different company than order %s", o.Number, first.Number)
			}
			if o.Currency != first.Currency {
				return NewValidation("orders", "order %s is in %s, order %s in %s", o.Number, o.Currency, first.Number, first.Currency)
			}
			if !o.Status.Invoiceable() {
				return NewConflict("order", o.Number, "cannot be invoiced: status is %s", o.Status)
			}
			if r.AmountAllocated == nil {
				if !o.RemainingAmount.IsPositive() {
					return NewValidation("orders", "order %s has no remaining amount to invoice", o.Number)
				}
				amounts[i] = o.RemainingAmount
			} else {
				if err := checkAllocation(o, *r.AmountAllocated, fmt.Sprintf("orders[%d].amount_allocated", i)); err != nil {
					return err
				}
				amounts[i] = *r.AmountAllocated
			}
			total = total.Add(amounts[i])
		}

		var lines []InvoiceLineItem
		discount := decimal.Zero
		for i, r := range requests {
			slices, d, err := sliceOrder(orders[r.OrderID], amounts[i])
			if err != nil {
				return err
			}
			lines = append(lines, slices...)
			discount = discount.Add(d)
		}
		for i := range lines {
			lines[i].SortOrder = i + 1
		}

		company, err := tx.GetCompany(ctx, actor.TenantID, first.CompanyID)
		if err != nil {
			return err
		}
		now := s.now()
		inv := s.newInvoice(actor, company, c, now)
		inv.Currency = first.Currency
		inv.Notes = c.notes("")
		inv.Lines = lines
		inv.recomputeTotals()
		inv.Discount = discount
		if !inv.Total.Equal(total) {
			return fmt.Errorf("consolidated invoice lines sum to %s, expected %s", inv.Total.StringFixed(2), total.StringFixed(2))
		}

		if inv.Number, err = nextDocumentNumber(ctx, tx, actor.TenantID, DocInvoice, now); err != nil {
			return err
		}
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to insert consolidated invoice: %w", err)
		}
		for i, r := range requests {
			if _, err := s.ledger.Record(ctx, tx, &InvoiceOrderAllocation{
				TenantID:        actor.TenantID,
				InvoiceID:       inv.ID,
				OrderID:         r.OrderID,
				AmountAllocated: amounts[i],
				CreatedBy:       actor.UserID,
			}); err != nil {
				return err
			}
		}

		invoiceID = inv.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return invoiceID, nil
}

// ── Shared helpers ───────────────────────────────────────────────────────────

// newInvoice builds a draft invoice header. Due date: explicit > request terms > company terms > default.
func (s *workflowService) newInvoice(actor Actor, company *Company, c *Customizations, now time.Time) *Invoice {
	issue := c.issueDate(now)
	due := issue.AddDate(0, 0, s.paymentTerms)
	switch {
	case c.DueDate != nil:
		due = *c.DueDate
	case c.PaymentTermsDays != nil:
		due = issue.AddDate(0, 0, *c.PaymentTermsDays)
	case company.PaymentTermsDays > 0:
		due = issue.AddDate(0, 0, company.PaymentTermsDays)
	}
	token := uuid.NewString()
	return &Invoice{
		TenantID:       actor.TenantID,
		CompanyID:      company.ID,
		Status:         InvoiceDraft,
		IssueDate:      issue,
		DueDate:        due,
		AccessToken:    &token,
		IdempotencyKey: c.key(),
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// replayInvoice returns the invoice already created under key, if any.
func (s *workflowService) replayInvoice(ctx context.Context, tx Tx, tenantID int64, key string) (*Invoice, error) {
	if key == "" {
		return nil, nil
	}
	existing, err := tx.FindInvoiceByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

// sameAllocationTarget checks that a replayed invoice was drawn from the same orders.
func sameAllocationTarget(ctx context.Context, tx Tx, inv *Invoice, orderIDs []int64, key string) error {
	allocations, err := tx.ListAllocationsByInvoice(ctx, inv.TenantID, inv.ID)
	if err != nil {
		return err
	}
	if len(allocations) != len(orderIDs) {
		return NewConflict("invoice", inv.Number, "idempotency key %q belongs to another request", key)
	}
	want := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	for _, a := range allocations {
		if !want[a.OrderID] {
			return NewConflict("invoice", inv.Number, "idempotency key %q belongs to another request", key)
		}
	}
	return nil
}

func (s *workflowService) VerifyOrder(ctx context.Context, orderID, tenantID int64) (*LedgerReport, error) {
	var report *LedgerReport
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		report, err = s.ledger.Verify(ctx, tx, tenantID, orderID)
		return err
	})
	return report, err
}
