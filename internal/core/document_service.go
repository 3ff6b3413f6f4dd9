package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteInput is the editable content of a quote.
type QuoteInput struct {
	CompanyID  int64      `json:"company_id" jsonschema:"required"`
	ContactID  *int64     `json:"contact_id,omitempty"`
	IssueDate  *time.Time `json:"issue_date,omitempty" jsonschema_description:"Defaults to today"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	Currency   string     `json:"currency,omitempty" jsonschema_description:"Defaults to the company currency"`
	Notes      string     `json:"notes,omitempty"`
	Lines      []LineSpec `json:"lines" jsonschema:"required,minItems=1"`
}

// OrderUpdate changes an order header. Lines may only be replaced before anything was invoiced.
type OrderUpdate struct {
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	Lines        []LineSpec `json:"lines,omitempty"`
}

// InvoiceUpdate changes an invoice header.
type InvoiceUpdate struct {
	DueDate *time.Time `json:"due_date,omitempty"`
	Notes   *string    `json:"notes,omitempty"`
}

// Payment is money received against an invoice.
type Payment struct {
	Amount decimal.Decimal `json:"amount" jsonschema:"required"`
	Date   *time.Time      `json:"date,omitempty" jsonschema_description:"Defaults to now"`
}

// DocumentService holds the single-document operations: CRUD under the
// state-machine guards, user transitions, payments and the time-based sweeps.
type DocumentService interface {
	CreateQuote(ctx context.Context, actor Actor, in QuoteInput) (*Quote, error)
	GetQuote(ctx context.Context, tenantID, quoteID int64) (*Quote, error)
	ListQuotes(ctx context.Context, tenantID int64, f ListFilter) ([]Quote, error)
	UpdateQuote(ctx context.Context, actor Actor, quoteID int64, in QuoteInput) (*Quote, error)
	DeleteQuote(ctx context.Context, actor Actor, quoteID int64) error
	TransitionQuote(ctx context.Context, actor Actor, quoteID int64, to QuoteStatus) (*Quote, error)
	// ExpireQuotes moves open quotes whose valid-until date has passed to expired.
	ExpireQuotes(ctx context.Context, tenantID int64, asOf time.Time) ([]string, error)

	GetOrder(ctx context.Context, tenantID, orderID int64) (*Order, error)
	ListOrders(ctx context.Context, tenantID int64, f ListFilter) ([]Order, error)
	UpdateOrder(ctx context.Context, actor Actor, orderID int64, in OrderUpdate) (*Order, error)
	DeleteOrder(ctx context.Context, actor Actor, orderID int64) error
	TransitionOrder(ctx context.Context, actor Actor, orderID int64, to OrderStatus) (*Order, error)

	GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*Invoice, error)
	GetInvoiceByToken(ctx context.Context, token string) (*Invoice, error)
	ListInvoices(ctx context.Context, tenantID int64, f ListFilter) ([]Invoice, error)
	UpdateInvoice(ctx context.Context, actor Actor, invoiceID int64, in InvoiceUpdate) (*Invoice, error)
	DeleteInvoice(ctx context.Context, actor Actor, invoiceID int64) error
	TransitionInvoice(ctx context.Context, actor Actor, invoiceID int64, to InvoiceStatus) (*Invoice, error)
	RecordPayment(ctx context.Context, actor Actor, invoiceID int64, p Payment) (*Invoice, error)
	// MarkOverdue moves unpaid invoices due before asOf to overdue and returns their numbers.
	MarkOverdue(ctx context.Context, tenantID int64, asOf time.Time) ([]string, error)
}

type documentService struct {
	store Store
	now   func() time.Time
}

func NewDocumentService(store Store, now func() time.Time) DocumentService {
	if now == nil {
		now = time.Now
	}
	return &documentService{store: store, now: now}
}

// ── Quotes ───────────────────────────────────────────────────────────────────

func validateQuoteInput(in QuoteInput) error {
	if in.CompanyID <= 0 {
		return NewValidation("company_id", "is required")
	}
	if in.Currency != "" && len(in.Currency) != 3 {
		return NewValidation("currency", "must be a 3-letter ISO code, got %q", in.Currency)
	}
	if in.IssueDate != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.IssueDate) {
		return NewValidation("valid_until", "cannot be before the issue date")
	}
	return ValidateLines(in.Lines)
}

func (s *documentService) CreateQuote(ctx context.Context, actor Actor, in QuoteInput) (*Quote, error) {
	if err := validateQuoteInput(in); err != nil {
		return nil, err
	}
	var q *Quote
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		company, err := tx.GetCompany(ctx, actor.TenantID, in.CompanyID)
		if err != nil {
			return err
		}
		now := s.now()
		q = &Quote{
			TenantID:   actor.TenantID,
			CompanyID:  company.ID,
			ContactID:  in.ContactID,
			Status:     QuoteDraft,
			IssueDate:  now,
			ValidUntil: in.ValidUntil,
			Currency:   in.Currency,
			Notes:      in.Notes,
			CreatedBy:  actor.UserID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if in.IssueDate != nil {
			q.IssueDate = *in.IssueDate
		}
		if q.Currency == "" {
			q.Currency = company.Currency
		}
		q.applyLines(in.Lines)

		if q.Number, err = nextDocumentNumber(ctx, tx, actor.TenantID, DocQuote, now); err != nil {
			return err
		}
		if err := tx.InsertQuote(ctx, q); err != nil {
			return fmt.Errorf("failed to insert quote: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *documentService) GetQuote(ctx context.Context, tenantID, quoteID int64) (*Quote, error) {
	var q *Quote
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		q, err = tx.GetQuote(ctx, tenantID, quoteID, false)
		return err
	})
	return q, err
}

func (s *documentService) ListQuotes(ctx context.Context, tenantID int64, f ListFilter) ([]Quote, error) {
	if f.Status != "" && !QuoteStatus(f.Status).Valid() {
		return nil, NewValidation("status", "unknown quote status %q", f.Status)
	}
	var quotes []Quote
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		quotes, err = tx.ListQuotes(ctx, tenantID, f)
		return err
	})
	return quotes, err
}

// guardQuoteEdit rejects changes to quotes that are terminal or already feed an order.
func guardQuoteEdit(q *Quote, action string) error {
	if q.ConvertedToOrderAt != nil {
		return NewConflict("quote", q.Number, "cannot %s: already converted to an order", action)
	}
	if !q.Editable() {
		return NewConflict("quote", q.Number, "cannot %s: status is %s", action, q.Status)
	}
	return nil
}

func (s *documentService) UpdateQuote(ctx context.Context, actor Actor, quoteID int64, in QuoteInput) (*Quote, error) {
	if err := validateQuoteInput(in); err != nil {
		return nil, err
	}
	var q *Quote
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if q, err = tx.GetQuote(ctx, actor.TenantID, quoteID, true); err != nil {
			return err
		}
		if err := guardQuoteEdit(q, "update"); err != nil {
			return err
		}
		if in.CompanyID != q.CompanyID {
			if _, err := tx.GetCompany(ctx, actor.TenantID, in.CompanyID); err != nil {
				return err
			}
			q.CompanyID = in.CompanyID
		}
		q.ContactID = in.ContactID
		if in.IssueDate != nil {
			q.IssueDate = *in.IssueDate
		}
		q.ValidUntil = in.ValidUntil
		if in.Currency != "" {
			q.Currency = in.Currency
		}
		q.Notes = in.Notes
		q.applyLines(in.Lines)
		q.UpdatedBy = &actor.UserID
		q.UpdatedAt = s.now()
		return tx.UpdateQuote(ctx, q, true)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *documentService) DeleteQuote(ctx context.Context, actor Actor, quoteID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		q, err := tx.GetQuote(ctx, actor.TenantID, quoteID, true)
		if err != nil {
			return err
		}
		if err := guardQuoteEdit(q, "delete"); err != nil {
			return err
		}
		return tx.DeleteQuote(ctx, actor.TenantID, quoteID)
	})
}

func (s *documentService) TransitionQuote(ctx context.Context, actor Actor, quoteID int64, to QuoteStatus) (*Quote, error) {
	if !to.Valid() {
		return nil, NewValidation("status", "unknown quote status %q", to)
	}
	if to == QuoteConverted {
		return nil, NewValidation("status", "quotes are converted by creating an order or invoice")
	}
	var q *Quote
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if q, err = tx.GetQuote(ctx, actor.TenantID, quoteID, true); err != nil {
			return err
		}
		if !q.Status.CanTransitionTo(to) {
			return NewConflict("quote", q.Number, "cannot move from %s to %s", q.Status, to)
		}
		q.Status = to
		if to == QuoteAccepted {
			q.ApprovedBy = &actor.UserID
		}
		q.UpdatedBy = &actor.UserID
		q.UpdatedAt = s.now()
		return tx.UpdateQuote(ctx, q, false)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *documentService) ExpireQuotes(ctx context.Context, tenantID int64, asOf time.Time) ([]string, error) {
	var expired []string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		candidates, err := tx.ListQuotesValidBefore(ctx, tenantID, asOf)
		if err != nil {
			return fmt.Errorf("failed to list expiring quotes: %w", err)
		}
		now := s.now()
		for _, c := range candidates {
			q, err := tx.GetQuote(ctx, tenantID, c.ID, true)
			if err != nil {
				return err
			}
			// Quotes feeding an order stay live until the order is invoiced.
			if q.ConvertedToOrderAt != nil || !q.Status.CanTransitionTo(QuoteExpired) {
				continue
			}
			q.Status = QuoteExpired
			q.UpdatedAt = now
			if err := tx.UpdateQuote(ctx, q, false); err != nil {
				return err
			}
			expired = append(expired, q.Number)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *documentService) GetOrder(ctx context.Context, tenantID, orderID int64) (*Order, error) {
	var o *Order
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, tenantID, orderID, false)
		return err
	})
	return o, err
}

func (s *documentService) ListOrders(ctx context.Context, tenantID int64, f ListFilter) ([]Order, error) {
	if f.Status != "" && !OrderStatus(f.Status).Valid() {
		return nil, NewValidation("status", "unknown order status %q", f.Status)
	}
	var orders []Order
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		orders, err = tx.ListOrders(ctx, tenantID, f)
		return err
	})
	return orders, err
}

func (s *documentService) UpdateOrder(ctx context.Context, actor Actor, orderID int64, in OrderUpdate) (*Order, error) {
	if in.Lines != nil {
		if err := ValidateLines(in.Lines); err != nil {
			return nil, err
		}
	}
	var o *Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if o, err = tx.GetOrder(ctx, actor.TenantID, orderID, true); err != nil {
			return err
		}
		if !o.Status.Mutable() {
			return NewConflict("order", o.Number, "cannot update: status is %s", o.Status)
		}
		if in.DeliveryDate != nil {
			o.DeliveryDate = in.DeliveryDate
		}
		if in.Notes != nil {
			o.Notes = *in.Notes
		}
		if in.Lines != nil {
			allocations, err := tx.ListAllocationsByOrders(ctx, actor.TenantID, []int64{o.ID})
			if err != nil {
				return err
			}
			if len(allocations) > 0 {
				return NewConflict("order", o.Number, "cannot replace lines: order has %d invoice allocation(s)", len(allocations))
			}
			o.applyLines(in.Lines)
			if err := tx.ReplaceOrderLines(ctx, o); err != nil {
				return err
			}
		}
		o.UpdatedBy = &actor.UserID
		o.UpdatedAt = s.now()
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *documentService) DeleteOrder(ctx context.Context, actor Actor, orderID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetOrder(ctx, actor.TenantID, orderID, true)
		if err != nil {
			return err
		}
		if !o.Status.Mutable() {
			return NewConflict("order", o.Number, "cannot delete: status is %s", o.Status)
		}
		allocations, err := tx.ListAllocationsByOrders(ctx, actor.TenantID, []int64{o.ID})
		if err != nil {
			return err
		}
		if len(allocations) > 0 {
			return NewConflict("order", o.Number, "cannot delete: order has %d invoice allocation(s)", len(allocations))
		}
		return tx.DeleteOrder(ctx, actor.TenantID, orderID)
	})
}

func (s *documentService) TransitionOrder(ctx context.Context, actor Actor, orderID int64, to OrderStatus) (*Order, error) {
	if !to.Valid() {
		return nil, NewValidation("status", "unknown order status %q", to)
	}
	var o *Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if o, err = tx.GetOrder(ctx, actor.TenantID, orderID, true); err != nil {
			return err
		}
		if to.Derived() {
			return NewConflict("order", o.Number, "%s is set by invoicing, not by a transition", to)
		}
		if !o.Status.CanTransitionTo(to) {
			return NewConflict("order", o.Number, "cannot move from %s to %s", o.Status, to)
		}
		now := s.now()
		switch to {
		case OrderConfirmed:
			o.ConfirmedBy = &actor.UserID
			o.ConfirmedAt = &now
		case OrderCancelled:
			if o.InvoicedAmount.IsPositive() {
				return NewConflict("order", o.Number, "cannot cancel: %s already invoiced", o.InvoicedAmount.StringFixed(2))
			}
			o.CancelledBy = &actor.UserID
			o.CancelledAt = &now
		}
		o.Status = to
		o.UpdatedBy = &actor.UserID
		o.UpdatedAt = now
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (s *documentService) GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*Invoice, error) {
	var inv *Invoice
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		inv, err = tx.GetInvoice(ctx, tenantID, invoiceID, false)
		return err
	})
	return inv, err
}

func (s *documentService) GetInvoiceByToken(ctx context.Context, token string) (*Invoice, error) {
	if token == "" {
		return nil, NewNotFound("invoice", "token")
	}
	var inv *Invoice
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		inv, err = tx.GetInvoiceByToken(ctx, token)
		return err
	})
	return inv, err
}

func (s *documentService) ListInvoices(ctx context.Context, tenantID int64, f ListFilter) ([]Invoice, error) {
	if f.Status != "" && !InvoiceStatus(f.Status).Valid() {
		return nil, NewValidation("status", "unknown invoice status %q", f.Status)
	}
	var invoices []Invoice
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		invoices, err = tx.ListInvoices(ctx, tenantID, f)
		return err
	})
	return invoices, err
}

func (s *documentService) UpdateInvoice(ctx context.Context, actor Actor, invoiceID int64, in InvoiceUpdate) (*Invoice, error) {
	var inv *Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if inv, err = tx.GetInvoice(ctx, actor.TenantID, invoiceID, true); err != nil {
			return err
		}
		if !inv.Status.Updatable() {
			return NewConflict("invoice", inv.Number, "cannot update: status is %s", inv.Status)
		}
		if in.DueDate != nil {
			if in.DueDate.Before(inv.IssueDate) {
				return NewValidation("due_date", "cannot be before the issue date")
			}
			inv.DueDate = *in.DueDate
		}
		if in.Notes != nil {
			inv.Notes = *in.Notes
		}
		inv.UpdatedBy = &actor.UserID
		inv.UpdatedAt = s.now()
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *documentService) DeleteInvoice(ctx context.Context, actor Actor, invoiceID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		inv, err := tx.GetInvoice(ctx, actor.TenantID, invoiceID, true)
		if err != nil {
			return err
		}
		if !inv.Status.Deletable() {
			return NewConflict("invoice", inv.Number, "cannot delete: status is %s", inv.Status)
		}
		// Allocations are immutable, so an order-sourced invoice must stay.
		allocations, err := tx.ListAllocationsByInvoice(ctx, actor.TenantID, inv.ID)
		if err != nil {
			return err
		}
		if len(allocations) > 0 {
			return NewConflict("invoice", inv.Number, "cannot delete: invoice carries %d order allocation(s)", len(allocations))
		}
		return tx.DeleteInvoice(ctx, actor.TenantID, invoiceID)
	})
}

func (s *documentService) TransitionInvoice(ctx context.Context, actor Actor, invoiceID int64, to InvoiceStatus) (*Invoice, error) {
	if !to.Valid() {
		return nil, NewValidation("status", "unknown invoice status %q", to)
	}
	var inv *Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if inv, err = tx.GetInvoice(ctx, actor.TenantID, invoiceID, true); err != nil {
			return err
		}
		if !inv.Status.CanTransitionTo(to) {
			return NewConflict("invoice", inv.Number, "cannot move from %s to %s", inv.Status, to)
		}
		if to == InvoiceCancelled {
			inv.CancelledBy = &actor.UserID
		}
		inv.Status = to
		inv.UpdatedBy = &actor.UserID
		inv.UpdatedAt = s.now()
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *documentService) RecordPayment(ctx context.Context, actor Actor, invoiceID int64, p Payment) (*Invoice, error) {
	if !p.Amount.IsPositive() {
		return nil, NewValidation("amount", "must be greater than zero, got %s", p.Amount)
	}
	if !isCents(p.Amount) {
		return nil, NewValidation("amount", "%s has more than 2 decimal places", p.Amount)
	}
	var inv *Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if inv, err = tx.GetInvoice(ctx, actor.TenantID, invoiceID, true); err != nil {
			return err
		}
		if !inv.Status.AcceptsPayment() {
			return NewConflict("invoice", inv.Number, "cannot record a payment: status is %s", inv.Status)
		}
		if p.Amount.GreaterThan(inv.RemainingAmount) {
			return NewValidation("amount", "payment %s exceeds remaining amount %s of invoice %s",
				p.Amount.StringFixed(2), inv.RemainingAmount.StringFixed(2), inv.Number)
		}

		now := s.now()
		paidOn := now
		if p.Date != nil {
			paidOn = *p.Date
		}
		inv.PaidAmount = inv.PaidAmount.Add(p.Amount)
		inv.RemainingAmount = inv.Total.Sub(inv.PaidAmount)
		inv.PaymentDate = &paidOn
		if inv.RemainingAmount.IsZero() {
			inv.Status = InvoicePaid
		} else {
			inv.Status = InvoicePartiallyPaid
		}
		inv.UpdatedBy = &actor.UserID
		inv.UpdatedAt = now
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *documentService) MarkOverdue(ctx context.Context, tenantID int64, asOf time.Time) ([]string, error) {
	var marked []string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		due, err := tx.ListInvoicesDueBefore(ctx, tenantID, asOf)
		if err != nil {
			return fmt.Errorf("failed to list overdue invoices: %w", err)
		}
		now := s.now()
		for _, d := range due {
			inv, err := tx.GetInvoice(ctx, tenantID, d.ID, true)
			if err != nil {
				return err
			}
			if !inv.DueDate.Before(asOf) || !inv.RemainingAmount.IsPositive() || !inv.Status.canMoveTo(InvoiceOverdue) {
				continue
			}
			inv.Status = InvoiceOverdue
			inv.UpdatedAt = now
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
			marked = append(marked, inv.Number)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marked, nil
}
