package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a tenant-scoped billing document, issued either directly from a quote
// or from one or more orders through allocations.
type Invoice struct {
	ID              int64             `json:"id"`
	TenantID        int64             `json:"tenant_id"`
	Number          string            `json:"number"`
	CompanyID       int64             `json:"company_id"`
	ContactID       *int64            `json:"contact_id,omitempty"`
	QuoteID         *int64            `json:"quote_id,omitempty"`
	Status          InvoiceStatus     `json:"status"`
	IssueDate       time.Time         `json:"issue_date"`
	DueDate         time.Time         `json:"due_date"`
	PaymentDate     *time.Time        `json:"payment_date,omitempty"`
	Currency        string            `json:"currency"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Tax             decimal.Decimal   `json:"tax"`
	Discount        decimal.Decimal   `json:"discount"`
	Total           decimal.Decimal   `json:"total"`
	PaidAmount      decimal.Decimal   `json:"paid_amount"`
	RemainingAmount decimal.Decimal   `json:"remaining_amount"`
	Notes           string            `json:"notes,omitempty"`
	AccessToken     *string           `json:"access_token,omitempty"`
	IdempotencyKey  *string           `json:"idempotency_key,omitempty"`
	CreatedBy       int64             `json:"created_by"`
	UpdatedBy       *int64            `json:"updated_by,omitempty"`
	CancelledBy     *int64            `json:"cancelled_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Lines           []InvoiceLineItem `json:"lines"`
}

// InvoiceLineItem is one billed line. OrderItemID is set for order-sourced lines,
// QuoteItemID for lines billed straight from a quote.
type InvoiceLineItem struct {
	ID          int64  `json:"id"`
	InvoiceID   int64  `json:"invoice_id"`
	OrderItemID *int64 `json:"order_item_id,omitempty"`
	QuoteItemID *int64 `json:"quote_item_id,omitempty"`
	SortOrder   int    `json:"sort_order"`
	LineSpec
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// recomputeTotals sums the line amounts into the header and resets the remaining amount.
func (inv *Invoice) recomputeTotals() {
	var t Totals
	for _, l := range inv.Lines {
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.Tax = t.Tax.Add(l.TaxAmount)
	}
	t.Total = t.Subtotal.Add(t.Tax)
	inv.Subtotal, inv.Tax, inv.Total = t.Subtotal, t.Tax, t.Total
	inv.RemainingAmount = inv.Total.Sub(inv.PaidAmount)
}

// InvoiceOrderAllocation credits part of an order to an invoice. Rows are immutable.
type InvoiceOrderAllocation struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	InvoiceID       int64           `json:"invoice_id"`
	OrderID         int64           `json:"order_id"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LineInvoicing is the billed progress of one order line, summed over invoice lines.
type LineInvoicing struct {
	Quantity decimal.Decimal
	Amount   decimal.Decimal
}
