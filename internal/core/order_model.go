package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a tenant-scoped fulfilment document.
// RemainingAmount always equals Total - InvoicedAmount, and InvoicedAmount always
// equals the sum of the order's allocations. Both are re-derived by the AllocationLedger.
type Order struct {
	ID              int64           `json:"id"`
	TenantID        int64           `json:"tenant_id"`
	Number          string          `json:"number"`
	CompanyID       int64           `json:"company_id"`
	ContactID       *int64          `json:"contact_id,omitempty"`
	QuoteID         *int64          `json:"quote_id,omitempty"`
	Status          OrderStatus     `json:"status"`
	OrderDate       time.Time       `json:"order_date"`
	DeliveryDate    *time.Time      `json:"delivery_date,omitempty"`
	Currency        string          `json:"currency"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	InvoicedAmount  decimal.Decimal `json:"invoiced_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Notes           string          `json:"notes,omitempty"`
	IdempotencyKey  *string         `json:"idempotency_key,omitempty"`
	Version         int             `json:"version"`
	CreatedBy       int64           `json:"created_by"`
	UpdatedBy       *int64          `json:"updated_by,omitempty"`
	ConfirmedBy     *int64          `json:"confirmed_by,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	CancelledBy     *int64          `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Lines           []OrderLineItem `json:"lines"`
}

// OrderLineItem is one line of an order with its fulfilment and invoicing progress.
type OrderLineItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	QuoteItemID *int64 `json:"quote_item_id,omitempty"`
	SortOrder   int    `json:"sort_order"`
	LineSpec
	LineTotal         decimal.Decimal `json:"line_total"`
	FulfilledQuantity decimal.Decimal `json:"fulfilled_quantity"`
	InvoicedQuantity  decimal.Decimal `json:"invoiced_quantity"`
	InvoicedAmount    decimal.Decimal `json:"invoiced_amount"`
}

// Open returns the part of the line total not yet billed.
func (l OrderLineItem) Open() decimal.Decimal {
	return l.LineTotal.Sub(l.InvoicedAmount)
}

// Specs returns the priced content of the order lines.
func (o *Order) Specs() []LineSpec {
	specs := make([]LineSpec, len(o.Lines))
	for i, l := range o.Lines {
		specs[i] = l.LineSpec
	}
	return specs
}

// applyLines replaces the lines with specs and recomputes the header amounts.
// Only valid while nothing has been invoiced.
func (o *Order) applyLines(specs []LineSpec) {
	o.Lines = make([]OrderLineItem, len(specs))
	for i, s := range specs {
		o.Lines[i] = OrderLineItem{
			OrderID:   o.ID,
			SortOrder: i + 1,
			LineSpec:  s,
			LineTotal: s.Amounts().Total,
		}
	}
	o.setTotals(DocumentTotals(specs))
}

func (o *Order) setTotals(t Totals) {
	o.Subtotal, o.Tax, o.Discount, o.Total = t.Subtotal, t.Tax, t.Discount, t.Total
	o.RemainingAmount = o.Total.Sub(o.InvoicedAmount)
}

// deriveInvoicingStatus returns the status implied by the invoiced amount.
// Orders with nothing invoiced keep their current status.
func (o *Order) deriveInvoicingStatus() OrderStatus {
	switch {
	case o.InvoicedAmount.IsPositive() && !o.RemainingAmount.IsPositive():
		return OrderInvoiced
	case o.InvoicedAmount.IsPositive():
		return OrderPartiallyInvoiced
	default:
		return o.Status
	}
}
