package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AllocationLedger owns the Invoice↔Order bridge.
//
// Allocation rows are append-only. An order's invoiced amount, remaining amount,
// per-line invoicing progress and invoicing status are never incremented in place:
// after every insert they are re-derived from the allocation and invoice line rows
// inside the same transaction, so a retried or replayed operation cannot drift.
type AllocationLedger struct {
	now func() time.Time
}

func NewAllocationLedger(now func() time.Time) *AllocationLedger {
	if now == nil {
		now = time.Now
	}
	return &AllocationLedger{now: now}
}

// Record inserts one allocation and re-derives the affected order.
func (l *AllocationLedger) Record(ctx context.Context, tx Tx, a *InvoiceOrderAllocation) (*Order, error) {
	if !a.AmountAllocated.IsPositive() {
		return nil, NewValidation("amount_allocated", "must be greater than zero, got %s", a.AmountAllocated)
	}
	if !isCents(a.AmountAllocated) {
		return nil, NewValidation("amount_allocated", "%s has more than 2 decimal places", a.AmountAllocated)
	}
	a.CreatedAt = l.now()
	if err := tx.InsertAllocation(ctx, a); err != nil {
		return nil, err
	}
	return l.Rederive(ctx, tx, a.TenantID, a.OrderID, a.CreatedBy)
}

// Rederive recomputes every invoicing field of the order from the ledger rows and saves it.
func (l *AllocationLedger) Rederive(ctx context.Context, tx Tx, tenantID, orderID, userID int64) (*Order, error) {
	order, err := tx.GetOrder(ctx, tenantID, orderID, true)
	if err != nil {
		return nil, err
	}

	allocations, err := tx.ListAllocationsByOrders(ctx, tenantID, []int64{orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations for order %d: %w", orderID, err)
	}
	invoiced := sumAllocations(allocations)
	if invoiced.GreaterThan(order.Total) {
		return nil, NewValidation("amount_allocated",
			"allocations of %s exceed total %s of order %s", invoiced.StringFixed(2), order.Total.StringFixed(2), order.Number)
	}

	perLine, err := tx.SumInvoicedByOrderLine(ctx, tenantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum invoiced lines for order %d: %w", orderID, err)
	}
	for i := range order.Lines {
		p := perLine[order.Lines[i].ID]
		order.Lines[i].InvoicedAmount = p.Amount
		order.Lines[i].InvoicedQuantity = p.Quantity
	}

	now := l.now()
	order.InvoicedAmount = invoiced
	order.RemainingAmount = order.Total.Sub(invoiced)
	order.Status = order.deriveInvoicingStatus()
	order.UpdatedAt = now
	if userID != 0 {
		order.UpdatedBy = &userID
	}

	if err := tx.UpdateOrderLines(ctx, order); err != nil {
		return nil, err
	}
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}

	if order.QuoteID != nil {
		if err := l.settleQuote(ctx, tx, tenantID, *order.QuoteID, userID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// settleQuote marks a quote converted once every live order drawn from it is fully invoiced.
func (l *AllocationLedger) settleQuote(ctx context.Context, tx Tx, tenantID, quoteID, userID int64) error {
	orders, err := tx.ListOrdersByQuote(ctx, tenantID, quoteID)
	if err != nil {
		return fmt.Errorf("failed to load orders of quote %d: %w", quoteID, err)
	}
	live := 0
	for _, o := range orders {
		if o.Status == OrderCancelled {
			continue
		}
		live++
		if o.RemainingAmount.IsPositive() || !o.InvoicedAmount.IsPositive() {
			return nil
		}
	}
	if live == 0 {
		return nil
	}

	quote, err := tx.GetQuote(ctx, tenantID, quoteID, true)
	if err != nil {
		return err
	}
	if !quote.Status.Convertible() {
		return nil
	}
	now := l.now()
	quote.Status = QuoteConverted
	quote.UpdatedAt = now
	if userID != 0 {
		quote.UpdatedBy = &userID
	}
	return tx.UpdateQuote(ctx, quote, false)
}

// LedgerReport is the result of re-checking one order against its ledger rows.
type LedgerReport struct {
	OrderID         int64           `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	Total           decimal.Decimal `json:"total"`
	InvoicedAmount  decimal.Decimal `json:"invoiced_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	AllocatedSum    decimal.Decimal `json:"allocated_sum"`
	LineInvoicedSum decimal.Decimal `json:"line_invoiced_sum"`
	Allocations     int             `json:"allocations"`
	Problems        []string        `json:"problems,omitempty"`
}

// Consistent reports whether no invariant was violated.
func (r *LedgerReport) Consistent() bool {
	return len(r.Problems) == 0
}

// Verify re-checks the order invariants without writing anything.
func (l *AllocationLedger) Verify(ctx context.Context, tx Tx, tenantID, orderID int64) (*LedgerReport, error) {
	order, err := tx.GetOrder(ctx, tenantID, orderID, false)
	if err != nil {
		return nil, err
	}
	allocations, err := tx.ListAllocationsByOrders(ctx, tenantID, []int64{orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations for order %d: %w", orderID, err)
	}

	r := &LedgerReport{
		OrderID:         order.ID,
		OrderNumber:     order.Number,
		Total:           order.Total,
		InvoicedAmount:  order.InvoicedAmount,
		RemainingAmount: order.RemainingAmount,
		AllocatedSum:    sumAllocations(allocations),
		Allocations:     len(allocations),
	}
	for _, line := range order.Lines {
		r.LineInvoicedSum = r.LineInvoicedSum.Add(line.InvoicedAmount)
	}

	if !order.RemainingAmount.Equal(order.Total.Sub(order.InvoicedAmount)) {
		r.Problems = append(r.Problems, fmt.Sprintf("remaining %s != total %s - invoiced %s",
			order.RemainingAmount.StringFixed(2), order.Total.StringFixed(2), order.InvoicedAmount.StringFixed(2)))
	}
	if !r.AllocatedSum.Equal(order.InvoicedAmount) {
		r.Problems = append(r.Problems, fmt.Sprintf("allocations sum %s != invoiced %s",
			r.AllocatedSum.StringFixed(2), order.InvoicedAmount.StringFixed(2)))
	}
	if order.InvoicedAmount.GreaterThan(order.Total) {
		r.Problems = append(r.Problems, fmt.Sprintf("invoiced %s exceeds total %s",
			order.InvoicedAmount.StringFixed(2), order.Total.StringFixed(2)))
	}
	if !r.LineInvoicedSum.Equal(order.InvoicedAmount) {
		r.Problems = append(r.Problems, fmt.Sprintf("line invoiced sum %s != invoiced %s",
			r.LineInvoicedSum.StringFixed(2), order.InvoicedAmount.StringFixed(2)))
	}
	if want := order.deriveInvoicingStatus(); order.Status.Derived() && order.Status != want {
		r.Problems = append(r.Problems, fmt.Sprintf("status %s does not reflect invoicing (want %s)", order.Status, want))
	}
	return r, nil
}

func sumAllocations(allocations []InvoiceOrderAllocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocations {
		sum = sum.Add(a.AmountAllocated)
	}
	return sum
}
