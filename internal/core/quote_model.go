package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company is the customer master record a document is issued to, scoped to a tenant.
type Company struct {
	ID               int64  `json:"id"`
	TenantID         int64  `json:"tenant_id"`
	Name             string `json:"name"`
	Currency         string `json:"currency"`
	PaymentTermsDays int    `json:"payment_terms_days"`
}

// Quote is a tenant-scoped sales proposal.
// Lines are owned by the quote and deleted with it.
type Quote struct {
	ID                   int64           `json:"id"`
	TenantID             int64           `json:"tenant_id"`
	Number               string          `json:"number"`
	CompanyID            int64           `json:"company_id"`
	ContactID            *int64          `json:"contact_id,omitempty"`
	Status               QuoteStatus     `json:"status"`
	IssueDate            time.Time       `json:"issue_date"`
	ValidUntil           *time.Time      `json:"valid_until,omitempty"`
	Currency             string          `json:"currency"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	Tax                  decimal.Decimal `json:"tax"`
	Discount             decimal.Decimal `json:"discount"`
	Total                decimal.Decimal `json:"total"`
	Notes                string          `json:"notes,omitempty"`
	ConvertedToOrderAt   *time.Time      `json:"converted_to_order_at,omitempty"`
	ConvertedToInvoiceAt *time.Time      `json:"converted_to_invoice_at,omitempty"`
	CreatedBy            int64           `json:"created_by"`
	UpdatedBy            *int64          `json:"updated_by,omitempty"`
	ApprovedBy           *int64          `json:"approved_by,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Lines                []QuoteLineItem `json:"lines"`
}

// QuoteLineItem is one priced line of a quote.
type QuoteLineItem struct {
	ID        int64 `json:"id"`
	QuoteID   int64 `json:"quote_id"`
	SortOrder int   `json:"sort_order"`
	LineSpec
	LineTotal decimal.Decimal `json:"line_total"`
}

// Editable reports whether the quote header and lines may still change.
func (q *Quote) Editable() bool {
	return !q.Status.Terminal() && q.ConvertedToOrderAt == nil
}

// Specs returns the priced content of the quote lines.
func (q *Quote) Specs() []LineSpec {
	specs := make([]LineSpec, len(q.Lines))
	for i, l := range q.Lines {
		specs[i] = l.LineSpec
	}
	return specs
}

// applyLines replaces the lines with specs and recomputes every amount.
func (q *Quote) applyLines(specs []LineSpec) {
	q.Lines = make([]QuoteLineItem, len(specs))
	for i, s := range specs {
		q.Lines[i] = QuoteLineItem{
			QuoteID:   q.ID,
			SortOrder: i + 1,
			LineSpec:  s,
			LineTotal: s.Amounts().Total,
		}
	}
	t := DocumentTotals(specs)
	q.Subtotal, q.Tax, q.Discount, q.Total = t.Subtotal, t.Tax, t.Discount, t.Total
}
