package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineSpec is the priced content of a line item, shared by quote, order and invoice lines.
type LineSpec struct {
	ProductID   *int64          `json:"product_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	TaxPct      decimal.Decimal `json:"tax_pct"`
}

// Validate checks a single line. index is 1-based and only used in messages.
func (l LineSpec) Validate(index int) error {
	field := fmt.Sprintf("line %d", index)
	if l.Name == "" {
		return NewValidation(field, "name is required")
	}
	if !l.Quantity.IsPositive() {
		return NewValidation(field, "quantity must be greater than zero, got %s", l.Quantity)
	}
	if l.UnitPrice.IsNegative() {
		return NewValidation(field, "unit price cannot be negative, got %s", l.UnitPrice)
	}
	if l.DiscountPct.IsNegative() || l.DiscountPct.GreaterThan(hundred) {
		return NewValidation(field, "discount must be between 0 and 100 percent, got %s", l.DiscountPct)
	}
	if l.TaxPct.IsNegative() {
		return NewValidation(field, "tax rate cannot be negative, got %s", l.TaxPct)
	}
	return nil
}

// ValidateLines rejects an empty list and any invalid line.
func ValidateLines(lines []LineSpec) error {
	if len(lines) == 0 {
		return NewValidation("lines", "document must have at least one line item")
	}
	for i, l := range lines {
		if err := l.Validate(i + 1); err != nil {
			return err
		}
	}
	return nil
}

// LineAmounts holds the rounded amounts of one line.
// Total = Taxable + Tax; Taxable = Base - Discount.
type LineAmounts struct {
	Base     decimal.Decimal `json:"base"`
	Discount decimal.Decimal `json:"discount"`
	Taxable  decimal.Decimal `json:"taxable"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// LineTotal prices a single line. Every intermediate amount is rounded to cents
// so that documents reconcile line by line.
func LineTotal(quantity, unitPrice, discountPct, taxPct decimal.Decimal) LineAmounts {
	base := Round2(quantity.Mul(unitPrice))
	discount := Round2(base.Mul(discountPct).Div(hundred))
	taxable := base.Sub(discount)
	tax := Round2(taxable.Mul(taxPct).Div(hundred))
	return LineAmounts{
		Base:     base,
		Discount: discount,
		Taxable:  taxable,
		Tax:      tax,
		Total:    taxable.Add(tax),
	}
}

// Amounts prices the line.
func (l LineSpec) Amounts() LineAmounts {
	return LineTotal(l.Quantity, l.UnitPrice, l.DiscountPct, l.TaxPct)
}

// Totals is the header-level money of a document.
// Subtotal is net of line discounts; Discount records how much was taken off.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// DocumentTotals prices every line and sums the rounded line amounts.
func DocumentTotals(lines []LineSpec) Totals {
	amounts := make([]LineAmounts, len(lines))
	for i, l := range lines {
		amounts[i] = l.Amounts()
	}
	return SumLineAmounts(amounts)
}

// SumLineAmounts adds already rounded line amounts.
func SumLineAmounts(amounts []LineAmounts) Totals {
	var t Totals
	for _, a := range amounts {
		t.Subtotal = t.Subtotal.Add(a.Taxable)
		t.Discount = t.Discount.Add(a.Discount)
		t.Tax = t.Tax.Add(a.Tax)
	}
	t.Total = t.Subtotal.Add(t.Tax)
	return t
}
