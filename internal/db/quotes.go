package db

import (
	"context"
	"fmt"
	"time"

	"crm-workflow/internal/core"

	"github.com/jackc/pgx/v5"
)

const quoteColumns = `id, tenant_id, number, company_id, contact_id, status, issue_date, valid_until,
	currency, subtotal, tax, discount, total, notes, converted_to_order_at, converted_to_invoice_at,
	created_by, updated_by, approved_by, created_at, updated_at`

const quoteLineColumns = `id, quote_id, sort_order, product_id, name, description, quantity, unit,
	unit_price, discount_pct, tax_pct, line_total`

func scanQuote(row pgx.Row) (core.Quote, error) {
	var q core.Quote
	err := row.Scan(&q.ID, &q.TenantID, &q.Number, &q.CompanyID, &q.ContactID, &q.Status, &q.IssueDate, &q.ValidUntil,
		&q.Currency, &q.Subtotal, &q.Tax, &q.Discount, &q.Total, &q.Notes, &q.ConvertedToOrderAt, &q.ConvertedToInvoiceAt,
		&q.CreatedBy, &q.UpdatedBy, &q.ApprovedBy, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

func (t *tx) GetCompany(ctx context.Context, tenantID, companyID int64) (*core.Company, error) {
	var c core.Company
	err := t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, name, currency, payment_terms_days
		FROM companies
		WHERE id = $1 AND tenant_id = $2`,
		companyID, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Currency, &c.PaymentTermsDays)
	if err != nil {
		return nil, notFound(err, "company", companyID)
	}
	return &c, nil
}

func (t *tx) GetQuote(ctx context.Context, tenantID, quoteID int64, lock bool) (*core.Quote, error) {
	q, err := scanQuote(t.tx.QueryRow(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE id = $1 AND tenant_id = $2"+lockClause(lock),
		quoteID, tenantID))
	if err != nil {
		return nil, notFound(err, "quote", quoteID)
	}
	quotes := []core.Quote{q}
	if err := t.loadQuoteLines(ctx, quotes); err != nil {
		return nil, err
	}
	return &quotes[0], nil
}

func (t *tx) queryQuotes(ctx context.Context, sql string, args ...any) ([]core.Quote, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []core.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read quotes: %w", err)
	}
	if err := t.loadQuoteLines(ctx, quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

func (t *tx) loadQuoteLines(ctx context.Context, quotes []core.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	index := make(map[int64]int, len(quotes))
	ids := make([]int64, len(quotes))
	for i, q := range quotes {
		index[q.ID] = i
		ids[i] = q.ID
	}

	rows, err := t.tx.Query(ctx,
		"SELECT "+quoteLineColumns+" FROM quote_line_items WHERE quote_id = ANY($1) ORDER BY quote_id, sort_order", ids)
	if err != nil {
		return fmt.Errorf("failed to query quote lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l core.QuoteLineItem
		if err := rows.Scan(&l.ID, &l.QuoteID, &l.SortOrder, &l.ProductID, &l.Name, &l.Description, &l.Quantity, &l.Unit,
			&l.UnitPrice, &l.DiscountPct, &l.TaxPct, &l.LineTotal); err != nil {
			return fmt.Errorf("failed to scan quote line: %w", err)
		}
		i := index[l.QuoteID]
		quotes[i].Lines = append(quotes[i].Lines, l)
	}
	return rows.Err()
}

func (t *tx) ListQuotes(ctx context.Context, tenantID int64, f core.ListFilter) ([]core.Quote, error) {
	where, args := listWhere(f, []any{tenantID})
	return t.queryQuotes(ctx, "SELECT "+quoteColumns+" FROM quotes WHERE tenant_id = $1"+where, args...)
}

func (t *tx) ListQuotesValidBefore(ctx context.Context, tenantID int64, asOf time.Time) ([]core.Quote, error) {
	return t.queryQuotes(ctx, "SELECT "+quoteColumns+` FROM quotes
		WHERE tenant_id = $1 AND valid_until < $2 AND status IN ('draft', 'sent', 'viewed', 'accepted')
		ORDER BY id`, tenantID, asOf)
}

func (t *tx) InsertQuote(ctx context.Context, q *core.Quote) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO quotes (tenant_id, number, company_id, contact_id, status, issue_date, valid_until, currency,
			subtotal, tax, discount, total, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		q.TenantID, q.Number, q.CompanyID, q.ContactID, string(q.Status), q.IssueDate, q.ValidUntil, q.Currency,
		q.Subtotal, q.Tax, q.Discount, q.Total, q.Notes, q.CreatedBy, q.CreatedAt, q.UpdatedAt,
	).Scan(&q.ID)
	if err != nil {
		return mapError(fmt.Errorf("failed to insert quote: %w", err), "quote", q.Number)
	}
	return t.insertQuoteLines(ctx, q)
}

func (t *tx) insertQuoteLines(ctx context.Context, q *core.Quote) error {
	for i := range q.Lines {
		l := &q.Lines[i]
		l.QuoteID = q.ID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO quote_line_items (quote_id, sort_order, product_id, name, description, quantity, unit,
				unit_price, discount_pct, tax_pct, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`,
			l.QuoteID, l.SortOrder, l.ProductID, l.Name, l.Description, l.Quantity, l.Unit,
			l.UnitPrice, l.DiscountPct, l.TaxPct, l.LineTotal,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("failed to insert quote line %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *tx) UpdateQuote(ctx context.Context, q *core.Quote, lines bool) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE quotes SET company_id = $3, contact_id = $4, status = $5, issue_date = $6, valid_until = $7,
			currency = $8, subtotal = $9, tax = $10, discount = $11, total = $12, notes = $13,
			converted_to_order_at = $14, converted_to_invoice_at = $15, updated_by = $16, approved_by = $17,
			updated_at = $18
		WHERE id = $1 AND tenant_id = $2`,
		q.ID, q.TenantID, q.CompanyID, q.ContactID, string(q.Status), q.IssueDate, q.ValidUntil,
		q.Currency, q.Subtotal, q.Tax, q.Discount, q.Total, q.Notes,
		q.ConvertedToOrderAt, q.ConvertedToInvoiceAt, q.UpdatedBy, q.ApprovedBy, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update quote %s: %w", q.Number, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFound("quote", q.ID)
	}
	if !lines {
		return nil
	}
	if _, err := t.tx.Exec(ctx, "DELETE FROM quote_line_items WHERE quote_id = $1", q.ID); err != nil {
		return fmt.Errorf("failed to delete lines of quote %s: %w", q.Number, err)
	}
	return t.insertQuoteLines(ctx, q)
}

func (t *tx) DeleteQuote(ctx context.Context, tenantID, quoteID int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM quotes WHERE id = $1 AND tenant_id = $2", quoteID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete quote %d: %w", quoteID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFound("quote", quoteID)
	}
	return nil
}

func (t *tx) NextSequence(ctx context.Context, tenantID int64, prefix string, year int) (int64, error) {
	var last int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO document_sequences (tenant_id, doc_type, year, last_number)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, doc_type, year)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number`,
		tenantID, prefix, year,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to generate gapless sequence number: %w", err)
	}
	return last, nil
}
