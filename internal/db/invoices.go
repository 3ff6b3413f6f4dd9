package db

import (
	"context"
	"fmt"
	"time"

	"crm-workflow/internal/core"

	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `id, tenant_id, number, company_id, contact_id, quote_id, status, issue_date, due_date,
	payment_date, currency, subtotal, tax, discount, total, paid_amount, remaining_amount, notes, access_token,
	idempotency_key, created_by, updated_by, cancelled_by, created_at, updated_at`

const invoiceLineColumns = `id, invoice_id, order_item_id, quote_item_id, sort_order, product_id, name, description,
	quantity, unit, unit_price, discount_pct, tax_pct, subtotal, tax_amount, line_total`

func scanInvoice(row pgx.Row) (core.Invoice, error) {
	var inv core.Invoice
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.CompanyID, &inv.ContactID, &inv.QuoteID, &inv.Status, &inv.IssueDate, &inv.DueDate,
		&inv.PaymentDate, &inv.Currency, &inv.Subtotal, &inv.Tax, &inv.Discount, &inv.Total, &inv.PaidAmount, &inv.RemainingAmount, &inv.Notes, &inv.AccessToken,
		&inv.IdempotencyKey, &inv.CreatedBy, &inv.UpdatedBy, &inv.CancelledBy, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (t *tx) getInvoice(ctx context.Context, sql string, id any, args ...any) (*core.Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err, "invoice", id)
	}
	invoices := []core.Invoice{inv}
	if err := t.loadInvoiceLines(ctx, invoices); err != nil {
		return nil, err
	}
	return &invoices[0], nil
}

func (t *tx) GetInvoice(ctx context.Context, tenantID, invoiceID int64, lock bool) (*core.Invoice, error) {
	return t.getInvoice(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = $1 AND tenant_id = $2"+lockClause(lock),
		invoiceID, invoiceID, tenantID)
}

func (t *tx) GetInvoiceByToken(ctx context.Context, token string) (*core.Invoice, error) {
	return t.getInvoice(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE access_token = $1", "token", token)
}

func (t *tx) FindInvoiceByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*core.Invoice, error) {
	return t.getInvoice(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE tenant_id = $1 AND idempotency_key = $2", key, tenantID, key)
}

func (t *tx) queryInvoices(ctx context.Context, sql string, args ...any) ([]core.Invoice, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read invoices: %w", err)
	}
	if err := t.loadInvoiceLines(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (t *tx) loadInvoiceLines(ctx context.Context, invoices []core.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	index := make(map[int64]int, len(invoices))
	ids := make([]int64, len(invoices))
	for i, inv := range invoices {
		index[inv.ID] = i
		ids[i] = inv.ID
	}

	rows, err := t.tx.Query(ctx,
		"SELECT "+invoiceLineColumns+" FROM invoice_line_items WHERE invoice_id = ANY($1) ORDER BY invoice_id, sort_order", ids)
	if err != nil {
		return fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l core.InvoiceLineItem
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.OrderItemID, &l.QuoteItemID, &l.SortOrder, &l.ProductID, &l.Name, &l.Description,
			&l.Quantity, &l.Unit, &l.UnitPrice, &l.DiscountPct, &l.TaxPct, &l.Subtotal, &l.TaxAmount, &l.LineTotal); err != nil {
			return fmt.Errorf("failed to scan invoice line: %w", err)
		}
		i := index[l.InvoiceID]
		invoices[i].Lines = append(invoices[i].Lines, l)
	}
	return rows.Err()
}

func (t *tx) ListInvoices(ctx context.Context, tenantID int64, f core.ListFilter) ([]core.Invoice, error) {
	where, args := listWhere(f, []any{tenantID})
	return t.queryInvoices(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE tenant_id = $1"+where, args...)
}

func (t *tx) ListInvoicesByQuote(ctx context.Context, tenantID, quoteID int64) ([]core.Invoice, error) {
	return t.queryInvoices(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE tenant_id = $1 AND quote_id = $2 ORDER BY id", tenantID, quoteID)
}

func (t *tx) ListInvoicesByIDs(ctx context.Context, tenantID int64, ids []int64) ([]core.Invoice, error) {
	return t.queryInvoices(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE tenant_id = $1 AND id = ANY($2) ORDER BY id", tenantID, ids)
}

func (t *tx) ListInvoicesDueBefore(ctx context.Context, tenantID int64, asOf time.Time) ([]core.Invoice, error) {
	return t.queryInvoices(ctx, "SELECT "+invoiceColumns+` FROM invoices
		WHERE tenant_id = $1 AND due_date < $2 AND status IN ('sent', 'viewed', 'partially_paid')
		ORDER BY id`, tenantID, asOf)
}

func (t *tx) InsertInvoice(ctx context.Context, inv *core.Invoice) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoices (tenant_id, number, company_id, contact_id, quote_id, status, issue_date, due_date,
			currency, subtotal, tax, discount, total, paid_amount, remaining_amount, notes, access_token,
			idempotency_key, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`,
		inv.TenantID, inv.Number, inv.CompanyID, inv.ContactID, inv.QuoteID, string(inv.Status), inv.IssueDate, inv.DueDate,
		inv.Currency, inv.Subtotal, inv.Tax, inv.Discount, inv.Total, inv.PaidAmount, inv.RemainingAmount, inv.Notes, inv.AccessToken,
		inv.IdempotencyKey, inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&inv.ID)
	if err != nil {
		return mapError(fmt.Errorf("failed to insert invoice: %w", err), "invoice", inv.Number)
	}

	for i := range inv.Lines {
		l := &inv.Lines[i]
		l.InvoiceID = inv.ID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO invoice_line_items (invoice_id, order_item_id, quote_item_id, sort_order, product_id, name,
				description, quantity, unit, unit_price, discount_pct, tax_pct, subtotal, tax_amount, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id`,
			l.InvoiceID, l.OrderItemID, l.QuoteItemID, l.SortOrder, l.ProductID, l.Name,
			l.Description, l.Quantity, l.Unit, l.UnitPrice, l.DiscountPct, l.TaxPct, l.Subtotal, l.TaxAmount, l.LineTotal,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("failed to insert invoice line %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *tx) UpdateInvoice(ctx context.Context, inv *core.Invoice) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices SET status = $3, due_date = $4, payment_date = $5, paid_amount = $6, remaining_amount = $7,
			notes = $8, updated_by = $9, cancelled_by = $10, updated_at = $11
		WHERE id = $1 AND tenant_id = $2`,
		inv.ID, inv.TenantID, string(inv.Status), inv.DueDate, inv.PaymentDate, inv.PaidAmount, inv.RemainingAmount,
		inv.Notes, inv.UpdatedBy, inv.CancelledBy, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update invoice %s: %w", inv.Number, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFound("invoice", inv.ID)
	}
	return nil
}

func (t *tx) DeleteInvoice(ctx context.Context, tenantID, invoiceID int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM invoices WHERE id = $1 AND tenant_id = $2", invoiceID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFound("invoice", invoiceID)
	}
	return nil
}

func (t *tx) SumInvoicedByOrderLine(ctx context.Context, tenantID, orderID int64) (map[int64]core.LineInvoicing, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT il.order_item_id, SUM(il.quantity), SUM(il.line_total)
		FROM invoice_line_items il
		JOIN order_line_items ol ON ol.id = il.order_item_id
		JOIN orders o ON o.id = ol.order_id
		WHERE o.id = $1 AND o.tenant_id = $2
		GROUP BY il.order_item_id`,
		orderID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum invoiced lines of order %d: %w", orderID, err)
	}
	defer rows.Close()

	sums := make(map[int64]core.LineInvoicing)
	for rows.Next() {
		var id int64
		var s core.LineInvoicing
		if err := rows.Scan(&id, &s.Quantity, &s.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoiced line sum: %w", err)
		}
		sums[id] = s
	}
	return sums, rows.Err()
}
