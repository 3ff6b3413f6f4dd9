package db

import (
	"context"
	"errors"
	"fmt"

	"crm-workflow/internal/core"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, tenant_id, number, company_id, contact_id, quote_id, status, order_date, delivery_date,
	currency, subtotal, tax, discount, total, invoiced_amount, remaining_amount, notes, idempotency_key, version,
	created_by, updated_by, confirmed_by, confirmed_at, cancelled_by, cancelled_at, created_at, updated_at`

const orderLineColumns = `id, order_id, quote_item_id, sort_order, product_id, name, description, quantity, unit,
	unit_price, discount_pct, tax_pct, line_total, fulfilled_quantity, invoiced_quantity, invoiced_amount`

func scanOrder(row pgx.Row) (core.Order, error) {
	var o core.Order
	err := row.Scan(&o.ID, &o.TenantID, &o.Number, &o.CompanyID, &o.ContactID, &o.QuoteID, &o.Status, &o.OrderDate, &o.DeliveryDate,
		&o.Currency, &o.Subtotal, &o.Tax, &o.Discount, &o.Total, &o.InvoicedAmount, &o.RemainingAmount, &o.Notes, &o.IdempotencyKey, &o.Version,
		&o.CreatedBy, &o.UpdatedBy, &o.ConfirmedBy, &o.ConfirmedAt, &o.CancelledBy, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (t *tx) GetOrder(ctx context.Context, tenantID, orderID int64, lock bool) (*core.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND tenant_id = $2"+lockClause(lock),
		orderID, tenantID))
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	orders := []core.Order{o}
	if err := t.loadOrderLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (t *tx) queryOrders(ctx context.Context, sql string, args ...any) ([]core.Order, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []core.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	if err := t.loadOrderLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (t *tx) loadOrderLines(ctx context.Context, orders []core.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[int64]int, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	rows, err := t.tx.Query(ctx,
		"SELECT "+orderLineColumns+" FROM order_line_items WHERE order_id = ANY($1) ORDER BY order_id, sort_order", ids)
	if err != nil {
		return fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l core.OrderLineItem
		if err := rows.Scan(&l.ID, &l.OrderID, &l.QuoteItemID, &l.SortOrder, &l.ProductID, &l.Name, &l.Description, &l.Quantity, &l.Unit,
			&l.UnitPrice, &l.DiscountPct, &l.TaxPct, &l.LineTotal, &l.FulfilledQuantity, &l.InvoicedQuantity, &l.InvoicedAmount); err != nil {
			return fmt.Errorf("failed to scan order line: %w", err)
		}
		i := index[l.OrderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return rows.Err()
}

func (t *tx) ListOrders(ctx context.Context, tenantID int64, f core.ListFilter) ([]core.Order, error) {
	where, args := listWhere(f, []any{tenantID})
	return t.queryOrders(ctx, "SELECT "+orderColumns+" FROM orders WHERE tenant_id = $1"+where, args...)
}

func (t *tx) ListOrdersByQuote(ctx context.Context, tenantID, quoteID int64) ([]core.Order, error) {
	return t.queryOrders(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE tenant_id = $1 AND quote_id = $2 ORDER BY id", tenantID, quoteID)
}

func (t *tx) FindOrderByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*core.Order, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		"SELECT id FROM orders WHERE tenant_id = $1 AND idempotency_key = $2", tenantID, key).Scan(&id)
	if err != nil {
		return nil, notFound(err, "order", key)
	}
	return t.GetOrder(ctx, tenantID, id, false)
}

func (t *tx) InsertOrder(ctx context.Context, o *core.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (tenant_id, number, company_id, contact_id, quote_id, status, order_date, delivery_date,
			currency, subtotal, tax, discount, total, invoiced_amount, remaining_amount, notes, idempotency_key,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id, version`,
		o.TenantID, o.Number, o.CompanyID, o.ContactID, o.QuoteID, string(o.Status), o.OrderDate, o.DeliveryDate,
		o.Currency, o.Subtotal, o.Tax, o.Discount, o.Total, o.InvoicedAmount, o.RemainingAmount, o.Notes, o.IdempotencyKey,
		o.CreatedBy, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID, &o.Version)
	if err != nil {
		return mapError(fmt.Errorf("failed to insert order: %w", err), "order", o.Number)
	}
	return t.insertOrderLines(ctx, o)
}

func (t *tx) insertOrderLines(ctx context.Context, o *core.Order) error {
	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO order_line_items (order_id, quote_item_id, sort_order, product_id, name, description, quantity,
				unit, unit_price, discount_pct, tax_pct, line_total, fulfilled_quantity, invoiced_quantity, invoiced_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id`,
			l.OrderID, l.QuoteItemID, l.SortOrder, l.ProductID, l.Name, l.Description, l.Quantity,
			l.Unit, l.UnitPrice, l.DiscountPct, l.TaxPct, l.LineTotal, l.FulfilledQuantity, l.InvoicedQuantity, l.InvoicedAmount,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order line %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *tx) UpdateOrder(ctx context.Context, o *core.Order) error {
	var version int
	err := t.tx.QueryRow(ctx, `
		UPDATE orders SET status = $4, delivery_date = $5, subtotal = $6, tax = $7, discount = $8, total = $9,
			invoiced_amount = $10, remaining_amount = $11, notes = $12, updated_by = $13, confirmed_by = $14,
			confirmed_at = $15, cancelled_by = $16, cancelled_at = $17, updated_at = $18, version = version + 1
		WHERE id = $1 AND tenant_id = $2 AND version = $3
		RETURNING version`,
		o.ID, o.TenantID, o.Version, string(o.Status), o.DeliveryDate, o.Subtotal, o.Tax, o.Discount, o.Total,
		o.InvoicedAmount, o.RemainingAmount, o.Notes, o.UpdatedBy, o.ConfirmedBy,
		o.ConfirmedAt, o.CancelledBy, o.CancelledAt, o.UpdatedAt,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NewRetryableConflict("order", o.Number, "modified concurrently (expected version %d)", o.Version)
	}
	if err != nil {
		return mapError(fmt.Errorf("failed to update order %s: %w", o.Number, err), "order", o.Number)
	}
	o.Version = version
	return nil
}

func (t *tx) UpdateOrderLines(ctx context.Context, o *core.Order) error {
	b := &pgx.Batch{}
	for _, l := range o.Lines {
		b.Queue(`
			UPDATE order_line_items SET fulfilled_quantity = $3, invoiced_quantity = $4, invoiced_amount = $5
			WHERE id = $1 AND order_id = $2`,
			l.ID, o.ID, l.FulfilledQuantity, l.InvoicedQuantity, l.InvoicedAmount)
	}
	br := t.tx.SendBatch(ctx, b)
	for range o.Lines {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to update lines of order %s: %w", o.Number, err)
		}
	}
	return br.Close()
}

func (t *tx) ReplaceOrderLines(ctx context.Context, o *core.Order) error {
	if _, err := t.tx.Exec(ctx, "DELETE FROM order_line_items WHERE order_id = $1", o.ID); err != nil {
		return fmt.Errorf("failed to delete lines of order %s: %w", o.Number, err)
	}
	return t.insertOrderLines(ctx, o)
}

func (t *tx) DeleteOrder(ctx context.Context, tenantID, orderID int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM orders WHERE id = $1 AND tenant_id = $2", orderID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFound("order", orderID)
	}
	return nil
}
