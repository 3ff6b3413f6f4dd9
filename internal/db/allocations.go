package db

import (
	"context"
	"fmt"

	"crm-workflow/internal/core"
)

const allocationColumns = "id, tenant_id, invoice_id, order_id, amount_allocated, created_by, created_at"

// InsertAllocation appends one bridge row. Rows are never updated or deleted.
func (t *tx) InsertAllocation(ctx context.Context, a *core.InvoiceOrderAllocation) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoice_order_allocations (tenant_id, invoice_id, order_id, amount_allocated, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		a.TenantID, a.InvoiceID, a.OrderID, a.AmountAllocated, a.CreatedBy, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return mapError(fmt.Errorf("failed to insert allocation: %w", err), "allocation", a.OrderID)
	}
	return nil
}

func (t *tx) queryAllocations(ctx context.Context, sql string, args ...any) ([]core.InvoiceOrderAllocation, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var out []core.InvoiceOrderAllocation
	for rows.Next() {
		var a core.InvoiceOrderAllocation
		if err := rows.Scan(&a.ID, &a.TenantID, &a.InvoiceID, &a.OrderID, &a.AmountAllocated, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *tx) ListAllocationsByOrders(ctx context.Context, tenantID int64, orderIDs []int64) ([]core.InvoiceOrderAllocation, error) {
	return t.queryAllocations(ctx,
		"SELECT "+allocationColumns+" FROM invoice_order_allocations WHERE tenant_id = $1 AND order_id = ANY($2) ORDER BY id",
		tenantID, orderIDs)
}

func (t *tx) ListAllocationsByInvoice(ctx context.Context, tenantID, invoiceID int64) ([]core.InvoiceOrderAllocation, error) {
	return t.queryAllocations(ctx,
		"SELECT "+allocationColumns+" FROM invoice_order_allocations WHERE tenant_id = $1 AND invoice_id = $2 ORDER BY id",
		tenantID, invoiceID)
}
