package core

import (
	"context"
	"time"
)

// Store opens transactions. Every engine operation receives the Tx handle explicitly;
// nothing reaches the database through package state.
type Store interface {
	// WithTx runs fn inside a read-write transaction. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// WithReadTx runs fn inside a read-only transaction.
	WithReadTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the unit of atomicity for one workflow operation.
// Every method filters by tenantID; rows of other tenants are reported as not found.
type Tx interface {
	CompanyStore
	QuoteStore
	OrderStore
	InvoiceStore
	AllocationStore
	SequenceStore
}

// ListFilter narrows list queries. Zero value returns everything for the tenant.
type ListFilter struct {
	Status    string
	CompanyID *int64
	Limit     int
}

type CompanyStore interface {
	GetCompany(ctx context.Context, tenantID, companyID int64) (*Company, error)
}

type QuoteStore interface {
	// GetQuote loads a quote and its lines. lock takes a row lock held until the tx ends.
	GetQuote(ctx context.Context, tenantID, quoteID int64, lock bool) (*Quote, error)
	ListQuotes(ctx context.Context, tenantID int64, f ListFilter) ([]Quote, error)
	InsertQuote(ctx context.Context, q *Quote) error
	// UpdateQuote saves the header and, when lines is true, replaces the lines.
	UpdateQuote(ctx context.Context, q *Quote, lines bool) error
	DeleteQuote(ctx context.Context, tenantID, quoteID int64) error
	// ListQuotesValidBefore returns open quotes whose valid-until date is before asOf.
	ListQuotesValidBefore(ctx context.Context, tenantID int64, asOf time.Time) ([]Quote, error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, tenantID, orderID int64, lock bool) (*Order, error)
	ListOrders(ctx context.Context, tenantID int64, f ListFilter) ([]Order, error)
	ListOrdersByQuote(ctx context.Context, tenantID, quoteID int64) ([]Order, error)
	FindOrderByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*Order, error)
	InsertOrder(ctx context.Context, o *Order) error
	// UpdateOrder saves the header guarded by o.Version and increments it.
	// A stale version is a retryable ConflictError.
	UpdateOrder(ctx context.Context, o *Order) error
	// UpdateOrderLines saves per-line progress (fulfilled/invoiced quantity and amount).
	UpdateOrderLines(ctx context.Context, o *Order) error
	// ReplaceOrderLines deletes and re-inserts every line.
	ReplaceOrderLines(ctx context.Context, o *Order) error
	DeleteOrder(ctx context.Context, tenantID, orderID int64) error
}

type InvoiceStore interface {
	GetInvoice(ctx context.Context, tenantID, invoiceID int64, lock bool) (*Invoice, error)
	GetInvoiceByToken(ctx context.Context, token string) (*Invoice, error)
	ListInvoices(ctx context.Context, tenantID int64, f ListFilter) ([]Invoice, error)
	ListInvoicesByQuote(ctx context.Context, tenantID, quoteID int64) ([]Invoice, error)
	ListInvoicesByIDs(ctx context.Context, tenantID int64, ids []int64) ([]Invoice, error)
	// ListInvoicesDueBefore returns unpaid sent/viewed/partially paid invoices due before asOf.
	ListInvoicesDueBefore(ctx context.Context, tenantID int64, asOf time.Time) ([]Invoice, error)
	FindInvoiceByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*Invoice, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, tenantID, invoiceID int64) error
	// SumInvoicedByOrderLine sums invoice lines per order line id for one order.
	SumInvoicedByOrderLine(ctx context.Context, tenantID, orderID int64) (map[int64]LineInvoicing, error)
}

type AllocationStore interface {
	// InsertAllocation fails with ConflictError if the (invoice, order) pair already exists.
	InsertAllocation(ctx context.Context, a *InvoiceOrderAllocation) error
	ListAllocationsByOrders(ctx context.Context, tenantID int64, orderIDs []int64) ([]InvoiceOrderAllocation, error)
	ListAllocationsByInvoice(ctx context.Context, tenantID, invoiceID int64) ([]InvoiceOrderAllocation, error)
}

type SequenceStore interface {
	// NextSequence returns the next gapless number for (tenant, prefix, year).
	NextSequence(ctx context.Context, tenantID int64, prefix string, year int) (int64, error)
}
