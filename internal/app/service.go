package app

import (
	"context"
	"time"

	"crm-workflow/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It applies the per-operation timeout, the role check and operation logging
// on top of the core services. Implementations contain no display logic.
type ApplicationService interface {
	// Authenticate verifies credentials and returns a session on success.
	Authenticate(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns the profile of an authenticated user.
	GetUser(ctx context.Context, userID int64) (*UserResult, error)

	CreateQuote(ctx context.Context, actor core.Actor, in core.QuoteInput) (*core.Quote, error)
	GetQuote(ctx context.Context, actor core.Actor, quoteID int64) (*core.Quote, error)
	ListQuotes(ctx context.Context, actor core.Actor, f core.ListFilter) (*QuoteListResult, error)
	UpdateQuote(ctx context.Context, actor core.Actor, quoteID int64, in core.QuoteInput) (*core.Quote, error)
	DeleteQuote(ctx context.Context, actor core.Actor, quoteID int64) error
	TransitionQuote(ctx context.Context, actor core.Actor, quoteID int64, req TransitionRequest) (*core.Quote, error)

	// ConvertQuoteToOrder copies an open quote into a pending order.
	ConvertQuoteToOrder(ctx context.Context, actor core.Actor, quoteID int64, c *core.Customizations) (*core.Order, error)

	// ConvertQuoteToInvoice bills a quote directly, skipping the order stage.
	ConvertQuoteToInvoice(ctx context.Context, actor core.Actor, quoteID int64, c *core.Customizations) (*core.Invoice, error)

	// ConvertOrderToInvoice bills the remaining amount of an order, or the part
	// selected by c.Partial.
	ConvertOrderToInvoice(ctx context.Context, actor core.Actor, orderID int64, c *core.Customizations) (*core.Invoice, error)

	// CreateConsolidatedInvoice bills several orders of one company on a single invoice.
	CreateConsolidatedInvoice(ctx context.Context, actor core.Actor, req ConsolidatedInvoiceRequest) (*core.Invoice, error)

	// GetDocumentChain returns the quote with every order and invoice derived from it.
	GetDocumentChain(ctx context.Context, actor core.Actor, quoteID int64) (*core.DocumentChain, error)

	// VerifyOrder re-checks the invoicing invariants of one order.
	VerifyOrder(ctx context.Context, actor core.Actor, orderID int64) (*core.LedgerReport, error)

	GetOrder(ctx context.Context, actor core.Actor, orderID int64) (*core.Order, error)
	ListOrders(ctx context.Context, actor core.Actor, f core.ListFilter) (*OrderListResult, error)
	UpdateOrder(ctx context.Context, actor core.Actor, orderID int64, in core.OrderUpdate) (*core.Order, error)
	DeleteOrder(ctx context.Context, actor core.Actor, orderID int64) error
	TransitionOrder(ctx context.Context, actor core.Actor, orderID int64, req TransitionRequest) (*core.Order, error)

	GetInvoice(ctx context.Context, actor core.Actor, invoiceID int64) (*core.Invoice, error)
	// GetPublicInvoice resolves an invoice by its access token. No actor is required.
	GetPublicInvoice(ctx context.Context, token string) (*core.Invoice, error)
	ListInvoices(ctx context.Context, actor core.Actor, f core.ListFilter) (*InvoiceListResult, error)
	UpdateInvoice(ctx context.Context, actor core.Actor, invoiceID int64, in core.InvoiceUpdate) (*core.Invoice, error)
	DeleteInvoice(ctx context.Context, actor core.Actor, invoiceID int64) error
	TransitionInvoice(ctx context.Context, actor core.Actor, invoiceID int64, req TransitionRequest) (*core.Invoice, error)
	RecordPayment(ctx context.Context, actor core.Actor, invoiceID int64, p core.Payment) (*core.Invoice, error)

	// MarkOverdue flags unpaid invoices due before asOf.
	MarkOverdue(ctx context.Context, actor core.Actor, asOf time.Time) (*SweepResult, error)

	// ExpireQuotes expires open quotes whose validity ended before asOf.
	ExpireQuotes(ctx context.Context, actor core.Actor, asOf time.Time) (*SweepResult, error)
}
