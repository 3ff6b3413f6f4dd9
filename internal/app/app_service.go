package app

import (
	"context"
	"errors"
	"time"

	"crm-workflow/internal/core"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

type appService struct {
	workflow  core.WorkflowService
	docs      core.DocumentService
	users     core.UserStore
	txTimeout time.Duration
	log       *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	workflow core.WorkflowService,
	docs core.DocumentService,
	users core.UserStore,
	txTimeout time.Duration,
	logger *zap.Logger,
) ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appService{
		workflow:  workflow,
		docs:      docs,
		users:     users,
		txTimeout: txTimeout,
		log:       logger,
	}
}

func (s *appService) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.txTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.txTimeout)
}

func requireWrite(actor core.Actor, action string) error {
	if !actor.CanWrite() {
		return &core.ForbiddenError{Role: actor.Role, Action: action}
	}
	return nil
}

// fail logs a failed operation and returns err unchanged.
// Domain errors are expected outcomes and log at Info; anything else is an Error.
func (s *appService) fail(op string, actor core.Actor, err error) error {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int64("tenant_id", actor.TenantID),
		zap.Int64("user_id", actor.UserID),
		zap.Error(err),
	}
	switch {
	case core.IsNotFound(err), core.IsValidation(err), core.IsForbidden(err):
		s.log.Info("operation rejected", fields...)
	case core.IsConflict(err):
		s.log.Warn("operation conflict", append(fields, zap.Bool("retryable", core.IsRetryable(err)))...)
	default:
		s.log.Error("operation failed", fields...)
	}
	return err
}

func (s *appService) Authenticate(ctx context.Context, username, password string) (*UserSession, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	s.log.Info("user logged in", zap.Int64("user_id", u.ID), zap.Int64("tenant_id", u.TenantID))
	return &UserSession{UserID: u.ID, TenantID: u.TenantID, Username: u.Username, Role: u.Role}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int64) (*UserResult, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{UserID: u.ID, TenantID: u.TenantID, Username: u.Username, Email: u.Email, Role: u.Role}, nil
}

// ── Quotes ───────────────────────────────────────────────────────────────────

func (s *appService) CreateQuote(ctx context.Context, actor core.Actor, in core.QuoteInput) (*core.Quote, error) {
	if err := requireWrite(actor, "create quotes"); err != nil {
		return nil, s.fail("create_quote", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	q, err := s.docs.CreateQuote(ctx, actor, in)
	if err != nil {
		return nil, s.fail("create_quote", actor, err)
	}
	s.log.Info("quote created", zap.Int64("tenant_id", actor.TenantID), zap.Int64("quote_id", q.ID),
		zap.String("number", q.Number), zap.String("total", q.Total.StringFixed(2)))
	return q, nil
}

func (s *appService) GetQuote(ctx context.Context, actor core.Actor, quoteID int64) (*core.Quote, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()
	return s.docs.GetQuote(ctx, actor.TenantID, quoteID)
}

func (s *appService) ListQuotes(ctx context.Context, actor core.Actor, f core.ListFilter) (*QuoteListResult, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	quotes, err := s.docs.ListQuotes(ctx, actor.TenantID, f)
	if err != nil {
		return nil, err
	}
	if quotes == nil {
		quotes = []core.Quote{}
	}
	return &QuoteListResult{Quotes: quotes}, nil
}

func (s *appService) UpdateQuote(ctx context.Context, actor core.Actor, quoteID int64, in core.QuoteInput) (*core.Quote, error) {
	if err := requireWrite(actor, "update quotes"); err != nil {
		return nil, s.fail("update_quote", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	q, err := s.docs.UpdateQuote(ctx, actor, quoteID, in)
	if err != nil {
		return nil, s.fail("update_quote", actor, err)
	}
	return q, nil
}

func (s *appService) DeleteQuote(ctx context.Context, actor core.Actor, quoteID int64) error {
	if err := requireWrite(actor, "delete quotes"); err != nil {
		return s.fail("delete_quote", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	if err := s.docs.DeleteQuote(ctx, actor, quoteID); err != nil {
		return s.fail("delete_quote", actor, err)
	}
	s.log.Info("quote deleted", zap.Int64("tenant_id", actor.TenantID), zap.Int64("quote_id", quoteID))
	return nil
}

func (s *appService) TransitionQuote(ctx context.Context, actor core.Actor, quoteID int64, req TransitionRequest) (*core.Quote, error) {
	if err := requireWrite(actor, "change quote status"); err != nil {
		return nil, s.fail("transition_quote", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	q, err := s.docs.TransitionQuote(ctx, actor, quoteID, core.QuoteStatus(req.Status))
	if err != nil {
		return nil, s.fail("transition_quote", actor, err)
	}
	s.log.Info("quote status changed", zap.Int64("tenant_id", actor.TenantID), zap.String("number", q.Number),
		zap.String("status", string(q.Status)))
	return q, nil
}

// ── Conversions ──────────────────────────────────────────────────────────────

func (s *appService) ConvertQuoteToOrder(ctx context.Context, actor core.Actor, quoteID int64, c *core.Customizations) (*core.Order, error) {
	if err := requireWrite(actor, "convert quotes"); err != nil {
		return nil, s.fail("quote_to_order", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	o, err := s.workflow.ConvertQuoteToOrder(ctx, quoteID, actor, c)
	if err != nil {
		return nil, s.fail("quote_to_order", actor, err)
	}
	s.log.Info("quote converted to order", zap.Int64("tenant_id", actor.TenantID), zap.Int64("user_id", actor.UserID),
		zap.Int64("quote_id", quoteID), zap.Int64("order_id", o.ID), zap.String("order", o.Number))
	return o, nil
}

func (s *appService) ConvertQuoteToInvoice(ctx context.Context, actor core.Actor, quoteID int64, c *core.Customizations) (*core.Invoice, error) {
	if err := requireWrite(actor, "convert quotes"); err != nil {
		return nil, s.fail("quote_to_invoice", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	id, err := s.workflow.ConvertQuoteToInvoice(ctx, quoteID, actor, c)
	if err != nil {
		return nil, s.fail("quote_to_invoice", actor, err)
	}
	inv, err := s.docs.GetInvoice(ctx, actor.TenantID, id)
	if err != nil {
		return nil, s.fail("quote_to_invoice", actor, err)
	}
	s.log.Info("quote converted to invoice", zap.Int64("tenant_id", actor.TenantID), zap.Int64("user_id", actor.UserID),
		zap.Int64("quote_id", quoteID), zap.Int64("invoice_id", id), zap.String("invoice", inv.Number))
	return inv, nil
}

func (s *appService) ConvertOrderToInvoice(ctx context.Context, actor core.Actor, orderID int64, c *core.Customizations) (*core.Invoice, error) {
	if err := requireWrite(actor, "invoice orders"); err != nil {
		return nil, s.fail("order_to_invoice", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	id, err := s.workflow.ConvertOrderToInvoice(ctx, orderID, actor, c)
	if err != nil {
		return nil, s.fail("order_to_invoice", actor, err)
	}
	inv, err := s.docs.GetInvoice(ctx, actor.TenantID, id)
	if err != nil {
		return nil, s.fail("order_to_invoice", actor, err)
	}
	s.log.Info("order invoiced", zap.Int64("tenant_id", actor.TenantID), zap.Int64("user_id", actor.UserID),
		zap.Int64("order_id", orderID), zap.Int64("invoice_id", id), zap.String("invoice", inv.Number),
		zap.String("total", inv.Total.StringFixed(2)))
	return inv, nil
}

func (s *appService) CreateConsolidatedInvoice(ctx context.Context, actor core.Actor, req ConsolidatedInvoiceRequest) (*core.Invoice, error) {
	if err := requireWrite(actor, "invoice orders"); err != nil {
		return nil, s.fail("consolidated_invoice", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	id, err := s.workflow.CreateConsolidatedInvoice(ctx, actor, req.Orders, req.Customizations)
	if err != nil {
		return nil, s.fail("consolidated_invoice", actor, err)
	}
	inv, err := s.docs.GetInvoice(ctx, actor.TenantID, id)
	if err != nil {
		return nil, s.fail("consolidated_invoice", actor, err)
	}
	s.log.Info("consolidated invoice created", zap.Int64("tenant_id", actor.TenantID), zap.Int64("user_id", actor.UserID),
		zap.Int("orders", len(req.Orders)), zap.Int64("invoice_id", id), zap.String("invoice", inv.Number),
		zap.String("total", inv.Total.StringFixed(2)))
	return inv, nil
}

func (s *appService) GetDocumentChain(ctx context.Context, actor core.Actor, quoteID int64) (*core.DocumentChain, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()
	return s.workflow.GetDocumentChain(ctx, quoteID, actor.TenantID)
}

func (s *appService) VerifyOrder(ctx context.Context, actor core.Actor, orderID int64) (*core.LedgerReport, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	r, err := s.workflow.VerifyOrder(ctx, orderID, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if !r.Consistent() {
		s.log.Error("order ledger inconsistent", zap.Int64("tenant_id", actor.TenantID),
			zap.String("order", r.OrderNumber), zap.Strings("problems", r.Problems))
	}
	return r, nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *appService) GetOrder(ctx context.Context, actor core.Actor, orderID int64) (*core.Order, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()
	return s.docs.GetOrder(ctx, actor.TenantID, orderID)
}

func (s *appService) ListOrders(ctx context.Context, actor core.Actor, f core.ListFilter) (*OrderListResult, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	orders, err := s.docs.ListOrders(ctx, actor.TenantID, f)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []core.Order{}
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) UpdateOrder(ctx context.Context, actor core.Actor, orderID int64, in core.OrderUpdate) (*core.Order, error) {
	if err := requireWrite(actor, "update orders"); err != nil {
		return nil, s.fail("update_order", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	o, err := s.docs.UpdateOrder(ctx, actor, orderID, in)
	if err != nil {
		return nil, s.fail("update_order", actor, err)
	}
	return o, nil
}

func (s *appService) DeleteOrder(ctx context.Context, actor core.Actor, orderID int64) error {
	if err := requireWrite(actor, "delete orders"); err != nil {
		return s.fail("delete_order", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	if err := s.docs.DeleteOrder(ctx, actor, orderID); err != nil {
		return s.fail("delete_order", actor, err)
	}
	s.log.Info("order deleted", zap.Int64("tenant_id", actor.TenantID), zap.Int64("order_id", orderID))
	return nil
}

func (s *appService) TransitionOrder(ctx context.Context, actor core.Actor, orderID int64, req TransitionRequest) (*core.Order, error) {
	if err := requireWrite(actor, "change order status"); err != nil {
		return nil, s.fail("transition_order", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	o, err := s.docs.TransitionOrder(ctx, actor, orderID, core.OrderStatus(req.Status))
	if err != nil {
		return nil, s.fail("transition_order", actor, err)
	}
	s.log.Info("order status changed", zap.Int64("tenant_id", actor.TenantID), zap.String("number", o.Number),
		zap.String("status", string(o.Status)))
	return o, nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (s *appService) GetInvoice(ctx context.Context, actor core.Actor, invoiceID int64) (*core.Invoice, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()
	return s.docs.GetInvoice(ctx, actor.TenantID, invoiceID)
}

func (s *appService) GetPublicInvoice(ctx context.Context, token string) (*core.Invoice, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()
	return s.docs.GetInvoiceByToken(ctx, token)
}

func (s *appService) ListInvoices(ctx context.Context, actor core.Actor, f core.ListFilter) (*InvoiceListResult, error) {
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	invoices, err := s.docs.ListInvoices(ctx, actor.TenantID, f)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	return &InvoiceListResult{Invoices: invoices}, nil
}

func (s *appService) UpdateInvoice(ctx context.Context, actor core.Actor, invoiceID int64, in core.InvoiceUpdate) (*core.Invoice, error) {
	if err := requireWrite(actor, "update invoices"); err != nil {
		return nil, s.fail("update_invoice", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	inv, err := s.docs.UpdateInvoice(ctx, actor, invoiceID, in)
	if err != nil {
		return nil, s.fail("update_invoice", actor, err)
	}
	return inv, nil
}

func (s *appService) DeleteInvoice(ctx context.Context, actor core.Actor, invoiceID int64) error {
	if err := requireWrite(actor, "delete invoices"); err != nil {
		return s.fail("delete_invoice", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	if err := s.docs.DeleteInvoice(ctx, actor, invoiceID); err != nil {
		return s.fail("delete_invoice", actor, err)
	}
	s.log.Info("invoice deleted", zap.Int64("tenant_id", actor.TenantID), zap.Int64("invoice_id", invoiceID))
	return nil
}

func (s *appService) TransitionInvoice(ctx context.Context, actor core.Actor, invoiceID int64, req TransitionRequest) (*core.Invoice, error) {
	if err := requireWrite(actor, "change invoice status"); err != nil {
		return nil, s.fail("transition_invoice", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	inv, err := s.docs.TransitionInvoice(ctx, actor, invoiceID, core.InvoiceStatus(req.Status))
	if err != nil {
		return nil, s.fail("transition_invoice", actor, err)
	}
	s.log.Info("invoice status changed", zap.Int64("tenant_id", actor.TenantID), zap.String("number", inv.Number),
		zap.String("status", string(inv.Status)))
	return inv, nil
}

func (s *appService) RecordPayment(ctx context.Context, actor core.Actor, invoiceID int64, p core.Payment) (*core.Invoice, error) {
	if err := requireWrite(actor, "record payments"); err != nil {
		return nil, s.fail("record_payment", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	inv, err := s.docs.RecordPayment(ctx, actor, invoiceID, p)
	if err != nil {
		return nil, s.fail("record_payment", actor, err)
	}
	s.log.Info("payment recorded", zap.Int64("tenant_id", actor.TenantID), zap.String("invoice", inv.Number),
		zap.String("amount", p.Amount.StringFixed(2)), zap.String("status", string(inv.Status)))
	return inv, nil
}

// ── Sweeps ───────────────────────────────────────────────────────────────────

func (s *appService) MarkOverdue(ctx context.Context, actor core.Actor, asOf time.Time) (*SweepResult, error) {
	if err := requireWrite(actor, "run the overdue sweep"); err != nil {
		return nil, s.fail("mark_overdue", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	numbers, err := s.docs.MarkOverdue(ctx, actor.TenantID, asOf)
	if err != nil {
		return nil, s.fail("mark_overdue", actor, err)
	}
	if numbers == nil {
		numbers = []string{}
	}
	s.log.Info("overdue sweep finished", zap.Int64("tenant_id", actor.TenantID), zap.Int("invoices", len(numbers)))
	return &SweepResult{Numbers: numbers}, nil
}

func (s *appService) ExpireQuotes(ctx context.Context, actor core.Actor, asOf time.Time) (*SweepResult, error) {
	if err := requireWrite(actor, "run the expiry sweep"); err != nil {
		return nil, s.fail("expire_quotes", actor, err)
	}
	ctx, cancel := s.timeout(ctx)
	defer cancel()

	numbers, err := s.docs.ExpireQuotes(ctx, actor.TenantID, asOf)
	if err != nil {
		return nil, s.fail("expire_quotes", actor, err)
	}
	if numbers == nil {
		numbers = []string{}
	}
	s.log.Info("quote expiry sweep finished", zap.Int64("tenant_id", actor.TenantID), zap.Int("quotes", len(numbers)))
	return &SweepResult{Numbers: numbers}, nil
}
