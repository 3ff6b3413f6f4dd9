package core

// QuoteStatus is the lifecycle state of a quote.
//
//	draft → sent → viewed → accepted | rejected | expired
//	draft | sent | viewed | accepted → converted (terminal)
type QuoteStatus string

const (
	QuoteDraft     QuoteStatus = "draft"
	QuoteSent      QuoteStatus = "sent"
	QuoteViewed    QuoteStatus = "viewed"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteExpired   QuoteStatus = "expired"
	QuoteConverted QuoteStatus = "converted"
)

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteDraft:    {QuoteSent, QuoteConverted},
	QuoteSent:     {QuoteViewed, QuoteAccepted, QuoteRejected, QuoteExpired, QuoteConverted},
	QuoteViewed:   {QuoteAccepted, QuoteRejected, QuoteExpired, QuoteConverted},
	QuoteAccepted: {QuoteExpired, QuoteConverted},
}

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteViewed, QuoteAccepted, QuoteRejected, QuoteExpired, QuoteConverted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s QuoteStatus) Terminal() bool {
	return len(quoteTransitions[s]) == 0
}

// Convertible reports whether an order or invoice may be generated from a quote in this state.
func (s QuoteStatus) Convertible() bool {
	return s.CanTransitionTo(QuoteConverted)
}

func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	return contains(quoteTransitions[s], next)
}

// OrderStatus is the lifecycle state of an order. Fulfilment states are driven by users;
// the invoicing states are derived by the allocation ledger.
//
//	draft → pending → confirmed → processing → partially_fulfilled → fulfilled
//	(any non-terminal) → cancelled | on_hold
//	partially_invoiced, invoiced: set from invoicedAmount vs total only
type OrderStatus string

const (
	OrderDraft              OrderStatus = "draft"
	OrderPending            OrderStatus = "pending"
	OrderConfirmed          OrderStatus = "confirmed"
	OrderProcessing         OrderStatus = "processing"
	OrderPartiallyFulfilled OrderStatus = "partially_fulfilled"
	OrderFulfilled          OrderStatus = "fulfilled"
	OrderPartiallyInvoiced  OrderStatus = "partially_invoiced"
	OrderInvoiced           OrderStatus = "invoiced"
	OrderCancelled          OrderStatus = "cancelled"
	OrderOnHold             OrderStatus = "on_hold"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:              {OrderPending, OrderCancelled, OrderOnHold},
	OrderPending:            {OrderConfirmed, OrderCancelled, OrderOnHold},
	OrderConfirmed:          {OrderProcessing, OrderCancelled, OrderOnHold},
	OrderProcessing:         {OrderPartiallyFulfilled, OrderFulfilled, OrderCancelled, OrderOnHold},
	OrderPartiallyFulfilled: {OrderFulfilled, OrderCancelled, OrderOnHold},
	OrderPartiallyInvoiced:  {OrderProcessing, OrderPartiallyFulfilled, OrderFulfilled, OrderCancelled, OrderOnHold},
	OrderInvoiced:           {OrderProcessing, OrderPartiallyFulfilled, OrderFulfilled, OrderOnHold},
	OrderOnHold:             {OrderPending, OrderConfirmed, OrderProcessing, OrderCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderDraft, OrderPending, OrderConfirmed, OrderProcessing, OrderPartiallyFulfilled,
		OrderFulfilled, OrderPartiallyInvoiced, OrderInvoiced, OrderCancelled, OrderOnHold:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Derived reports whether the status may only be set by the allocation ledger.
func (s OrderStatus) Derived() bool {
	return s == OrderPartiallyInvoiced || s == OrderInvoiced
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next.Derived() {
		return false
	}
	return contains(orderTransitions[s], next)
}

// Invoiceable reports whether an invoice may be drawn from an order in this state.
func (s OrderStatus) Invoiceable() bool {
	switch s {
	case OrderFulfilled, OrderCancelled, OrderOnHold, OrderInvoiced:
		return false
	}
	return true
}

// Mutable reports whether the order header may be edited or the order deleted.
func (s OrderStatus) Mutable() bool {
	return s != OrderFulfilled && s != OrderCancelled
}

// InvoiceStatus is the lifecycle state of an invoice.
//
//	draft → sent → viewed → overdue (time based) → partially_paid → paid
//	draft | sent | viewed | overdue → cancelled
//	partially_paid | paid → refunded
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceSent          InvoiceStatus = "sent"
	InvoiceViewed        InvoiceStatus = "viewed"
	InvoiceOverdue       InvoiceStatus = "overdue"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
	InvoiceRefunded      InvoiceStatus = "refunded"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:         {InvoiceSent, InvoicePartiallyPaid, InvoicePaid, InvoiceCancelled},
	InvoiceSent:          {InvoiceViewed, InvoiceOverdue, InvoicePartiallyPaid, InvoicePaid, InvoiceCancelled},
	InvoiceViewed:        {InvoiceOverdue, InvoicePartiallyPaid, InvoicePaid, InvoiceCancelled},
	InvoiceOverdue:       {InvoicePartiallyPaid, InvoicePaid, InvoiceCancelled},
	InvoicePartiallyPaid: {InvoicePaid, InvoiceOverdue, InvoiceRefunded},
	InvoicePaid:          {InvoiceRefunded},
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoiceViewed, InvoiceOverdue, InvoicePartiallyPaid,
		InvoicePaid, InvoiceCancelled, InvoiceRefunded:
		return true
	}
	return false
}

func (s InvoiceStatus) Terminal() bool {
	return len(invoiceTransitions[s]) == 0
}

// CanTransitionTo reports whether a user may move the invoice to next.
// Overdue and the payment states are reachable only through the sweep and payments.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	switch next {
	case InvoiceOverdue, InvoicePartiallyPaid, InvoicePaid:
		return false
	}
	return contains(invoiceTransitions[s], next)
}

// canMoveTo is the unrestricted table check used by payments and the overdue sweep.
func (s InvoiceStatus) canMoveTo(next InvoiceStatus) bool {
	return contains(invoiceTransitions[s], next)
}

// Updatable reports whether the invoice header may still be edited.
func (s InvoiceStatus) Updatable() bool {
	return s != InvoicePaid && s != InvoiceCancelled && s != InvoiceRefunded
}

// Deletable reports whether the invoice may be deleted.
func (s InvoiceStatus) Deletable() bool {
	return s != InvoicePaid && s != InvoicePartiallyPaid
}

// AcceptsPayment reports whether a payment may be recorded in this state.
func (s InvoiceStatus) AcceptsPayment() bool {
	return s.canMoveTo(InvoicePaid) || s.canMoveTo(InvoicePartiallyPaid) || s == InvoicePartiallyPaid
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
