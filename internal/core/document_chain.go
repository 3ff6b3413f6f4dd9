package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DocumentRef identifies one node of a document chain.
type DocumentRef struct {
	Type   DocumentType `json:"type"`
	ID     int64        `json:"id"`
	Number string       `json:"number"`
}

// ChainEdge is a directed link quote→order, quote→invoice or order→invoice.
// Amount is set for order→invoice edges (the allocated amount) and for
// quote→order/quote→invoice edges (the child document total).
type ChainEdge struct {
	From   DocumentRef     `json:"from"`
	To     DocumentRef     `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// DocumentChain is the quote → orders → invoices graph rooted at one quote.
type DocumentChain struct {
	Quote       *Quote                   `json:"quote"`
	Orders      []Order                  `json:"orders"`
	Invoices    []Invoice                `json:"invoices"`
	Allocations []InvoiceOrderAllocation `json:"allocations"`
	Edges       []ChainEdge              `json:"edges"`
}

func (s *workflowService) GetDocumentChain(ctx context.Context, quoteID, tenantID int64) (*DocumentChain, error) {
	var chain *DocumentChain
	err := s.store.WithReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		chain, err = loadDocumentChain(ctx, tx, tenantID, quoteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func loadDocumentChain(ctx context.Context, tx Tx, tenantID, quoteID int64) (*DocumentChain, error) {
	quote, err := tx.GetQuote(ctx, tenantID, quoteID, false)
	if err != nil {
		return nil, err
	}
	orders, err := tx.ListOrdersByQuote(ctx, tenantID, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders of quote %s: %w", quote.Number, err)
	}
	direct, err := tx.ListInvoicesByQuote(ctx, tenantID, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices of quote %s: %w", quote.Number, err)
	}

	orderIDs := make([]int64, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}
	var allocations []InvoiceOrderAllocation
	if len(orderIDs) > 0 {
		if allocations, err = tx.ListAllocationsByOrders(ctx, tenantID, orderIDs); err != nil {
			return nil, fmt.Errorf("failed to load allocations of quote %s: %w", quote.Number, err)
		}
	}

	invoices := make(map[int64]Invoice, len(direct))
	for _, inv := range direct {
		invoices[inv.ID] = inv
	}
	var missing []int64
	for _, a := range allocations {
		if _, ok := invoices[a.InvoiceID]; !ok && !contains(missing, a.InvoiceID) {
			missing = append(missing, a.InvoiceID)
		}
	}
	if len(missing) > 0 {
		reached, err := tx.ListInvoicesByIDs(ctx, tenantID, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load invoices reached from quote %s: %w", quote.Number, err)
		}
		for _, inv := range reached {
			invoices[inv.ID] = inv
		}
	}

	chain := &DocumentChain{
		Quote:       quote,
		Orders:      orders,
		Allocations: allocations,
		Invoices:    make([]Invoice, 0, len(invoices)),
	}
	if chain.Orders == nil {
		chain.Orders = []Order{}
	}
	if chain.Allocations == nil {
		chain.Allocations = []InvoiceOrderAllocation{}
	}
	for _, inv := range invoices {
		chain.Invoices = append(chain.Invoices, inv)
	}
	sort.Slice(chain.Invoices, func(i, j int) bool { return chain.Invoices[i].ID < chain.Invoices[j].ID })

	quoteRef := DocumentRef{Type: DocQuote, ID: quote.ID, Number: quote.Number}
	orderRefs := make(map[int64]DocumentRef, len(orders))
	for _, o := range orders {
		ref := DocumentRef{Type: DocOrder, ID: o.ID, Number: o.Number}
		orderRefs[o.ID] = ref
		chain.Edges = append(chain.Edges, ChainEdge{From: quoteRef, To: ref, Amount: o.Total})
	}
	for _, inv := range direct {
		chain.Edges = append(chain.Edges, ChainEdge{
			From:   quoteRef,
			To:     DocumentRef{Type: DocInvoice, ID: inv.ID, Number: inv.Number},
			Amount: inv.Total,
		})
	}
	for _, a := range allocations {
		inv, ok := invoices[a.InvoiceID]
		if !ok {
			continue
		}
		chain.Edges = append(chain.Edges, ChainEdge{
			From:   orderRefs[a.OrderID],
			To:     DocumentRef{Type: DocInvoice, ID: inv.ID, Number: inv.Number},
			Amount: a.AmountAllocated,
		})
	}
	return chain, nil
}
