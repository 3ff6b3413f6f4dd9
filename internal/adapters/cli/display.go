package cli

import (
	"fmt"
	"io"
	"strings"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"
)

const width = 78

func rule(out io.Writer, ch string) {
	fmt.Fprintln(out, strings.Repeat(ch, width))
}

func printQuotes(out io.Writer, quotes []core.Quote) {
	fmt.Fprintln(out)
	rule(out, "=")
	fmt.Fprintf(out, "  QUOTES (%d)\n", len(quotes))
	rule(out, "=")
	if len(quotes) == 0 {
		fmt.Fprintln(out, "  No quotes found.")
		rule(out, "=")
		return
	}
	fmt.Fprintf(out, "  %-6s %-16s %-10s %-12s %-4s %14s\n", "ID", "NUMBER", "COMPANY", "STATUS", "CCY", "TOTAL")
	rule(out, "-")
	for _, q := range quotes {
		fmt.Fprintf(out, "  %-6d %-16s %-10d %-12s %-4s %14s\n",
			q.ID, q.Number, q.CompanyID, q.Status, q.Currency, q.Total.StringFixed(2))
	}
	rule(out, "=")
}

func printOrders(out io.Writer, orders []core.Order) {
	fmt.Fprintln(out)
	rule(out, "=")
	fmt.Fprintf(out, "  ORDERS (%d)\n", len(orders))
	rule(out, "=")
	if len(orders) == 0 {
		fmt.Fprintln(out, "  No orders found.")
		rule(out, "=")
		return
	}
	fmt.Fprintf(out, "  %-6s %-16s %-20s %12s %12s\n", "ID", "NUMBER", "STATUS", "TOTAL", "REMAINING")
	rule(out, "-")
	for _, o := range orders {
		fmt.Fprintf(out, "  %-6d %-16s %-20s %12s %12s\n",
			o.ID, o.Number, o.Status, o.Total.StringFixed(2), o.RemainingAmount.StringFixed(2))
	}
	rule(out, "=")
}

func printInvoices(out io.Writer, invoices []core.Invoice) {
	fmt.Fprintln(out)
	rule(out, "=")
	fmt.Fprintf(out, "  INVOICES (%d)\n", len(invoices))
	rule(out, "=")
	if len(invoices) == 0 {
		fmt.Fprintln(out, "  No invoices found.")
		rule(out, "=")
		return
	}
	fmt.Fprintf(out, "  %-6s %-16s %-15s %-10s %12s %12s\n", "ID", "NUMBER", "STATUS", "DUE", "TOTAL", "OPEN")
	rule(out, "-")
	for _, inv := range invoices {
		fmt.Fprintf(out, "  %-6d %-16s %-15s %-10s %12s %12s\n",
			inv.ID, inv.Number, inv.Status, inv.DueDate.Format("2006-01-02"),
			inv.Total.StringFixed(2), inv.RemainingAmount.StringFixed(2))
	}
	rule(out, "=")
}

func printOrder(out io.Writer, o *core.Order) {
	fmt.Fprintf(out, "  Status   : %s\n", o.Status)
	fmt.Fprintf(out, "  Currency : %s\n", o.Currency)
	for _, l := range o.Lines {
		fmt.Fprintf(out, "    %-30s %8s x %10s  %12s\n", l.Name, l.Quantity.String(), l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(out, "  Total    : %s (remaining %s)\n", o.Total.StringFixed(2), o.RemainingAmount.StringFixed(2))
}

func printInvoice(out io.Writer, inv *core.Invoice) {
	fmt.Fprintf(out, "  Status   : %s\n", inv.Status)
	fmt.Fprintf(out, "  Due      : %s\n", inv.DueDate.Format("2006-01-02"))
	for _, l := range inv.Lines {
		fmt.Fprintf(out, "    %-30s %8s x %10s  %12s\n", l.Name, l.Quantity.String(), l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(out, "  Subtotal : %s\n", inv.Subtotal.StringFixed(2))
	fmt.Fprintf(out, "  Tax      : %s\n", inv.Tax.StringFixed(2))
	fmt.Fprintf(out, "  Total    : %s %s\n", inv.Total.StringFixed(2), inv.Currency)
}

func printChain(out io.Writer, chain *core.DocumentChain) {
	q := chain.Quote
	fmt.Fprintln(out)
	rule(out, "=")
	fmt.Fprintf(out, "  DOCUMENT CHAIN  %s  (%s, %s %s)\n", q.Number, q.Status, q.Total.StringFixed(2), q.Currency)
	rule(out, "=")
	for _, o := range chain.Orders {
		fmt.Fprintf(out, "  order   %-16s %-20s %12s  remaining %s\n",
			o.Number, o.Status, o.Total.StringFixed(2), o.RemainingAmount.StringFixed(2))
	}
	for _, inv := range chain.Invoices {
		fmt.Fprintf(out, "  invoice %-16s %-20s %12s\n", inv.Number, inv.Status, inv.Total.StringFixed(2))
	}
	if len(chain.Edges) > 0 {
		rule(out, "-")
		for _, e := range chain.Edges {
			fmt.Fprintf(out, "  %-16s -> %-16s %12s\n", e.From.Number, e.To.Number, e.Amount.StringFixed(2))
		}
	}
	rule(out, "=")
}

func printReport(out io.Writer, r *core.LedgerReport) {
	fmt.Fprintf(out, "Order %s\n", r.OrderNumber)
	fmt.Fprintf(out, "  total       %12s\n", r.Total.StringFixed(2))
	fmt.Fprintf(out, "  invoiced    %12s\n", r.InvoicedAmount.StringFixed(2))
	fmt.Fprintf(out, "  remaining   %12s\n", r.RemainingAmount.StringFixed(2))
	fmt.Fprintf(out, "  allocated   %12s  (%d allocation(s))\n", r.AllocatedSum.StringFixed(2), r.Allocations)
	fmt.Fprintf(out, "  line sum    %12s\n", r.LineInvoicedSum.StringFixed(2))
	if r.Consistent() {
		fmt.Fprintln(out, "OK")
		return
	}
	for _, p := range r.Problems {
		fmt.Fprintf(out, "  PROBLEM: %s\n", p)
	}
}

func printSweep(out io.Writer, name string, r *app.SweepResult) {
	if len(r.Numbers) == 0 {
		fmt.Fprintf(out, "%s: nothing to do.\n", name)
		return
	}
	fmt.Fprintf(out, "%s: %d document(s) updated: %s\n", name, len(r.Numbers), strings.Join(r.Numbers, ", "))
}
