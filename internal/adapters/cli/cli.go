package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"

	"github.com/shopspring/decimal"
)

// ErrUsage is returned when a command is called with missing or malformed arguments.
var ErrUsage = errors.New("usage")

// Usage lists every one-shot command.
const Usage = `Commands:
  quotes [status]                        list quotes
  orders [status]                        list orders
  invoices [status]                      list invoices
  chain <quote-id>                       quote with its orders, invoices and allocations
  quote-to-order <quote-id> [--key k]    convert a quote into an order
  quote-to-invoice <quote-id> [--key k]  bill a quote directly
  order-to-invoice <order-id> [--percent p | --amount a] [--key k]
  consolidate <order-id[:amount]>... [--key k]
  transition <quote|order|invoice> <id> <status>
  pay <invoice-id> <amount>
  verify <order-id>                      re-check the invoicing ledger of an order
  overdue [YYYY-MM-DD]                   mark unpaid invoices past due
  expire [YYYY-MM-DD]                    expire quotes past their validity`

// Run executes a one-shot command and writes its result to out.
// args[0] is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, actor core.Actor, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given\n%s", ErrUsage, Usage)
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "quotes":
		result, err := svc.ListQuotes(ctx, actor, core.ListFilter{Status: optional(rest, 0)})
		if err != nil {
			return err
		}
		printQuotes(out, result.Quotes)

	case "orders":
		result, err := svc.ListOrders(ctx, actor, core.ListFilter{Status: optional(rest, 0)})
		if err != nil {
			return err
		}
		printOrders(out, result.Orders)

	case "invoices":
		result, err := svc.ListInvoices(ctx, actor, core.ListFilter{Status: optional(rest, 0)})
		if err != nil {
			return err
		}
		printInvoices(out, result.Invoices)

	case "chain":
		id, err := idArg(rest, "chain <quote-id>")
		if err != nil {
			return err
		}
		chain, err := svc.GetDocumentChain(ctx, actor, id)
		if err != nil {
			return err
		}
		printChain(out, chain)

	case "quote-to-order":
		fs, key := conversionFlags(cmd)
		id, err := parseWithID(fs, rest, "quote-to-order <quote-id> [--key k]")
		if err != nil {
			return err
		}
		o, err := svc.ConvertQuoteToOrder(ctx, actor, id, &core.Customizations{IdempotencyKey: *key})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Order %s created from quote %d.\n", o.Number, id)
		printOrder(out, o)

	case "quote-to-invoice":
		fs, key := conversionFlags(cmd)
		id, err := parseWithID(fs, rest, "quote-to-invoice <quote-id> [--key k]")
		if err != nil {
			return err
		}
		inv, err := svc.ConvertQuoteToInvoice(ctx, actor, id, &core.Customizations{IdempotencyKey: *key})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Invoice %s created from quote %d.\n", inv.Number, id)
		printInvoice(out, inv)

	case "order-to-invoice":
		fs, key := conversionFlags(cmd)
		percent := fs.String("percent", "", "percentage of the remaining amount")
		amount := fs.String("amount", "", "exact amount to bill")
		id, err := parseWithID(fs, rest, "order-to-invoice <order-id> [--percent p | --amount a] [--key k]")
		if err != nil {
			return err
		}
		c := &core.Customizations{IdempotencyKey: *key}
		if c.Partial, err = partialFrom(*percent, *amount); err != nil {
			return err
		}
		inv, err := svc.ConvertOrderToInvoice(ctx, actor, id, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Invoice %s created from order %d.\n", inv.Number, id)
		printInvoice(out, inv)

	case "consolidate":
		fs, key := conversionFlags(cmd)
		if err := fs.Parse(rest); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		if fs.NArg() == 0 {
			return fmt.Errorf("%w: consolidate <order-id[:amount]>... [--key k]", ErrUsage)
		}
		req := app.ConsolidatedInvoiceRequest{}
		for _, arg := range fs.Args() {
			a, err := allocationArg(arg)
			if err != nil {
				return err
			}
			req.Orders = append(req.Orders, a)
		}
		if *key != "" {
			req.Customizations = &core.Customizations{IdempotencyKey: *key}
		}
		inv, err := svc.CreateConsolidatedInvoice(ctx, actor, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Consolidated invoice %s created for %d order(s).\n", inv.Number, len(req.Orders))
		printInvoice(out, inv)

	case "transition":
		if len(rest) != 3 {
			return fmt.Errorf("%w: transition <quote|order|invoice> <id> <status>", ErrUsage)
		}
		id, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid id %q", ErrUsage, rest[1])
		}
		req := app.TransitionRequest{Status: rest[2]}
		switch rest[0] {
		case "quote":
			q, err := svc.TransitionQuote(ctx, actor, id, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Quote %s is now %s.\n", q.Number, q.Status)
		case "order":
			o, err := svc.TransitionOrder(ctx, actor, id, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Order %s is now %s.\n", o.Number, o.Status)
		case "invoice":
			inv, err := svc.TransitionInvoice(ctx, actor, id, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Invoice %s is now %s.\n", inv.Number, inv.Status)
		default:
			return fmt.Errorf("%w: unknown document type %q, expected quote, order or invoice", ErrUsage, rest[0])
		}

	case "pay":
		if len(rest) != 2 {
			return fmt.Errorf("%w: pay <invoice-id> <amount>", ErrUsage)
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid id %q", ErrUsage, rest[0])
		}
		amount, err := decimal.NewFromString(rest[1])
		if err != nil {
			return fmt.Errorf("%w: invalid amount %q", ErrUsage, rest[1])
		}
		inv, err := svc.RecordPayment(ctx, actor, id, core.Payment{Amount: amount})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Payment of %s recorded on %s. Remaining: %s (%s)\n",
			amount.StringFixed(2), inv.Number, inv.RemainingAmount.StringFixed(2), inv.Status)

	case "verify":
		id, err := idArg(rest, "verify <order-id>")
		if err != nil {
			return err
		}
		report, err := svc.VerifyOrder(ctx, actor, id)
		if err != nil {
			return err
		}
		printReport(out, report)
		if !report.Consistent() {
			return fmt.Errorf("order %s failed verification", report.OrderNumber)
		}

	case "overdue", "expire":
		asOf := time.Now()
		if v := optional(rest, 0); v != "" {
			t, err := time.Parse(time.DateOnly, v)
			if err != nil {
				return fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrUsage, v)
			}
			asOf = t
		}
		var (
			result *app.SweepResult
			err    error
		)
		if cmd == "overdue" {
			result, err = svc.MarkOverdue(ctx, actor, asOf)
		} else {
			result, err = svc.ExpireQuotes(ctx, actor, asOf)
		}
		if err != nil {
			return err
		}
		printSweep(out, cmd, result)

	default:
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, cmd, Usage)
	}
	return nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func idArg(args []string, usage string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s", ErrUsage, usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrUsage, args[0])
	}
	return id, nil
}

// conversionFlags returns a flag set carrying the shared --key flag.
func conversionFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	key := fs.String("key", "", "idempotency key")
	return fs, key
}

// parseWithID accepts the id before or after the flags.
func parseWithID(fs *flag.FlagSet, args []string, usage string) (int64, error) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	if err := fs.Parse(args); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUsage, usage, err)
	}
	return idArg(fs.Args(), usage)
}

func partialFrom(percent, amount string) (*core.Partial, error) {
	switch {
	case percent != "" && amount != "":
		return nil, fmt.Errorf("%w: use either --percent or --amount", ErrUsage)
	case percent != "":
		p, err := decimal.NewFromString(percent)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid percent %q", ErrUsage, percent)
		}
		return &core.Partial{Percentage: &p}, nil
	case amount != "":
		a, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid amount %q", ErrUsage, amount)
		}
		return &core.Partial{Amount: &a}, nil
	}
	return nil, nil
}

// allocationArg parses "12" or "12:250.00".
func allocationArg(arg string) (core.OrderAllocationRequest, error) {
	idPart, amountPart, hasAmount := strings.Cut(arg, ":")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return core.OrderAllocationRequest{}, fmt.Errorf("%w: invalid order id in %q", ErrUsage, arg)
	}
	a := core.OrderAllocationRequest{OrderID: id}
	if hasAmount {
		amount, err := decimal.NewFromString(amountPart)
		if err != nil {
			return core.OrderAllocationRequest{}, fmt.Errorf("%w: invalid amount in %q", ErrUsage, arg)
		}
		a.AmountAllocated = &amount
	}
	return a, nil
}
