package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"

	"github.com/shopspring/decimal"
)

// handleNewQuote runs an interactive quote creation session.
func handleNewQuote(ctx context.Context, reader *bufio.Reader, out io.Writer, svc app.ApplicationService, actor core.Actor, companyArg string) error {
	companyID, err := strconv.ParseInt(companyArg, 10, 64)
	if err != nil || companyID <= 0 {
		fmt.Fprintf(out, "Invalid company id: %s\n", companyArg)
		return nil
	}

	fmt.Fprintf(out, "Creating quote for company %d\n", companyID)
	fmt.Fprintln(out, "Enter quote lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Fprintln(out, "Format per line: <name> <quantity> <unit-price> [tax%] [discount%]")
	fmt.Fprintln(out, "  Example: Consulting 10 120.00 19")
	fmt.Fprintln(out, "  Example: Licence 1 900 19 10")

	var lines []core.LineSpec
	for {
		fmt.Fprintf(out, "  Line %d: ", len(lines)+1)
		raw, readErr := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		if strings.EqualFold(raw, "cancel") || (readErr != nil && raw == "") {
			fmt.Fprintln(out, "Quote creation cancelled.")
			return nil
		}
		if strings.EqualFold(raw, "done") {
			break
		}
		if raw == "" {
			continue
		}

		line, perr := parseLine(raw)
		if perr != "" {
			fmt.Fprintf(out, "  %s\n", perr)
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		fmt.Fprintln(out, "No lines entered. Quote not created.")
		return nil
	}

	in := core.QuoteInput{CompanyID: companyID, Lines: lines}

	fmt.Fprint(out, "Valid until (YYYY-MM-DD, leave blank for none): ")
	validInput, _ := reader.ReadString('\n')
	if v := strings.TrimSpace(validInput); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			fmt.Fprintf(out, "Invalid date %q. Quote not created.\n", v)
			return nil
		}
		in.ValidUntil = &t
	}

	fmt.Fprint(out, "Notes (optional): ")
	notes, _ := reader.ReadString('\n')
	in.Notes = strings.TrimSpace(notes)

	q, err := svc.CreateQuote(ctx, actor, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nQuote %s created (ID: %d, Status: %s, Total: %s %s)\n",
		q.Number, q.ID, q.Status, q.Total.StringFixed(2), q.Currency)
	fmt.Fprintf(out, "Use 'quote-to-order %d' or 'quote-to-invoice %d' to convert it.\n", q.ID, q.ID)
	return nil
}

// parseLine reads "<name> <qty> <price> [tax] [discount]". The name is a single token.
// It returns a message instead of an error so the wizard can re-prompt.
func parseLine(raw string) (core.LineSpec, string) {
	parts := strings.Fields(raw)
	if len(parts) < 3 || len(parts) > 5 {
		return core.LineSpec{}, "Invalid format. Use: <name> <quantity> <unit-price> [tax%] [discount%]"
	}
	nums := make([]decimal.Decimal, 4)
	for i, p := range parts[1:] {
		d, err := decimal.NewFromString(p)
		if err != nil || d.IsNegative() {
			return core.LineSpec{}, fmt.Sprintf("Invalid number: %s", p)
		}
		nums[i] = d
	}
	if !nums[0].IsPositive() {
		return core.LineSpec{}, "Quantity must be greater than zero."
	}
	return core.LineSpec{
		Name:        parts[0],
		Quantity:    nums[0],
		UnitPrice:   nums[1],
		TaxPct:      nums[2],
		DiscountPct: nums[3],
	}, ""
}
