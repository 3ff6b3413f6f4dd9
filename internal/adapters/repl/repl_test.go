package repl

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"
	"crm-workflow/internal/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (app.ApplicationService, core.Company) {
	t.Helper()
	store := memstore.New()
	clock := func() time.Time { return time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC) }
	company := store.AddCompany(core.Company{TenantID: 1, Name: "Acme GmbH", Currency: "EUR"})
	svc := app.NewAppService(
		core.NewWorkflowService(store, core.WithClock(clock)),
		core.NewDocumentService(store, clock),
		store,
		time.Second,
		zap.NewNop(),
	)
	return svc, company
}

func runScript(svc app.ApplicationService, actor core.Actor, lines ...string) string {
	var out bytes.Buffer
	script := strings.Join(lines, "\n") + "\n"
	Run(context.Background(), svc, actor, bufio.NewReader(strings.NewReader(script)), &out)
	return out.String()
}

func TestShellCreatesAndConvertsQuote(t *testing.T) {
	svc, company := newService(t)
	actor := core.Actor{UserID: 1, TenantID: 1, Role: core.RoleMember}

	got := runScript(svc, actor,
		"/new-quote "+itoa(company.ID),
		"Consulting 10 100 19",
		"Setup 1 50 19 10",
		"done",
		"",
		"kick-off workshop",
		"/exit",
	)
	assert.Contains(t, got, "Quote QUO-2026-00001 created")
	assert.Contains(t, got, "1243.55 EUR")
	assert.Contains(t, got, "Goodbye!")

	quotes, err := svc.ListQuotes(context.Background(), actor, core.ListFilter{})
	require.NoError(t, err)
	require.Len(t, quotes.Quotes, 1)
	q := quotes.Quotes[0]
	assert.Equal(t, "kick-off workshop", q.Notes)
	assert.Len(t, q.Lines, 2)

	got = runScript(svc, actor,
		"quote-to-order "+itoa(q.ID),
		"/orders",
		"/bogus",
		"/help",
	)
	assert.Contains(t, got, "Order ORD-2026-00001 created from quote "+itoa(q.ID)+".")
	assert.Contains(t, got, "ORDERS (1)")
	assert.Contains(t, got, `unknown command "bogus"`)
	assert.Contains(t, got, "new-quote <company-id>")
}

func TestShellCancelsWizard(t *testing.T) {
	svc, company := newService(t)
	actor := core.Actor{UserID: 1, TenantID: 1, Role: core.RoleMember}

	got := runScript(svc, actor, "/new-quote "+itoa(company.ID), "Widget 1 10", "cancel", "quotes")
	assert.Contains(t, got, "Quote creation cancelled.")
	assert.Contains(t, got, "QUOTES (0)")
}

func TestShellStopsAtEOF(t *testing.T) {
	svc, _ := newService(t)
	var out bytes.Buffer
	Run(context.Background(), svc, core.Actor{UserID: 1, TenantID: 1, Role: core.RoleViewer},
		bufio.NewReader(strings.NewReader("quotes")), &out)
	assert.Contains(t, out.String(), "QUOTES (0)")
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
		tax     string
	}{
		{"Widget 2 9.99", false, "0"},
		{"Widget 2 9.99 19", false, "19"},
		{"Widget 2 9.99 19 5", false, "19"},
		{"Widget 2", true, ""},
		{"Widget 0 9.99", true, ""},
		{"Widget two 9.99", true, ""},
		{"Widget 1 -3", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			line, msg := parseLine(tt.raw)
			if tt.wantErr {
				assert.NotEmpty(t, msg)
				return
			}
			require.Empty(t, msg)
			assert.Equal(t, "Widget", line.Name)
			assert.Equal(t, tt.tax, line.TaxPct.String())
		})
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
