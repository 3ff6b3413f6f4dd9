package web_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"crm-workflow/internal/adapters/web"
	"crm-workflow/internal/app"
	"crm-workflow/internal/core"
	"crm-workflow/internal/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type server struct {
	t       *testing.T
	handler http.Handler
	company core.Company
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memstore.New()
	clock := func() time.Time { return testNow }
	company := store.AddCompany(core.Company{TenantID: 1, Name: "Acme GmbH", Currency: "EUR", PaymentTermsDays: 14})
	store.AddCompany(core.Company{TenantID: 2, Name: "Other AG", Currency: "EUR"})

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	store.AddUser(core.User{TenantID: 1, Username: "alice", PasswordHash: string(hash), Role: core.RoleMember, IsActive: true})
	store.AddUser(core.User{TenantID: 1, Username: "victor", PasswordHash: string(hash), Role: core.RoleViewer, IsActive: true})
	store.AddUser(core.User{TenantID: 2, Username: "mallory", PasswordHash: string(hash), Role: core.RoleAdmin, IsActive: true})

	svc := app.NewAppService(
		core.NewWorkflowService(store, core.WithClock(clock)),
		core.NewDocumentService(store, clock),
		store,
		5*time.Second,
		zap.NewNop(),
	)
	h := web.NewHandler(svc, web.Options{JWTSecret: "test-secret", JWTExpiry: time.Hour}, zap.NewNop())
	return &server{t: t, handler: h, company: company}
}

func (s *server) login(username string) *http.Cookie {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/login", nil, map[string]string{"username": username, "password": "pw"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth_token" {
			return c
		}
	}
	s.t.Fatal("login did not set auth_token cookie")
	return nil
}

func (s *server) do(method, path string, cookie *http.Cookie, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func (s *server) quoteBody() map[string]any {
	return map[string]any{
		"company_id": s.company.ID,
		"lines": []map[string]any{
			{"name": "Widget", "quantity": "10", "unit_price": "100", "discount_pct": "0", "tax_pct": "19"},
		},
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/api/quotes", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", nil, map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.NotEmpty(t, body["request_id"])

	rec = s.do(http.MethodGet, "/api/quotes", &http.Cookie{Name: "auth_token", Value: "garbage"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	s := newServer(t)
	cookie := s.login("alice")

	rec := s.do(http.MethodGet, "/api/auth/me", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[app.UserResult](t, rec)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, int64(1), user.TenantID)
}

func TestQuoteToInvoiceFlow(t *testing.T) {
	s := newServer(t)
	cookie := s.login("alice")

	rec := s.do(http.MethodPost, "/api/quotes", cookie, s.quoteBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	q := decode[core.Quote](t, rec)
	assert.Equal(t, "1190.00", q.Total.StringFixed(2))

	rec = s.do(http.MethodPost, "/api/quotes/"+itoa(q.ID)+"/convert/order", cookie, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode[core.Order](t, rec)
	assert.Equal(t, core.OrderPending, o.Status)

	// a second conversion of the same quote is refused
	rec = s.do(http.MethodPost, "/api/quotes/"+itoa(q.ID)+"/convert/order", cookie, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	partial := map[string]any{"partial": map[string]any{"percentage": "50"}}
	rec = s.do(http.MethodPost, "/api/orders/"+itoa(o.ID)+"/invoice", cookie, partial, "Idempotency-Key", "half-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[core.Invoice](t, rec)
	assert.Equal(t, "595.00", first.Total.StringFixed(2))

	// replay with the same key returns the same invoice
	rec = s.do(http.MethodPost, "/api/orders/"+itoa(o.ID)+"/invoice", cookie, partial, "Idempotency-Key", "half-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, first.ID, decode[core.Invoice](t, rec).ID)

	rec = s.do(http.MethodGet, "/api/orders/"+itoa(o.ID), cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o = decode[core.Order](t, rec)
	assert.Equal(t, core.OrderPartiallyInvoiced, o.Status)
	assert.Equal(t, "595.00", o.RemainingAmount.StringFixed(2))

	rec = s.do(http.MethodGet, "/api/quotes/"+itoa(q.ID)+"/chain", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chain := decode[core.DocumentChain](t, rec)
	assert.Len(t, chain.Orders, 1)
	assert.Len(t, chain.Invoices, 1)
	assert.Len(t, chain.Edges, 2)

	rec = s.do(http.MethodGet, "/api/orders/"+itoa(o.ID)+"/verify", cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[core.LedgerReport](t, rec)
	assert.Empty(t, report.Problems)
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	cookie := s.login("alice")

	rec := s.do(http.MethodGet, "/api/orders/42", cookie, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[map[string]string](t, rec)["code"])

	rec = s.do(http.MethodGet, "/api/orders/abc", cookie, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/quotes", cookie, map[string]any{"company_id": s.company.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[map[string]string](t, rec)["code"])

	rec = s.do(http.MethodGet, "/api/invoices?status=lost", cookie, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	viewer := s.login("victor")
	rec = s.do(http.MethodPost, "/api/quotes", viewer, s.quoteBody())
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode[map[string]string](t, rec)["code"])
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	s := newServer(t)
	alice := s.login("alice")

	rec := s.do(http.MethodPost, "/api/quotes", alice, s.quoteBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	q := decode[core.Quote](t, rec)

	mallory := s.login("mallory")
	rec = s.do(http.MethodGet, "/api/quotes/"+itoa(q.ID), mallory, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, "/api/quotes/"+itoa(q.ID)+"/chain", mallory, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsolidatedInvoiceAndPayment(t *testing.T) {
	s := newServer(t)
	cookie := s.login("alice")

	var orderIDs []int64
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/api/quotes", cookie, s.quoteBody())
		require.Equal(t, http.StatusCreated, rec.Code)
		q := decode[core.Quote](t, rec)
		rec = s.do(http.MethodPost, "/api/quotes/"+itoa(q.ID)+"/convert/order", cookie, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		orderIDs = append(orderIDs, decode[core.Order](t, rec).ID)
	}

	body := map[string]any{"orders": []map[string]any{
		{"order_id": orderIDs[0]},
		{"order_id": orderIDs[1], "amount_allocated": "190"},
	}}
	rec := s.do(http.MethodPost, "/api/invoices/consolidated", cookie, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[core.Invoice](t, rec)
	assert.Equal(t, "1380.00", inv.Total.StringFixed(2))
	require.NotNil(t, inv.AccessToken)

	// order-sourced invoices keep their allocations
	rec = s.do(http.MethodDelete, "/api/invoices/"+itoa(inv.ID), cookie, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/invoices/"+itoa(inv.ID)+"/transition", cookie, map[string]string{"status": "sent"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/invoices/"+itoa(inv.ID)+"/payments", cookie, map[string]string{"amount": "380"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inv = decode[core.Invoice](t, rec)
	assert.Equal(t, core.InvoicePartiallyPaid, inv.Status)
	assert.Equal(t, "1000.00", inv.RemainingAmount.StringFixed(2))

	// public view needs no cookie
	rec = s.do(http.MethodGet, "/api/public/invoices/"+*inv.AccessToken, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, inv.Number, decode[core.Invoice](t, rec).Number)
}

func TestSchemaEndpoint(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/api/schema/customizations", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	schema := decode[map[string]any](t, rec)
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties: %v", schema)
	assert.Contains(t, props, "partial")
	assert.Contains(t, props, "idempotency_key")

	rec = s.do(http.MethodGet, "/api/schema/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
