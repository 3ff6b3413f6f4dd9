package web

import (
	"net/http"
	"reflect"
	"sort"
	"strings"

	"crm-workflow/internal/app"
	"crm-workflow/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

// requestBodies are the documents served by /api/schema/{name}.
var requestBodies = map[string]any{
	"login":                app.LoginRequest{},
	"quote":                core.QuoteInput{},
	"transition":           app.TransitionRequest{},
	"customizations":       core.Customizations{},
	"order-update":         core.OrderUpdate{},
	"invoice-update":       core.InvoiceUpdate{},
	"payment":              core.Payment{},
	"consolidated-invoice": app.ConsolidatedInvoiceRequest{},
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func schemaFor(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		// Amounts travel as decimal strings, e.g. "1190.00".
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	return reflector.Reflect(v)
}

// apiSchema handles GET /api/schema/{name}.
func (h *Handler) apiSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := requestBodies[name]
	if !ok {
		names := make([]string, 0, len(requestBodies))
		for n := range requestBodies {
			names = append(names, n)
		}
		sort.Strings(names)
		writeError(w, r, "unknown schema "+name+", expected one of: "+strings.Join(names, ", "), "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, schemaFor(v))
}
