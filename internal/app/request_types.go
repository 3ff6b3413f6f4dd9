package app

import "crm-workflow/internal/core"

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" jsonschema:"required"`
	Password string `json:"password" jsonschema:"required"`
}

// TransitionRequest moves a document to another status of its state machine.
type TransitionRequest struct {
	Status string `json:"status" jsonschema:"required"`
}

// ConsolidatedInvoiceRequest bills several orders on one invoice.
// Customizations may set dates, terms, notes and the idempotency key.
type ConsolidatedInvoiceRequest struct {
	Orders         []core.OrderAllocationRequest `json:"orders" jsonschema:"required,minItems=1"`
	Customizations *core.Customizations          `json:"customizations,omitempty"`
}
