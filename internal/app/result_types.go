package app

import "crm-workflow/internal/core"

// UserSession is returned by Authenticate.
type UserSession struct {
	UserID   int64  `json:"user_id"`
	TenantID int64  `json:"tenant_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserResult is returned by GetUser.
type UserResult struct {
	UserID   int64  `json:"user_id"`
	TenantID int64  `json:"tenant_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type QuoteListResult struct {
	Quotes []core.Quote `json:"quotes"`
}

type OrderListResult struct {
	Orders []core.Order `json:"orders"`
}

type InvoiceListResult struct {
	Invoices []core.Invoice `json:"invoices"`
}

// SweepResult lists the document numbers a time-based sweep changed.
type SweepResult struct {
	Numbers []string `json:"numbers"`
}
