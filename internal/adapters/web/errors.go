package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"crm-workflow/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps a service error onto its HTTP status. Infrastructure errors are logged
// and reported as a bare 500 so driver messages never reach the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *core.NotFoundError
		validation *core.ValidationError
		conflict   *core.ConflictError
		forbidden  *core.ForbiddenError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, r, notFound.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &validation):
		writeError(w, r, validation.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
	case errors.As(err, &conflict):
		code := "CONFLICT"
		if conflict.Retryable {
			code = "CONCURRENT_UPDATE"
		}
		writeError(w, r, conflict.Error(), code, http.StatusConflict)
	case errors.As(err, &forbidden):
		writeError(w, r, forbidden.Error(), "FORBIDDEN", http.StatusForbidden)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, "operation timed out", "TIMEOUT", http.StatusGatewayTimeout)
	default:
		h.log.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
