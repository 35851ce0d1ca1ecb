// Package httpapi is the Control API (C10) HTTP transport: it exposes
// the server/agent/catalog operations over stdlib net/http, maps the
// domain error taxonomy to status codes in exactly one place, and
// wires the bearer-token identity decoder and the C9 access filter
// around every authenticated route.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gatereg/registry/internal/domain/identity"
	"github.com/gatereg/registry/internal/domain/registry"
)

// errorBody is the JSON error shape every failed request returns:
// detail is safe for the client, error_code is a stable
// machine-readable tag, request_id lets an operator correlate against
// logs without leaking internal paths or stack traces.
type errorBody struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusForErr maps the closed error taxonomy to an HTTP status
// and a stable error_code, the one place the mapping happens.
func statusForErr(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrInvalid):
		return http.StatusUnprocessableEntity, "invalid"
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrNoScan):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, registry.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, registry.ErrForbidden), errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusInternalServerError, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError maps err through the taxonomy and writes the JSON error
// body. Operator-facing detail (the full wrapped error chain) is
// logged; the response body carries only the top-level message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := statusForErr(err)
	reqID, _ := r.Context().Value(requestIDKey{}).(string)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", reqID)
	}

	writeJSON(w, status, errorBody{
		Detail:    safeDetail(err, status),
		ErrorCode: code,
		RequestID: reqID,
	})
}

// safeDetail strips internal detail from 5xx responses; 4xx bodies
// come from validation/ownership checks and are safe to echo verbatim.
func safeDetail(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
