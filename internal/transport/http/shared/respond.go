// Package shared holds response helpers used by all feature handlers so
// error envelopes stay consistent across the API.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	"docextract/pkg/domerr"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes v with the given status. Encoding failures are swallowed;
// the status line is already on the wire by then.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP status and envelope.
// Non-domain errors become opaque 500s so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := domerr.CodeOf(err)
	message := ""
	var dErr *domerr.Error
	if errors.As(err, &dErr) {
		message = dErr.Message
	}
	if code == domerr.CodeInternal {
		message = "internal error"
	}
	WriteJSON(w, domerr.ToHTTPStatus(code), ErrorResponse{
		Error:   string(code),
		Message: message,
	})
}
