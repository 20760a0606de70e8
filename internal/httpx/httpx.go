// Package httpx holds the JSON and error conventions shared by the service handlers.
package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"libradesk/internal/lifecycle"
	"libradesk/internal/records"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", lifecycle.ErrInvalidDocument, err)
	}
	return nil
}

// StatusOf maps a service error to an HTTP status code.
func StatusOf(err error) int {
	var trErr *lifecycle.TransitionError
	switch {
	case errors.Is(err, lifecycle.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &trErr):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, lifecycle.ErrInvalidDocument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a plain-text response. Rejections carry their own
// user-facing message; unexpected errors are logged and hidden.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
	}
	http.Error(w, msg, status)
}
