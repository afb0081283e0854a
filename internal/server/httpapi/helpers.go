package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/healthsync/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
}

// statusFor maps sentinel errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errs.ErrMalformedPayload),
		errors.Is(err, errs.ErrKindMismatch),
		errors.Is(err, errs.ErrFutureDate),
		errors.Is(err, errs.ErrInvalidField):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError hides internals behind a generic message for 5xx responses.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "storage failure"
	}
	writeJSONError(w, status, msg)
}
