package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

const maxBodyBytes = 1 << 20

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductUnavailable), errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError renders err as {"error": msg}. Unclassified errors are logged and
// hidden behind a generic message.
func WriteError(w http.ResponseWriter, l *zap.Logger, err error) {
	status := StatusFor(err)
	msg := domain.UserMessage(err)
	if status == http.StatusInternalServerError {
		l.Error("Unhandled error while serving request", zap.Error(err))
		msg = "internal server error"
	} else if status == http.StatusServiceUnavailable {
		l.Warn("Dependency unavailable while serving request", zap.Error(err))
	}
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// DecodeJSON reads a JSON request body into v. Any decoding problem is a
// validation error.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.WrapError(domain.ErrValidation, "invalid request body", err)
	}
	return nil
}
