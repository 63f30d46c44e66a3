package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shelfwise/lending/internal/domain"
	"github.com/shelfwise/lending/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable   = "ITEM_UNAVAILABLE"
	CodeOpenAccess    = "LOAN_NOT_REQUIRED"
	CodeInternalError = "INTERNAL_ERROR"
	CodePayloadTooBig = "PAYLOAD_TOO_LARGE"
)

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// FromError maps domain errors to HTTP responses. Authentication
// failures collapse to a uniform message; lending failures are surfaced
// with actionable detail; everything else is a generic internal error.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, "Too many requests. Try again later.", CodeRateLimit)
	case errors.Is(err, domain.ErrInvalidCode), errors.Is(err, domain.ErrSessionInvalid):
		WriteError(w, http.StatusUnauthorized, "Authentication failed", CodeUnauthorized)
	case errors.Is(err, domain.ErrAlreadyBorrowed):
		WriteError(w, http.StatusConflict, err.Error(), CodeConflict)
	case errors.Is(err, domain.ErrItemUnavailable):
		WriteError(w, http.StatusConflict, err.Error(), CodeUnavailable)
	case errors.Is(err, domain.ErrLoanNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, domain.ErrLoanNotRequired):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeOpenAccess)
	case errors.Is(err, domain.ErrItemNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, domain.ErrItemExists):
		WriteError(w, http.StatusConflict, err.Error(), CodeConflict)
	case errors.Is(err, domain.ErrInvalidFormat):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrFileTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), CodePayloadTooBig)
	case errors.Is(err, domain.ErrStorageUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable", CodeInternalError)
	default:
		WriteError(w, http.StatusInternalServerError, "Internal server error", CodeInternalError)
	}
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}
