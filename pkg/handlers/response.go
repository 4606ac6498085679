package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
)

// TenantMiddleware is a function that wraps a handler with a database scope.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// APIError is the body of every non-2xx JSON response.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(APIError{Error: errorCode, Message: message})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service error onto a status code.
// Unrecognized errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, err error, action string, logger *zap.Logger, fields ...zap.Field) {
	var status int
	var code, message string
	var stageErr *apperrors.StageError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, apperrors.ErrConflict):
		status, code, message = http.StatusConflict, "conflict", "Generation already in progress"
	case errors.Is(err, apperrors.ErrNotAvailable):
		status, code, message = http.StatusConflict, "not_available", "Artifact is not available yet"
	case errors.Is(err, apperrors.ErrBaseNotComplete):
		status, code, message = http.StatusBadRequest, "base_not_complete", "Base output must be complete before client customization"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		status, code, message = http.StatusBadRequest, "invalid_transition", err.Error()
	case errors.Is(err, apperrors.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "invalid_parameters", err.Error()
	case errors.As(err, &stageErr):
		logger.Warn("Upstream stage failed during "+action, append(fields, zap.Error(err))...)
		status, code, message = http.StatusBadGateway, string(stageErr.Stage)+"_failed", stageErr.Error()
	default:
		logger.Error("Failed to "+action, append(fields, zap.Error(err))...)
		status, code, message = http.StatusInternalServerError, "internal_error", "Failed to "+action
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
