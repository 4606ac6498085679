package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseTenantID extracts and validates the tenant ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: tid
func ParseTenantID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "tid", "invalid_tenant_id", "Invalid tenant ID format", logger)
}

// ParseDocumentID extracts and validates the document ID from the request path.
// Expects path parameter: did
func ParseDocumentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "did", "invalid_document_id", "Invalid document ID format", logger)
}

// ParseOutputID extracts and validates the base output ID from the request path.
// Expects path parameter: oid
func ParseOutputID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "oid", "invalid_output_id", "Invalid output ID format", logger)
}

// ParseClientOutputID extracts and validates the client output ID from the request path.
// Expects path parameter: coid
func ParseClientOutputID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "coid", "invalid_client_output_id", "Invalid client output ID format", logger)
}

// ParseJobID extracts and validates the conversion job ID from the request path.
// Expects path parameter: jid
func ParseJobID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "jid", "invalid_job_id", "Invalid job ID format", logger)
}

// ParseTenantAndDocumentIDs extracts and validates both tenant and document IDs.
// Expects path parameters: tid, did
func ParseTenantAndDocumentIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := ParseTenantID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	documentID, ok := ParseDocumentID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return tenantID, documentID, true
}

// ParseIntQuery reads an optional integer query parameter; absent yields 0.
// Returns false after writing a 400 when the value is not an integer.
func ParseIntQuery(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", name+" must be an integer"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return n, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
