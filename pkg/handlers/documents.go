package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/auth"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/services"
)

// maxClientsPerRequest bounds one generate-clients call.
const maxClientsPerRequest = 100

// DocumentsHandler serves the tenant-scoped document and output routes.
type DocumentsHandler struct {
	base    services.BaseGenerationService
	clients services.ClientCustomizationService
	reads   services.ArtifactService
	logger  *zap.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(
	base services.BaseGenerationService,
	clients services.ClientCustomizationService,
	reads services.ArtifactService,
	logger *zap.Logger,
) *DocumentsHandler {
	return &DocumentsHandler{
		base:    base,
		clients: clients,
		reads:   reads,
		logger:  logger,
	}
}

// RegisterRoutes registers the document routes. The token's tenant must match {tid}.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	scoped := func(fn http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("tid")(tenantMiddleware(fn))
	}

	mux.HandleFunc("GET /api/tenants/{tid}/documents", scoped(h.List))
	mux.HandleFunc("GET /api/tenants/{tid}/documents/{did}", scoped(h.GetStatus))
	mux.HandleFunc("POST /api/tenants/{tid}/documents/{did}/generate-base", scoped(h.GenerateBase))
	mux.HandleFunc("POST /api/tenants/{tid}/documents/{did}/generate-clients", scoped(h.GenerateClients))
	mux.HandleFunc("POST /api/tenants/{tid}/outputs/{oid}/approve", scoped(h.Approve))
	mux.HandleFunc("POST /api/tenants/{tid}/outputs/{oid}/retry", scoped(h.Retry))
	mux.HandleFunc("GET /api/tenants/{tid}/outputs/{oid}/download", scoped(h.DownloadBase))
	mux.HandleFunc("GET /api/tenants/{tid}/client-outputs/{coid}/download", scoped(h.DownloadClient))
}

// List handles GET /api/tenants/{tid}/documents?status=&limit=&offset=
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}
	limit, ok := ParseIntQuery(w, r, "limit", h.logger)
	if !ok {
		return
	}
	offset, ok := ParseIntQuery(w, r, "offset", h.logger)
	if !ok {
		return
	}

	page, err := h.reads.ListDocuments(r.Context(), services.ListDocumentsRequest{
		TenantID: tenantID,
		Status:   models.OutputStatus(r.URL.Query().Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeServiceError(w, err, "list documents", h.logger, zap.String("tenant_id", tenantID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write document list response", zap.Error(err))
	}
}

// GetStatus handles GET /api/tenants/{tid}/documents/{did}
func (h *DocumentsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, documentID, ok := ParseTenantAndDocumentIDs(w, r, h.logger)
	if !ok {
		return
	}

	status, err := h.reads.DocumentStatus(r.Context(), tenantID, documentID)
	if err != nil {
		writeServiceError(w, err, "get document status", h.logger,
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_id", documentID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, status); err != nil {
		h.logger.Error("Failed to write status response", zap.Error(err))
	}
}

// GenerateBase handles POST /api/tenants/{tid}/documents/{did}/generate-base
func (h *DocumentsHandler) GenerateBase(w http.ResponseWriter, r *http.Request) {
	tenantID, documentID, ok := ParseTenantAndDocumentIDs(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.base.Generate(r.Context(), services.GenerateBaseRequest{
		DocumentID: documentID,
		TenantID:   tenantID,
	})
	if err != nil {
		writeServiceError(w, err, "generate base output", h.logger,
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_id", documentID.String()))
		return
	}

	h.writeGeneration(w, result)
}

// Approve handles POST /api/tenants/{tid}/outputs/{oid}/approve
func (h *DocumentsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}
	outputID, ok := ParseOutputID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.base.Approve(r.Context(), tenantID, outputID)
	if err != nil {
		writeServiceError(w, err, "approve output", h.logger, zap.String("output_id", outputID.String()))
		return
	}

	h.writeGeneration(w, result)
}

// Retry handles POST /api/tenants/{tid}/outputs/{oid}/retry
func (h *DocumentsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}
	outputID, ok := ParseOutputID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.base.Retry(r.Context(), tenantID, outputID)
	if err != nil {
		writeServiceError(w, err, "retry output", h.logger, zap.String("output_id", outputID.String()))
		return
	}

	h.writeGeneration(w, result)
}

type generationFailedResponse struct {
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Output  *models.BaseOutput `json:"output"`
}

// writeGeneration reports a recorded failure as 502 and everything else as 200.
func (h *DocumentsHandler) writeGeneration(w http.ResponseWriter, result *services.GenerateBaseResult) {
	if result.Failed() {
		msg := "Generation failed"
		if result.Output.ErrorMessage != nil {
			msg = *result.Output.ErrorMessage
		}
		if err := WriteJSON(w, http.StatusBadGateway, generationFailedResponse{
			Error:   "generation_failed",
			Message: msg,
			Output:  result.Output,
		}); err != nil {
			h.logger.Error("Failed to write generation response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write generation response", zap.Error(err))
	}
}

type generateClientsRequest struct {
	ClientIDs []string `json:"client_ids"`
}

type generateClientsResponse struct {
	Results   []services.ClientResult `json:"results"`
	Completed int                     `json:"completed"`
	Failed    int                     `json:"failed"`
}

// GenerateClients handles POST /api/tenants/{tid}/documents/{did}/generate-clients
func (h *DocumentsHandler) GenerateClients(w http.ResponseWriter, r *http.Request) {
	tenantID, documentID, ok := ParseTenantAndDocumentIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req generateClientsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if len(req.ClientIDs) == 0 {
		ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "client_ids is required")
		return
	}
	if len(req.ClientIDs) > maxClientsPerRequest {
		ErrorResponse(w, http.StatusBadRequest, "invalid_parameters",
			fmt.Sprintf("at most %d client_ids per request", maxClientsPerRequest))
		return
	}

	ids := make([]uuid.UUID, 0, len(req.ClientIDs))
	for _, raw := range req.ClientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			ErrorResponse(w, http.StatusBadRequest, "invalid_client_id", "Invalid client ID format: "+raw)
			return
		}
		ids = append(ids, id)
	}

	results, err := h.clients.GenerateClients(r.Context(), services.GenerateClientsRequest{
		DocumentID: documentID,
		TenantID:   tenantID,
		ClientIDs:  ids,
		SelectedBy: auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, err, "generate client outputs", h.logger,
			zap.String("tenant_id", tenantID.String()),
			zap.String("document_id", documentID.String()))
		return
	}

	resp := generateClientsResponse{Results: results}
	for _, res := range results {
		if res.Error != "" {
			resp.Failed++
		} else {
			resp.Completed++
		}
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write generate-clients response", zap.Error(err))
	}
}

// DownloadBase handles GET /api/tenants/{tid}/outputs/{oid}/download
func (h *DocumentsHandler) DownloadBase(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}
	outputID, ok := ParseOutputID(w, r, h.logger)
	if !ok {
		return
	}

	artifact, err := h.reads.DownloadBase(r.Context(), tenantID, outputID)
	if err != nil {
		writeServiceError(w, err, "download output", h.logger, zap.String("output_id", outputID.String()))
		return
	}
	writeArtifact(w, artifact, h.logger)
}

// DownloadClient handles GET /api/tenants/{tid}/client-outputs/{coid}/download
func (h *DocumentsHandler) DownloadClient(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := ParseTenantID(w, r, h.logger)
	if !ok {
		return
	}
	clientOutputID, ok := ParseClientOutputID(w, r, h.logger)
	if !ok {
		return
	}

	artifact, err := h.reads.DownloadClient(r.Context(), tenantID, clientOutputID)
	if err != nil {
		writeServiceError(w, err, "download client output", h.logger,
			zap.String("client_output_id", clientOutputID.String()))
		return
	}
	writeArtifact(w, artifact, h.logger)
}

// writeArtifact sends a stored file as an attachment.
func writeArtifact(w http.ResponseWriter, artifact *services.Artifact, logger *zap.Logger) {
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		logger.Warn("Failed to write artifact", zap.String("filename", artifact.Filename), zap.Error(err))
	}
}
