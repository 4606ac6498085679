package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/auth"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/services"
)

// MonitorHandler serves the admin monitor routes.
type MonitorHandler struct {
	monitor services.MonitorService
	logger  *zap.Logger
}

// NewMonitorHandler creates a new monitor handler.
func NewMonitorHandler(monitor services.MonitorService, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{monitor: monitor, logger: logger}
}

// RegisterRoutes registers the admin routes. All require the admin role claim.
func (h *MonitorHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, dbMiddleware TenantMiddleware) {
	admin := func(fn http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireRole(auth.RoleAdmin)(dbMiddleware(fn))
	}

	mux.HandleFunc("GET /api/admin/monitor/status", admin(h.Status))
	mux.HandleFunc("PATCH /api/admin/monitor/settings", admin(h.UpdateSettings))
	mux.HandleFunc("POST /api/admin/monitor/check-now", admin(h.CheckNow))
	mux.HandleFunc("POST /api/admin/documents/{did}/reprocess", admin(h.Reprocess))
}

// Status handles GET /api/admin/monitor/status
func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.monitor.Status(r.Context())
	if err != nil {
		writeServiceError(w, err, "get monitor status", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, status); err != nil {
		h.logger.Error("Failed to write monitor status", zap.Error(err))
	}
}

// UpdateSettings handles PATCH /api/admin/monitor/settings
func (h *MonitorHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update models.MonitorSettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	settings, err := h.monitor.UpdateSettings(r.Context(), &update)
	if err != nil {
		writeServiceError(w, err, "update monitor settings", h.logger)
		return
	}

	h.logger.Info("Monitor settings changed by admin",
		zap.String("user_id", auth.UserIDFromContext(r.Context())))

	if err := WriteJSON(w, http.StatusOK, settings); err != nil {
		h.logger.Error("Failed to write monitor settings", zap.Error(err))
	}
}

// CheckNow handles POST /api/admin/monitor/check-now
func (h *MonitorHandler) CheckNow(w http.ResponseWriter, r *http.Request) {
	result, err := h.monitor.CheckNow(r.Context())
	if err != nil {
		writeServiceError(w, err, "check sources", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write poll response", zap.Error(err))
	}
}

type reprocessResponse struct {
	DocumentID   string `json:"document_id"`
	OutputsReset int64  `json:"outputs_reset"`
}

// Reprocess handles POST /api/admin/documents/{did}/reprocess
func (h *MonitorHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	documentID, ok := ParseDocumentID(w, r, h.logger)
	if !ok {
		return
	}

	n, err := h.monitor.Reprocess(r.Context(), documentID)
	if err != nil {
		writeServiceError(w, err, "reprocess document", h.logger, zap.String("document_id", documentID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, reprocessResponse{DocumentID: documentID.String(), OutputsReset: n}); err != nil {
		h.logger.Error("Failed to write reprocess response", zap.Error(err))
	}
}
