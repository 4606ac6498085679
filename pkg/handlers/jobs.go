package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/auth"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/services"
)

// DefaultMaxUploadBytes caps one uploaded PDF.
const DefaultMaxUploadBytes int64 = 50 << 20

// JobsHandler serves PDF-to-deck conversion jobs for the calling user.
type JobsHandler struct {
	jobs           services.ConversionJobService
	reads          services.ArtifactService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobs services.ConversionJobService, reads services.ArtifactService, maxUploadBytes int64, logger *zap.Logger) *JobsHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &JobsHandler{
		jobs:           jobs,
		reads:          reads,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers the job routes on the given mux.
func (h *JobsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, dbMiddleware TenantMiddleware) {
	authed := func(fn http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(dbMiddleware(fn))
	}

	mux.HandleFunc("POST /api/jobs", authed(h.Submit))
	mux.HandleFunc("GET /api/jobs", authed(h.List))
	mux.HandleFunc("GET /api/jobs/{jid}", authed(h.Get))
	mux.HandleFunc("GET /api/jobs/{jid}/download", authed(h.Download))
}

type jobsListResponse struct {
	Jobs []*models.ConversionJob `json:"jobs"`
}

// Submit handles POST /api/jobs with a multipart "file" field.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, http.StatusRequestEntityTooLarge, "file_too_large", "Uploaded file is too large")
			return
		}
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Multipart field 'file' is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		ErrorResponse(w, http.StatusRequestEntityTooLarge, "file_too_large", "Uploaded file is too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Failed to read uploaded file")
		return
	}

	req := services.SubmitJobRequest{
		UserID:   caller.UserID,
		Filename: header.Filename,
		Data:     data,
	}
	if caller.InTenant() {
		req.TenantID = &caller.TenantID
	}

	job, err := h.jobs.Submit(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyUpload):
			ErrorResponse(w, http.StatusBadRequest, "empty_file", err.Error())
		case errors.Is(err, services.ErrNotPDF):
			ErrorResponse(w, http.StatusBadRequest, "invalid_file_type", err.Error())
		default:
			writeServiceError(w, err, "submit conversion job", h.logger, zap.String("user_id", caller.UserID))
		}
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, job); err != nil {
		h.logger.Error("Failed to write job response", zap.Error(err))
	}
}

// List handles GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	limit, ok := ParseIntQuery(w, r, "limit", h.logger)
	if !ok {
		return
	}

	jobs, err := h.jobs.ListForUser(r.Context(), caller.UserID, limit)
	if err != nil {
		writeServiceError(w, err, "list conversion jobs", h.logger, zap.String("user_id", caller.UserID))
		return
	}
	if jobs == nil {
		jobs = []*models.ConversionJob{}
	}

	if err := WriteJSON(w, http.StatusOK, jobsListResponse{Jobs: jobs}); err != nil {
		h.logger.Error("Failed to write jobs response", zap.Error(err))
	}
}

// Get handles GET /api/jobs/{jid}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.jobs.Get(r.Context(), caller.UserID, jobID)
	if err != nil {
		writeServiceError(w, err, "get conversion job", h.logger, zap.String("job_id", jobID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, job); err != nil {
		h.logger.Error("Failed to write job response", zap.Error(err))
	}
}

// Download handles GET /api/jobs/{jid}/download
func (h *JobsHandler) Download(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	jobID, ok := ParseJobID(w, r, h.logger)
	if !ok {
		return
	}

	artifact, err := h.reads.DownloadJob(r.Context(), caller.UserID, jobID)
	if err != nil {
		writeServiceError(w, err, "download conversion job", h.logger, zap.String("job_id", jobID.String()))
		return
	}
	writeArtifact(w, artifact, h.logger)
}

func (h *JobsHandler) requireCaller(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	caller, err := auth.PrincipalFromContext(r.Context())
	if err != nil {
		ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "User ID not found in token")
		return auth.Principal{}, false
	}
	return caller, true
}
