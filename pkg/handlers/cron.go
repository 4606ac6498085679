package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/auth"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/services"
)

// CronHandler exposes the scheduled triggers.
type CronHandler struct {
	poller    services.PollerService
	base      services.BaseGenerationService
	jobs      services.ConversionJobService
	batchSize int
	logger    *zap.Logger
}

// NewCronHandler creates a new cron handler. batchSize bounds process-outputs per call.
func NewCronHandler(
	poller services.PollerService,
	base services.BaseGenerationService,
	jobs services.ConversionJobService,
	batchSize int,
	logger *zap.Logger,
) *CronHandler {
	if batchSize < 1 {
		batchSize = 3
	}
	return &CronHandler{
		poller:    poller,
		base:      base,
		jobs:      jobs,
		batchSize: batchSize,
		logger:    logger,
	}
}

// RegisterRoutes registers the cron routes. Every route requires the shared secret.
func (h *CronHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, secret string, dbMiddleware TenantMiddleware) {
	guard := authMiddleware.RequireCronSecret(secret)

	mux.HandleFunc("POST /api/cron/check-sources", guard(dbMiddleware(h.CheckSources)))
	mux.HandleFunc("POST /api/cron/process-outputs", guard(dbMiddleware(h.ProcessOutputs)))
	mux.HandleFunc("POST /api/cron/process-jobs", guard(dbMiddleware(h.ProcessJobs)))
}

// CheckSources handles POST /api/cron/check-sources
func (h *CronHandler) CheckSources(w http.ResponseWriter, r *http.Request) {
	result, err := h.poller.Poll(r.Context())
	if err != nil {
		writeServiceError(w, err, "check sources", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write poll response", zap.Error(err))
	}
}

// ProcessOutputs handles POST /api/cron/process-outputs
func (h *CronHandler) ProcessOutputs(w http.ResponseWriter, r *http.Request) {
	result, err := h.base.RunPending(r.Context(), h.batchSize)
	if err != nil {
		writeServiceError(w, err, "process pending outputs", h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write process response", zap.Error(err))
	}
}

type processJobsResponse struct {
	Processed bool   `json:"processed"`
	JobID     string `json:"job_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ProcessJobs handles POST /api/cron/process-jobs
func (h *CronHandler) ProcessJobs(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.ProcessNext(r.Context())
	if err != nil {
		writeServiceError(w, err, "process conversion job", h.logger)
		return
	}

	resp := processJobsResponse{}
	if job != nil {
		resp.Processed = true
		resp.JobID = job.ID.String()
		resp.Status = string(job.Status)
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write process response", zap.Error(err))
	}
}
