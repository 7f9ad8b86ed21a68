package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/subhatanay/expenseapp/internal/api/middleware"
	"github.com/subhatanay/expenseapp/internal/domain"
	"github.com/subhatanay/expenseapp/internal/jobs"
)

// SyncHandler enqueues ingestion passes.
type SyncHandler struct {
	publisher jobs.Publisher
	users     func() []string
	log       zerolog.Logger
}

// NewSyncHandler creates a new sync handler. users lists the users that
// have sources registered.
func NewSyncHandler(publisher jobs.Publisher, users func() []string, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{publisher: publisher, users: users, log: log}
}

// EnqueueSync handles POST /api/sync. The body {"user_id": "..."} is
// optional; without it every registered user is enqueued.
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	known := h.users()
	targets := known
	if req.UserID != "" {
		if !slices.Contains(known, req.UserID) {
			middleware.WriteError(w, http.StatusNotFound, "Unknown user")
			return
		}
		targets = []string{req.UserID}
	}

	ctx := r.Context()
	queued := make([]map[string]string, 0, len(targets))
	for _, userID := range targets {
		job := &jobs.SyncJob{UserID: userID, Trigger: jobs.TriggerAPI}
		if err := h.publisher.PublishSync(ctx, job); err != nil {
			h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue sync job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
			return
		}
		h.log.Info().Str("job_id", job.JobID).Str("user_id", userID).Msg("Sync job enqueued")
		queued = append(queued, map[string]string{
			"job_id":  job.JobID,
			"user_id": userID,
			"status":  string(job.Status),
		})
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobs":  queued,
		"count": len(queued),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, domain.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		filter.Offset = offset
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
