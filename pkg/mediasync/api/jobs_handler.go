// Package api exposes the synchronization service over HTTP using chi.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/virgula/mediasync/pkg/mediasync"
)

// JobsHandler handles HTTP requests for media jobs
type JobsHandler struct {
	service mediasync.Service
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(service mediasync.Service) *JobsHandler {
	return &JobsHandler{service: service}
}

// Routes returns the routes for media jobs
func (h *JobsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateJob)
	r.Get("/{jobID}", h.GetJob)
	r.Delete("/{jobID}", h.MarkForDeletion)

	r.Post("/{jobID}/recover", h.StartDuplicateRecovery)
	r.Post("/{jobID}/upload-status", h.ContinueUploadStatusCheck)

	// Routes for manually triggering the periodic cycles
	r.Post("/cycles/upload", h.RunUploadCycle)
	r.Post("/cycles/poll", h.RunStatusPollCycle)
	r.Post("/cycles/deletion", h.RunDeletionCycle)

	return r
}

// CreateJobRequest is the request body for creating a media job
type CreateJobRequest struct {
	MediaID string `json:"media_id"`
	Host    string `json:"host"`
}

// JobResponse is the response body for a media job
type JobResponse struct {
	ID            string    `json:"id"`
	MediaID       string    `json:"media_id"`
	Host          string    `json:"host"`
	ProviderJobID string    `json:"provider_job_id,omitempty"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
	Retries       int       `json:"retries"`
	Embed         string    `json:"embed,omitempty"`
	URL           string    `json:"url,omitempty"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CycleResponse is the response body for a completed synchronization cycle
type CycleResponse struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// RecoveryResponse is the response body for a duplicate recovery step
type RecoveryResponse struct {
	Job         JobResponse `json:"job"`
	Verdict     string      `json:"verdict"`
	NextAttempt int         `json:"next_attempt,omitempty"`
}

func jobResponse(job *mediasync.MediaJob) JobResponse {
	return JobResponse{
		ID:            job.ID.String(),
		MediaID:       job.MediaID.String(),
		Host:          string(job.Host),
		ProviderJobID: job.ProviderJobID,
		Status:        string(job.Status),
		StatusMessage: job.StatusMessage,
		Retries:       job.Retries,
		Embed:         job.Embed,
		URL:           job.URL,
		Thumbnail:     job.Thumbnail,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}

func cycleResponse(result *mediasync.CycleResult) CycleResponse {
	resp := CycleResponse{
		Processed: result.Processed,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	}
	for _, id := range result.FailedIDs {
		resp.FailedIDs = append(resp.FailedIDs, id.String())
	}
	return resp
}

// CreateJob registers a new hosting job for a media item
func (h *JobsHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mediaID, err := uuid.Parse(req.MediaID)
	if err != nil {
		slog.Error("Invalid media ID", "media_id", req.MediaID, "error", err)
		http.Error(w, "Invalid media ID", http.StatusBadRequest)
		return
	}

	job, err := h.service.CreateJob(r.Context(), mediasync.CreateJobRequest{
		MediaID: mediaID,
		Host:    mediasync.Host(req.Host),
	})
	if err != nil {
		slog.Error("Failed to create job", "media_id", req.MediaID, "host", req.Host, "error", err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	slog.Info("Job created", "job_id", job.ID.String(), "host", req.Host)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, jobResponse(job))
}

// GetJob retrieves a job by ID
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.job(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, jobResponse(job))
}

// MarkForDeletion flags a job for removal on the next deletion sweep
func (h *JobsHandler) MarkForDeletion(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "jobID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	if _, err := h.service.MarkForDeletion(r.Context(), id); err != nil {
		slog.Error("Failed to mark job for deletion", "job_id", idStr, "error", err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	slog.Info("Job marked for deletion", "job_id", idStr)
	w.WriteHeader(http.StatusNoContent)
}

// StartDuplicateRecovery re-submits a failed upload and begins the
// duplicate confirmation loop
func (h *JobsHandler) StartDuplicateRecovery(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "jobID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	result, err := h.service.StartDuplicateRecovery(r.Context(), id)
	if err != nil {
		slog.Error("Failed to start duplicate recovery", "job_id", idStr, "error", err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	slog.Info("Duplicate recovery started", "job_id", idStr, "verdict", result.Verdict)
	render.JSON(w, r, recoveryResponse(result))
}

// ContinueUploadStatusCheck performs one confirmation attempt of an
// in-flight duplicate recovery.
// Query parameters:
//   - previous: the provider job id held before recovery started
//   - attempt: zero-based confirmation attempt counter
func (h *JobsHandler) ContinueUploadStatusCheck(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "jobID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	previousID := r.URL.Query().Get("previous")

	attempt := 0
	if attemptStr := r.URL.Query().Get("attempt"); attemptStr != "" {
		attempt, err = strconv.Atoi(attemptStr)
		if err != nil || attempt < 0 {
			http.Error(w, "Invalid attempt", http.StatusBadRequest)
			return
		}
	}

	result, err := h.service.ContinueUploadStatusCheck(r.Context(), id, previousID, attempt)
	if err != nil {
		slog.Error("Upload status check failed", "job_id", idStr, "attempt", attempt, "error", err)
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	render.JSON(w, r, recoveryResponse(result))
}

// RunUploadCycle dispatches all pending uploads
func (h *JobsHandler) RunUploadCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunUploadCycle(r.Context())
	if err != nil {
		slog.Error("Upload cycle failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Upload cycle finished", "processed", result.Processed, "failed", result.Failed, "skipped", result.Skipped)
	render.JSON(w, r, cycleResponse(result))
}

// RunStatusPollCycle refreshes the status of all processing jobs
func (h *JobsHandler) RunStatusPollCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunStatusPollCycle(r.Context())
	if err != nil {
		slog.Error("Status poll cycle failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Status poll cycle finished", "processed", result.Processed, "failed", result.Failed, "skipped", result.Skipped)
	render.JSON(w, r, cycleResponse(result))
}

// RunDeletionCycle removes all jobs flagged for deletion
func (h *JobsHandler) RunDeletionCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunDeletionCycle(r.Context())
	if err != nil {
		slog.Error("Deletion cycle failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Deletion cycle finished", "processed", result.Processed, "failed", result.Failed, "skipped", result.Skipped)
	render.JSON(w, r, cycleResponse(result))
}

func (h *JobsHandler) job(w http.ResponseWriter, r *http.Request) (*mediasync.MediaJob, bool) {
	idStr := chi.URLParam(r, "jobID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return nil, false
	}

	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get job", "job_id", idStr, "error", err)
		http.Error(w, err.Error(), statusForError(err))
		return nil, false
	}

	return job, true
}

func recoveryResponse(result *mediasync.RecoveryResult) RecoveryResponse {
	return RecoveryResponse{
		Job:         jobResponse(result.Job),
		Verdict:     string(result.Verdict),
		NextAttempt: result.NextAttempt,
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, mediasync.ErrJobNotFound),
		errors.Is(err, mediasync.ErrMediaNotFound):
		return http.StatusNotFound
	case errors.Is(err, mediasync.ErrProviderNotRegistered),
		errors.Is(err, mediasync.ErrRecoveryNotSupported),
		errors.Is(err, mediasync.ErrInvalidJobStatus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mediasync.ErrMaxAttemptsExceeded),
		errors.Is(err, mediasync.ErrJobAlreadyActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
