package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"docplain/internal/store"
	"docplain/pkg/api"
)

// EnqueueJob accepts a document reference and queues a translation job.
func (h *Handlers) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DocumentRef == "" {
		h.httpError(w, "document_ref is required", http.StatusBadRequest)
		return
	}

	job := store.Job{
		ID:          uuid.New(),
		DocumentRef: req.DocumentRef,
		State:       store.JobStateQueued,
		CreatedAt:   time.Now().UTC(),
	}
	if req.TargetLanguage != "" {
		job.TargetLanguage = &req.TargetLanguage
	}

	if err := h.store.CreateJob(r.Context(), nil, &job); err != nil {
		h.httpError(w, "Failed to enqueue job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.EnqueueJobResponse{JobID: job.ID.String()})
}

// GetJob returns one job record.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJobByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.httpError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.httpError(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, jobToResponse(job))
}

// ListJobs returns jobs, newest first, optionally filtered with ?state=.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	var state *store.JobState
	if raw := r.URL.Query().Get("state"); raw != "" {
		s := store.JobState(raw)
		state = &s
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	jobs, err := h.store.ListJobs(r.Context(), state, limit, offset)
	if err != nil {
		h.httpError(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	out := make([]api.JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobToResponse(&jobs[i]))
	}
	h.respondJson(w, http.StatusOK, out)
}

// CancelJob requests cooperative cancellation. A QUEUED job is cancelled
// immediately; a RUNNING one at its next step boundary.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	accepted, err := h.store.RequestCancel(r.Context(), id)
	if err != nil {
		h.httpError(w, "Failed to request cancellation", http.StatusInternalServerError)
		return
	}
	if !accepted {
		h.httpError(w, "Job is already finished", http.StatusConflict)
		return
	}

	h.respondJson(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// ListJobExecutions returns the step execution audit trail for a job.
func (h *Handlers) ListJobExecutions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	executions, err := h.store.ListExecutions(r.Context(), id)
	if err != nil {
		h.httpError(w, "Failed to list executions", http.StatusInternalServerError)
		return
	}

	out := make([]api.StepExecutionResponse, 0, len(executions))
	for _, exec := range executions {
		resp := api.StepExecutionResponse{
			StepName:      exec.StepName,
			StepOrder:     exec.StepOrder,
			Attempt:       exec.Attempt,
			Status:        string(exec.Status),
			ModelUsed:     exec.ModelUsed,
			InputExcerpt:  exec.InputExcerpt,
			OutputExcerpt: exec.OutputExcerpt,
			DurationMS:    exec.Duration.Milliseconds(),
			CreatedAt:     exec.CreatedAt,
		}
		if exec.ErrorMessage != nil {
			resp.ErrorMessage = *exec.ErrorMessage
		}
		out = append(out, resp)
	}
	h.respondJson(w, http.StatusOK, out)
}

func jobToResponse(job *store.Job) api.JobResponse {
	resp := api.JobResponse{
		ID:               job.ID.String(),
		DocumentRef:      job.DocumentRef,
		State:            string(job.State),
		CurrentStepIndex: job.CurrentStepIndex,
		Attempt:          job.Attempt,
		CreatedAt:        job.CreatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
	}
	if job.TargetLanguage != nil {
		resp.TargetLanguage = *job.TargetLanguage
	}
	if job.ErrorKind != nil {
		resp.ErrorKind = *job.ErrorKind
	}
	if job.ErrorMessage != nil {
		resp.ErrorMessage = *job.ErrorMessage
	}
	return resp
}
