package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/infrastructure/http/response"
	"github.com/bitstreamfno/orchestrator/internal/orchestrator"
)

// jobRequest is the wire shape of POST /jobs, carrying the
// go-playground/validator tags for the structural checks spec §4.9
// leaves to the implementer (enum membership, priority bounds); the
// deeper semantic validation still runs through domain.NewJobDescriptor.
type jobRequest struct {
	ExternalJobID *string        `json:"external_job_id"`
	Provider      string         `json:"provider" validate:"required,oneof=mfn osn octotel evotel"`
	Action        string         `json:"action" validate:"required,oneof=validation cancellation"`
	Parameters    map[string]any `json:"parameters"`
	Priority      *int           `json:"priority" validate:"omitempty,min=0,max=10"`
	MaxRetries    *int           `json:"max_retries" validate:"omitempty,min=0"`
	ScheduledFor  *time.Time     `json:"scheduled_for"`
}

type jobView struct {
	ID             int64          `json:"id"`
	ExternalJobID  *string        `json:"external_job_id,omitempty"`
	Provider       string         `json:"provider"`
	Action         string         `json:"action"`
	Parameters     map[string]any `json:"parameters"`
	Priority       int            `json:"priority"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
	ScheduledFor   *time.Time     `json:"scheduled_for,omitempty"`
	Status         string         `json:"status"`
	AssignedWorker *string        `json:"assigned_worker,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Result         map[string]any `json:"result,omitempty"`
}

func toJobView(j domain.Job) jobView {
	status := j.Status
	if status == "" {
		status = domain.StatusPending
	}
	return jobView{
		ID:             j.ID,
		ExternalJobID:  j.ExternalJobID,
		Provider:       string(j.Provider),
		Action:         string(j.Action),
		Parameters:     j.Parameters,
		Priority:       j.Priority,
		RetryCount:     j.RetryCount,
		MaxRetries:     j.MaxRetries,
		ScheduledFor:   j.ScheduledFor,
		Status:         string(status),
		AssignedWorker: j.AssignedWorker,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		Result:         j.Result,
	}
}

func (a *API) createJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, "INVALID_BODY", "malformed JSON body", http.StatusBadRequest)
		return
	}

	if err := a.validate.Struct(req); err != nil {
		response.ValidationError(w, firstInvalidField(err), err.Error())
		return
	}

	job, err := domain.NewJobDescriptor{
		ExternalJobID: req.ExternalJobID,
		Provider:      req.Provider,
		Action:        req.Action,
		Parameters:    req.Parameters,
		Priority:      req.Priority,
		MaxRetries:    req.MaxRetries,
		ScheduledFor:  req.ScheduledFor,
	}.Validate()
	if err != nil {
		response.ValidationError(w, "body", err.Error())
		return
	}

	created, err := a.store.CreateJob(r.Context(), job)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "create job failed", "error", err)
		response.Error(w, "INTERNAL_ERROR", "failed to create job", http.StatusInternalServerError)
		return
	}

	response.Created(w, toJobView(created))
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := a.store.GetJob(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	response.OK(w, toJobView(job))
}

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *domain.Status
	if raw := q.Get("status"); raw != "" {
		s, err := domain.NewStatus(raw)
		if err != nil {
			response.ValidationError(w, "status", err.Error())
			return
		}
		status = &s
	}

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.ValidationError(w, "limit", "must be a positive integer")
			return
		}
		limit = n
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.ValidationError(w, "offset", "must be a non-negative integer")
			return
		}
		offset = n
	}

	jobs, total, err := a.store.ListJobs(r.Context(), status, limit, offset)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "list jobs failed", "error", err)
		response.Error(w, "INTERNAL_ERROR", "failed to list jobs", http.StatusInternalServerError)
		return
	}

	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = toJobView(j)
	}
	response.OK(w, map[string]any{"jobs": views, "total": total, "limit": limit, "offset": offset})
}

// patchRequest is the admin PATCH /jobs/{id} body (spec §4.9). It
// carries status and result only; the job's evidence list cannot be
// changed through it.
type patchRequest struct {
	Status *string        `json:"status"`
	Result map[string]any `json:"result"`
}

func (a *API) patchJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, "INVALID_BODY", "malformed JSON body", http.StatusBadRequest)
		return
	}

	job, err := a.store.GetJob(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	newStatus := job.Status
	if req.Status != nil {
		s, err := domain.NewStatus(*req.Status)
		if err != nil {
			response.ValidationError(w, "status", err.Error())
			return
		}
		newStatus = s
	}

	if err := a.store.UpdateJobStatus(r.Context(), orchestratorUpdateParams(id, newStatus, req.Result)); err != nil {
		a.logger.ErrorContext(r.Context(), "patch job failed", "job_id", id, "error", err)
		response.Error(w, "INTERNAL_ERROR", "failed to update job", http.StatusInternalServerError)
		return
	}

	updated, err := a.store.GetJob(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	response.OK(w, toJobView(updated))
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := a.dispatch.Cancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotCancellable) {
			response.Error(w, "NOT_CANCELLABLE", "job is not in a cancellable state", http.StatusBadRequest)
			return
		}
		writeStoreError(w, err)
		return
	}
	response.OK(w, toJobView(job))
}

func parseJobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.Error(w, "INVALID_ID", "job id must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		response.Error(w, "NOT_FOUND", "job not found", http.StatusNotFound)
		return
	}
	response.Error(w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
}

// firstInvalidField extracts the offending field name from a validator
// error for the ValidationError envelope's single-field shape.
func firstInvalidField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field()
	}
	return "body"
}

// orchestratorUpdateParams builds the UpdateJobStatus call for an admin
// PATCH. A non-nil caller-supplied result replaces the stored result
// whole; it is not merged with it.
func orchestratorUpdateParams(jobID int64, status domain.Status, result map[string]any) orchestrator.UpdateJobStatusParams {
	return orchestrator.UpdateJobStatusParams{
		JobID:          jobID,
		NewStatus:      status,
		Result:         result,
		HistoryDetails: "admin update via PATCH /jobs/{id}",
		Now:            time.Now().UTC(),
	}
}
