package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/standardize"
)

// Reporter is the subset of report.Reporter the Dispatcher needs — kept
// as an interface here (consumer-owned) so tests can substitute a stub.
type Reporter interface {
	Report(ctx context.Context, job domain.Job, status, automationStatus string, canonical *standardize.Canonical) error
}

// Standardizer converts a worker's raw result into a canonical shape.
// Implementations select the right per-provider extraction (spec §4.5).
type Standardizer func(provider domain.Provider, result map[string]any) *standardize.Canonical

// DispatcherConfig configures a Dispatcher (spec §4.4, §6.4).
type DispatcherConfig struct {
	MaxWorkers     int           // MAX_WORKERS: bounded task pool size
	BatchSize      int           // BATCH_SIZE: jobs leased per tick
	WorkerTimeout  time.Duration // WORKER_TIMEOUT
	Retry          RetryConfig
}

// Dispatcher implements component D of spec §2: polls the queue, leases
// jobs, submits them to workers, interprets responses, updates state.
type Dispatcher struct {
	store        Store
	directory    *Directory
	reporter     Reporter
	standardize  Standardizer
	cfg          DispatcherConfig
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewDispatcher wires a Dispatcher's collaborators.
func NewDispatcher(store Store, directory *Directory, reporter Reporter, standardizer Standardizer, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:       store,
		directory:   directory,
		reporter:    reporter,
		standardize: standardizer,
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.WorkerTimeout},
		logger:      logger,
	}
}

// RunOnce performs one queue-poll cycle (spec §4.4 steps 1-2): reads a
// batch of eligible jobs and submits each to a bounded worker-pool task.
// Invoked periodically by the Scheduler and on-demand via POST /process.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	jobs, err := d.store.GetPendingJobs(ctx, d.cfg.BatchSize, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("dispatcher: get pending jobs: %w", err)
	}

	sem := make(chan struct{}, max(1, d.cfg.MaxWorkers))
	for _, job := range jobs {
		sem <- struct{}{}
		go func(job domain.Job) {
			defer func() { <-sem }()
			d.dispatchOne(ctx, job)
		}(job)
	}
	// Drain the semaphore so RunOnce doesn't return before in-flight
	// tasks release the store/http resources it owns.
	for i := 0; i < cap(sem); i++ {
		sem <- struct{}{}
	}
	return nil
}

// PollWorkerStatus implements the "Worker-side status polling (passive
// reconciliation)" task of spec §4.4: for every job still dispatching or
// running with a worker assigned, it GETs that worker's per-job status
// endpoint and reconciles state the synchronous /execute call never
// received (e.g. the orchestrator restarted mid-dispatch). Recovered
// from original_source/.../orchestrator.py's poll_worker_job_status.
func (d *Dispatcher) PollWorkerStatus(ctx context.Context) error {
	jobs, err := d.store.ListActiveAssignedJobs(ctx)
	if err != nil {
		return fmt.Errorf("dispatcher: list active assigned jobs: %w", err)
	}
	for _, job := range jobs {
		d.pollOneWorkerStatus(ctx, job)
	}
	return nil
}

// workerStatusResponse is the shape a worker's GET /status/<job_id>
// returns (spec §4.8).
type workerStatusResponse struct {
	JobID  int64          `json:"job_id"`
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
}

func (d *Dispatcher) pollOneWorkerStatus(ctx context.Context, job domain.Job) {
	if job.AssignedWorker == nil {
		return
	}
	endpoint := WorkerEndpoint{ExecuteURL: *job.AssignedWorker}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.StatusURL(job.ID), nil)
	if err != nil {
		d.logger.Error("poll worker status: build request failed", "job_id", job.ID, "error", err)
		return
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("poll worker status: request failed", "job_id", job.ID, "worker", *job.AssignedWorker, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("poll worker status: non-200 response", "job_id", job.ID, "status_code", resp.StatusCode)
		return
	}

	var parsed workerStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		d.logger.Error("poll worker status: decode failed", "job_id", job.ID, "error", err)
		return
	}
	if parsed.JobID != job.ID {
		return
	}

	lockID := ""
	if job.LockID != nil {
		lockID = *job.LockID
	}

	switch parsed.Status {
	case "success", "completed":
		canonical := d.standardize(job.Provider, parsed.Result)
		d.finish(ctx, job, lockID, domain.StatusCompleted, parsed.Result, "success", canonical)
	case "error", "failed":
		canonical := d.standardize(job.Provider, parsed.Result)
		d.finish(ctx, job, lockID, domain.StatusFailed, parsed.Result, "error", canonical)
	case "in_progress":
		// Still running; reconciled again on the next tick.
	case "not_found":
		d.logger.Warn("poll worker status: job not found on assigned worker", "job_id", job.ID, "worker", *job.AssignedWorker)
		d.retryOrTerminal(ctx, job, lockID, map[string]any{"error": "job not found on assigned worker"})
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// dispatchOne implements spec §4.4 steps 3-8 for a single job.
func (d *Dispatcher) dispatchOne(ctx context.Context, job domain.Job) {
	lockID := uuid.NewString()
	acquired, err := d.store.AcquireLock(ctx, job.ID, lockID, time.Now().UTC())
	if err != nil {
		d.logger.Error("acquire lock failed", "job_id", job.ID, "error", err)
		return
	}
	if !acquired {
		d.logger.Debug("lease conflict, skipping", "job_id", job.ID)
		return
	}

	pool := d.directory.AvailablePool(ctx)
	if len(pool) == 0 {
		d.releaseAsError(ctx, job, lockID, map[string]any{"error": "no workers configured"})
		return
	}
	endpoint, _ := Select(pool, job.ID)

	worker := endpoint.ExecuteURL
	if err := d.store.UpdateJobStatus(ctx, UpdateJobStatusParams{
		JobID:          job.ID,
		NewStatus:      domain.StatusDispatching,
		AssignedWorker: &worker,
		HistoryDetails: "dispatching to " + worker,
		Now:            time.Now().UTC(),
	}); err != nil {
		d.logger.Error("status update to dispatching failed", "job_id", job.ID, "error", err)
	}

	payload := d.buildPayload(job)
	result, workerErr := d.postToWorker(ctx, endpoint, job, payload)
	d.interpret(ctx, job, lockID, endpoint, result, workerErr)
}

func (d *Dispatcher) buildPayload(job domain.Job) map[string]any {
	params := make(map[string]any, len(job.Parameters)+1)
	for k, v := range job.Parameters {
		params[k] = v
	}
	if job.ExternalJobID != nil {
		params["external_job_id"] = *job.ExternalJobID
	}
	return map[string]any{
		"job_id":     job.ID,
		"provider":   string(job.Provider),
		"action":     string(job.Action),
		"parameters": params,
	}
}

// workerResponse is the shape a worker's /execute endpoint returns (spec
// §4.8).
type workerResponse struct {
	Status string         `json:"status"`
	JobID  int64          `json:"job_id"`
	Result map[string]any `json:"result"`
}

func (d *Dispatcher) postToWorker(ctx context.Context, endpoint WorkerEndpoint, job domain.Job, payload map[string]any) (*workerResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var parsed workerResponse
	err = WithTransportRetry(ctx, d.cfg.Retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.ExecuteURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, breakerErr := d.directory.Breaker(endpoint.ExecuteURL).Execute(func() (any, error) {
			return d.httpClient.Do(req)
		})
		if breakerErr != nil {
			return Transient(breakerErr)
		}
		httpResp := resp.(*http.Response)
		defer httpResp.Body.Close()

		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			return fmt.Errorf("worker returned %d", httpResp.StatusCode)
		}
		return json.NewDecoder(httpResp.Body).Decode(&parsed)
	})
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// interpret classifies the worker response and advances the job state
// machine (spec §4.4 step 8).
func (d *Dispatcher) interpret(ctx context.Context, job domain.Job, lockID string, endpoint WorkerEndpoint, resp *workerResponse, transportErr error) {
	if transportErr != nil {
		d.retryOrTerminal(ctx, job, lockID, map[string]any{"error": transportErr.Error()})
		return
	}

	canonical := d.standardize(job.Provider, resp.Result)

	failureKind := ""
	if resp.Status == "error" {
		failureKind = "error"
	} else if statusVal, ok := resp.Result["status"]; ok {
		if s, ok := statusVal.(string); ok && s == "failure" {
			failureKind = "failure"
		}
	}

	if failureKind != "" {
		job.Status = domain.StatusFailed
		d.finish(ctx, job, lockID, domain.StatusFailed, resp.Result, failureKind, canonical)
		return
	}

	job.Status = domain.StatusCompleted
	d.finish(ctx, job, lockID, domain.StatusCompleted, resp.Result, "success", canonical)
}

func (d *Dispatcher) finish(ctx context.Context, job domain.Job, lockID string, newStatus domain.Status, result map[string]any, automationStatus string, canonical *standardize.Canonical) {
	if _, err := d.store.ReleaseLock(ctx, job.ID, lockID, newStatus); err != nil {
		d.logger.Error("release lock failed", "job_id", job.ID, "error", err)
	}
	if err := d.store.UpdateJobStatus(ctx, UpdateJobStatusParams{
		JobID:          job.ID,
		NewStatus:      newStatus,
		Result:         result,
		HistoryDetails: automationStatus,
		Now:            time.Now().UTC(),
	}); err != nil {
		d.logger.Error("status update failed", "job_id", job.ID, "error", err)
	}

	externalStatus := standardize.DecideStatus(job.Action, newStatus == domain.StatusCompleted, job.Provider, canonical)
	if err := d.reporter.Report(ctx, job, externalStatus, automationStatus, canonical); err != nil {
		d.logger.Warn("external report failed", "job_id", job.ID, "error", err)
	}
}

func (d *Dispatcher) retryOrTerminal(ctx context.Context, job domain.Job, lockID string, errResult map[string]any) {
	decision := DecideRetry(job.RetryCount, job.MaxRetries, d.cfg.Retry, time.Now().UTC())

	newStatus := domain.StatusError
	if decision.Retry {
		newStatus = domain.StatusRetryPending
		errResult["retry"] = decision.RetryCount
		errResult["max_retries"] = job.MaxRetries
	} else {
		errResult["retries_exhausted"] = true
	}

	if _, err := d.store.ReleaseLock(ctx, job.ID, lockID, newStatus); err != nil {
		d.logger.Error("release lock failed", "job_id", job.ID, "error", err)
	}
	retryCount := decision.RetryCount
	if err := d.store.UpdateJobStatus(ctx, UpdateJobStatusParams{
		JobID:          job.ID,
		NewStatus:      newStatus,
		Result:         errResult,
		HistoryDetails: fmt.Sprintf("retry=%v", decision.Retry),
		Now:            time.Now().UTC(),
		RetryCount:     &retryCount,
		ScheduledFor:   decision.ScheduledFor,
	}); err != nil {
		d.logger.Error("status update failed", "job_id", job.ID, "error", err)
	}

	if !decision.Retry {
		externalStatus := standardize.DecideStatus(job.Action, false, job.Provider, nil)
		if err := d.reporter.Report(ctx, job, externalStatus, "error", nil); err != nil {
			d.logger.Warn("external report failed", "job_id", job.ID, "error", err)
		}
	}
}

// Cancel implements the API-initiated cancellation path (spec §4.9
// DELETE /jobs/{id}, §5 "cooperative cancellation"): flips status,
// releases any held lease, writes a cancellation marker into result, and
// fires the external report. Returns domain.ErrNotCancellable if the
// job's current status doesn't permit it.
func (d *Dispatcher) Cancel(ctx context.Context, jobID int64) (domain.Job, error) {
	job, err := d.store.GetJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if !job.Status.IsCancellable() {
		return domain.Job{}, domain.ErrNotCancellable
	}

	now := time.Now().UTC()
	if job.LockID != nil {
		if _, err := d.store.ReleaseLock(ctx, job.ID, *job.LockID, domain.StatusCancelled); err != nil {
			d.logger.Error("release lock on cancel failed", "job_id", job.ID, "error", err)
		}
	}

	result := map[string]any{"cancelled": true, "cancelled_at": now.Format(time.RFC3339)}
	if err := d.store.UpdateJobStatus(ctx, UpdateJobStatusParams{
		JobID:          job.ID,
		NewStatus:      domain.StatusCancelled,
		Result:         result,
		HistoryDetails: "cancelled via API",
		Now:            now,
	}); err != nil {
		return domain.Job{}, fmt.Errorf("cancel: update status: %w", err)
	}

	job.Status = domain.StatusCancelled
	externalStatus := standardize.DecideStatus(job.Action, false, job.Provider, nil)
	if err := d.reporter.Report(ctx, job, externalStatus, "cancelled", nil); err != nil {
		d.logger.Warn("external report failed", "job_id", job.ID, "error", err)
	}

	return d.store.GetJob(ctx, jobID)
}

func (d *Dispatcher) releaseAsError(ctx context.Context, job domain.Job, lockID string, result map[string]any) {
	if _, err := d.store.ReleaseLock(ctx, job.ID, lockID, domain.StatusError); err != nil {
		d.logger.Error("release lock failed", "job_id", job.ID, "error", err)
	}
	if err := d.store.UpdateJobStatus(ctx, UpdateJobStatusParams{
		JobID:          job.ID,
		NewStatus:      domain.StatusError,
		Result:         result,
		HistoryDetails: "no workers configured",
		Now:            time.Now().UTC(),
	}); err != nil {
		d.logger.Error("status update failed", "job_id", job.ID, "error", err)
	}
}
