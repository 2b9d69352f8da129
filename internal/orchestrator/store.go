// Package orchestrator implements the dispatch, retry, and scheduling
// engine (spec §1): the job queue lifecycle, the lock-based concurrent
// dispatch loop, the worker polling/health model, and the retry policy.
package orchestrator

import (
	"context"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/domain"
)

// Store is the persistence contract the dispatch/scheduler packages
// depend on. It is owned here (the consumer), not by the storage package
// (Dependency Inversion, mirrored from the teacher's
// application/worker.Repository pattern).
//
// Implementations live in internal/storage/sql (postgres and sqlite
// backed by a shared database/sql schema).
type Store interface {
	// CreateJob persists a validated job descriptor and writes the
	// initial history row (spec §4.1 create_job).
	CreateJob(ctx context.Context, job domain.Job) (domain.Job, error)

	// GetJob fetches one job by internal id.
	GetJob(ctx context.Context, id int64) (domain.Job, error)

	// ListJobs returns jobs matching an optional status filter, ordered
	// newest-first, with offset/limit pagination (spec §4.9).
	ListJobs(ctx context.Context, status *domain.Status, limit, offset int) ([]domain.Job, int, error)

	// GetPendingJobs returns eligible jobs for dispatch: status=pending,
	// or status=retry_pending with scheduled_for <= now, AND lock_id IS
	// NULL, ordered by priority DESC, created_at ASC (spec §4.1).
	GetPendingJobs(ctx context.Context, limit int, now time.Time) ([]domain.Job, error)

	// AcquireLock attempts the conditional lease acquisition (spec §4.1
	// acquire_lock): succeeds iff lock_id is currently NULL and
	// status ∈ {pending, retry_pending}.
	AcquireLock(ctx context.Context, jobID int64, lockID string, now time.Time) (bool, error)

	// ReleaseLock clears a lease and sets newStatus, succeeding only if
	// the caller still holds lockID (spec §4.1 release_lock).
	ReleaseLock(ctx context.Context, jobID int64, lockID string, newStatus domain.Status) (bool, error)

	// UpdateJobStatus writes the fields of a status transition, appends a
	// history row, sets started_at/completed_at on first crossing, and
	// extracts embedded screenshot_data from result before storing it
	// (spec §4.1 update_job_status).
	UpdateJobStatus(ctx context.Context, params UpdateJobStatusParams) error

	// RecoverStaleLocks reclaims leases older than maxAge (spec §4.1
	// recover_stale_locks), returning the jobs that were reclaimed.
	RecoverStaleLocks(ctx context.Context, maxAge time.Duration, now time.Time) ([]domain.Job, error)

	// SaveScreenshots persists screenshot metadata rows, deduplicating by
	// (job_id, name) (spec §4.1 save_screenshots, §3.3).
	SaveScreenshots(ctx context.Context, jobID int64, shots []domain.RawScreenshot) error

	// AppendHistory writes a single history row for jobID.
	AppendHistory(ctx context.Context, jobID int64, status, details string, timestamp time.Time) error

	// ListHistory returns history rows for jobID ascending by timestamp
	// (spec §4.9 GET /history/{id}).
	ListHistory(ctx context.Context, jobID int64) ([]domain.HistoryEntry, error)

	// ListScreenshots returns screenshot metadata for jobID, optionally
	// including image bytes.
	ListScreenshots(ctx context.Context, jobID int64, includeData bool) ([]domain.Screenshot, error)

	// RecordMetricSample persists a periodic snapshot (spec §3.4, §4.7).
	RecordMetricSample(ctx context.Context, sample domain.MetricSample) error

	// RecentMetricSamples returns the last n samples, newest first (spec
	// §4.9 GET /metrics).
	RecentMetricSamples(ctx context.Context, n int) ([]domain.MetricSample, error)

	// JobCounts returns the current queue-depth bucket counts used by
	// metric sampling, the Slack health report and GET /metrics.
	JobCounts(ctx context.Context) (queued, running, completed, failed int, err error)

	// FindAPIUserByUsername looks up a bearer-auth user (spec §3.5).
	FindAPIUserByUsername(ctx context.Context, username string) (domain.APIUser, error)

	// CompletedJobIDsBefore returns ids of terminal jobs whose
	// completed_at predates cutoff, for the evidence retention sweep
	// (spec §6.5 EVIDENCE_RETENTION_DAYS).
	CompletedJobIDsBefore(ctx context.Context, cutoff time.Time) ([]int64, error)

	// ListActiveAssignedJobs returns jobs whose status is running or
	// dispatching and whose assigned_worker is set, for the worker-side
	// status-polling reconciliation task (spec §4.4 "Worker-side status
	// polling (passive reconciliation)").
	ListActiveAssignedJobs(ctx context.Context) ([]domain.Job, error)
}

// UpdateJobStatusParams bundles the fields of a single status-update
// write (spec §4.1 update_job_status), so screenshot extraction and
// history details travel with the same UpdateJobStatus call. The status
// update, history insert and screenshot inserts run as separate
// statements; no transaction encloses them.
type UpdateJobStatusParams struct {
	JobID          int64
	LockID         *string // when set, the update is also a lease release
	NewStatus      domain.Status
	Result         map[string]any
	AssignedWorker *string
	HistoryDetails string
	Now            time.Time

	// RetryCount, when non-nil, overwrites retry_count — set by the
	// Dispatcher's retry path (spec §4.4 Retry Controller).
	RetryCount *int
	// ScheduledFor, when non-zero, overwrites scheduled_for so a
	// retry_pending job isn't re-eligible until RETRY_DELAY has elapsed
	// (spec §4.2, §4.4).
	ScheduledFor time.Time
}
