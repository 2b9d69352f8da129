// Package sql implements the dual PostgreSQL/SQLite backend for
// orchestrator.Store over database/sql, with goose-managed embedded
// migrations (spec §4.1, §6.5; design note spec §9 — row-level
// conditional updates instead of a lock table or distributed store).
package sql

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/evidence"
	"github.com/bitstreamfno/orchestrator/internal/orchestrator"
)

// Store implements orchestrator.Store over a database/sql pool. The
// same query text runs against both backends; rebind translates the
// portable "?" placeholder style into pgx's "$n" style when needed.
type Store struct {
	db     *sql.DB
	driver string

	// blobs mirrors screenshot bytes into the filesystem/GCS evidence
	// layout the retention cleanup sweep walks (spec §6.5 "Evidence
	// files live under <EVIDENCE_DIR>/job_<id>/…"). The job_screenshots
	// row remains the authoritative copy; a blob-store write failure is
	// logged, not fatal (spec §9 design note).
	blobs evidence.Store
}

// NewStoreFromDB wraps an already-open, already-migrated connection
// pool. driver is "pgx" or "sqlite" (as passed to sql.Open).
func NewStoreFromDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// WithEvidenceStore attaches the blob store screenshots are mirrored
// into on save. Returns s for chaining at construction time.
func (s *Store) WithEvidenceStore(blobs evidence.Store) *Store {
	s.blobs = blobs
	return s
}

func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites "?" placeholders into "$1", "$2", ... for the pgx
// driver; sqlite consumes "?" natively.
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func unmarshalJSONMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func unmarshalJSONStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s []string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateJob persists a validated job descriptor (spec §4.1 create_job).
func (s *Store) CreateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	paramsJSON, err := marshalJSON(job.Parameters)
	if err != nil {
		return domain.Job{}, fmt.Errorf("marshal parameters: %w", err)
	}
	now := time.Now().UTC()

	row := s.queryRow(ctx, `
		INSERT INTO job_queue
			(external_job_id, provider, action, parameters, priority, retry_count,
			 max_retries, scheduled_for, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at`,
		job.ExternalJobID, string(job.Provider), string(job.Action), paramsJSON,
		job.Priority, job.MaxRetries, job.ScheduledFor, string(domain.StatusPending), now, now)

	if err := row.Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return domain.Job{}, fmt.Errorf("create job: %w", err)
	}
	job.Status = domain.StatusPending

	if err := s.AppendHistory(ctx, job.ID, string(domain.StatusPending), "job created", now); err != nil {
		return domain.Job{}, fmt.Errorf("create job: history: %w", err)
	}
	return job, nil
}

const jobColumns = `id, external_job_id, provider, action, parameters, priority, retry_count,
	max_retries, scheduled_for, status, assigned_worker, lock_id, locked_at,
	created_at, updated_at, started_at, completed_at, result, evidence`

func scanJob(row interface{ Scan(...any) error }) (domain.Job, error) {
	var j domain.Job
	var provider, action, status string
	var paramsRaw, resultRaw, evidenceRaw []byte
	var scheduledFor, lockedAt, startedAt, completedAt sql.NullTime
	var externalJobID, assignedWorker, lockID sql.NullString

	if err := row.Scan(
		&j.ID, &externalJobID, &provider, &action, &paramsRaw, &j.Priority, &j.RetryCount,
		&j.MaxRetries, &scheduledFor, &status, &assignedWorker, &lockID, &lockedAt,
		&j.CreatedAt, &j.UpdatedAt, &startedAt, &completedAt, &resultRaw, &evidenceRaw,
	); err != nil {
		return domain.Job{}, err
	}

	j.Provider = domain.Provider(provider)
	j.Action = domain.Action(action)
	j.Status = domain.Status(status)
	if externalJobID.Valid {
		j.ExternalJobID = &externalJobID.String
	}
	if assignedWorker.Valid {
		j.AssignedWorker = &assignedWorker.String
	}
	if lockID.Valid {
		j.LockID = &lockID.String
	}
	if scheduledFor.Valid {
		j.ScheduledFor = &scheduledFor.Time
	}
	if lockedAt.Valid {
		j.LockedAt = &lockedAt.Time
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}

	params, err := unmarshalJSONMap(paramsRaw)
	if err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal parameters: %w", err)
	}
	j.Parameters = params
	result, err := unmarshalJSONMap(resultRaw)
	if err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal result: %w", err)
	}
	j.Result = result
	evidence, err := unmarshalJSONStrings(evidenceRaw)
	if err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal evidence: %w", err)
	}
	j.Evidence = evidence

	return j, nil
}

func (s *Store) GetJob(ctx context.Context, id int64) (domain.Job, error) {
	row := s.queryRow(ctx, `SELECT `+jobColumns+` FROM job_queue WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs matching an optional status filter, newest-first
// with offset/limit pagination (spec §4.9).
func (s *Store) ListJobs(ctx context.Context, status *domain.Status, limit, offset int) ([]domain.Job, int, error) {
	where := ""
	args := []any{}
	if status != nil {
		where = "WHERE status = ?"
		args = append(args, string(*status))
	}

	var total int
	if err := s.queryRow(ctx, `SELECT count(*) FROM job_queue `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list jobs: count: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := s.query(ctx, `SELECT `+jobColumns+` FROM job_queue `+where+`
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list jobs: scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// GetPendingJobs selects eligible jobs for dispatch: pending, or
// retry_pending due, AND unlocked, ordered by priority DESC then
// created_at ASC (spec §4.1).
func (s *Store) GetPendingJobs(ctx context.Context, limit int, now time.Time) ([]domain.Job, error) {
	rows, err := s.query(ctx, `
		SELECT `+jobColumns+` FROM job_queue
		WHERE lock_id IS NULL
		  AND (status = ? OR (status = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)))
		ORDER BY priority DESC, created_at ASC
		LIMIT ?`,
		string(domain.StatusPending), string(domain.StatusRetryPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("get pending jobs: scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListActiveAssignedJobs returns jobs still running/dispatching with a
// worker assigned, for the passive-reconciliation status poll (spec
// §4.4 "Worker-side status polling").
func (s *Store) ListActiveAssignedJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.query(ctx, `
		SELECT `+jobColumns+` FROM job_queue
		WHERE status IN (?, ?) AND assigned_worker IS NOT NULL`,
		string(domain.StatusRunning), string(domain.StatusDispatching))
	if err != nil {
		return nil, fmt.Errorf("list active assigned jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list active assigned jobs: scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// AcquireLock is the conditional lease acquisition: succeeds only while
// lock_id is currently NULL and the job is still in a leaseable status
// (spec §4.1 acquire_lock — no lock table, a row-level conditional
// UPDATE instead, per the design note in spec §9).
func (s *Store) AcquireLock(ctx context.Context, jobID int64, lockID string, now time.Time) (bool, error) {
	res, err := s.exec(ctx, `
		UPDATE job_queue
		SET lock_id = ?, locked_at = ?, updated_at = ?
		WHERE id = ? AND lock_id IS NULL AND status IN (?, ?)`,
		lockID, now, now, jobID, string(domain.StatusPending), string(domain.StatusRetryPending))
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock: rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseLock clears a lease and applies newStatus, succeeding only if
// the caller still holds lockID (spec §4.1 release_lock).
func (s *Store) ReleaseLock(ctx context.Context, jobID int64, lockID string, newStatus domain.Status) (bool, error) {
	now := time.Now().UTC()
	var completedAt any
	if newStatus.IsTerminal() {
		completedAt = now
	}
	var startedAtClause string
	if newStatus == domain.StatusRunning {
		startedAtClause = ", started_at = COALESCE(started_at, ?)"
	}

	query := `
		UPDATE job_queue
		SET lock_id = NULL, status = ?, updated_at = ?, completed_at = COALESCE(?, completed_at)` +
		startedAtClause + `
		WHERE id = ? AND lock_id = ?`

	args := []any{string(newStatus), now, completedAt}
	if startedAtClause != "" {
		args = append(args, now)
	}
	args = append(args, jobID, lockID)

	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lock: rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdateJobStatus writes a status transition, the corresponding history
// row, sets started_at/completed_at on first crossing, and extracts a
// worker-embedded screenshot_data payload into job_screenshots before
// storing the trimmed result (spec §4.1 update_job_status).
func (s *Store) UpdateJobStatus(ctx context.Context, params orchestrator.UpdateJobStatusParams) error {
	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result := params.Result
	var shots []domain.RawScreenshot
	if result != nil {
		if raw, ok := result["screenshot_data"]; ok {
			shots = parseRawScreenshots(raw)
			result = cloneWithout(result, "screenshot_data")
		}
	}

	resultJSON, err := marshalJSON(result)
	if err != nil {
		return fmt.Errorf("update job status: marshal result: %w", err)
	}

	setClauses := []string{"status = ?", "updated_at = ?"}
	args := []any{string(params.NewStatus), now}

	if result != nil {
		setClauses = append(setClauses, "result = ?")
		args = append(args, resultJSON)
	}
	if params.AssignedWorker != nil {
		setClauses = append(setClauses, "assigned_worker = ?")
		args = append(args, *params.AssignedWorker)
	}
	if params.RetryCount != nil {
		setClauses = append(setClauses, "retry_count = ?")
		args = append(args, *params.RetryCount)
	}
	if !params.ScheduledFor.IsZero() {
		setClauses = append(setClauses, "scheduled_for = ?")
		args = append(args, params.ScheduledFor)
	}
	if params.NewStatus == domain.StatusRunning {
		setClauses = append(setClauses, "started_at = COALESCE(started_at, ?)")
		args = append(args, now)
	}
	if params.NewStatus.IsTerminal() {
		setClauses = append(setClauses, "completed_at = COALESCE(completed_at, ?)")
		args = append(args, now)
	}

	where := "WHERE id = ?"
	if params.LockID != nil {
		// Combine the lease release with this status write so a caller
		// doesn't need a separate ReleaseLock round trip (spec §4.1
		// update_job_status, called from the Dispatcher's terminal path).
		setClauses = append(setClauses, "lock_id = NULL")
		where += " AND lock_id = ?"
	}

	args = append(args, params.JobID)
	query := `UPDATE job_queue SET ` + strings.Join(setClauses, ", ") + ` ` + where
	if params.LockID != nil {
		args = append(args, *params.LockID)
	}
	if _, err := s.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	details := domain.TruncateDetails(params.HistoryDetails)
	if err := s.AppendHistory(ctx, params.JobID, string(params.NewStatus), details, now); err != nil {
		return fmt.Errorf("update job status: history: %w", err)
	}

	if len(shots) > 0 {
		if err := s.SaveScreenshots(ctx, params.JobID, shots); err != nil {
			return fmt.Errorf("update job status: screenshots: %w", err)
		}
	}
	return nil
}

func cloneWithout(m map[string]any, drop string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == drop {
			continue
		}
		out[k] = v
	}
	return out
}

// parseRawScreenshots decodes a worker's embedded result.screenshot_data
// array (spec §4.4 "Screenshot extraction") into domain.RawScreenshot.
func parseRawScreenshots(raw any) []domain.RawScreenshot {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]domain.RawScreenshot, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		shot := domain.RawScreenshot{
			Name:        stringField(m, "name"),
			Base64Data:  stringField(m, "image_data"),
			MimeType:    stringField(m, "mime_type"),
			Description: stringField(m, "description"),
		}
		if shot.Valid() {
			out = append(out, shot)
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// RecoverStaleLocks reclaims leases held longer than maxAge (spec §4.1
// recover_stale_locks): unlocked and returned to retry_pending/error via
// the same Retry Controller decision the Dispatcher uses for transport
// failures, since a stale lease is itself evidence of a crashed task.
func (s *Store) RecoverStaleLocks(ctx context.Context, maxAge time.Duration, now time.Time) ([]domain.Job, error) {
	cutoff := now.Add(-maxAge)
	rows, err := s.query(ctx, `SELECT `+jobColumns+` FROM job_queue WHERE lock_id IS NOT NULL AND locked_at <= ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("recover stale locks: %w", err)
	}
	var stale []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("recover stale locks: scan: %w", err)
		}
		stale = append(stale, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := range stale {
		n := j.RetryCount + 1
		newStatus := domain.StatusError
		if n < j.MaxRetries {
			newStatus = domain.StatusRetryPending
		}
		if _, err := s.exec(ctx, `
			UPDATE job_queue
			SET lock_id = NULL, locked_at = NULL, status = ?, retry_count = ?, updated_at = ?
			WHERE id = ? AND lock_id = ?`,
			string(newStatus), n, now, j.ID, *j.LockID); err != nil {
			return nil, fmt.Errorf("recover stale locks: release %d: %w", j.ID, err)
		}
		if err := s.AppendHistory(ctx, j.ID, string(newStatus), "stale lease recovered", now); err != nil {
			return nil, fmt.Errorf("recover stale locks: history %d: %w", j.ID, err)
		}
		stale[i].Status = newStatus
		stale[i].RetryCount = n
		stale[i].LockID = nil
	}
	return stale, nil
}

// SaveScreenshots persists screenshot metadata, skipping duplicates of
// an existing (job_id, name) pair (spec §4.1 save_screenshots, §3.3).
func (s *Store) SaveScreenshots(ctx context.Context, jobID int64, shots []domain.RawScreenshot) error {
	for _, shot := range shots {
		if !shot.Valid() {
			continue
		}
		data, err := decodeScreenshot(shot.Base64Data)
		if err != nil {
			return fmt.Errorf("save screenshots: decode %q: %w", shot.Name, err)
		}
		mimeType := shot.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		_, err = s.exec(ctx, `
			INSERT INTO job_screenshots (job_id, name, mime_type, description, timestamp, image_data)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (job_id, name) DO NOTHING`,
			jobID, shot.Name, mimeType, shot.Description, time.Now().UTC(), data)
		if err != nil {
			return fmt.Errorf("save screenshots: insert %q: %w", shot.Name, err)
		}

		if s.blobs != nil {
			if err := s.blobs.Put(ctx, evidence.JobKey(jobID, shot.Name), data, mimeType); err != nil {
				slog.ErrorContext(ctx, "evidence blob mirror failed", "job_id", jobID, "name", shot.Name, "error", err)
			}
		}
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, jobID int64, status, details string, timestamp time.Time) error {
	_, err := s.exec(ctx, `
		INSERT INTO job_history (job_id, status, timestamp, details) VALUES (?, ?, ?, ?)`,
		jobID, status, timestamp, domain.TruncateDetails(details))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, jobID int64) ([]domain.HistoryEntry, error) {
	rows, err := s.query(ctx, `
		SELECT id, job_id, status, timestamp, details FROM job_history
		WHERE job_id = ? ORDER BY timestamp ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Status, &e.Timestamp, &e.Details); err != nil {
			return nil, fmt.Errorf("list history: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) ListScreenshots(ctx context.Context, jobID int64, includeData bool) ([]domain.Screenshot, error) {
	cols := "id, job_id, name, mime_type, description, timestamp"
	if includeData {
		cols += ", image_data"
	}
	rows, err := s.query(ctx, `SELECT `+cols+` FROM job_screenshots WHERE job_id = ? ORDER BY timestamp ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close()

	var shots []domain.Screenshot
	for rows.Next() {
		var sc domain.Screenshot
		var err error
		if includeData {
			err = rows.Scan(&sc.ID, &sc.JobID, &sc.Name, &sc.MimeType, &sc.Description, &sc.Timestamp, &sc.ImageData)
		} else {
			err = rows.Scan(&sc.ID, &sc.JobID, &sc.Name, &sc.MimeType, &sc.Description, &sc.Timestamp)
		}
		if err != nil {
			return nil, fmt.Errorf("list screenshots: scan: %w", err)
		}
		shots = append(shots, sc)
	}
	return shots, rows.Err()
}

func (s *Store) RecordMetricSample(ctx context.Context, sample domain.MetricSample) error {
	workerStatusJSON, err := marshalJSON(sample.WorkerStatus)
	if err != nil {
		return fmt.Errorf("record metric sample: marshal worker status: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO system_metrics
			(timestamp, queued, running, completed, failed, worker_status,
			 total_jobs_all_time, avg_processing_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.Timestamp, sample.Queued, sample.Running, sample.Completed, sample.Failed,
		workerStatusJSON, sample.TotalJobsAllTime, sample.AvgProcessingSeconds)
	if err != nil {
		return fmt.Errorf("record metric sample: %w", err)
	}
	return nil
}

func (s *Store) RecentMetricSamples(ctx context.Context, n int) ([]domain.MetricSample, error) {
	rows, err := s.query(ctx, `
		SELECT id, timestamp, queued, running, completed, failed, worker_status,
		       total_jobs_all_time, avg_processing_seconds
		FROM system_metrics ORDER BY timestamp DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("recent metric samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.MetricSample
	for rows.Next() {
		var m domain.MetricSample
		var workerStatusRaw []byte
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Queued, &m.Running, &m.Completed, &m.Failed,
			&workerStatusRaw, &m.TotalJobsAllTime, &m.AvgProcessingSeconds); err != nil {
			return nil, fmt.Errorf("recent metric samples: scan: %w", err)
		}
		var ws map[string]string
		if len(workerStatusRaw) > 0 && string(workerStatusRaw) != "null" {
			if err := json.Unmarshal(workerStatusRaw, &ws); err != nil {
				return nil, fmt.Errorf("recent metric samples: unmarshal worker status: %w", err)
			}
		}
		m.WorkerStatus = ws
		samples = append(samples, m)
	}
	return samples, rows.Err()
}

// JobCounts returns current queue-depth bucket counts (spec §3.4, §4.7).
func (s *Store) JobCounts(ctx context.Context) (queued, running, completed, failed int, err error) {
	row := s.queryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status IN (?, ?)),
			count(*) FILTER (WHERE status IN (?, ?)),
			count(*) FILTER (WHERE status = ?),
			count(*) FILTER (WHERE status IN (?, ?))
		FROM job_queue`,
		string(domain.StatusPending), string(domain.StatusRetryPending),
		string(domain.StatusDispatching), string(domain.StatusRunning),
		string(domain.StatusCompleted),
		string(domain.StatusFailed), string(domain.StatusError))
	if err = row.Scan(&queued, &running, &completed, &failed); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("job counts: %w", err)
	}
	return queued, running, completed, failed, nil
}

func (s *Store) FindAPIUserByUsername(ctx context.Context, username string) (domain.APIUser, error) {
	row := s.queryRow(ctx, `
		SELECT id, username, password_hash, disabled, last_login
		FROM api_users WHERE username = ?`, username)

	var u domain.APIUser
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.HashedPassword, &u.Disabled, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.APIUser{}, domain.ErrNotFound
		}
		return domain.APIUser{}, fmt.Errorf("find api user: %w", err)
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return u, nil
}

// CompletedJobIDsBefore returns ids of terminal jobs completed before
// cutoff, for the evidence retention sweep (spec §6.5).
func (s *Store) CompletedJobIDsBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := s.query(ctx, `
		SELECT id FROM job_queue
		WHERE status IN (?, ?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(domain.StatusCompleted), string(domain.StatusFailed),
		string(domain.StatusError), string(domain.StatusCancelled), cutoff)
	if err != nil {
		return nil, fmt.Errorf("completed job ids before: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("completed job ids before: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// decodeScreenshot accepts both standard and raw (no-padding) base64, as
// worker implementations vary (spec §4.4 "Screenshot extraction").
func decodeScreenshot(encoded string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(encoded)
}
