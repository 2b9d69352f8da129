package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/standardize"
)

// fakeStore is a minimal in-memory Store sufficient to exercise the
// Dispatcher's happy and error paths without a database.
type fakeStore struct {
	mu      sync.Mutex
	jobs    map[int64]domain.Job
	pending []domain.Job
	history []string
}

func newFakeStore(jobs ...domain.Job) *fakeStore {
	s := &fakeStore{jobs: make(map[int64]domain.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
		s.pending = append(s.pending, j)
	}
	return s
}

func (s *fakeStore) CreateJob(ctx context.Context, job domain.Job) (domain.Job, error) { return job, nil }
func (s *fakeStore) GetJob(ctx context.Context, id int64) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id], nil
}
func (s *fakeStore) ListJobs(ctx context.Context, status *domain.Status, limit, offset int) ([]domain.Job, int, error) {
	return nil, 0, nil
}
func (s *fakeStore) GetPendingJobs(ctx context.Context, limit int, now time.Time) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out, nil
}
func (s *fakeStore) AcquireLock(ctx context.Context, jobID int64, lockID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[jobID]
	if j.LockID != nil {
		return false, nil
	}
	j.LockID = &lockID
	s.jobs[jobID] = j
	return true, nil
}
func (s *fakeStore) ReleaseLock(ctx context.Context, jobID int64, lockID string, newStatus domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[jobID]
	j.LockID = nil
	j.Status = newStatus
	s.jobs[jobID] = j
	return true, nil
}
func (s *fakeStore) UpdateJobStatus(ctx context.Context, params UpdateJobStatusParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[params.JobID]
	j.Status = params.NewStatus
	if params.AssignedWorker != nil {
		j.AssignedWorker = params.AssignedWorker
	}
	if params.Result != nil {
		j.Result = params.Result
	}
	if params.RetryCount != nil {
		j.RetryCount = *params.RetryCount
	}
	if !params.ScheduledFor.IsZero() {
		scheduledFor := params.ScheduledFor
		j.ScheduledFor = &scheduledFor
	}
	s.jobs[params.JobID] = j
	s.history = append(s.history, params.HistoryDetails)
	return nil
}
func (s *fakeStore) RecoverStaleLocks(ctx context.Context, maxAge time.Duration, now time.Time) ([]domain.Job, error) {
	return nil, nil
}
func (s *fakeStore) SaveScreenshots(ctx context.Context, jobID int64, shots []domain.RawScreenshot) error {
	return nil
}
func (s *fakeStore) AppendHistory(ctx context.Context, jobID int64, status, details string, timestamp time.Time) error {
	return nil
}
func (s *fakeStore) ListHistory(ctx context.Context, jobID int64) ([]domain.HistoryEntry, error) {
	return nil, nil
}
func (s *fakeStore) ListScreenshots(ctx context.Context, jobID int64, includeData bool) ([]domain.Screenshot, error) {
	return nil, nil
}
func (s *fakeStore) RecordMetricSample(ctx context.Context, sample domain.MetricSample) error {
	return nil
}
func (s *fakeStore) RecentMetricSamples(ctx context.Context, n int) ([]domain.MetricSample, error) {
	return nil, nil
}
func (s *fakeStore) JobCounts(ctx context.Context) (queued, running, completed, failed int, err error) {
	return 0, 0, 0, 0, nil
}
func (s *fakeStore) FindAPIUserByUsername(ctx context.Context, username string) (domain.APIUser, error) {
	return domain.APIUser{}, nil
}
func (s *fakeStore) CompletedJobIDsBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return nil, nil
}
func (s *fakeStore) ListActiveAssignedJobs(ctx context.Context) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, j := range s.jobs {
		if (j.Status == domain.StatusRunning || j.Status == domain.StatusDispatching) && j.AssignedWorker != nil {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeReporter struct {
	mu       sync.Mutex
	statuses []string
}

func (r *fakeReporter) Report(ctx context.Context, job domain.Job, status, automationStatus string, canonical *standardize.Canonical) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func noopStandardize(provider domain.Provider, result map[string]any) *standardize.Canonical {
	return &standardize.Canonical{ServiceFound: true, IsActive: true}
}

func testDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxWorkers:    4,
		BatchSize:     10,
		WorkerTimeout: 2 * time.Second,
		Retry: RetryConfig{
			TransportMaxAttempts: 1,
			TransportBaseDelay:   time.Millisecond,
			RetryDelay:           time.Minute,
		},
	}
}

func TestDispatcher_SuccessfulRunMarksCompleted(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"job_id": 1,
			"result": map[string]any{"status": "success", "is_active": true},
		})
	}))
	defer worker.Close()

	job := domain.Job{ID: 1, Provider: domain.ProviderMFN, Action: domain.ActionValidation, MaxRetries: 3, Parameters: map[string]any{}}
	store := newFakeStore(job)
	dir := NewDirectory([]WorkerEndpoint{{ExecuteURL: worker.URL + "/execute"}}, time.Second, 3)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, dir, reporter, noopStandardize, testDispatcherConfig(), nil)

	require.NoError(t, d.RunOnce(context.Background()))

	got := store.jobs[1]
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Nil(t, got.LockID)
	require.Len(t, reporter.statuses, 1)
}

func TestDispatcher_InnerFailureMarksFailed(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"job_id": 1,
			"result": map[string]any{"status": "failure", "error": "portal rejected"},
		})
	}))
	defer worker.Close()

	job := domain.Job{ID: 2, Provider: domain.ProviderOSN, Action: domain.ActionCancellation, MaxRetries: 3, Parameters: map[string]any{}}
	store := newFakeStore(job)
	dir := NewDirectory([]WorkerEndpoint{{ExecuteURL: worker.URL + "/execute"}}, time.Second, 3)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, dir, reporter, noopStandardize, testDispatcherConfig(), nil)

	require.NoError(t, d.RunOnce(context.Background()))

	got := store.jobs[2]
	assert.Equal(t, domain.StatusFailed, got.Status)
}

func TestDispatcher_TransportErrorSchedulesRetry(t *testing.T) {
	job := domain.Job{ID: 3, Provider: domain.ProviderMFN, Action: domain.ActionValidation, RetryCount: 0, MaxRetries: 3, Parameters: map[string]any{}}
	store := newFakeStore(job)
	// No live server behind this endpoint: every request fails at the
	// transport layer, and AvailablePool falls back to the full
	// configured list once probing finds nothing healthy.
	dir := NewDirectory([]WorkerEndpoint{{ExecuteURL: "http://127.0.0.1:1/execute"}}, 50*time.Millisecond, 3)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, dir, reporter, noopStandardize, testDispatcherConfig(), nil)

	require.NoError(t, d.RunOnce(context.Background()))

	got := store.jobs[3]
	assert.Equal(t, domain.StatusRetryPending, got.Status)
	assert.Empty(t, reporter.statuses, "no external report until retries are exhausted")
	require.NotNil(t, got.ScheduledFor, "retry_pending job must carry a scheduled_for backoff")
	assert.True(t, got.ScheduledFor.After(time.Now().UTC()), "scheduled_for must be in the future")
	assert.Equal(t, 1, got.RetryCount)
}

func TestDispatcher_CancelReleasesLockAndReports(t *testing.T) {
	lockID := "lease-1"
	job := domain.Job{ID: 5, Provider: domain.ProviderMFN, Action: domain.ActionValidation, Status: domain.StatusRunning, LockID: &lockID, MaxRetries: 3}
	store := newFakeStore(job)
	dir := NewDirectory(nil, time.Second, 3)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, dir, reporter, noopStandardize, testDispatcherConfig(), nil)

	got, err := d.Cancel(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Nil(t, store.jobs[5].LockID)
	require.Len(t, reporter.statuses, 1)
}

func TestDispatcher_CancelRejectsTerminalJob(t *testing.T) {
	job := domain.Job{ID: 6, Provider: domain.ProviderMFN, Action: domain.ActionValidation, Status: domain.StatusCompleted}
	store := newFakeStore(job)
	dir := NewDirectory(nil, time.Second, 3)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, dir, reporter, noopStandardize, testDispatcherConfig(), nil)

	_, err := d.Cancel(context.Background(), 6)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)
}

func TestDispatcher_RetriesExhaustedReportsError(t *testing.T) {
	job := domain.Job{ID: 4, Provider: domain.ProviderMFN, Action: domain.ActionValidation, RetryCount: 2, MaxRetries: 3, Parameters: map[string]any{}}
	store := newFakeStore(job)
	dir := NewDirectory([]WorkerEndpoint{{ExecuteURL: "http://127.0.0.1:1/execute"}}, 50*time.Millisecond, 3)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, dir, reporter, noopStandardize, testDispatcherConfig(), nil)

	require.NoError(t, d.RunOnce(context.Background()))

	got := store.jobs[4]
	assert.Equal(t, domain.StatusError, got.Status)
	require.Len(t, reporter.statuses, 1)
}

func TestDispatcher_PollWorkerStatus_CompletesOnSuccess(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"job_id": 7, "status": "success", "result": map[string]any{"is_active": true},
		})
	}))
	defer worker.Close()

	lockID := "lease-7"
	worker7 := worker.URL + "/execute"
	job := domain.Job{
		ID: 7, Provider: domain.ProviderMFN, Action: domain.ActionValidation,
		Status: domain.StatusDispatching, AssignedWorker: &worker7, LockID: &lockID, MaxRetries: 3,
	}
	store := newFakeStore(job)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, nil, reporter, noopStandardize, testDispatcherConfig(), nil)

	require.NoError(t, d.PollWorkerStatus(context.Background()))

	got := store.jobs[7]
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.Len(t, reporter.statuses, 1)
}

func TestDispatcher_PollWorkerStatus_NotFoundSchedulesRetry(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"job_id": 8, "status": "not_found"})
	}))
	defer worker.Close()

	worker8 := worker.URL + "/execute"
	job := domain.Job{
		ID: 8, Provider: domain.ProviderMFN, Action: domain.ActionValidation,
		Status: domain.StatusDispatching, AssignedWorker: &worker8, MaxRetries: 3,
	}
	store := newFakeStore(job)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, nil, reporter, noopStandardize, testDispatcherConfig(), nil)

	require.NoError(t, d.PollWorkerStatus(context.Background()))

	got := store.jobs[8]
	assert.Equal(t, domain.StatusRetryPending, got.Status)
	require.NotNil(t, got.ScheduledFor)
}

func TestDispatcher_PollWorkerStatus_InProgressLeavesJobUntouched(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"job_id": 9, "status": "in_progress"})
	}))
	defer worker.Close()

	worker9 := worker.URL + "/execute"
	job := domain.Job{
		ID: 9, Provider: domain.ProviderMFN, Action: domain.ActionValidation,
		Status: domain.StatusDispatching, AssignedWorker: &worker9, MaxRetries: 3,
	}
	store := newFakeStore(job)
	reporter := &fakeReporter{}
	d := NewDispatcher(store, nil, reporter, noopStandardize, testDispatcherConfig(), nil)

	require.NoError(t, d.PollWorkerStatus(context.Background()))

	got := store.jobs[9]
	assert.Equal(t, domain.StatusDispatching, got.Status)
	assert.Empty(t, reporter.statuses)
}
