package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/orchestrator"
)

// fakeStore is a minimal in-memory orchestrator.Store sufficient to
// exercise the HTTP handlers without a database.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	jobs    map[int64]domain.Job
	history map[int64][]domain.HistoryEntry
	shots   map[int64][]domain.Screenshot
	samples []domain.MetricSample
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    make(map[int64]domain.Job),
		history: make(map[int64][]domain.HistoryEntry),
		shots:   make(map[int64][]domain.Screenshot),
	}
}

func (s *fakeStore) CreateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	job.ID = s.nextID
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = job
	return job, nil
}

func (s *fakeStore) GetJob(ctx context.Context, id int64) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return j, nil
}

func (s *fakeStore) ListJobs(ctx context.Context, status *domain.Status, limit, offset int) ([]domain.Job, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, j := range s.jobs {
		if status == nil || j.Status == *status {
			out = append(out, j)
		}
	}
	return out, len(out), nil
}

func (s *fakeStore) GetPendingJobs(ctx context.Context, limit int, now time.Time) ([]domain.Job, error) {
	return nil, nil
}

func (s *fakeStore) AcquireLock(ctx context.Context, jobID int64, lockID string, now time.Time) (bool, error) {
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

func (s *fakeStore) UpdateJobStatus(ctx context.Context, params orchestrator.UpdateJobStatusParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[params.JobID]
	j.Status = params.NewStatus
	j.UpdatedAt = time.Now().UTC()
	if params.Result != nil {
		j.Result = params.Result
	}
	s.jobs[params.JobID] = j
	s.history[params.JobID] = append(s.history[params.JobID], domain.HistoryEntry{
		JobID: params.JobID, Status: string(params.NewStatus), Timestamp: params.Now, Details: params.HistoryDetails,
	})
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
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[jobID], nil
}

func (s *fakeStore) ListScreenshots(ctx context.Context, jobID int64, includeData bool) ([]domain.Screenshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shots[jobID], nil
}

func (s *fakeStore) RecordMetricSample(ctx context.Context, sample domain.MetricSample) error {
	return nil
}

func (s *fakeStore) RecentMetricSamples(ctx context.Context, n int) ([]domain.MetricSample, error) {
	return s.samples, nil
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
