// Package integration exercises the orchestrator end-to-end: a real
// SQLite-backed Store, a real Dispatcher/Directory, and a workersim
// fixture standing in for the Worker Service (spec.md §4.8).
package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/orchestrator"
	"github.com/bitstreamfno/orchestrator/internal/standardize"
	"github.com/bitstreamfno/orchestrator/internal/storage/sql"
	"github.com/bitstreamfno/orchestrator/internal/workersim"
)

type recordingReporter struct {
	calls []string
}

func (r *recordingReporter) Report(ctx context.Context, job domain.Job, status, automationStatus string, canonical *standardize.Canonical) error {
	r.calls = append(r.calls, status)
	return nil
}

func newTestStore(t *testing.T) *sql.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "orchestrator.db")
	store, err := sql.NewSQLiteStore(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDispatcher_RunOnce_ExecutesAgainstWorkerSim(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	worker := workersim.New()
	defer worker.Close()

	job, err := store.CreateJob(ctx, domain.Job{
		Provider:   domain.ProviderMFN,
		Action:     domain.ActionValidation,
		Parameters: map[string]any{"circuit_number": "CKT-1"},
		MaxRetries: 3,
	})
	require.NoError(t, err)

	worker.QueueResult(job.ID, "success", map[string]any{
		"details": map[string]any{
			"service_found":      true,
			"has_active_service": true,
			"is_active":          true,
		},
	})

	directory := orchestrator.NewDirectory(
		[]orchestrator.WorkerEndpoint{{ExecuteURL: worker.ExecuteURL()}},
		time.Second, 3,
	)
	reporter := &recordingReporter{}
	dispatcher := orchestrator.NewDispatcher(store, directory, reporter, standardize.Extract, orchestrator.DispatcherConfig{
		MaxWorkers:    2,
		BatchSize:     10,
		WorkerTimeout: 5 * time.Second,
		Retry: orchestrator.RetryConfig{
			TransportMaxAttempts: 1,
			TransportBaseDelay:   10 * time.Millisecond,
			TransportMaxDelay:    time.Second,
			RetryDelay:           time.Second,
		},
	}, nil)

	require.NoError(t, dispatcher.RunOnce(ctx))

	// RunOnce fans dispatch out onto goroutines; poll briefly for the
	// terminal state rather than assuming synchronous completion.
	var got domain.Job
	require.Eventually(t, func() bool {
		got, err = store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		return got.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Nil(t, got.LockID)
	require.Len(t, reporter.calls, 1)
}

func TestDispatcher_RunOnce_WorkerErrorMarksFailed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	worker := workersim.New()
	defer worker.Close()

	job, err := store.CreateJob(ctx, domain.Job{
		Provider:   domain.ProviderMFN,
		Action:     domain.ActionValidation,
		Parameters: map[string]any{"circuit_number": "CKT-2"},
		MaxRetries: 3,
	})
	require.NoError(t, err)

	worker.QueueResult(job.ID, "error", map[string]any{"message": "adapter failed"})

	directory := orchestrator.NewDirectory(
		[]orchestrator.WorkerEndpoint{{ExecuteURL: worker.ExecuteURL()}},
		time.Second, 3,
	)
	reporter := &recordingReporter{}
	dispatcher := orchestrator.NewDispatcher(store, directory, reporter, standardize.Extract, orchestrator.DispatcherConfig{
		MaxWorkers:    2,
		BatchSize:     10,
		WorkerTimeout: 5 * time.Second,
		Retry: orchestrator.RetryConfig{
			TransportMaxAttempts: 1,
			TransportBaseDelay:   10 * time.Millisecond,
			TransportMaxDelay:    time.Second,
			RetryDelay:           time.Second,
		},
	}, nil)

	require.NoError(t, dispatcher.RunOnce(ctx))

	var got domain.Job
	require.Eventually(t, func() bool {
		got, err = store.GetJob(ctx, job.ID)
		require.NoError(t, err)
		return got.Status == domain.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	assert.Nil(t, got.LockID)
	require.Len(t, reporter.calls, 1)
}
