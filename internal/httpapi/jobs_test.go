package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/orchestrator"
	"github.com/bitstreamfno/orchestrator/internal/standardize"
)

type stubReporter struct{}

func (stubReporter) Report(ctx context.Context, job domain.Job, status, automationStatus string, canonical *standardize.Canonical) error {
	return nil
}

func noopStandardize(provider domain.Provider, result map[string]any) *standardize.Canonical {
	return &standardize.Canonical{}
}

func newTestAPI(t *testing.T) (http.Handler, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	dir := orchestrator.NewDirectory(nil, time.Second, 3)
	dispatcher := orchestrator.NewDispatcher(store, dir, stubReporter{}, noopStandardize, orchestrator.DispatcherConfig{
		MaxWorkers: 1, BatchSize: 1, WorkerTimeout: time.Second,
	}, nil)
	scheduler := orchestrator.NewScheduler(dispatcher, store, dir, nil, orchestrator.SchedulerConfig{
		QueuePollInterval: time.Hour, WorkerStatusPollInterval: time.Hour, MetricsSampleInterval: time.Hour,
		StaleLeaseInterval: time.Hour, EvidenceCleanupInterval: time.Hour,
	}, nil)

	handler := New(Deps{Store: store, Dispatcher: dispatcher, Scheduler: scheduler}, nil)
	return handler, store
}

func TestCreateJob_Success(t *testing.T) {
	handler, _ := newTestAPI(t)

	body := `{"provider":"mfn","action":"validation","parameters":{"circuit_number":"X1"}}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "mfn", got.Provider)
	assert.Equal(t, "pending", got.Status)
}

func TestCreateJob_InvalidProvider(t *testing.T) {
	handler, _ := newTestAPI(t)

	body := `{"provider":"bogus","action":"validation"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateJob_MalformedBody(t *testing.T) {
	handler, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_NotFound(t *testing.T) {
	handler, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/999", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJob_Found(t *testing.T) {
	handler, store := newTestAPI(t)
	created, err := store.CreateJob(context.Background(), domain.Job{Provider: domain.ProviderOSN, Action: domain.ActionCancellation, Status: domain.StatusPending})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+strconv.FormatInt(created.ID, 10), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
}

func TestCancelJob_NotCancellableWhenTerminal(t *testing.T) {
	handler, store := newTestAPI(t)
	created, err := store.CreateJob(context.Background(), domain.Job{Provider: domain.ProviderMFN, Action: domain.ActionValidation, Status: domain.StatusCompleted})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/jobs/"+strconv.FormatInt(created.ID, 10), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelJob_Success(t *testing.T) {
	handler, store := newTestAPI(t)
	created, err := store.CreateJob(context.Background(), domain.Job{Provider: domain.ProviderMFN, Action: domain.ActionValidation, Status: domain.StatusPending})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/jobs/"+strconv.FormatInt(created.ID, 10), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "cancelled", got.Status)
}
