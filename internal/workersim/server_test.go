package workersim

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ExecuteReturnsQueuedResult(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.QueueResult(42, "success", map[string]any{"service_found": true})

	body, _ := json.Marshal(map[string]any{
		"job_id": 42, "provider": "mfn", "action": "validation", "parameters": map[string]any{},
	})
	resp, err := http.Post(srv.ExecuteURL(), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Status string         `json:"status"`
		JobID  int64          `json:"job_id"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, int64(42), out.JobID)
	assert.Equal(t, true, out.Result["service_found"])
}

func TestServer_ExecuteDefaultsToSuccessWhenUnqueued(t *testing.T) {
	srv := New()
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"job_id": 1, "provider": "mfn", "action": "validation", "parameters": map[string]any{}})
	resp, err := http.Post(srv.ExecuteURL(), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_HealthReflectsSetUnhealthy(t *testing.T) {
	srv := New()
	defer srv.Close()
	healthURL := srv.httpSrv.URL + "/health"

	resp, err := http.Get(healthURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv.SetUnhealthy()
	resp, err = http.Get(healthURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_StatusNotFoundForUnknownJob(t *testing.T) {
	srv := New()
	defer srv.Close()

	resp, err := http.Get(srv.httpSrv.URL + "/status/999")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "not_found", out.Status)
}

func TestServer_StatusReflectsPriorExecute(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.QueueResult(7, "error", map[string]any{"message": "boom"})

	body, _ := json.Marshal(map[string]any{"job_id": 7, "provider": "mfn", "action": "validation", "parameters": map[string]any{}})
	resp, err := http.Post(srv.ExecuteURL(), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.httpSrv.URL + "/status/7")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "error", out.Status)
}
