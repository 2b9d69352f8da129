package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitstreamfno/orchestrator/internal/domain"
)

func TestGetMetrics_ReturnsCurrentAndSamples(t *testing.T) {
	handler, store := newTestAPI(t)
	store.samples = []domain.MetricSample{{Queued: 3, Running: 1}}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current"`)
	assert.Contains(t, rec.Body.String(), `"samples"`)
}
