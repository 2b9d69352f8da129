package httpapi

import (
	"net/http"
	"strconv"

	"github.com/bitstreamfno/orchestrator/internal/infrastructure/http/response"
)

// getMetrics returns the most recent metric samples plus current
// queue-depth counts (spec §4.9 GET /metrics).
func (a *API) getMetrics(w http.ResponseWriter, r *http.Request) {
	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	samples, err := a.store.RecentMetricSamples(r.Context(), n)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "recent metric samples failed", "error", err)
		response.Error(w, "INTERNAL_ERROR", "failed to fetch metrics", http.StatusInternalServerError)
		return
	}

	queued, running, completed, failed, err := a.store.JobCounts(r.Context())
	if err != nil {
		a.logger.ErrorContext(r.Context(), "job counts failed", "error", err)
		response.Error(w, "INTERNAL_ERROR", "failed to fetch metrics", http.StatusInternalServerError)
		return
	}

	response.OK(w, map[string]any{
		"current": map[string]int{
			"queued": queued, "running": running, "completed": completed, "failed": failed,
		},
		"samples": samples,
	})
}
