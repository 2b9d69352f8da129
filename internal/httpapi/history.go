package httpapi

import (
	"net/http"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/infrastructure/http/response"
)

type historyEntryView struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// getHistory returns a job's history rows ascending by timestamp, or a
// synthetic single entry reflecting current status if none exist (spec
// §4.9 GET /history/{id}).
func (a *API) getHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	entries, err := a.store.ListHistory(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(entries) == 0 {
		job, err := a.store.GetJob(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		status := job.Status
		if status == "" {
			status = domain.StatusPending
		}
		response.OK(w, []historyEntryView{{Status: string(status), Timestamp: job.UpdatedAt, Details: "synthetic: no history recorded"}})
		return
	}

	views := make([]historyEntryView, len(entries))
	for i, e := range entries {
		views[i] = historyEntryView{Status: e.Status, Timestamp: e.Timestamp, Details: e.Details}
	}
	response.OK(w, views)
}
