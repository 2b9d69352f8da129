package httpapi

import (
	"net/http"

	"github.com/bitstreamfno/orchestrator/internal/infrastructure/http/response"
)

// forceProcess triggers an immediate queue poll outside the scheduler's
// regular ticker cadence (spec §4.9 POST /process).
func (a *API) forceProcess(w http.ResponseWriter, r *http.Request) {
	if err := a.dispatch.RunOnce(r.Context()); err != nil {
		a.logger.ErrorContext(r.Context(), "force process failed", "error", err)
		response.Error(w, "INTERNAL_ERROR", "queue poll failed", http.StatusInternalServerError)
		return
	}
	response.OK(w, map[string]string{"status": "processed"})
}

// forceRecover triggers an immediate stale-lease sweep (spec §4.9 POST
// /recover). Admin-gated.
func (a *API) forceRecover(w http.ResponseWriter, r *http.Request) {
	n, err := a.scheduler.RecoverNow(r.Context())
	if err != nil {
		a.logger.ErrorContext(r.Context(), "force recover failed", "error", err)
		response.Error(w, "INTERNAL_ERROR", "stale lease recovery failed", http.StatusInternalServerError)
		return
	}
	response.OK(w, map[string]any{"recovered": n})
}

type schedulerTaskView struct {
	Name       string `json:"name"`
	IntervalMS int64  `json:"interval_ms"`
	Busy       bool   `json:"busy"`
}

// getScheduler returns the scheduler's running state and task list (spec
// §4.9 GET /scheduler).
func (a *API) getScheduler(w http.ResponseWriter, r *http.Request) {
	running, tasks := a.scheduler.Status()
	views := make([]schedulerTaskView, len(tasks))
	for i, t := range tasks {
		views[i] = schedulerTaskView{Name: t.Name, IntervalMS: t.IntervalMS, Busy: t.Busy}
	}
	response.OK(w, map[string]any{"running": running, "tasks": views})
}

// resetScheduler stops and restarts the scheduler with its existing
// configuration (spec §4.7 "Scheduler reset", §4.9 POST
// /scheduler/reset). Admin-gated.
func (a *API) resetScheduler(w http.ResponseWriter, r *http.Request) {
	a.scheduler.Reset(r.Context())
	response.OK(w, map[string]string{"status": "reset"})
}
