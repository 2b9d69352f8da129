// Package httpapi implements the public resource surface of spec §4.9:
// job submission/inspection/cancellation, history, screenshots, metrics,
// and the operational endpoints (force-process, force-recover, scheduler
// introspection/reset). Mounted under /api by
// internal/infrastructure/http.Server.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bitstreamfno/orchestrator/internal/orchestrator"
)

// API bundles the collaborators handlers need: the store for reads, the
// dispatcher for on-demand dispatch/cancellation, and the scheduler for
// introspection/reset.
type API struct {
	store     orchestrator.Store
	dispatch  *orchestrator.Dispatcher
	scheduler *orchestrator.Scheduler
	validate  *validator.Validate
	logger    *slog.Logger
}

// Deps wires the collaborators New requires.
type Deps struct {
	Store      orchestrator.Store
	Dispatcher *orchestrator.Dispatcher
	Scheduler  *orchestrator.Scheduler
	Logger     *slog.Logger
}

// New builds the API's chi router. adminAuth, when non-nil, gates
// POST /scheduler/reset and POST /recover per spec.md's Non-goal scoping
// auth to those two admin operations only.
func New(deps Deps, adminAuth func(http.Handler) http.Handler) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{
		store:     deps.Store,
		dispatch:  deps.Dispatcher,
		scheduler: deps.Scheduler,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Post("/jobs", a.createJob)
	r.Get("/jobs", a.listJobs)
	r.Get("/jobs/{id}", a.getJob)
	r.Patch("/jobs/{id}", a.patchJob)
	r.Delete("/jobs/{id}", a.cancelJob)
	r.Get("/jobs/{id}/screenshots", a.listScreenshots)
	r.Get("/history/{id}", a.getHistory)
	r.Get("/metrics", a.getMetrics)
	r.Post("/process", a.forceProcess)
	r.Get("/scheduler", a.getScheduler)

	r.Group(func(r chi.Router) {
		if adminAuth != nil {
			r.Use(adminAuth)
		}
		r.Post("/scheduler/reset", a.resetScheduler)
		r.Post("/recover", a.forceRecover)
	})

	return r
}
