package orchestrator

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slack-go/slack"

	"github.com/bitstreamfno/orchestrator/internal/domain"
)

// SchedulerConfig carries the six ticker periods of spec §4.7 plus the
// stale-lease threshold and optional Slack health-report webhook.
type SchedulerConfig struct {
	QueuePollInterval        time.Duration // 5s
	WorkerStatusPollInterval time.Duration // 5s
	MetricsSampleInterval    time.Duration // 60s
	StaleLeaseInterval       time.Duration // 10m
	StaleLeaseMaxAge         time.Duration
	EvidenceCleanupInterval  time.Duration // 24h
	EvidenceRetention        time.Duration
	HealthReportInterval     time.Duration // 0 disables
	SlackWebhookURL          string
}

// EvidenceCleaner prunes evidence older than a retention window. Owned
// here (consumer) so the scheduler doesn't depend on the evidence
// package's storage backend choice.
type EvidenceCleaner interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// task is one recurring scheduler job: a ticker plus a busy flag that
// coalesces overlapping runs (max-instances=1, spec §4.7).
type task struct {
	name     string
	interval time.Duration
	busy     atomic.Bool
	run      func(ctx context.Context)
}

// Scheduler drives the recurring dispatch/maintenance tasks of spec §4.7
// via tickers, rather than a cron library — matching the teacher's
// ticker-based recurring-task idiom (internal/recurring).
type Scheduler struct {
	dispatcher *Dispatcher
	store      Store
	directory  *Directory
	cleaner    EvidenceCleaner
	cfg        SchedulerConfig
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler wires a Scheduler's collaborators. cleaner may be nil to
// disable the evidence-cleanup task.
func NewScheduler(dispatcher *Dispatcher, store Store, directory *Directory, cleaner EvidenceCleaner, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		dispatcher: dispatcher,
		store:      store,
		directory:  directory,
		cleaner:    cleaner,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start launches every configured recurring task in its own goroutine.
// Calling Start on an already-running Scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, t := range s.tasks() {
		s.wg.Add(1)
		go s.loop(runCtx, t)
	}
}

// Stop cancels all running tasks and waits for them to exit. Reset calls
// Stop then Start, rebuilding tickers from the SchedulerConfig the
// Scheduler was constructed with.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Reset stops and restarts the scheduler, rebuilding its task list and
// tickers; the configuration is the one given to NewScheduler, which
// nothing changes afterwards.
func (s *Scheduler) Reset(ctx context.Context) {
	s.Stop()
	s.Start(ctx)
}

func (s *Scheduler) tasks() []*task {
	tasks := []*task{
		{name: "queue_poll", interval: s.cfg.QueuePollInterval, run: s.pollQueue},
		{name: "worker_status_poll", interval: s.cfg.WorkerStatusPollInterval, run: s.pollWorkerStatus},
		{name: "metrics_sample", interval: s.cfg.MetricsSampleInterval, run: s.sampleMetrics},
		{name: "stale_lease_recovery", interval: s.cfg.StaleLeaseInterval, run: s.recoverStaleLeases},
	}
	if s.cleaner != nil && s.cfg.EvidenceCleanupInterval > 0 {
		tasks = append(tasks, &task{name: "evidence_cleanup", interval: s.cfg.EvidenceCleanupInterval, run: s.cleanupEvidence})
	}
	if s.cfg.HealthReportInterval > 0 && s.cfg.SlackWebhookURL != "" {
		tasks = append(tasks, &task{name: "health_report", interval: s.cfg.HealthReportInterval, run: s.reportHealth})
	}
	return tasks
}

// loop runs t.run every t.interval, skipping a tick entirely (rather
// than queueing it) when the previous invocation is still in flight.
func (s *Scheduler) loop(ctx context.Context, t *task) {
	defer s.wg.Done()
	if t.interval <= 0 {
		return
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.busy.CompareAndSwap(false, true) {
				s.logger.Debug("skipping tick, previous run still in flight", "task", t.name)
				continue
			}
			func() {
				defer t.busy.Store(false)
				t.run(ctx)
			}()
		}
	}
}

// pollQueue is the core dispatch tick (spec §4.7, §4.4 steps 1-2).
func (s *Scheduler) pollQueue(ctx context.Context) {
	if err := s.dispatcher.RunOnce(ctx); err != nil {
		s.logger.Error("queue poll failed", "error", err)
	}
}

// pollWorkerStatus probes worker health and logs the healthy count (the
// pool is not cached; each dispatch probes again, spec §4.3, §4.7), then
// runs the
// passive-reconciliation sweep over jobs still dispatching/running with
// a worker assigned (spec §4.4 "Worker-side status polling").
func (s *Scheduler) pollWorkerStatus(ctx context.Context) {
	pool := s.directory.AvailablePool(ctx)
	s.logger.Debug("worker status poll", "healthy_count", len(pool))

	if err := s.dispatcher.PollWorkerStatus(ctx); err != nil {
		s.logger.Error("worker status reconciliation failed", "error", err)
	}
}

// sampleMetrics records a periodic queue-depth/throughput snapshot (spec
// §3.4, §4.7).
func (s *Scheduler) sampleMetrics(ctx context.Context) {
	queued, running, completed, failed, err := s.store.JobCounts(ctx)
	if err != nil {
		s.logger.Error("metrics sample: job counts failed", "error", err)
		return
	}
	sample := domain.MetricSample{
		Timestamp: time.Now().UTC(),
		Queued:    queued,
		Running:   running,
		Completed: completed,
		Failed:    failed,
	}
	if err := s.store.RecordMetricSample(ctx, sample); err != nil {
		s.logger.Error("metrics sample: record failed", "error", err)
	}
}

// recoverStaleLeases reclaims leases held longer than StaleLeaseMaxAge,
// returning each reclaimed job to retry_pending/error via the Retry
// Controller decision (spec §4.1 recover_stale_locks, §4.7).
func (s *Scheduler) recoverStaleLeases(ctx context.Context) {
	jobs, err := s.store.RecoverStaleLocks(ctx, s.cfg.StaleLeaseMaxAge, time.Now().UTC())
	if err != nil {
		s.logger.Error("stale lease recovery failed", "error", err)
		return
	}
	if len(jobs) > 0 {
		s.logger.Warn("recovered stale leases", "count", len(jobs))
	}
}

// TaskStatus describes one recurring task for the scheduler introspection
// endpoint (spec §4.9 GET /scheduler).
type TaskStatus struct {
	Name       string
	IntervalMS int64
	Busy       bool
}

// Status reports the current task list and whether the scheduler is
// running, for GET /scheduler.
func (s *Scheduler) Status() (running bool, tasks []TaskStatus) {
	s.mu.Lock()
	running = s.running
	s.mu.Unlock()

	for _, t := range s.tasks() {
		tasks = append(tasks, TaskStatus{
			Name:       t.name,
			IntervalMS: t.interval.Milliseconds(),
			Busy:       t.busy.Load(),
		})
	}
	return running, tasks
}

// RecoverNow forces an immediate stale-lease sweep outside the regular
// ticker cadence (spec §4.9 POST /recover), returning the count reclaimed.
func (s *Scheduler) RecoverNow(ctx context.Context) (int, error) {
	jobs, err := s.store.RecoverStaleLocks(ctx, s.cfg.StaleLeaseMaxAge, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return len(jobs), nil
}

func (s *Scheduler) cleanupEvidence(ctx context.Context) {
	n, err := s.cleaner.CleanupOlderThan(ctx, s.cfg.EvidenceRetention)
	if err != nil {
		s.logger.Error("evidence cleanup failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("evidence cleanup removed expired objects", "count", n)
	}
}

// reportHealth posts a periodic queue-depth summary to Slack (SPEC_FULL
// addition, grounded on the teacher's slack-go/slack dependency — no
// analogous teacher task exists, so the message format is original).
func (s *Scheduler) reportHealth(ctx context.Context) {
	queued, running, completed, failed, err := s.store.JobCounts(ctx)
	if err != nil {
		s.logger.Error("health report: job counts failed", "error", err)
		return
	}
	msg := &slack.WebhookMessage{
		Text: slackHealthText(queued, running, completed, failed),
	}
	if err := slack.PostWebhookContext(ctx, s.cfg.SlackWebhookURL, msg); err != nil {
		s.logger.Warn("health report: slack post failed", "error", err)
	}
}

func slackHealthText(queued, running, completed, failed int) string {
	return "orchestrator queue depth — queued: " + strconv.Itoa(queued) +
		", running: " + strconv.Itoa(running) +
		", completed: " + strconv.Itoa(completed) +
		", failed: " + strconv.Itoa(failed)
}
