// Command orchestrator runs the job-orchestration HTTP service: it loads
// configuration from the environment, wires storage, evidence, worker
// directory, dispatcher, scheduler, and HTTP API, then serves until an
// interrupt or terminate signal requests a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/config"
	"github.com/bitstreamfno/orchestrator/internal/evidence"
	httpserver "github.com/bitstreamfno/orchestrator/internal/infrastructure/http"
	"github.com/bitstreamfno/orchestrator/internal/infrastructure/http/middleware"
	"github.com/bitstreamfno/orchestrator/internal/httpapi"
	"github.com/bitstreamfno/orchestrator/internal/orchestrator"
	"github.com/bitstreamfno/orchestrator/internal/report"
	"github.com/bitstreamfno/orchestrator/internal/standardize"
	"github.com/bitstreamfno/orchestrator/internal/storage/sql"
	"github.com/bitstreamfno/orchestrator/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("orchestrator exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelEnabled := cfg.OTLPEndpoint != ""
	tp, err := observability.InitTracerProvider(ctx, observability.DefaultServiceName, otelEnabled)
	if err != nil {
		return fmt.Errorf("init tracer provider: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mp, err := observability.InitMeterProvider(ctx, observability.DefaultServiceName, otelEnabled)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	defer func() { _ = mp.Shutdown(context.Background()) }()

	lp, logger, err := observability.InitLogger(ctx, observability.DefaultServiceName, otelEnabled)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = lp.Shutdown(context.Background()) }()
	slog.SetDefault(logger)

	blobs, err := newEvidenceStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init evidence store: %w", err)
	}

	dsn := cfg.DBDSN
	if cfg.DBDriver == "sqlite" {
		dsn = cfg.DBPath
	}
	store, err := sql.NewStore(ctx, sql.DBConfig{Driver: driverName(cfg.DBDriver), DSN: dsn})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	store = store.WithEvidenceStore(blobs)

	endpoints := make([]orchestrator.WorkerEndpoint, len(cfg.WorkerEndpoints))
	for i, ep := range cfg.WorkerEndpoints {
		endpoints[i] = orchestrator.WorkerEndpoint{ExecuteURL: ep}
	}
	directory := orchestrator.NewDirectory(endpoints, cfg.WorkerTimeout, uint32(cfg.CircuitBreakerFailureThreshold))

	reporter := report.New(report.Config{
		Endpoint:  cfg.CallbackEndpoint,
		Timeout:   cfg.CallbackTimeout,
		DedupeTTL: 10 * time.Minute,
		Logger:    logger,
	})

	dispatcher := orchestrator.NewDispatcher(store, directory, reporter, standardize.Extract, orchestrator.DispatcherConfig{
		MaxWorkers:    cfg.MaxWorkers,
		BatchSize:     cfg.BatchSize,
		WorkerTimeout: cfg.WorkerTimeout,
		Retry: orchestrator.RetryConfig{
			TransportMaxAttempts: uint64(cfg.MaxRetryAttempts),
			TransportBaseDelay:   500 * time.Millisecond,
			TransportMaxDelay:    cfg.WorkerTimeout,
			RetryDelay:           cfg.RetryDelay,
		},
	}, logger)

	cleaner := orchestrator.NewBlobCleaner(store, blobs)

	scheduler := orchestrator.NewScheduler(dispatcher, store, directory, cleaner, orchestrator.SchedulerConfig{
		QueuePollInterval:        cfg.JobPollInterval,
		WorkerStatusPollInterval: cfg.JobPollInterval,
		MetricsSampleInterval:    cfg.MetricsInterval,
		StaleLeaseInterval:       cfg.StaleLeaseCheckInterval,
		StaleLeaseMaxAge:         cfg.StaleLeaseMaxAge,
		EvidenceCleanupInterval:  24 * time.Hour,
		EvidenceRetention:        time.Duration(cfg.EvidenceRetentionDays) * 24 * time.Hour,
		HealthReportInterval:     cfg.HealthReportInterval,
		SlackWebhookURL:          cfg.SlackWebhookURL,
	}, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var adminAuth func(http.Handler) http.Handler
	if len(cfg.AdminAPIKeys) > 0 {
		auth, err := middleware.NewAdminAuth(cfg.AdminAPIKeys)
		if err != nil {
			return fmt.Errorf("init admin auth: %w", err)
		}
		adminAuth = auth.Validate
	}

	apiHandler := httpapi.New(httpapi.Deps{
		Store:      store,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Logger:     logger,
	}, adminAuth)

	apiServer := httpserver.NewAPIServer(apiHandler, httpserver.ServerConfig{
		Host: cfg.Host,
		Port: strconv.Itoa(cfg.Port),
	})

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return apiServer.Shutdown(shutdownCtx)
}

func driverName(configured string) string {
	if configured == "pgx" {
		return "pgx"
	}
	return "sqlite"
}

func newEvidenceStore(ctx context.Context, cfg config.Config) (evidence.Store, error) {
	if cfg.EvidenceBackend == "gcs" {
		return evidence.NewGCSStore(ctx, cfg.EvidenceGCSBucket)
	}
	return evidence.NewFSStore(cfg.EvidenceDir)
}
