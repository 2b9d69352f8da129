package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/domain"
	"github.com/bitstreamfno/orchestrator/internal/standardize"
)

// document is the wire shape POSTed to the external callback (spec §4.6).
type document struct {
	JobID    string `json:"JOB_ID"`
	FNO      string `json:"FNO"`
	Status   string `json:"STATUS"`
	StatusDT string `json:"STATUS_DT"`
	JobEvi   string `json:"JOB_EVI"`
}

// Reporter POSTs the external status report and applies the dedupe guard.
// Mirrors the teacher's plain net/http outbound-call style (no HTTP client
// wrapper library is used anywhere else in the codebase for this concern).
type Reporter struct {
	endpoint string
	client   *http.Client
	dedupe   *Dedupe
	logger   *slog.Logger
	now      func() time.Time
}

// Config configures a Reporter. Endpoint empty disables reporting
// entirely (spec §4.6: "Endpoint is a configuration constant").
type Config struct {
	Endpoint string
	Timeout  time.Duration
	DedupeTTL time.Duration
	Logger   *slog.Logger
}

// New creates a Reporter. Pass a nil Logger to use slog.Default().
func New(cfg Config) *Reporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Reporter{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		dedupe:   NewDedupe(ttl),
		logger:   logger,
		now:      time.Now,
	}
}

// Report builds and POSTs the external report for job, given the decided
// status and the canonical standardized result (nil if the job never
// reached a standardizable outcome). automationStatus is "success",
// "failure", or "error" (spec §9 Open Question 1 resolution).
//
// One request, no retry (spec §4.6/§6.3): a non-2xx response is
// warning-logged and otherwise ignored, because the store already holds
// the authoritative state and the next transition (if any) emits a fresh
// report.
func (r *Reporter) Report(ctx context.Context, job domain.Job, status, automationStatus string, canonical *standardize.Canonical) error {
	if r.endpoint == "" {
		r.logger.Debug("external report skipped: no callback endpoint configured", "job_id", job.ID)
		return nil
	}

	if !r.dedupe.ShouldReport(job.ID, status, r.now()) {
		r.logger.Debug("external report suppressed by dedupe guard", "job_id", job.ID, "status", status)
		return nil
	}

	evi := Evidence(job, automationStatus, canonical)
	eviJSON, err := json.Marshal(evi)
	if err != nil {
		return fmt.Errorf("report: marshal JOB_EVI: %w", err)
	}

	doc := document{
		JobID:    ExternalJobID(job),
		FNO:      job.Provider.Uppercase(),
		Status:   status,
		StatusDT: r.now().Format(TimestampLayout),
		JobEvi:   string(eviJSON),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("report: marshal document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("report: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("external report request failed", "job_id", job.ID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Warn("external report non-2xx response", "job_id", job.ID, "status_code", resp.StatusCode)
	}
	return nil
}
