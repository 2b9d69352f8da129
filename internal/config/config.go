// Package config loads the orchestrator's environment-variable-driven
// configuration surface (spec §6.4), grounded on the teacher's
// reflection-based internal/env loader.
package config

import (
	"fmt"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/env"
)

// Config is the full recognized environment surface (spec §6.4),
// extended with the storage-backend selection and observability/Slack
// additions SPEC_FULL §6 wires in.
type Config struct {
	Host string `env:"ORCHESTRATOR_HOST"`
	Port int    `env:"ORCHESTRATOR_PORT"`

	WorkerEndpoints []string      `env:"WORKER_ENDPOINTS"`
	WorkerTimeout   time.Duration `env:"WORKER_TIMEOUT"`
	MaxWorkers      int           `env:"MAX_WORKERS"`
	BatchSize       int           `env:"BATCH_SIZE"`

	MaxRetryAttempts int           `env:"MAX_RETRY_ATTEMPTS"`
	RetryDelay       time.Duration `env:"RETRY_DELAY"`

	JobPollInterval  time.Duration `env:"JOB_POLL_INTERVAL"`
	MetricsInterval  time.Duration `env:"METRICS_INTERVAL"`
	CleanupHour      int           `env:"CLEANUP_HOUR"`

	CallbackEndpoint string        `env:"CALLBACK_ENDPOINT"`
	CallbackTimeout  time.Duration `env:"CALLBACK_TIMEOUT"`

	EvidenceRetentionDays int `env:"EVIDENCE_RETENTION_DAYS"`

	DBDriver    string `env:"DB_DRIVER"` // "pgx" or "sqlite"
	DBPath      string `env:"DB_PATH"`
	DBDSN       string `env:"DB_DSN"` // postgres connection string, when DBDriver=pgx
	BaseDataDir string `env:"BASE_DATA_DIR"`
	EvidenceDir string `env:"EVIDENCE_DIR"`
	LogDir      string `env:"LOG_DIR"`

	// EvidenceBackend selects the evidence.Store implementation: "fs" or
	// "gcs". EvidenceGCSBucket is required when EvidenceBackend="gcs".
	EvidenceBackend   string `env:"EVIDENCE_BACKEND"`
	EvidenceGCSBucket string `env:"EVIDENCE_GCS_BUCKET"`

	SSLCertPath     string `env:"SSL_CERT_PATH"`
	SSLKeyPath      string `env:"SSL_KEY_PATH"`
	DevelopmentMode bool   `env:"DEVELOPMENT_MODE"`

	// CircuitBreakerFailureThreshold and StaleLeaseMaxAge are SPEC_FULL
	// additions (spec §9 design note, generalized): not named in the
	// distilled spec.md table but required to configure the worker
	// directory's breaker and the scheduler's stale-lease recovery.
	CircuitBreakerFailureThreshold int           `env:"CIRCUIT_BREAKER_FAILURE_THRESHOLD"`
	StaleLeaseMaxAge               time.Duration `env:"STALE_LEASE_MAX_AGE"`
	StaleLeaseCheckInterval        time.Duration `env:"STALE_LEASE_CHECK_INTERVAL"`

	SlackWebhookURL      string        `env:"SLACK_WEBHOOK_URL"`
	HealthReportInterval time.Duration `env:"HEALTH_REPORT_INTERVAL"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsAddr  string `env:"METRICS_ADDR"`

	AdminAPIKeys []string `env:"ADMIN_API_KEYS"`
}

// defaults mirrors the constants scattered through spec.md (WORKER_TIMEOUT,
// MAX_RETRY_ATTEMPTS, retry delay, scheduler intervals) for fields left
// unset in the environment.
func defaults() Config {
	return Config{
		Host:                           "0.0.0.0",
		Port:                           8080,
		WorkerTimeout:                  30 * time.Second,
		MaxWorkers:                     10,
		BatchSize:                      20,
		MaxRetryAttempts:               3,
		RetryDelay:                     time.Minute,
		JobPollInterval:                5 * time.Second,
		MetricsInterval:                60 * time.Second,
		CleanupHour:                    3,
		CallbackTimeout:                10 * time.Second,
		EvidenceRetentionDays:          30,
		DBDriver:                       "sqlite",
		DBPath:                         "orchestrator.db",
		BaseDataDir:                    "./data",
		EvidenceDir:                    "./data/evidence",
		LogDir:                         "./data/logs",
		EvidenceBackend:                "fs",
		CircuitBreakerFailureThreshold: 5,
		StaleLeaseMaxAge:               10 * time.Minute,
		StaleLeaseCheckInterval:        10 * time.Minute,
		HealthReportInterval:           0, // disabled unless SlackWebhookURL is set
	}
}

// Load reads the environment surface on top of built-in defaults and
// validates the result. WORKER_ENDPOINTS and ADMIN_API_KEYS are split by
// env.Load itself (comma-separated []string fields).
func Load() (Config, error) {
	cfg := defaults()
	if err := env.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants env.Load's reflection pass can't express
// (Validator interface, matching the teacher's nested-config pattern).
func (c Config) Validate() error {
	if c.DBDriver != "pgx" && c.DBDriver != "sqlite" {
		return fmt.Errorf("config: DB_DRIVER must be \"pgx\" or \"sqlite\", got %q", c.DBDriver)
	}
	if c.DBDriver == "pgx" && c.DBDSN == "" {
		return fmt.Errorf("config: DB_DSN is required when DB_DRIVER=pgx")
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("config: MAX_WORKERS must be > 0")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: BATCH_SIZE must be > 0")
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("config: MAX_RETRY_ATTEMPTS must be >= 0")
	}
	if c.EvidenceBackend != "fs" && c.EvidenceBackend != "gcs" {
		return fmt.Errorf("config: EVIDENCE_BACKEND must be \"fs\" or \"gcs\", got %q", c.EvidenceBackend)
	}
	if c.EvidenceBackend == "gcs" && c.EvidenceGCSBucket == "" {
		return fmt.Errorf("config: EVIDENCE_GCS_BUCKET is required when EVIDENCE_BACKEND=gcs")
	}
	return nil
}
