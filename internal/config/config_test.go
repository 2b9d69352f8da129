package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsApplyWhenEnvUnset(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 10, cfg.MaxWorkers)
	assert.Nil(t, cfg.WorkerEndpoints)
}

func TestLoad_SplitsWorkerEndpoints(t *testing.T) {
	t.Setenv("WORKER_ENDPOINTS", "http://a/execute, http://b/execute ,http://c/execute")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a/execute", "http://b/execute", "http://c/execute"}, cfg.WorkerEndpoints)
}

func TestValidate_RejectsPostgresWithoutDSN(t *testing.T) {
	cfg := defaults()
	cfg.DBDriver = "pgx"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	cfg := defaults()
	cfg.DBDriver = "mysql"
	assert.Error(t, cfg.Validate())
}
