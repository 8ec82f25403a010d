package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, DefaultDatabaseDSN, cfg.DatabaseDSN)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "TRY", cfg.Currency)
	assert.Equal(t, int64(1000), cfg.VarianceMinorThreshold)
	assert.Equal(t, 5*time.Second, cfg.AggregateTimeout)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)
	assert.Equal(t, 20, cfg.LockTries)
	assert.Equal(t, 100*time.Millisecond, cfg.LockRetryDelay)
	assert.Len(t, cfg.Warnings(), 3)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CURRENCY", "mxn")
	t.Setenv("VARIANCE_MINOR_THRESHOLD", "25.50")
	t.Setenv("AGGREGATE_TIMEOUT", "750ms")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "MXN", cfg.Currency)
	assert.Equal(t, int64(2550), cfg.VarianceMinorThreshold)
	assert.Equal(t, 750*time.Millisecond, cfg.AggregateTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Len(t, cfg.Warnings(), 2)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := "JWT_SECRET=" + testSecret + "\nHTTP_PORT=7070\nLOCK_TRIES=3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kasa.env"), []byte(content), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTPPort)
	assert.Equal(t, 3, cfg.LockTries)
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	t.Setenv("JWT_SECRET", "kısa")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("AGGREGATE_TIMEOUT", "0s")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "JWT_SECRET en az 32 karakter")
	assert.Contains(t, msg, "CURRENCY desteklenmiyor")
	assert.Contains(t, msg, "LOG_LEVEL")
	assert.Contains(t, msg, "AGGREGATE_TIMEOUT")
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET tanımlanmamış")
}

func TestLoad_ThresholdValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	t.Setenv("VARIANCE_MINOR_THRESHOLD", "-1")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("VARIANCE_MINOR_THRESHOLD", "0.001")
	_, err = Load()
	assert.Error(t, err)
}
