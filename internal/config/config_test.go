package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mediasweep.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Empty(t, cfg.ProcessCron)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/var/lib/mediasweep/jobs.db")
	t.Setenv("ADMIN_API_TOKENS", "one, two,three")
	t.Setenv("CRON_SECRET", "shh")
	t.Setenv("PROCESS_CRON", "*/5 * * * *")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/var/lib/mediasweep/jobs.db", cfg.DBPath)
	assert.Equal(t, []string{"one", " two", "three"}, cfg.AdminTokens)
	assert.Equal(t, "shh", cfg.CronSecret)
	assert.Equal(t, "*/5 * * * *", cfg.ProcessCron)
}

func TestLoad_ClampsBatchSettings(t *testing.T) {
	t.Setenv("PROCESS_BATCH_SIZE", "500")
	t.Setenv("PROCESS_MAX_ATTEMPTS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 1, cfg.MaxAttempts)
}

func TestArchiveEnabled(t *testing.T) {
	t.Setenv("ARCHIVE_ENDPOINT", "https://minio.example.com:9000")
	t.Setenv("ARCHIVE_ACCESS_KEY", "ak")
	t.Setenv("ARCHIVE_SECRET_KEY", "sk")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.ArchiveEnabled(), "bucket missing")

	t.Setenv("ARCHIVE_BUCKET", "media-archive")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.ArchiveEnabled())
}
