package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndEnvExpansion(t *testing.T) {
	t.Setenv("TEST_CRON_SECRET", "s3cret")
	t.Setenv("TEST_ENCRYPTION_KEY", "0123456789abcdef0123")

	path := writeConfig(t, `
database:
  host: localhost
  user: tracker
  dbname: tracker
server:
  cron_secret: ${TEST_CRON_SECRET}
crypto:
  encryption_key: ${TEST_ENCRYPTION_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Server.CronSecret)
	assert.Equal(t, "0123456789abcdef0123", cfg.Crypto.EncryptionKey)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "https://api.x.com/2", cfg.API.BaseURL)
	assert.Equal(t, 100, cfg.API.PageSize)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Scheduler.MaxJobs)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.LockTimeout)
	assert.Equal(t, "UTC", cfg.Analytics.Timezone)
	assert.Equal(t, 10, cfg.Analytics.TopPatterns)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.RabbitMQ.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db
  port: 6543
  user: u
  password: p
  dbname: d
  sslmode: require
api:
  page_size: 50
  requests_per_second: 0.5
scheduler:
  max_jobs: 3
  lock_timeout: 1h
server:
  cron_secret: x
crypto:
  encryption_key: abcdefghijklmnopq
analytics:
  timezone: Asia/Tokyo
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "host=db port=6543 user=u password=p dbname=d sslmode=require", cfg.Database.DSN())
	assert.Equal(t, 50, cfg.API.PageSize)
	assert.Equal(t, 0.5, cfg.API.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Scheduler.MaxJobs)
	assert.Equal(t, time.Hour, cfg.Scheduler.LockTimeout)
	assert.Equal(t, "Asia/Tokyo", cfg.Analytics.Timezone)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  user: tracker
  dbname: tracker
crypto:
  encryption_key: abcdefghijklmnopq
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
