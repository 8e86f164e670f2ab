package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":19090", cfg.Server.MetricsAddress)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := `
server:
  metrics_address: ":9100"
llm:
  base_url: "http://localhost:11434/v1"
  model: "local-model"
guard:
  watch: true
storage:
  driver: sqlite
  path: /var/lib/lexinel/queue.db
sentinel:
  dataset_path: /data/sample.json
  cron_spec: "@hourly"
logging:
  level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.MetricsAddress)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.True(t, cfg.Guard.Watch)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "@hourly", cfg.Sentinel.CronSpec)
	assert.Equal(t, "debug", cfg.Logging.Level, "level normalized")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LEXINEL_LLM_BASE_URL", "http://override:8080/v1")
	t.Setenv("WEBHOOK_URL", "http://siem.internal/hook")
	t.Setenv("LEXINEL_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://override:8080/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "http://siem.internal/hook", cfg.Notify.WebhookURL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad log level":       "logging:\n  level: verbose\n",
		"unknown driver":      "storage:\n  driver: postgres\n",
		"sqlite without path": "storage:\n  driver: sqlite\n",
		"cron without data":   "sentinel:\n  cron_spec: \"@hourly\"\n",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestWatchFileFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guard.rego")
	require.NoError(t, os.WriteFile(path, []byte("package x\n"), 0o600))

	var fired atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, WatchFile(ctx, path, nil, func() { fired.Add(1) }))

	require.NoError(t, os.WriteFile(path, []byte("package x\n# v2\n"), 0o600))

	assert.Eventually(t, func() bool { return fired.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
}
