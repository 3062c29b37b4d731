package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

const sampleConfig = `
logging:
  level: DEBUG
  format: json
generation:
  model: gemini-1.5-pro
  api_key: ${TEST_GEMINI_KEY}
  retry:
    backoff: Linear
    max_retries: 3
plugins:
  disabled: [project-simulator-plugin]
  shared:
    language: go
  settings:
    prompt-engineering-plugin:
      templateDir: ./templates
history:
  enabled: true
  path: /tmp/history.db
events:
  url: nats://localhost:4222
server:
  addr: 127.0.0.1:9090
  schedules:
    - name: nightly
      command: analyze-project
      every: 24h
      args:
        depth: deep
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.Level.SlogLevel())
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, "gemini-1.5-pro", cfg.Generation.Model)
	assert.Equal(t, "secret", cfg.Generation.APIKey)
	assert.Equal(t, RetryBackoffLinear, cfg.Generation.Retry.Backoff)
	assert.Equal(t, 3, cfg.Generation.Retry.MaxRetries)
	assert.Equal(t, "60s", cfg.Generation.Timeout)
	assert.True(t, cfg.IsDisabled("project-simulator-plugin"))
	assert.False(t, cfg.IsDisabled("prompt-engineering-plugin"))
	assert.Equal(t, "go", cfg.Plugins.Shared["language"])
	assert.Equal(t, "./templates", cfg.Plugins.Settings["prompt-engineering-plugin"]["templateDir"])
	assert.Equal(t, DefaultSubjectPrefix, cfg.Events.SubjectPrefix)
	require.Len(t, cfg.Server.Schedules, 1)
	assert.Equal(t, 24*time.Hour, Duration(cfg.Server.Schedules[0].Every))
	assert.Equal(t, "deep", cfg.Server.Schedules[0].Args["depth"])
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":           "logging: [",
		"bad timeout":        "generation:\n  timeout: soon\n",
		"negative retries":   "generation:\n  retry:\n    max_retries: -1\n",
		"unknown backoff":    "generation:\n  retry:\n    backoff: random\n",
		"schedule no name":   "server:\n  schedules:\n    - command: x\n      every: 1m\n",
		"schedule bad every": "server:\n  schedules:\n    - name: a\n      command: x\n      every: 0s\n",
		"duplicate schedule": "server:\n  schedules:\n    - {name: a, command: x, every: 1m}\n    - {name: a, command: y, every: 1m}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.Equal(t, ferrors.KindHostConfig, ferrors.KindOf(err))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gemini-cli.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  model: custom\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Generation.Model)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, ferrors.KindHostConfig, ferrors.KindOf(err))
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Generation.Model)
	assert.Equal(t, "from-env", cfg.Generation.APIKey)
	assert.Equal(t, RetryBackoffExponential, cfg.Generation.Retry.Backoff)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.NotEmpty(t, cfg.History.Path)
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel(" Warning "))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("verbose"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat("yaml"))
	assert.Equal(t, RetryBackoffExponential, NormalizeRetryBackoff("EXPONENTIAL"))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("random"))
}
