package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "v2", cfg.Scoring.Policy)
	assert.Equal(t, 50, cfg.Search.DefaultLimit)
	assert.Equal(t, int64(50*1024*1024), cfg.Intake.MaxFileSize)
	assert.Contains(t, cfg.Intake.AllowedExtensions, ".md")
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "dev.yaml", `
server:
  port: 9000
  readTimeout: 5s
scoring:
  policy: baseline
storage:
  driver: sqlite
sqlite:
  path: /tmp/dp.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "baseline", cfg.Scoring.Policy)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/dp.db", cfg.SQLite.Path)
	// untouched sections keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "dev.toml", `
[search]
defaultLimit = 25
maxResults = 100
timeout = "2s"

[redis]
addr = "cache:6379"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, 2*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DP_SCORING_POLICY", "baseline")
	t.Setenv("DP_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("DP_GATEWAY_AUTH_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "baseline", cfg.Scoring.Policy)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Gateway.AuthEnabled)
}

func TestEnvOverrideRejectsMalformedValue(t *testing.T) {
	t.Setenv("DP_METRICS_PORT", "ninety")
	_, err := Load("")
	assert.ErrorContains(t, err, "DP_METRICS_PORT")
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	path := writeFile(t, "bad.yaml", "scoring:\n  policy: blended\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown scoring policy")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
