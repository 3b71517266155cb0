package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.validate())

	assert.Equal(t, "https://api.voicetra.app/v1", cfg.API.BaseURL)
	assert.Equal(t, 60, cfg.RateLimit.Limit)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window())
	assert.Equal(t, 100, cfg.Queue.Capacity)
	assert.Equal(t, int64(100<<20), cfg.Cache.DiskMaxBytes)
	assert.Equal(t, time.Second, cfg.Backoff.BaseDelay())
	assert.Equal(t, 32*time.Second, cfg.Backoff.MaxDelay())
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, Default().RateLimit.Limit, cfg.RateLimit.Limit)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	yaml := `
api:
  base_url: https://staging.voicetra.app/v1
  timeout_seconds: 10
rate_limit:
  limit: 30
  window_seconds: 30
queue:
  capacity: 25
`
	assert.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "https://staging.voicetra.app/v1", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout())
	assert.Equal(t, 30, cfg.RateLimit.Limit)
	assert.Equal(t, 25, cfg.Queue.Capacity)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Cache.DiskMaxBytes, cfg.Cache.DiskMaxBytes)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  limit: 30\n"), 0644))

	t.Setenv("VOICETRA_RATE_LIMIT", "5")
	t.Setenv("VOICETRA_API_BASE_URL", "https://env.voicetra.app/v1")
	t.Setenv("VOICETRA_LOG_VERBOSE", "true")

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 5, cfg.RateLimit.Limit)
	assert.Equal(t, "https://env.voicetra.app/v1", cfg.API.BaseURL)
	assert.True(t, cfg.Log.Verbose)
}

func TestMalformedEnvValueIsIgnored(t *testing.T) {
	t.Setenv("VOICETRA_QUEUE_CAPACITY", "not-a-number")

	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, Default().Queue.Capacity, cfg.Queue.Capacity)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("rate_limit:\n  limit: 0\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("api: [not a mapping"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
