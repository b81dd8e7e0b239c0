package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("GOCONV_API_KEY", "secret")
	t.Setenv("GOCONV_PING_INTERVAL", "5s")
	t.Setenv("GOCONV_SUBMIT_WORKERS", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, ":8000", cfg.Address)
	assert.Equal(t, "sqlite", cfg.StorageDriver)
	assert.Equal(t, 30*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.Equal(t, 8, cfg.SubmitWorkers)
	assert.Equal(t, 10, cfg.SinkBuffer)
	assert.Equal(t, int64(20480*1024), cfg.MaxUploadBytes)
	assert.InDelta(t, 0.5, cfg.RateLimit, 1e-9)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("GOCONV_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api-key")
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api-key": "from-file",
		"address": ":9000",
		"storage-driver": "redis",
		"log-level": "debug"
	}`), 0o600))
	t.Setenv("GOCONV_ADDRESS", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, ":9100", cfg.Address, "environment wins over file")
	assert.Equal(t, "redis", cfg.StorageDriver)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("GOCONV_API_KEY", "secret")

	t.Run("storage driver", func(t *testing.T) {
		t.Setenv("GOCONV_STORAGE_DRIVER", "postgres")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("log level", func(t *testing.T) {
		t.Setenv("GOCONV_LOG_LEVEL", "chatty")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}
