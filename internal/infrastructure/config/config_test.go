package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "init", cfg.Kernel.Init)
	assert.Equal(t, "./fsroot", cfg.Files.Root)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":           "9090",
		"HOST":           "127.0.0.1",
		"KERNEL_INIT":    "shell",
		"FS_ROOT":        "/srv/kernel",
		"LOG_LEVEL":      "debug",
		"LOG_DEV":        "true",
		"RATE_LIMIT_RPS": "500",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "shell", cfg.Kernel.Init)
	assert.Equal(t, "/srv/kernel", cfg.Files.Root)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
}

func TestLoadFileOverlaysEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")

	path := filepath.Join(t.TempDir(), "kernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7000"
kernel:
  init: rescue
  env:
    MODE: maintenance
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// File wins over environment where set, environment survives elsewhere.
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "rescue", cfg.Kernel.Init)
	assert.Equal(t, "maintenance", cfg.Kernel.Env["MODE"])
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/does/not/exist.yaml")
	assert.Error(t, err)
}
