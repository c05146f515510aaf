package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults with no config file", func(t *testing.T) {
		Reset()
		t.Cleanup(Reset)

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		// An explicitly named but missing file is an error.
		require.Error(t, err)
		_ = cfg

		Reset()
		cfg, err = Load("")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", cfg.Server.URL)
		assert.Equal(t, 60*time.Second, cfg.Server.Timeout)
		assert.Equal(t, 2*time.Second, cfg.Stream.IdleTimeout)
		assert.Equal(t, "always_retry", cfg.Quiz.RetryPolicy)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("should read values from a settings file", func(t *testing.T) {
		Reset()
		t.Cleanup(Reset)

		path := filepath.Join(t.TempDir(), "settings.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: https://sage.example.com
  timeout: 30s
stream:
  idle_timeout: 5s
quiz:
  retry_policy: lock_on_correct
logging:
  level: debug
`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://sage.example.com", cfg.Server.URL)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
		assert.Equal(t, 5*time.Second, cfg.Stream.IdleTimeout)
		assert.Equal(t, "lock_on_correct", cfg.Quiz.RetryPolicy)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("should let environment variables override the file", func(t *testing.T) {
		Reset()
		t.Cleanup(Reset)
		t.Setenv("SAGE_SERVER_URL", "https://env.example.com")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "https://env.example.com", cfg.Server.URL)
	})

	t.Run("should reject malformed durations", func(t *testing.T) {
		Reset()
		t.Cleanup(Reset)

		path := filepath.Join(t.TempDir(), "settings.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  timeout: soon\n"), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.timeout")
	})
}

func TestBuildSettingsPath(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	require.NotEmpty(t, BaseSettingsDir())
	assert.Equal(t, filepath.Join(BaseSettingsDir(), "modes.json"), BuildSettingsPath("modes.json"))
}
