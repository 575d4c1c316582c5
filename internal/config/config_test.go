package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lMazer/pocket-finance-dashboard/internal/config"
)

func TestLoadFromFile(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		require.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
		require.Equal(t, 15*time.Second, cfg.API.Timeout)
		require.Equal(t, "info", cfg.Log.Level)
		require.Equal(t, "console", cfg.Log.Format)
		require.NotEmpty(t, cfg.Session.File)
	})

	t.Run("yaml values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://finance.example.com/api
  timeout: 30s
session:
  file: /tmp/pocket-session.json
log:
  level: debug
  format: json
`), 0o600))

		cfg, err := config.LoadFromFile(path)
		require.NoError(t, err)
		require.Equal(t, "https://finance.example.com/api", cfg.API.BaseURL)
		require.Equal(t, 30*time.Second, cfg.API.Timeout)
		require.Equal(t, "/tmp/pocket-session.json", cfg.Session.File)
		require.Equal(t, "debug", cfg.Log.Level)
		require.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("environment overrides yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://finance.example.com/api
`), 0o600))

		t.Setenv("POCKET_API_URL", "https://staging.example.com/api")
		t.Setenv("POCKET_API_TIMEOUT", "5s")
		t.Setenv("POCKET_LOG_LEVEL", "warn")

		cfg, err := config.LoadFromFile(path)
		require.NoError(t, err)
		require.Equal(t, "https://staging.example.com/api", cfg.API.BaseURL)
		require.Equal(t, 5*time.Second, cfg.API.Timeout)
		require.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("malformed timeout in the environment is ignored", func(t *testing.T) {
		t.Setenv("POCKET_API_TIMEOUT", "not-a-duration")

		cfg, err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		require.Equal(t, 15*time.Second, cfg.API.Timeout)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("api: [not a mapping"), 0o600))

		_, err := config.LoadFromFile(path)
		require.Error(t, err)
	})
}
