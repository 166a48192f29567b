package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/innerwell/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func swapArgs(t *testing.T, args []string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = args
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		flagx.ConfigPathEnv,
		"INNERWELL_SERVER_URL", "INNERWELL_REQUEST_TIMEOUT", "INNERWELL_REFRESH_TIMEOUT",
		"INNERWELL_DB_PATH", "INNERWELL_STORE_PASSPHRASE", "INNERWELL_LOG_FORMAT", "INNERWELL_LOG_LEVEL",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func Test_parseJson(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"server_base_url":  "https://api.example/",
		"request_timeout":  "15s",
		"refresh_timeout":  3000000000,
		"database_path":    "/tmp/x.db",
		"store_passphrase": "pw",
		"log_format":       "zap",
		"log_level":        "warn",
	})

	t.Run("all fields", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-config", full}))

		assert.Equal(t, Config{
			ServerBaseURL:   "https://api.example/",
			RequestTimeout:  15 * time.Second,
			RefreshTimeout:  3 * time.Second,
			DatabasePath:    "/tmp/x.db",
			StorePassphrase: "pw",
			LogFormat:       "zap",
			LogLevel:        "warn",
		}, *cfg)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"log_level": "error"})
		cfg := &Config{DatabasePath: "keep.db"}
		require.NoError(t, parseJson(cfg, []string{"-c", partial}))

		assert.Equal(t, "keep.db", cfg.DatabasePath)
		assert.Equal(t, "error", cfg.LogLevel)
	})

	t.Run("env selects file", func(t *testing.T) {
		t.Setenv(flagx.ConfigPathEnv, full)
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, nil))
		assert.Equal(t, "https://api.example/", cfg.ServerBaseURL)
	})

	t.Run("no file → no changes", func(t *testing.T) {
		cfg := &Config{ServerBaseURL: "defaults"}
		require.NoError(t, parseJson(cfg, nil))
		assert.Equal(t, "defaults", cfg.ServerBaseURL)
	})

	t.Run("missing file", func(t *testing.T) {
		err := parseJson(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")})
		assert.Error(t, err)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		err := parseJson(&Config{}, []string{"-c", bad})
		assert.Error(t, err)
	})
}
