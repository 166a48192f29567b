package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "http://localhost:9000/", c.ServerBaseURL)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.Equal(t, 5*time.Second, c.RefreshTimeout)
	assert.Less(t, c.RefreshTimeout, c.RequestTimeout)
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty url", func(c *Config) { c.ServerBaseURL = "" }},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"refresh longer than request", func(c *Config) { c.RefreshTimeout = 30 * time.Second }},
		{"zero refresh timeout", func(c *Config) { c.RefreshTimeout = 0 }},
		{"empty db path", func(c *Config) { c.DatabasePath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	path := writeTempJSON(t, "", "", map[string]any{
		"server_base_url": "http://json:1/",
		"request_timeout": "20s",
		"database_path":   "json.db",
		"log_level":       "debug",
	})
	t.Setenv("INNERWELL_DB_PATH", "env.db")

	cfg, err := Load([]string{"-c", path, "-a", "http://flag:2/"})
	require.NoError(t, err)

	want := defaults()
	want.ServerBaseURL = "http://flag:2/"
	want.RequestTimeout = 20 * time.Second
	want.DatabasePath = "env.db"
	want.LogLevel = "debug"

	assert.Empty(t, cmp.Diff(&want, cfg))
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	_, err := Load([]string{"-t", "2s"})
	require.Error(t, err, "request timeout below the default refresh timeout")
}

func TestLoadConfig_PanicsOnBadFlag(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	swapArgs(t, []string{"innerwell", "-t", "abc"})

	require.Panics(t, func() { LoadConfig() })
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	swapArgs(t, []string{"innerwell"})

	cfg := LoadConfig()
	want := defaults()
	assert.Empty(t, cmp.Diff(&want, cfg))
}
