package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the InnerWell CLI.
//
// Fields:
//   - ServerBaseURL: base address of the backend REST API.
//   - RequestTimeout: timeout applied to every API call.
//   - RefreshTimeout: timeout of the token refresh call; must not exceed RequestTimeout.
//   - DatabasePath: SQLite file backing the local token/profile store.
//   - StorePassphrase: when set, stored values are sealed at rest.
//   - LogFormat, LogLevel: see logging.New.
type Config struct {
	ServerBaseURL   string        `env:"INNERWELL_SERVER_URL"`
	RequestTimeout  time.Duration `env:"INNERWELL_REQUEST_TIMEOUT"`
	RefreshTimeout  time.Duration `env:"INNERWELL_REFRESH_TIMEOUT"`
	DatabasePath    string        `env:"INNERWELL_DB_PATH"`
	StorePassphrase string        `env:"INNERWELL_STORE_PASSPHRASE"`
	LogFormat       string        `env:"INNERWELL_LOG_FORMAT"`
	LogLevel        string        `env:"INNERWELL_LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://localhost:9000/"
	c.RequestTimeout = 10 * time.Second
	c.RefreshTimeout = 5 * time.Second
	c.DatabasePath = "innerwell.db"
	c.StorePassphrase = ""
	c.LogFormat = "text"
	c.LogLevel = "info"
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.ServerBaseURL == "" {
		return errors.New("server base url is empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.RefreshTimeout <= 0 || c.RefreshTimeout > c.RequestTimeout {
		return fmt.Errorf("refresh timeout %s must be positive and not exceed request timeout %s",
			c.RefreshTimeout, c.RequestTimeout)
	}
	if c.DatabasePath == "" {
		return errors.New("database path is empty")
	}
	return nil
}

// Load builds a Config from defaults, then overlays the JSON file, the
// environment (including a .env file in the working directory) and finally
// the command-line flags in args. Later sources take precedence.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, dotEnvFile); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args; it panics on error.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}
