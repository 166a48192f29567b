package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/innerwell/internal/flagx"
	"github.com/dmitrijs2005/innerwell/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they may be written as "5s" or as integer nanoseconds.
// Absent keys leave the corresponding Config field untouched.
type JsonConfig struct {
	ServerBaseURL   *string         `json:"server_base_url"`
	RequestTimeout  *timex.Duration `json:"request_timeout"`
	RefreshTimeout  *timex.Duration `json:"refresh_timeout"`
	DatabasePath    *string         `json:"database_path"`
	StorePassphrase *string         `json:"store_passphrase"`
	LogFormat       *string         `json:"log_format"`
	LogLevel        *string         `json:"log_level"`
}

// parseJson overlays cfg with the JSON file named by -c/-config in args or by
// $INNERWELL_CONFIG. Without either nothing happens.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	if jc.ServerBaseURL != nil {
		cfg.ServerBaseURL = *jc.ServerBaseURL
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RefreshTimeout != nil {
		cfg.RefreshTimeout = jc.RefreshTimeout.Duration
	}
	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	if jc.StorePassphrase != nil {
		cfg.StorePassphrase = *jc.StorePassphrase
	}
	if jc.LogFormat != nil {
		cfg.LogFormat = *jc.LogFormat
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
}
