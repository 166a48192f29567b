package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const dotEnvFile = ".env"

// parseEnv overlays cfg with INNERWELL_* environment variables. Variables
// listed in dotenv are loaded first without replacing ones already exported,
// so the real environment wins. A missing dotenv file is not an error.
func parseEnv(cfg *Config, dotenv string) error {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", dotenv, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("failed to read env: %w", err)
	}
	return nil
}
