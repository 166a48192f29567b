// Package config loads runtime configuration for the InnerWell CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/-config or $INNERWELL_CONFIG.
//  3. Environment variables INNERWELL_*; a .env file in the working directory
//     fills in variables that are not already exported.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string     base URL of the backend API
//	-t duration   request timeout
//	-d string     local database path
//
// # JSON schema
//
// Durations are timex.Duration, so "5s" and integer nanoseconds both work:
//
//	{
//	  "server_base_url": "https://api.innerwell.example/",
//	  "request_timeout": "10s",
//	  "refresh_timeout": "5s",
//	  "database_path": "/var/lib/innerwell/client.db",
//	  "store_passphrase": "",
//	  "log_format": "json",
//	  "log_level": "debug"
//	}
//
// # Environment
//
//	INNERWELL_SERVER_URL, INNERWELL_REQUEST_TIMEOUT, INNERWELL_REFRESH_TIMEOUT,
//	INNERWELL_DB_PATH, INNERWELL_STORE_PASSPHRASE, INNERWELL_LOG_FORMAT,
//	INNERWELL_LOG_LEVEL
//
// The refresh timeout must not exceed the request timeout; Load rejects such
// a combination.
package config
