package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/innerwell/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     base URL of the backend API
//	-t duration   request timeout, e.g. 10s
//	-d string     path to the local SQLite database
//
// args are filtered with flagx.FilterArgs so flags owned by other
// components (-c) do not cause parse errors here.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-t", "-d"})

	fs := flag.NewFlagSet("innerwell", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the backend API")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "request timeout")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local database")

	return fs.Parse(args)
}
