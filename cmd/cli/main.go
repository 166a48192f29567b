package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/innerwell/internal/buildinfo"
	"github.com/dmitrijs2005/innerwell/internal/client/cli"
	"github.com/dmitrijs2005/innerwell/internal/client/config"
	"github.com/dmitrijs2005/innerwell/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
