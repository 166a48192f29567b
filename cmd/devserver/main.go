package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/innerwell/internal/buildinfo"
	"github.com/dmitrijs2005/innerwell/internal/devserver"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := devserver.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := devserver.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
