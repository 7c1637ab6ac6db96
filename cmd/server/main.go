package main

import (
	"flag"

	"github.com/planflow/backend/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	app, err := Bootstrap(*configPath)
	if err != nil {
		logger.Fatalf("failed to bootstrap: %v", err)
	}

	if err := app.Run(); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
