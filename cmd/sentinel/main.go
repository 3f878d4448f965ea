package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"sentinel/internal/app"
	"sentinel/internal/clock"
	"sentinel/internal/config"
)

// main starts the response engine service from one TOML config file.
// Params: CLI flag --config.
// Returns: process exit code by startup/run result.
func main() {
	configFile := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	path, err := config.FromCLI(*configFile)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	cfg, err := config.Load(path)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "config load failed:", err.Error())
		os.Exit(2)
	}

	service, err := app.NewService(cfg, clock.RealClock{})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service init failed:", err.Error())
		os.Exit(1)
	}

	if err := service.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service run failed:", err.Error())
		os.Exit(1)
	}
}
