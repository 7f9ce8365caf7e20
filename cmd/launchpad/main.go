// ====================================
// File: cmd/launchpad/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/app"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/utils/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml/json/toml)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting launchpad")

	runner := app.NewRunner(cfg, log.Logger, app.WithLogLevel(log.Level()))
	if err := runner.Initialize(ctx); err != nil {
		log.Error("Failed to initialize launchpad", zap.Error(err))
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil {
		log.Error("Launchpad stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Launchpad stopped")
}
