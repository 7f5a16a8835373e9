package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/itsneelabh/insights-agent/internal/config"
	"github.com/itsneelabh/insights-agent/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "insights-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting insights agent", map[string]interface{}{
		"version":   Version,
		"commit":    GitCommit,
		"demo_mode": cfg.Development.DemoMode,
	})

	agent, err := NewInsightsAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = agent.Close() }()

	server := NewServer(cfg, agent, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := server.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
