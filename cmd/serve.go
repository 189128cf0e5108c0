package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/reliefhq/relief/internal/api"
	"github.com/reliefhq/relief/internal/app"
	"github.com/reliefhq/relief/internal/config"
	"github.com/reliefhq/relief/internal/log"
)

// runServe initializes and starts the HTTP API server.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(os.Args[2:])
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting HTTP API server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv := api.NewServer(api.Config{
		UploadDir:   cfg.UploadDir,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		TrustProxy:  cfg.TrustProxy,
	}, api.Deps{
		Ingestor: a.Ingestor,
		Crawler:  a.Crawler,
		Answerer: a.Orchestrator,
		Index:    a.Index,
	}, a.Pool, logger)

	return srv.Run(ctx, addr)
}
