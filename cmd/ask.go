package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/reliefhq/relief/internal/app"
	"github.com/reliefhq/relief/internal/config"
	"github.com/reliefhq/relief/internal/log"
)

// runAsk answers a single question from the indexed knowledge base and
// prints the answer with its sources.
func runAsk(logger log.Logger) error {
	question := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if question == "" {
		return fmt.Errorf("usage: relief ask <question>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	res, err := a.Orchestrator.Answer(ctx, question, 0)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(res.Answer)
	if len(res.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range res.Sources {
			fmt.Printf("  %.3f  %s\n", src.Score, src.URI)
		}
	}
	return nil
}
