package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/reliefhq/relief/internal/app"
	"github.com/reliefhq/relief/internal/config"
	"github.com/reliefhq/relief/internal/log"
)

// runIngest indexes plain-text files given on the command line.
func runIngest(logger log.Logger) error {
	paths := os.Args[2:]
	if len(paths) == 0 {
		return fmt.Errorf("usage: relief ingest <paths...>")
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

	chunks, processed := a.Ingestor.IngestPaths(ctx, paths)
	return reportIngest(os.Stdout, chunks, paths, processed)
}

// reportIngest prints the ingest outcome. Processed lists the source URIs
// that were fully indexed; requested paths absent from it were skipped
// (unreadable, empty or failed). Ingesting nothing at all is an error.
func reportIngest(w io.Writer, chunks int, paths, processed []string) error {
	fmt.Fprintf(w, "Indexed %d chunks from %d files\n", chunks, len(processed))

	done := make(map[string]bool, len(processed))
	for _, p := range processed {
		done[p] = true
	}
	var skipped []string
	for _, p := range paths {
		if !done[p] {
			skipped = append(skipped, p)
		}
	}

	if len(skipped) > 0 {
		fmt.Fprintf(w, "Skipped: %d\n", len(skipped))
		for _, p := range skipped {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	if len(processed) == 0 {
		return fmt.Errorf("no files could be ingested")
	}
	return nil
}
