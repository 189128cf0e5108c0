package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/reliefhq/relief/internal/app"
	"github.com/reliefhq/relief/internal/config"
	"github.com/reliefhq/relief/internal/crawl"
	"github.com/reliefhq/relief/internal/log"
)

// runCrawl breadth-first crawls the given seed URLs and indexes the
// extracted page text.
func runCrawl(logger log.Logger) error {
	crawlFlags := flag.NewFlagSet("crawl", flag.ContinueOnError)
	crawlFlags.SetOutput(os.Stderr)
	domains := crawlFlags.String("domains", "", "Comma-separated list of allowed domains")
	maxPages := crawlFlags.Int("max-pages", 0, "Page budget override (0 uses the configured default)")

	if err := crawlFlags.Parse(os.Args[2:]); err != nil {
		return fmt.Errorf("parsing crawl flags: %w", err)
	}
	seeds := crawlFlags.Args()
	if len(seeds) == 0 {
		return fmt.Errorf("usage: relief crawl [-domains a.com,b.com] [-max-pages n] <seeds...>")
	}

	var allowed []string
	for _, d := range strings.Split(*domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			allowed = append(allowed, d)
		}
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

	res, err := a.Crawler.Crawl(ctx, crawl.Request{
		Seeds:          seeds,
		AllowedDomains: allowed,
		MaxPages:       *maxPages,
	})
	if err != nil {
		return fmt.Errorf("crawling: %w", err)
	}

	fmt.Printf("Crawled %d pages, indexed %d\n", len(res.Visited), res.PagesIndexed)
	return nil
}
