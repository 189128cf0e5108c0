// Package app wires the application together: configuration in, a fully
// connected App out. All dependencies are explicit handles on the App;
// there are no package-level singletons, so tests and commands construct
// exactly what they need.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/reliefhq/relief/db"
	"github.com/reliefhq/relief/internal/answer"
	"github.com/reliefhq/relief/internal/chunk"
	"github.com/reliefhq/relief/internal/config"
	"github.com/reliefhq/relief/internal/crawl"
	"github.com/reliefhq/relief/internal/ingest"
	"github.com/reliefhq/relief/internal/log"
	"github.com/reliefhq/relief/internal/model"
	"github.com/reliefhq/relief/internal/vectorstore"
)

// App is the application container. Build one with Setup and release it
// with Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Model        *model.Client
	Index        vectorstore.Index
	Pool         *pgxpool.Pool // nil for the local backend
	Ingestor     *ingest.Ingestor
	Crawler      *crawl.Crawler
	Orchestrator *answer.Orchestrator

	otelCleanup func()
}

// Setup initializes every component from validated configuration.
// On failure it tears down whatever was already initialized.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	client, err := model.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up model provider: %w", err)
	}
	a.Model = client

	index, pool, err := provideIndex(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up vector store: %w", err)
	}
	a.Index = index
	a.Pool = pool

	splitter, err := chunk.New(cfg.ChunkSizeTokens, cfg.ChunkOverlapTokens)
	if err != nil {
		// Validate() already rejects this combination; reaching here is a bug.
		return nil, fmt.Errorf("creating splitter: %w", err)
	}

	a.Ingestor = ingest.New(splitter, client.Embedder(), index, logger)
	a.Crawler = crawl.New(a.Ingestor, crawl.Config{
		MaxPages:       cfg.Crawl.MaxPages,
		AllowedDomains: cfg.Crawl.AllowedDomains,
		Timeout:        time.Duration(cfg.Crawl.TimeoutMs) * time.Millisecond,
		UserAgent:      cfg.Crawl.UserAgent,
		Readability:    cfg.Crawl.Readability,
	}, logger)
	a.Orchestrator = answer.New(client.Embedder(), index, client.Generator(), answer.Options{
		DefaultTopK:      cfg.TopK,
		MaxContextTokens: cfg.MaxContextTokens,
		Metric:           cfg.Distance,
		Limiter:          provideGenLimiter(cfg),
		Logger:           logger,
	})

	logger.Info("application ready",
		"provider", cfg.Provider,
		"vector_store", cfg.VectorStore,
		"model", cfg.ModelName)
	return a, nil
}

// provideGenLimiter builds the generation pacer. gen_rate_limit is a
// provider-call budget, separate from the per-client HTTP rate limit;
// zero disables pacing entirely.
func provideGenLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.GenRateLimit <= 0 {
		return nil
	}
	burst := cfg.GenRateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.GenRateLimit), burst)
}

// provideIndex selects and initializes the configured vector store
// backend. The pgvector path migrates the schema first.
func provideIndex(ctx context.Context, cfg *config.Config, logger log.Logger) (vectorstore.Index, *pgxpool.Pool, error) {
	switch cfg.VectorStore {
	case config.StoreLocal:
		idx, err := vectorstore.NewLocal(cfg.LocalIndexPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return idx, nil, nil

	case config.StorePgvector:
		if err := db.Migrate(cfg.PostgresURL()); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		pool, err := vectorstore.NewPool(ctx, cfg.PostgresConnectionString())
		if err != nil {
			return nil, nil, err
		}
		idx, err := vectorstore.NewPG(ctx, pool, cfg.Distance, cfg.EmbeddingDim, cfg.IVFFlatLists, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return idx, pool, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidVectorStore, cfg.VectorStore)
	}
}

// Close releases resources in reverse initialization order. It is safe to
// call on a partially initialized App.
func (a *App) Close() error {
	var firstErr error

	if a.Index != nil {
		if err := a.Index.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing index: %w", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	a.Logger.Debug("application closed")
	return firstErr
}
