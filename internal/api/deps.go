package api

import (
	"context"

	"github.com/reliefhq/relief/internal/answer"
	"github.com/reliefhq/relief/internal/crawl"
)

// Ingestor is what the upload and ingest endpoints need.
type Ingestor interface {
	IngestPaths(ctx context.Context, paths []string) (int, []string)
}

// Crawler is what the crawl endpoint needs.
type Crawler interface {
	Crawl(ctx context.Context, req crawl.Request) (*crawl.Result, error)
}

// Answerer is what the chat endpoint needs.
type Answerer interface {
	Answer(ctx context.Context, question string, topK int) (*answer.Result, error)
}

// Counter is what the readiness probe uses when no database pool exists.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Deps bundles the collaborators handlers are built from.
type Deps struct {
	Ingestor Ingestor
	Crawler  Crawler
	Answerer Answerer
	Index    Counter
}
