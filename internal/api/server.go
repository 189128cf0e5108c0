// Package api exposes the service over HTTP.
//
// Endpoints:
//
//	GET  /health          liveness probe
//	GET  /ready           readiness probe (checks the vector store)
//	POST /api/v1/upload   multipart upload → save → ingest
//	POST /api/v1/ingest   ingest server-local text files by path
//	POST /api/v1/crawl    breadth-first crawl and index
//	POST /api/v1/chat     retrieval-grounded question answering
//
// Middleware order: recovery → request id → logging → CORS → rate limit.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reliefhq/relief/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is generous: crawl and chat requests do real work.
	WriteTimeout = 10 * time.Minute

	// IdleTimeout applies to keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Config carries the HTTP-surface settings the server needs.
type Config struct {
	UploadDir   string
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
	TrustProxy  bool
}

// Server is the HTTP server. Construct with NewServer; serve with Run.
type Server struct {
	mux     *http.ServeMux
	cfg     Config
	logger  log.Logger
	limiter *rateLimiter

	health *HealthHandler
	ingest *IngestHandler
	crawl  *CrawlHandler
	chat   *ChatHandler
}

// NewServer registers all routes. pool may be nil (local vector store);
// readiness then falls back to a store count probe.
func NewServer(cfg Config, deps Deps, pool *pgxpool.Pool, logger log.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		cfg:     cfg,
		logger:  logger,
		limiter: newRateLimiter(cfg.RateLimit, cfg.RateBurst),
		health:  NewHealthHandler(pool, deps.Index, logger),
		ingest:  NewIngestHandler(deps.Ingestor, cfg.UploadDir, logger),
		crawl:   NewCrawlHandler(deps.Crawler, logger),
		chat:    NewChatHandler(deps.Answerer, logger),
	}

	s.health.RegisterRoutes(mux)
	s.ingest.RegisterRoutes(mux)
	s.crawl.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)

	return s
}

// Handler returns the mux with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
		corsMiddleware(s.cfg.CORSOrigins),
		rateLimitMiddleware(s.limiter, s.cfg.TrustProxy, s.logger),
	)
}

// Run starts the server and blocks until ctx is canceled or the listener
// fails, shutting down gracefully on cancellation.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
