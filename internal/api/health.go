package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reliefhq/relief/internal/log"
)

// HealthHandler handles the liveness and readiness probes.
type HealthHandler struct {
	pool   *pgxpool.Pool // nil for the local vector store
	index  Counter
	logger log.Logger
}

// NewHealthHandler creates a health handler. With a nil pool, readiness
// probes the vector store directly.
func NewHealthHandler(pool *pgxpool.Pool, index Counter, logger log.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, index: index, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 once the vector store answers.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "error", err)
			http.Error(w, "database not ready", http.StatusServiceUnavailable)
			return
		}
	} else if h.index != nil {
		if _, err := h.index.Count(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "error", err)
			http.Error(w, "vector store not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
