package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/reliefhq/relief/internal/crawl"
	"github.com/reliefhq/relief/internal/log"
)

// CrawlHandler handles crawl requests.
type CrawlHandler struct {
	crawler Crawler
	logger  log.Logger
}

// NewCrawlHandler creates a crawl handler.
func NewCrawlHandler(crawler Crawler, logger log.Logger) *CrawlHandler {
	return &CrawlHandler{crawler: crawler, logger: logger}
}

// RegisterRoutes registers the crawl route on the given mux.
func (h *CrawlHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/crawl", h.crawl)
}

// CrawlRequest mirrors the public crawl schema. Omitted fields fall back
// to configured defaults.
type CrawlRequest struct {
	Seeds          []string `json:"seeds"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	MaxPages       int      `json:"max_pages,omitempty"`
}

// CrawlResponse mirrors the public crawl schema.
type CrawlResponse struct {
	Success      bool   `json:"success"`
	PagesIndexed int    `json:"pages_indexed"`
	Message      string `json:"message"`
}

func (h *CrawlHandler) crawl(w http.ResponseWriter, r *http.Request) {
	var req CrawlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}
	if len(req.Seeds) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "seeds is required", h.logger)
		return
	}

	res, err := h.crawler.Crawl(r.Context(), crawl.Request{
		Seeds:          req.Seeds,
		AllowedDomains: req.AllowedDomains,
		MaxPages:       req.MaxPages,
	})
	if err != nil {
		if errors.Is(err, crawl.ErrNoSeeds) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error(), h.logger)
			return
		}
		h.logger.Error("crawl failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "crawl failed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, CrawlResponse{
		Success:      true,
		PagesIndexed: res.PagesIndexed,
		Message:      fmt.Sprintf("Crawled %d pages", len(res.Visited)),
	}, h.logger)
}
