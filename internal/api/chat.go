package api

import (
	"net/http"
	"strings"

	"github.com/reliefhq/relief/internal/answer"
	"github.com/reliefhq/relief/internal/log"
)

// ChatHandler handles question answering.
type ChatHandler struct {
	answerer Answerer
	logger   log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(answerer Answerer, logger log.Logger) *ChatHandler {
	return &ChatHandler{answerer: answerer, logger: logger}
}

// RegisterRoutes registers the chat route on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chat", h.chat)
}

// ChatRequest mirrors the public chat schema. TopK <= 0 uses the
// configured default.
type ChatRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// ChatResponse mirrors the public chat schema.
type ChatResponse struct {
	Answer  string          `json:"answer"`
	Sources []answer.Source `json:"sources"`
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required", h.logger)
		return
	}

	res, err := h.answerer.Answer(r.Context(), req.Query, req.TopK)
	if err != nil {
		h.logger.Error("answering failed", "error", err)
		writeError(w, http.StatusBadGateway, "provider_error", "answering failed", h.logger)
		return
	}

	sources := res.Sources
	if sources == nil {
		sources = []answer.Source{}
	}
	writeJSON(w, http.StatusOK, ChatResponse{Answer: res.Answer, Sources: sources}, h.logger)
}
