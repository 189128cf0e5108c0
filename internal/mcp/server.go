// Package mcp exposes the knowledge base to MCP clients over stdio.
// Two tools are served: ask (grounded question answering) and search
// (raw nearest-neighbor retrieval).
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reliefhq/relief/internal/answer"
	"github.com/reliefhq/relief/internal/log"
	"github.com/reliefhq/relief/internal/vectorstore"
)

// Answerer is the slice of the orchestrator the MCP tools need.
type Answerer interface {
	Answer(ctx context.Context, question string, topK int) (*answer.Result, error)
	Search(ctx context.Context, query string, topK int) (*vectorstore.QueryResult, error)
}

// Server wraps the MCP SDK server around the query orchestrator.
type Server struct {
	mcpServer *mcp.Server
	answerer  Answerer
	logger    log.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// NewServer creates an MCP server with the ask and search tools
// registered.
func NewServer(cfg Config, answerer Answerer, logger log.Logger) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		answerer: answerer,
		logger:   logger,
	}
	if err := s.registerAsk(); err != nil {
		return nil, fmt.Errorf("registering ask: %w", err)
	}
	if err := s.registerSearch(); err != nil {
		return nil, fmt.Errorf("registering search: %w", err)
	}
	return s, nil
}

// Run serves the MCP protocol on the given transport until ctx is done.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// AskInput defines the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"The question to answer from the indexed knowledge base"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"How many chunks to retrieve (0 uses the configured default)"`
}

func (s *Server) registerAsk() error {
	inputSchema, err := jsonschema.For[AskInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "ask",
		Description: "Answer a pressure-relief-valve engineering question grounded on the indexed knowledge base. Returns the answer and the sources it was grounded on.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, any, error) {
		res, err := s.answerer.Answer(ctx, in.Question, in.TopK)
		if err != nil {
			s.logger.Error("ask tool failed", "error", err)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			}, nil, nil
		}

		payload, err := json.Marshal(res)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding result: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		}, nil, nil
	})
	return nil
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"The text to search the knowledge base for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"How many chunks to retrieve (0 uses the configured default)"`
}

// SearchMatch is one retrieval hit in the search tool output.
type SearchMatch struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float32           `json:"distance"`
}

func (s *Server) registerSearch() error {
	inputSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the chunks nearest to a query from the indexed knowledge base, without generation. Returns ids, texts, metadata and distances.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
		res, err := s.answerer.Search(ctx, in.Query, in.TopK)
		if err != nil {
			s.logger.Error("search tool failed", "error", err)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			}, nil, nil
		}

		matches := make([]SearchMatch, len(res.IDs))
		for i := range res.IDs {
			matches[i] = SearchMatch{
				ID:       res.IDs[i],
				Text:     res.Texts[i],
				Metadata: res.Metadatas[i],
				Distance: res.Distances[i],
			}
		}
		payload, err := json.Marshal(matches)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding matches: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		}, nil, nil
	})
	return nil
}
