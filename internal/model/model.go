// Package model wraps the Genkit AI runtime behind two narrow gateways:
// an Embedder that turns text batches into vectors and a Generator that
// produces grounded completions. The provider (remote Gemini or local
// Ollama) is chosen once at startup from configuration; callers never see
// provider-specific types.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/reliefhq/relief/internal/config"
	"github.com/reliefhq/relief/internal/log"
)

// Client holds the initialized Genkit runtime and the provider-bound
// embedder. Build one per process with Setup.
type Client struct {
	Genkit   *genkit.Genkit
	embedder ai.Embedder
	cfg      *config.Config
	logger   log.Logger
}

// Setup initializes Genkit with the configured provider plugin and
// resolves the embedder. API keys are read from the environment by the
// plugins themselves (GEMINI_API_KEY for the googlegenai plugin).
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		g        *genkit.Genkit
		embedder ai.Embedder
	)

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit registration; there is no discovery.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		embedder = ollama.Embedder(g, cfg.OllamaHost)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderGemini:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}

	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	return &Client{Genkit: g, embedder: embedder, cfg: cfg, logger: logger}, nil
}

// Embedder returns the embedding gateway bound to this client.
func (c *Client) Embedder() *Embedder {
	return &Embedder{
		embedder: c.embedder,
		model:    c.cfg.EmbedderModel,
		dim:      c.cfg.EmbeddingDim,
		logger:   c.logger,
	}
}

// Generator returns the generation gateway bound to this client.
func (c *Client) Generator() *Generator {
	return &Generator{
		g:      c.Genkit,
		model:  c.cfg.FullModelName(),
		logger: c.logger,
	}
}
