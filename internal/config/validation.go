package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"
)

// pgvectorEmbeddingDim matches the vector(768) column created by the
// documents migration. A different dimension would pass validation and
// then fail on the first upsert with a raw database error.
const pgvectorEmbeddingDim = 768

// Validate checks configuration correctness. It is called by Load after
// unmarshalling, so components can assume any Config they receive has
// already passed.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	if err := c.validateVectorStore(); err != nil {
		return err
	}
	if err := c.validateCrawl(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProvider() error {
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY required for provider %q", ErrMissingAPIKey, c.Provider)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: host is empty", ErrInvalidOllamaHost)
		}
		u, err := url.Parse(c.OllamaHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q is not a valid URL", ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)", ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}
	return nil
}

func (c *Config) validateModels() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidEmbeddingDim, c.EmbeddingDim)
	}
	return nil
}

func (c *Config) validateChunking() error {
	if c.ChunkSizeTokens > 0 && c.ChunkOverlapTokens >= c.ChunkSizeTokens {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d",
			ErrInvalidChunking, c.ChunkOverlapTokens, c.ChunkSizeTokens)
	}
	if c.ChunkOverlapTokens < 0 {
		return fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidChunking, c.ChunkOverlapTokens)
	}
	return nil
}

func (c *Config) validateRetrieval() error {
	if c.TopK <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidTopK, c.TopK)
	}
	if c.MaxContextTokens <= 0 {
		return fmt.Errorf("%w: max_context_tokens %d must be positive", ErrInvalidTopK, c.MaxContextTokens)
	}
	switch c.Distance {
	case DistanceCosine, DistanceL2, DistanceIP:
	default:
		return fmt.Errorf("%w: %q (expected %q, %q or %q)",
			ErrInvalidDistance, c.Distance, DistanceCosine, DistanceL2, DistanceIP)
	}
	return nil
}

func (c *Config) validateVectorStore() error {
	switch c.VectorStore {
	case StoreLocal:
		if strings.TrimSpace(c.LocalIndexPath) == "" {
			return fmt.Errorf("%w: local_index_path is empty", ErrInvalidVectorStore)
		}
	case StorePgvector:
		if c.EmbeddingDim != pgvectorEmbeddingDim {
			return fmt.Errorf("%w: %d (the pgvector schema stores vector(%d))",
				ErrInvalidEmbeddingDim, c.EmbeddingDim, pgvectorEmbeddingDim)
		}
		if c.IVFFlatLists <= 0 {
			return fmt.Errorf("%w: ivfflat_lists %d must be positive", ErrInvalidVectorStore, c.IVFFlatLists)
		}
		return c.validatePostgres()
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidVectorStore, c.VectorStore, StoreLocal, StorePgvector)
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !utf8.ValidString(c.PostgresPassword) {
		return fmt.Errorf("%w: password is not valid UTF-8", ErrInvalidPostgresPassword)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

func (c *Config) validateCrawl() error {
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("%w: max_pages %d must be positive", ErrInvalidCrawl, c.Crawl.MaxPages)
	}
	if c.Crawl.TimeoutMs <= 0 {
		return fmt.Errorf("%w: timeout_ms %d must be positive", ErrInvalidCrawl, c.Crawl.TimeoutMs)
	}
	for _, d := range c.Crawl.AllowedDomains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("%w: allowed_domains contains an empty entry", ErrInvalidCrawl)
		}
	}
	return nil
}
