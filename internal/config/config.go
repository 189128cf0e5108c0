// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.relief/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider selection, generation model, embedder model
//   - Chunking: token window size and overlap
//   - Retrieval: default top-K, max context tokens, distance metric
//   - Vector store: local embedded index vs. PostgreSQL/pgvector
//   - Crawling: page budget, allowed domains, fetch timeout
//
// Validation is fail-fast: Load returns a sentinel error (checkable with
// errors.Is) for any bad combination, and no component is constructed from
// an invalid Config. Sensitive fields are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDim indicates the embedding dimensionality is invalid.
	ErrInvalidEmbeddingDim = errors.New("invalid embedding dimension")

	// ErrInvalidChunking indicates a bad chunk size / overlap combination.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the default top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidVectorStore indicates an unknown vector store backend.
	ErrInvalidVectorStore = errors.New("invalid vector store")

	// ErrInvalidDistance indicates an unknown distance metric.
	ErrInvalidDistance = errors.New("invalid distance metric")

	// ErrInvalidCrawl indicates a bad crawl configuration value.
	ErrInvalidCrawl = errors.New("invalid crawl configuration")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// Vector store backend identifiers used in Config.VectorStore.
const (
	StoreLocal    = "local"
	StorePgvector = "pgvector"
)

// Distance metric identifiers used in Config.Distance.
const (
	DistanceCosine = "cosine"
	DistanceL2     = "l2"
	DistanceIP     = "ip"
)

// DefaultGeminiEmbedderModel is the default remote embedder model.
// gemini-embedding-001 supports truncation to 768 dimensions via
// OutputDimensionality; the pgvector schema is created for 768.
const DefaultGeminiEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"` // "gemini" (default) or "ollama"
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDim  int     `mapstructure:"embedding_dim" json:"embedding_dim"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Chunking configuration (token units, not characters)
	ChunkSizeTokens    int `mapstructure:"chunk_size_tokens" json:"chunk_size_tokens"`
	ChunkOverlapTokens int `mapstructure:"chunk_overlap_tokens" json:"chunk_overlap_tokens"`

	// Retrieval / generation configuration
	TopK             int    `mapstructure:"top_k" json:"top_k"`
	MaxContextTokens int    `mapstructure:"max_context_tokens" json:"max_context_tokens"`
	Distance         string `mapstructure:"distance" json:"distance"`

	// Vector store configuration
	VectorStore    string `mapstructure:"vector_store" json:"vector_store"` // "local" or "pgvector"
	LocalIndexPath string `mapstructure:"local_index_path" json:"local_index_path"`
	IVFFlatLists   int    `mapstructure:"ivfflat_lists" json:"ivfflat_lists"`

	// PostgreSQL configuration (pgvector backend only)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Crawler configuration (see crawl.go)
	Crawl CrawlConfig `mapstructure:"crawl" json:"crawl"`

	// HTTP surface configuration
	UploadDir   string   `mapstructure:"upload_dir" json:"upload_dir"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateLimit   float64  `mapstructure:"rate_limit" json:"rate_limit"` // requests per second per client IP
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Forwarded-For / X-Real-IP

	// Provider pacing, independent of the HTTP per-client limit above.
	GenRateLimit float64 `mapstructure:"gen_rate_limit" json:"gen_rate_limit"` // generation calls per second, 0 disables pacing
	GenRateBurst int     `mapstructure:"gen_rate_burst" json:"gen_rate_burst"`

	// Observability (optional OTLP trace export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// CrawlConfig groups crawler settings.
type CrawlConfig struct {
	MaxPages       int      `mapstructure:"max_pages" json:"max_pages"`
	AllowedDomains []string `mapstructure:"allowed_domains" json:"allowed_domains"`
	TimeoutMs      int      `mapstructure:"timeout_ms" json:"timeout_ms"`
	UserAgent      string   `mapstructure:"user_agent" json:"user_agent"`
	Readability    bool     `mapstructure:"readability" json:"readability"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".relief")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* values.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	// AI defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	v.SetDefault("embedding_dim", 768)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Chunking defaults (token units)
	v.SetDefault("chunk_size_tokens", 400)
	v.SetDefault("chunk_overlap_tokens", 60)

	// Retrieval defaults
	v.SetDefault("top_k", 8)
	v.SetDefault("max_context_tokens", 6000)
	v.SetDefault("distance", DistanceCosine)

	// Vector store defaults
	v.SetDefault("vector_store", StoreLocal)
	v.SetDefault("local_index_path", filepath.Join(configDir, "index"))
	v.SetDefault("ivfflat_lists", 100)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "relief")
	v.SetDefault("postgres_password", "relief_dev_password")
	v.SetDefault("postgres_db_name", "relief")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Crawler defaults
	v.SetDefault("crawl.max_pages", 100)
	v.SetDefault("crawl.allowed_domains", []string{})
	v.SetDefault("crawl.timeout_ms", 10000)
	v.SetDefault("crawl.user_agent", "relief-crawler/1.0")
	v.SetDefault("crawl.readability", false)

	// HTTP defaults
	v.SetDefault("upload_dir", filepath.Join(configDir, "uploads"))
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("rate_limit", 5.0)
	v.SetDefault("rate_burst", 10)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("gen_rate_limit", 0.0)
	v.SetDefault("gen_rate_burst", 1)

	// Observability defaults (tracing disabled unless endpoint set)
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "relief")
	v.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit googlegenai plugin, not via
// viper; Validate checks its presence when the gemini provider is selected.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "RELIEF_PROVIDER")
	mustBind("model_name", "RELIEF_MODEL_NAME")
	mustBind("embedder_model", "RELIEF_EMBEDDER_MODEL")
	mustBind("ollama_host", "RELIEF_OLLAMA_HOST")
	mustBind("vector_store", "RELIEF_VECTOR_STORE")
	mustBind("local_index_path", "RELIEF_LOCAL_INDEX_PATH")
	mustBind("cors_origins", "RELIEF_CORS_ORIGINS")
	mustBind("trust_proxy", "RELIEF_TRUST_PROXY")
	mustBind("otlp_endpoint", "RELIEF_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 bytes or
// fewer are fully masked; longer ones keep the first and last two characters
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.1".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == ProviderOllama {
		return ProviderOllama + "/" + c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}
