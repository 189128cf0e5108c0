// Package answer orchestrates question answering over the indexed corpus:
// embed the question, retrieve the nearest chunks, assemble a grounding
// prompt, and generate a completion with bounded retry. Generation is the
// only step that retries; retrieval and embedding fail the operation
// directly.
package answer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/reliefhq/relief/internal/log"
	"github.com/reliefhq/relief/internal/vectorstore"
)

// Embedder is the slice of the model gateway the orchestrator needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Index is the slice of the vector index the orchestrator needs.
type Index interface {
	Query(ctx context.Context, embedding []float32, topK int) (*vectorstore.QueryResult, error)
}

// Generator is the slice of the model gateway that produces completions.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Source identifies a chunk that grounded an answer.
type Source struct {
	ID      string  `json:"id"`
	URI     string  `json:"uri"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Result is a grounded answer with the sources that produced it.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Options tunes an Orchestrator beyond its required collaborators.
type Options struct {
	// DefaultTopK is used when Answer receives topK <= 0.
	DefaultTopK int
	// MaxContextTokens bounds the grounding context size.
	MaxContextTokens int
	// Metric selects score normalization (cosine, l2, ip).
	Metric string
	// Retry overrides the default generation retry policy.
	Retry *RetryConfig
	// Limiter, when set, is waited on before every generation attempt.
	Limiter *rate.Limiter
	// Logger defaults to slog.Default().
	Logger log.Logger
}

// Orchestrator answers questions against the indexed corpus.
type Orchestrator struct {
	embedder  Embedder
	index     Index
	generator Generator

	defaultTopK      int
	maxContextTokens int
	metric           string
	retry            RetryConfig
	limiter          *rate.Limiter
	logger           log.Logger
}

// New wires an Orchestrator.
func New(embedder Embedder, index Index, generator Generator, opts Options) *Orchestrator {
	retryCfg := DefaultRetryConfig()
	if opts.Retry != nil {
		retryCfg = *opts.Retry
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := opts.DefaultTopK
	if topK <= 0 {
		topK = 8
	}
	maxCtx := opts.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = 6000
	}
	metric := opts.Metric
	if metric == "" {
		metric = vectorstore.MetricCosine
	}
	return &Orchestrator{
		embedder:         embedder,
		index:            index,
		generator:        generator,
		defaultTopK:      topK,
		maxContextTokens: maxCtx,
		metric:           metric,
		retry:            retryCfg,
		limiter:          opts.Limiter,
		logger:           logger,
	}
}

// noMatchAnswer is returned without a generation call when retrieval finds
// nothing to ground on.
const noMatchAnswer = "I could not find anything in the indexed knowledge base related to this question. Try ingesting relevant documentation first."

// Answer runs the full retrieve-then-generate flow for one question.
// topK <= 0 falls back to the configured default.
func (o *Orchestrator) Answer(ctx context.Context, question string, topK int) (*Result, error) {
	if topK <= 0 {
		topK = o.defaultTopK
	}

	embedding, err := o.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := o.index.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	if len(matches.IDs) == 0 {
		o.logger.Info("no matches for question, skipping generation")
		return &Result{Answer: noMatchAnswer}, nil
	}

	prompt, used := o.buildPrompt(question, matches)
	o.logger.Debug("assembled grounding prompt",
		"matches", len(matches.IDs), "used_chunks", used, "top_k", topK)

	completion, err := o.generateWithRetry(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Result{
		Answer:  completion,
		Sources: o.collectSources(matches, used),
	}, nil
}

// Search runs retrieval only, returning the raw nearest-neighbor matches.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int) (*vectorstore.QueryResult, error) {
	if topK <= 0 {
		topK = o.defaultTopK
	}
	embedding, err := o.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := o.index.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving matches: %w", err)
	}
	return matches, nil
}

// collectSources deduplicates the used matches by source URI, keeping
// first-seen (nearest) order. The snippet and score come from the nearest
// chunk of each source.
func (o *Orchestrator) collectSources(matches *vectorstore.QueryResult, used int) []Source {
	seen := map[string]bool{}
	var sources []Source
	for i := 0; i < used; i++ {
		uri := matches.Metadatas[i]["source"]
		if uri == "" {
			uri = matches.IDs[i]
		}
		if seen[uri] {
			continue
		}
		seen[uri] = true
		sources = append(sources, Source{
			ID:      matches.IDs[i],
			URI:     uri,
			Snippet: snippet(matches.Texts[i]),
			Score:   normalizeScore(o.metric, float64(matches.Distances[i])),
		})
	}
	return sources
}

// snippetLimit caps source snippets.
const snippetLimit = 400

func snippet(text string) string {
	if len(text) <= snippetLimit {
		return text
	}
	// Cut at a rune boundary at or below the limit.
	cut := snippetLimit
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut]
}
