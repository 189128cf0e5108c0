package model

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/reliefhq/relief/internal/log"
)

// embedTimeout bounds one provider embedding call.
const embedTimeout = 60 * time.Second

// Embedder batches texts through the provider's embedding model.
// It does not retry; retry policy belongs to the caller that knows
// whether the surrounding operation is worth repeating.
type Embedder struct {
	embedder ai.Embedder
	model    string
	dim      int
	logger   log.Logger
}

// Embed returns one vector per input text, in input order. The response
// must be length-preserving and match the configured dimensionality;
// anything else is a provider error.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	start := time.Now()
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts with %s: %w", len(texts), e.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder %s returned %d vectors for %d texts",
			e.model, len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != e.dim {
			return nil, fmt.Errorf("embedder %s returned %d dimensions, index expects %d",
				e.model, len(emb.Embedding), e.dim)
		}
		out[i] = emb.Embedding
	}

	e.logger.Debug("embedded batch",
		"texts", len(texts), "model", e.model, "elapsed", time.Since(start))
	return out, nil
}

// EmbedOne is a convenience wrapper for single-text callers.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
