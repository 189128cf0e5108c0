package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/reliefhq/relief/internal/log"
)

// generateTimeout bounds one completion call.
const generateTimeout = 2 * time.Minute

// ErrEmptyCompletion indicates the model returned no usable text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Generator produces completions from the configured chat model.
type Generator struct {
	g      *genkit.Genkit
	model  string
	logger log.Logger
}

// Generate runs one completion with the given system prompt and user
// prompt and returns the text of the response.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	start := time.Now()
	resp, err := genkit.Generate(ctx, g.g,
		ai.WithModelName(g.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", g.model, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w (model %s)", ErrEmptyCompletion, g.model)
	}

	g.logger.Debug("generated completion",
		"model", g.model, "prompt_bytes", len(prompt), "elapsed", time.Since(start))
	return text, nil
}
