package model

import (
	"context"
	"fmt"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/reliefhq/relief/internal/log"
)

// fakeEmbedder implements ai.Embedder with canned behavior.
type fakeEmbedder struct {
	dim      int
	short    bool // return one vector fewer than requested
	fail     bool
	requests []int // batch sizes seen
}

func (f *fakeEmbedder) Name() string { return "fake/embedder" }

func (f *fakeEmbedder) Register(api.Registry) {}

func (f *fakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	f.requests = append(f.requests, len(req.Input))
	if f.fail {
		return nil, fmt.Errorf("upstream unavailable")
	}
	n := len(req.Input)
	if f.short && n > 0 {
		n--
	}
	resp := &ai.EmbedResponse{}
	for i := 0; i < n; i++ {
		vec := make([]float32, f.dim)
		vec[0] = float32(i + 1) // distinguishable per position
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

func newTestEmbedder(f *fakeEmbedder) *Embedder {
	return &Embedder{embedder: f, model: "fake", dim: f.dim, logger: log.NewNop()}
}

func TestEmbedPreservesOrderAndLength(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	e := newTestEmbedder(fake)

	vecs, err := e.Embed(context.Background(), []string{"first", "second", "third"})
	if err != nil {
		t.Fatalf("Embed() = %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("Embed() returned %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 4 {
			t.Errorf("vector %d has dim %d, want 4", i, len(v))
		}
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: marker = %v", i, v[0])
		}
	}
	// The whole batch goes out in one request.
	if len(fake.requests) != 1 || fake.requests[0] != 3 {
		t.Errorf("requests = %v, want one batch of 3", fake.requests)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	e := newTestEmbedder(fake)

	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("Embed(nil) = %v, %v, want nil, nil", vecs, err)
	}
	if len(fake.requests) != 0 {
		t.Error("Embed(nil) called the provider")
	}
}

func TestEmbedLengthMismatchIsError(t *testing.T) {
	e := newTestEmbedder(&fakeEmbedder{dim: 4, short: true})

	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("Embed() accepted a short response")
	}
}

func TestEmbedDimensionMismatchIsError(t *testing.T) {
	fake := &fakeEmbedder{dim: 8}
	e := &Embedder{embedder: fake, model: "fake", dim: 4, logger: log.NewNop()}

	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("Embed() accepted wrong-dimension vectors")
	}
}

func TestEmbedProviderErrorPropagates(t *testing.T) {
	e := newTestEmbedder(&fakeEmbedder{dim: 4, fail: true})

	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("Embed() swallowed a provider error")
	}
}

func TestEmbedOne(t *testing.T) {
	e := newTestEmbedder(&fakeEmbedder{dim: 4})

	vec, err := e.EmbedOne(context.Background(), "question")
	if err != nil {
		t.Fatalf("EmbedOne() = %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("EmbedOne() dim = %d, want 4", len(vec))
	}
}
