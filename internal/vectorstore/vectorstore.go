// Package vectorstore provides the vector index used for retrieval.
//
// Two backends implement the Index contract: an embedded on-disk index
// (chromem-go) for single-node setups, and PostgreSQL with the pgvector
// extension for deployments that need ANN search over larger corpora.
// Callers compute embeddings upstream; the index never calls a provider.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch indicates the parallel upsert slices differ in length.
	ErrLengthMismatch = errors.New("parallel slices have mismatched lengths")

	// ErrIndexLocked indicates another process holds the local index directory.
	ErrIndexLocked = errors.New("index directory is locked by another process")

	// ErrDimensionMismatch indicates an embedding does not match the index
	// dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Distance metrics supported by the backends.
const (
	MetricCosine = "cosine"
	MetricL2     = "l2"
	MetricIP     = "ip"
)

// QueryResult holds nearest-neighbor matches as parallel slices, ordered by
// ascending distance. All slices have the same length.
type QueryResult struct {
	IDs       []string
	Texts     []string
	Metadatas []map[string]string
	Distances []float32
}

// Index is the vector index contract. Implementations are safe for
// concurrent use.
type Index interface {
	// Upsert inserts or replaces records identified by ids. The four
	// slices are parallel; a length mismatch fails before any write.
	Upsert(ctx context.Context, ids, texts []string, metadatas []map[string]string, embeddings [][]float32) error

	// Query returns up to topK nearest neighbors of embedding. When the
	// index holds fewer than topK records, all of them are returned.
	Query(ctx context.Context, embedding []float32, topK int) (*QueryResult, error)

	// Count reports the number of stored records.
	Count(ctx context.Context) (int, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// validateUpsert checks the parallel-slice contract shared by both backends.
func validateUpsert(ids, texts []string, metadatas []map[string]string, embeddings [][]float32) error {
	n := len(ids)
	if len(texts) != n || len(metadatas) != n || len(embeddings) != n {
		return fmt.Errorf("%w: ids=%d texts=%d metadatas=%d embeddings=%d",
			ErrLengthMismatch, n, len(texts), len(metadatas), len(embeddings))
	}
	return nil
}
