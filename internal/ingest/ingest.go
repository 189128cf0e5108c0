// Package ingest turns documents into indexed chunks: split into token
// windows, embed the batch, upsert into the vector index. Chunk IDs are
// derived from the source URI, so ingesting a source again replaces its
// previous chunks.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/reliefhq/relief/internal/chunk"
	"github.com/reliefhq/relief/internal/log"
)

// Embedder is the slice of the model gateway the ingestor needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Upserter is the slice of the vector index the ingestor needs.
type Upserter interface {
	Upsert(ctx context.Context, ids, texts []string, metadatas []map[string]string, embeddings [][]float32) error
}

// Document is one unit of ingestable content.
type Document struct {
	SourceURI string
	Text      string
}

// Ingestor runs the chunk → embed → upsert pipeline.
type Ingestor struct {
	splitter *chunk.Splitter
	embedder Embedder
	index    Upserter
	logger   log.Logger
}

// New wires an Ingestor. A nil logger falls back to slog.Default().
func New(splitter *chunk.Splitter, embedder Embedder, index Upserter, logger log.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{splitter: splitter, embedder: embedder, index: index, logger: logger}
}

// Ingest processes each document independently: a failing document is
// logged and excluded from the processed list, and the rest continue.
// It returns the total number of chunks indexed and the source URIs that
// were fully processed.
func (in *Ingestor) Ingest(ctx context.Context, docs []Document) (int, []string) {
	total := 0
	var processed []string
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			in.logger.Warn("ingest canceled", "remaining", len(docs)-i)
			break
		}
		n, err := in.IngestText(ctx, doc.Text, doc.SourceURI)
		if err != nil {
			in.logger.Error("ingest failed, skipping document",
				"source", doc.SourceURI, "error", err)
			continue
		}
		if n == 0 {
			in.logger.Debug("document produced no chunks", "source", doc.SourceURI)
			continue
		}
		total += n
		processed = append(processed, doc.SourceURI)
	}
	return total, processed
}

// IngestText indexes a single document and returns the number of chunks
// written. Empty input indexes nothing and is not an error.
func (in *Ingestor) IngestText(ctx context.Context, text, sourceURI string) (int, error) {
	chunks := in.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]string, len(chunks))
	for i := range chunks {
		ids[i] = chunk.ID(sourceURI, i)
		metadatas[i] = map[string]string{
			"source":      sourceURI,
			"chunk_index": strconv.Itoa(i),
		}
	}

	embeddings, err := in.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding %q: %w", sourceURI, err)
	}
	if err := in.index.Upsert(ctx, ids, chunks, metadatas, embeddings); err != nil {
		return 0, fmt.Errorf("indexing %q: %w", sourceURI, err)
	}

	in.logger.Info("indexed document", "source", sourceURI, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestPaths reads plain-text files and ingests them with the path as
// source URI. Unreadable paths are logged and skipped; rich formats are
// expected to be converted to text before they get here.
func (in *Ingestor) IngestPaths(ctx context.Context, paths []string) (int, []string) {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			in.logger.Error("reading file, skipping", "path", p, "error", err)
			continue
		}
		docs = append(docs, Document{SourceURI: p, Text: string(data)})
	}
	return in.Ingest(ctx, docs)
}
