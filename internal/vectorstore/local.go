package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/philippgille/chromem-go"

	"github.com/reliefhq/relief/internal/log"
)

const localCollection = "documents"

// Local is the embedded on-disk index backed by chromem-go. A file lock on
// the index directory keeps a second process from opening the same index.
type Local struct {
	db     *chromem.DB
	lock   *flock.Flock
	logger log.Logger

	mu   sync.RWMutex // guards coll, which Clear replaces
	coll *chromem.Collection
}

var _ Index = (*Local)(nil)

// NewLocal opens (or creates) the persistent index at path.
func NewLocal(path string, logger log.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	lock := flock.New(filepath.Join(path, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking index directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrIndexLocked, path)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("opening local index: %w", err)
	}

	coll, err := db.GetOrCreateCollection(localCollection, nil, rejectEmbedding)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("opening collection: %w", err)
	}

	logger.Debug("local index opened", "path", path, "records", coll.Count())
	l := &Local{db: db, lock: lock, logger: logger}
	l.coll = coll
	return l, nil
}

// rejectEmbedding is installed as the collection's embedding function.
// Every document arrives with a precomputed embedding, so a call here
// means a caller broke that contract.
func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings must be computed upstream")
}

func (l *Local) collection() *chromem.Collection {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.coll
}

func (l *Local) Upsert(ctx context.Context, ids, texts []string, metadatas []map[string]string, embeddings [][]float32) error {
	if err := validateUpsert(ids, texts, metadatas, embeddings); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(ids))
	for i := range ids {
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   texts[i],
			Metadata:  metadatas[i],
			Embedding: embeddings[i],
		}
	}
	// AddDocuments has map semantics on ID, so re-ingesting a source
	// replaces its chunks.
	if err := l.collection().AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("upserting %d records: %w", len(docs), err)
	}
	return nil
}

func (l *Local) Query(ctx context.Context, embedding []float32, topK int) (*QueryResult, error) {
	coll := l.collection()
	// chromem rejects nResults above the collection size.
	n := min(topK, coll.Count())
	if n <= 0 {
		return &QueryResult{}, nil
	}

	matches, err := coll.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying local index: %w", err)
	}

	res := &QueryResult{
		IDs:       make([]string, len(matches)),
		Texts:     make([]string, len(matches)),
		Metadatas: make([]map[string]string, len(matches)),
		Distances: make([]float32, len(matches)),
	}
	for i, m := range matches {
		res.IDs[i] = m.ID
		res.Texts[i] = m.Content
		res.Metadatas[i] = m.Metadata
		// chromem reports cosine similarity; retrieval works in distances.
		res.Distances[i] = 1 - m.Similarity
	}
	return res, nil
}

func (l *Local) Count(context.Context) (int, error) {
	return l.collection().Count(), nil
}

func (l *Local) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.db.DeleteCollection(localCollection); err != nil {
		return fmt.Errorf("clearing local index: %w", err)
	}
	coll, err := l.db.GetOrCreateCollection(localCollection, nil, rejectEmbedding)
	if err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	l.coll = coll
	return nil
}

func (l *Local) Close() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("releasing index lock: %w", err)
	}
	return nil
}
