package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/reliefhq/relief/internal/log"
)

// advisoryLockKey serializes IVFFlat index creation across processes
// starting against the same database.
const advisoryLockKey = 0x52454C46 // "RELF"

// distance operators and index opclasses by metric.
var pgMetrics = map[string]struct {
	operator string
	opclass  string
}{
	MetricCosine: {"<=>", "vector_cosine_ops"},
	MetricL2:     {"<->", "vector_l2_ops"},
	MetricIP:     {"<#>", "vector_ip_ops"},
}

// PG is the PostgreSQL/pgvector index. The documents table is created by
// the migration runner; PG ensures the ANN index itself because the
// opclass depends on the configured metric.
type PG struct {
	pool     *pgxpool.Pool
	operator string
	dim      int
	logger   log.Logger
}

var _ Index = (*PG)(nil)

// NewPool creates a pgx pool with pgvector type support registered on
// every connection.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// NewPG wraps pool as an Index using the given distance metric and
// embedding dimension, ensuring the ANN index exists.
func NewPG(ctx context.Context, pool *pgxpool.Pool, metric string, dim, lists int, logger log.Logger) (*PG, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, ok := pgMetrics[metric]
	if !ok {
		return nil, fmt.Errorf("unsupported distance metric %q", metric)
	}

	p := &PG{pool: pool, operator: m.operator, dim: dim, logger: logger}
	if err := p.ensureANNIndex(ctx, metric, m.opclass, lists); err != nil {
		return nil, err
	}
	return p, nil
}

// ensureANNIndex creates the IVFFlat index for the configured metric if it
// does not exist yet. The advisory lock makes concurrent startups of the
// same service race-free.
func (p *PG) ensureANNIndex(ctx context.Context, metric, opclass string, lists int) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}

	// One index per metric; switching metrics adds a new index rather
	// than silently reusing one built for the wrong opclass.
	stmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS documents_embedding_%s_idx ON documents USING ivfflat (embedding %s) WITH (lists = %d)",
		metric, opclass, lists,
	)
	if _, err := tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("creating ivfflat index: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing index transaction: %w", err)
	}

	p.logger.Debug("ivfflat index ensured", "metric", metric, "lists", lists)
	return nil
}

func (p *PG) Upsert(ctx context.Context, ids, texts []string, metadatas []map[string]string, embeddings [][]float32) error {
	if err := validateUpsert(ids, texts, metadatas, embeddings); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	for i, e := range embeddings {
		if len(e) != p.dim {
			return fmt.Errorf("%w: record %d has %d dimensions, index has %d",
				ErrDimensionMismatch, i, len(e), p.dim)
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i := range ids {
		meta, err := json.Marshal(metadatas[i])
		if err != nil {
			return fmt.Errorf("encoding metadata for %q: %w", ids[i], err)
		}
		batch.Queue(
			`INSERT INTO documents (id, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET content = EXCLUDED.content,
			     metadata = EXCLUDED.metadata,
			     embedding = EXCLUDED.embedding`,
			ids[i], texts[i], meta, pgvector.NewVector(embeddings[i]),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d records: %w", len(ids), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

func (p *PG) Query(ctx context.Context, embedding []float32, topK int) (*QueryResult, error) {
	if topK <= 0 {
		return &QueryResult{}, nil
	}
	if len(embedding) != p.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			ErrDimensionMismatch, len(embedding), p.dim)
	}

	// The operator comes from the closed pgMetrics table, not user input.
	stmt := fmt.Sprintf(
		`SELECT id, content, metadata, embedding %s $1 AS distance
		 FROM documents
		 ORDER BY distance, seq
		 LIMIT $2`, p.operator)

	rows, err := p.pool.Query(ctx, stmt, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	res := &QueryResult{}
	for rows.Next() {
		var (
			id, content string
			meta        []byte
			distance    float64
		)
		if err := rows.Scan(&id, &content, &meta, &distance); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		var metadata map[string]string
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %q: %w", id, err)
			}
		}
		res.IDs = append(res.IDs, id)
		res.Texts = append(res.Texts, content)
		res.Metadatas = append(res.Metadatas, metadata)
		res.Distances = append(res.Distances, float32(distance))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}
	return res, nil
}

func (p *PG) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (p *PG) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "TRUNCATE documents"); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned and closed by the application wiring.
func (p *PG) Close() error {
	return nil
}
