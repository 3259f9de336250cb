package kb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/iacademy-nexus/bearnard/pkg/provider/embeddings"
)

// Compile-time interface checks.
var (
	_ Store   = (*PGStore)(nil)
	_ Indexer = (*PGStore)(nil)
)

// PGStore is the PostgreSQL/pgvector-backed knowledge base. All operations
// are safe for concurrent use.
type PGStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// ddlChunks returns the knowledge-base DDL with the embedding dimension
// substituted. The dimension is baked into the column type at schema
// creation time; changing models with a different dimension requires a
// manual schema change.
func ddlChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS kb_chunks (
    id           TEXT         PRIMARY KEY,
    source       TEXT         NOT NULL DEFAULT '',
    content      TEXT         NOT NULL,
    embedding    vector(%d),
    ingested_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_kb_chunks_source
    ON kb_chunks (source);

CREATE INDEX IF NOT EXISTS idx_kb_chunks_embedding
    ON kb_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// NewPGStore connects to the PostgreSQL database at dsn, registers
// pgvector types on every connection, and ensures the kb_chunks table and
// its HNSW index exist. The table's vector dimension is taken from
// embedder.Dimensions().
func NewPGStore(ctx context.Context, dsn string, embedder embeddings.Provider) (*PGStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("kb: embedder must not be nil")
	}
	dims := embedder.Dimensions()
	if dims <= 0 {
		return nil, fmt.Errorf("kb: embedder %q reports no dimensions", embedder.ModelID())
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("kb: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("kb: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("kb: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlChunks(dims)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("kb: migrate: %w", err)
	}

	return &PGStore{pool: pool, embedder: embedder}, nil
}

// Close releases all connections held by the underlying pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable, for readiness probes.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// IndexChunks implements Indexer. Chunks are upserted by ID; a chunk whose
// embedding is missing is embedded first.
func (s *PGStore) IndexChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Embed any chunks the caller has not embedded yet, in one batch.
	var missing []int
	var texts []string
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, c.Content)
		}
	}
	if len(missing) > 0 {
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("kb: embed chunks: %w", err)
		}
		for j, i := range missing {
			chunks[i].Embedding = vecs[j]
		}
	}

	const q = `
		INSERT INTO kb_chunks (id, source, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
		    source      = EXCLUDED.source,
		    content     = EXCLUDED.content,
		    embedding   = EXCLUDED.embedding,
		    ingested_at = now()`

	for _, c := range chunks {
		if _, err := s.pool.Exec(ctx, q, c.ID, c.Source, c.Content, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("kb: index chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Search implements Store. It embeds the query and returns the maxResults
// chunk contents closest by cosine distance, most similar first.
func (s *PGStore) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		maxResults = 3
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("kb: embed query: %w", err)
	}

	const q = `
		SELECT content
		FROM   kb_chunks
		ORDER  BY embedding <=> $1
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vec), maxResults)
	if err != nil {
		return nil, fmt.Errorf("kb: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var content string
		err := row.Scan(&content)
		return content, err
	})
	if err != nil {
		return nil, fmt.Errorf("kb: scan rows: %w", err)
	}
	return results, nil
}

// DeleteSource removes all chunks ingested from the named source document.
// Used when a file disappears from the data directory between ingests.
func (s *PGStore) DeleteSource(ctx context.Context, source string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kb_chunks WHERE source = $1`, source); err != nil {
		return fmt.Errorf("kb: delete source %q: %w", source, err)
	}
	return nil
}
