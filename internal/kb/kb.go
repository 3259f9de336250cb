// Package kb implements the kiosk's knowledge base: a chunked document
// index with embedding-based semantic retrieval.
//
// Documents from a data directory are split into small overlapping chunks,
// embedded, and stored in PostgreSQL with a pgvector index. At question
// time the query is embedded and the closest chunks (cosine distance) are
// returned as grounding context for the LLM prompt.
package kb

import "context"

// Store is the retrieval interface the conversation engine depends on.
//
// Search returns up to maxResults chunk contents ranked most-similar
// first. An empty result slice is a normal outcome (the engine substitutes
// its no-data sentinel); errors indicate the store itself failed.
type Store interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// Chunk is one indexed fragment of a source document.
type Chunk struct {
	// ID is a stable content-derived identifier; re-ingesting unchanged
	// content overwrites rather than duplicates.
	ID string

	// Source names the document the chunk came from (file path relative
	// to the data directory).
	Source string

	// Content is the chunk text.
	Content string

	// Embedding is the chunk's vector. Populated during ingest.
	Embedding []float32
}

// Indexer is the write side of the knowledge base, consumed by the ingest
// pipeline.
type Indexer interface {
	IndexChunks(ctx context.Context, chunks []Chunk) error
}
