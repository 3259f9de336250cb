// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text strings to dense float32 vectors (e.g.,
// OpenAI text-embedding-3 or a local Ollama model). The knowledge base
// uses these vectors for semantic retrieval over the kiosk's document
// chunks.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (returned by Dimensions). Vectors from different models
// must never be mixed in the same similarity computation.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The
	// text is passed through verbatim; any model-specific prefixing
	// ("query: ", "passage: ") is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for a slice of texts in a single
	// provider call. The i-th result corresponds to texts[i]. On error the
	// entire result is nil; partial results are not returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector produced by
	// this provider.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, for logging
	// and for verifying consistent model usage across ingest and query.
	ModelID() string
}
