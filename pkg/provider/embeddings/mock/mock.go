// Package mock provides a deterministic embeddings.Provider for tests.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/iacademy-nexus/bearnard/pkg/provider/embeddings"
)

// Ensure Provider implements the embeddings.Provider interface.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is an embeddings.Provider producing deterministic pseudo-random
// vectors derived from the input text, so identical texts always embed to
// identical vectors.
type Provider struct {
	// Dims is the vector dimensionality. Defaults to 8 when zero.
	Dims int

	// Err, when set, is returned by Embed and EmbedBatch.
	Err error

	mu    sync.Mutex
	Texts []string
}

// New constructs a Provider with the given dimensionality.
func New(dims int) *Provider {
	return &Provider{Dims: dims}
}

func (p *Provider) dims() int {
	if p.Dims <= 0 {
		return 8
	}
	return p.Dims
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Texts = append(p.Texts, text)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectorFor(text, p.dims()), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int { return p.dims() }

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock-embed" }

// vectorFor derives a stable vector from text via FNV hashing.
func vectorFor(text string, dims int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int32(seed>>33)) / float32(1<<31)
	}
	return vec
}
