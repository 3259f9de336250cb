// Package mock provides a scripted llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/iacademy-nexus/bearnard/pkg/provider/llm"
)

// Ensure Provider implements the llm.Provider interface.
var _ llm.Provider = (*Provider)(nil)

// Provider is an llm.Provider that returns scripted responses and records
// every request it receives.
type Provider struct {
	// Response is returned by Complete when Err is nil.
	Response llm.CompletionResponse

	// Err, when set, is returned by Complete and aborts StreamCompletion.
	Err error

	// CompleteFunc, when set, overrides the scripted behaviour.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Chunks are emitted by StreamCompletion when set; otherwise the
	// Response content is emitted as a single chunk.
	Chunks []llm.Chunk

	mu       sync.Mutex
	Requests []llm.CompletionRequest
}

// New constructs a Provider that replies with the given content.
func New(content string) *Provider {
	return &Provider{Response: llm.CompletionResponse{Content: content}}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	resp := p.Response
	return &resp, nil
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}

	chunks := p.Chunks
	if chunks == nil {
		chunks = []llm.Chunk{
			{Text: p.Response.Content},
			{FinishReason: "stop"},
		}
	}

	ch := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.ModelCapabilities{
		ContextWindow:     8192,
		MaxOutputTokens:   2048,
		SupportsStreaming: true,
	}
}

// LastRequest returns the most recent request, or a zero value if none.
func (p *Provider) LastRequest() llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return llm.CompletionRequest{}
	}
	return p.Requests[len(p.Requests)-1]
}

// RequestCount returns the number of requests received.
func (p *Provider) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
