package resilience

import (
	"context"

	"github.com/iacademy-nexus/bearnard/pkg/provider/stt"
)

// STTFallback implements [stt.Engine] with automatic failover across multiple
// transcription backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Engine]
}

// Compile-time interface assertion.
var _ stt.Engine = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Engine, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT engine as a fallback.
func (f *STTFallback) AddFallback(name string, engine stt.Engine) {
	f.group.AddFallback(name, engine)
}

// Transcribe runs the samples through the first healthy engine. If the primary
// fails, subsequent fallbacks are tried with the same samples and options.
func (f *STTFallback) Transcribe(ctx context.Context, samples []float32, opts stt.Options) (string, error) {
	return ExecuteWithResult(f.group, func(e stt.Engine) (string, error) {
		return e.Transcribe(ctx, samples, opts)
	})
}
