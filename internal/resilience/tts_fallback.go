package resilience

import (
	"context"

	"github.com/iacademy-nexus/bearnard/pkg/provider/tts"
)

// TTSFallback implements [tts.Speaker] with automatic failover across multiple
// synthesis backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Speaker]
}

// Compile-time interface assertion.
var _ tts.Speaker = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Speaker, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional speaker as a fallback.
func (f *TTSFallback) AddFallback(name string, speaker tts.Speaker) {
	f.group.AddFallback(name, speaker)
}

// Speak synthesizes and plays text on the first healthy speaker. If the
// primary fails, subsequent fallbacks are tried with the same text, so a
// partially played primary attempt may be followed by a full fallback replay.
func (f *TTSFallback) Speak(ctx context.Context, text string) error {
	return f.group.Execute(func(s tts.Speaker) error {
		return s.Speak(ctx, text)
	})
}

// Blocking reports whether the primary speaker blocks until playback
// completes. The conversation engine uses this to pick its echo-suppression
// strategy up front, so the answer must not change per call even when a
// fallback with different behaviour ends up speaking.
func (f *TTSFallback) Blocking() bool {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Blocking()
	}
	return true
}
