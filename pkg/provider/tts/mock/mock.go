// Package mock provides a scripted tts.Speaker for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/iacademy-nexus/bearnard/pkg/provider/tts"
)

// Ensure Speaker implements the tts.Speaker interface.
var _ tts.Speaker = (*Speaker)(nil)

// Speaker is a tts.Speaker that records every spoken text.
type Speaker struct {
	// NonBlocking makes Blocking report false, exercising the engine's
	// estimated-pause echo suppression path.
	NonBlocking bool

	// Delay simulates playback time inside Speak.
	Delay time.Duration

	// Err, when set, is returned by Speak.
	Err error

	mu     sync.Mutex
	Spoken []string
}

// New constructs a blocking Speaker.
func New() *Speaker {
	return &Speaker{}
}

// Speak implements tts.Speaker.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.Spoken = append(s.Spoken, text)
	s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// Blocking implements tts.Speaker.
func (s *Speaker) Blocking() bool { return !s.NonBlocking }

// SpokenTexts returns a copy of everything spoken so far.
func (s *Speaker) SpokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Spoken))
	copy(out, s.Spoken)
	return out
}
