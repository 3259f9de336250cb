// Package tts defines the Speaker interface for Text-to-Speech backends.
//
// A Speaker turns assistant reply text into audible speech on the kiosk's
// output device. The contract is deliberately synchronous: the engine
// holds the SPEAKING state for the duration of playback so the microphone
// pipeline can be reset afterwards, suppressing self-echo.
//
// Implementations must be safe for concurrent use, though the engine only
// issues one Speak call at a time.
package tts

import "context"

// Speaker is the abstraction over any TTS backend.
type Speaker interface {
	// Speak synthesizes text and plays it on the output device. When
	// Blocking reports true, Speak returns only after playback has
	// finished (or ctx is cancelled).
	Speak(ctx context.Context, text string) error

	// Blocking reports whether Speak blocks until playback completes.
	// For fire-and-forget backends the engine falls back to an estimated
	// pause derived from the reply's word count before resuming listening.
	Blocking() bool
}
