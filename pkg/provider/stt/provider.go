// Package stt defines the Engine interface for speech-to-text backends.
//
// The kiosk pipeline runs two transcription profiles against the same
// engine: a fast low-beam pass over the wake-word sliding window, and an
// accurate higher-beam pass over full recorded utterances. [Options]
// carries the per-call knobs so a single loaded model can serve both.
//
// Implementations must be safe for concurrent use; the wake detector and
// utterance transcriber may call Transcribe from different goroutines.
package stt

import "context"

// Options tunes a single transcription call. Zero values select the
// backend's defaults.
type Options struct {
	// BeamSize is the decoder beam width. Small values (1-2) trade
	// accuracy for latency; the wake-word scan uses these. 0 keeps the
	// backend default.
	BeamSize int

	// Language is the ISO 639-1 language hint (e.g. "en"). Empty lets the
	// backend auto-detect or use its configured default.
	Language string

	// Threads caps the CPU threads used for this call. 0 keeps the
	// backend default.
	Threads int
}

// Engine is the abstraction over any batch speech-to-text backend.
//
// Transcribe converts normalized mono float32 samples (16 kHz for the
// kiosk pipeline) into text. Successive calls must be independent: text
// recognized in one call must not condition the decoding of the next.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) (string, error)
}
