// Package capture provides microphone frame sources for the voice pipeline.
//
// The central abstraction is [Source]: a stream of [audio.Frame] values
// pulled from a real or simulated input device. The PortAudio-backed
// [Microphone] is the production implementation; the mock subpackage
// provides a scripted source for tests.
//
// This package lives under pkg/ because external code (alternative capture
// backends) is expected to implement [Source].
package capture

import (
	"context"
	"errors"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
)

// ErrDeviceUnavailable indicates the input device could not be opened or
// failed mid-stream. Startup treats this as fatal; there is no degraded
// text-only fallback at the capture layer.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Source delivers a continuous stream of captured audio frames.
//
// Implementations must be safe for concurrent use. Start and Stop are
// idempotent: calling Start on a running source or Stop on a stopped source
// is a no-op returning nil.
type Source interface {
	// Start begins capturing. The supplied ctx governs the start attempt
	// only; once started, capture continues until Stop is called.
	Start(ctx context.Context) error

	// Stop ends capturing and closes the channel returned by Frames.
	Stop() error

	// Frames returns the channel frames are delivered on. The channel is
	// bounded; when the consumer lags, the implementation drops the oldest
	// queued frame rather than stalling capture.
	Frames() <-chan audio.Frame
}

// Device describes an available audio input device.
type Device struct {
	// Index is the position in the host's device list, usable as the
	// device selector in [WithDevice].
	Index int

	// Name is the host-reported device name.
	Name string

	// MaxInputChannels reported by the host API.
	MaxInputChannels int

	// DefaultSampleRate reported by the host API, in Hz.
	DefaultSampleRate float64

	// Default is true for the host's default input device.
	Default bool
}
