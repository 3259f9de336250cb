// Package audio defines the frame model shared by the capture, wake-word and
// utterance-recording stages of the Bearnard pipeline.
//
// A [Frame] is the atomic unit of audio transport: a short run of mono
// float32 samples stamped with the moment it was captured. Frames are
// treated as immutable once produced; stages that need to retain samples
// past the lifetime of a frame must copy them.
package audio

import (
	"math"
	"time"
)

// Frame represents a single captured block of mono audio.
type Frame struct {
	// Samples holds normalized mono samples in the range [-1, 1].
	// Consumers must not mutate the slice.
	Samples []float32

	// SampleRate in Hz (16000 for the kiosk pipeline).
	SampleRate int

	// Timestamp marks when this frame was captured.
	Timestamp time.Time
}

// Duration returns the wall-clock span the frame's samples cover.
// It returns 0 for a frame with no samples or an invalid sample rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || len(f.Samples) == 0 {
		return 0
	}
	return time.Duration(int64(len(f.Samples)) * int64(time.Second) / int64(f.SampleRate))
}

// RMS computes the root-mean-square energy of samples. An empty slice has
// zero energy.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
