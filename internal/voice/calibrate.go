package voice

import (
	"context"
	"errors"
	"time"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
	"github.com/iacademy-nexus/bearnard/pkg/audio/capture"
)

const (
	// calibrationMultiplier scales the measured ambient energy so normal
	// room noise stays below the resulting threshold.
	calibrationMultiplier = 2.0

	// minCalibratedThreshold floors the calibrated threshold; a perfectly
	// silent room must not produce a gate that triggers on anything.
	minCalibratedThreshold = 0.005
)

// ErrNoAudio indicates calibration received no frames before its deadline.
var ErrNoAudio = errors.New("voice: no audio captured during calibration")

// Calibrate samples ambient audio from src for roughly dur and derives an
// energy-gate threshold: the mean frame RMS scaled by a safety multiplier,
// floored at a minimum. The source must already be started.
//
// Callers should treat a calibration error as non-fatal and fall back to
// DefaultThreshold.
func Calibrate(ctx context.Context, src capture.Source, dur time.Duration) (float64, error) {
	if dur <= 0 {
		dur = 2 * time.Second
	}

	// Wall-clock bound with slack, in case the source underdelivers.
	deadline := time.NewTimer(dur + dur/2 + time.Second)
	defer deadline.Stop()

	var (
		captured time.Duration
		sum      float64
		n        int
	)
	frames := src.Frames()
	for captured < dur {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-deadline.C:
			if n == 0 {
				return 0, ErrNoAudio
			}
			return thresholdFrom(sum, n), nil
		case f, ok := <-frames:
			if !ok {
				if n == 0 {
					return 0, ErrNoAudio
				}
				return thresholdFrom(sum, n), nil
			}
			sum += audio.RMS(f.Samples)
			n++
			captured += f.Duration()
		}
	}
	return thresholdFrom(sum, n), nil
}

func thresholdFrom(sum float64, n int) float64 {
	t := (sum / float64(n)) * calibrationMultiplier
	if t < minCalibratedThreshold {
		t = minCalibratedThreshold
	}
	return t
}
