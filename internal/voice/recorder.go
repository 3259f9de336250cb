package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
	"github.com/iacademy-nexus/bearnard/pkg/audio/capture"
)

const (
	// DefaultSilenceLimit ends a recording once this much continuous
	// silence follows speech.
	DefaultSilenceLimit = 1500 * time.Millisecond

	// DefaultMaxUtterance caps a single recording's audio span.
	DefaultMaxUtterance = 15 * time.Second
)

// Recorder captures one user utterance: it accumulates frames until the
// speaker falls silent for the silence limit or the hard duration ceiling
// is reached. Hitting the ceiling is a designed outcome, not an error; the
// recording so far is returned either way.
type Recorder struct {
	source       capture.Source
	gate         *Gate
	silenceLimit time.Duration
	logger       *slog.Logger
	onVolume     func(rms float64)
}

// RecorderOption is a functional option for Recorder.
type RecorderOption func(*Recorder)

// WithSilenceLimit sets the continuous-silence duration that ends a
// recording.
func WithSilenceLimit(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.silenceLimit = d
		}
	}
}

// WithRecorderLogger sets the logger for recording diagnostics.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorderVolumeObserver registers a callback receiving each frame's
// RMS energy during recording. Must not block.
func WithRecorderVolumeObserver(f func(rms float64)) RecorderOption {
	return func(r *Recorder) {
		r.onVolume = f
	}
}

// NewRecorder constructs a Recorder sharing gate with the wake detector so
// both stages agree on what counts as silence.
func NewRecorder(source capture.Source, gate *Gate, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		source:       source,
		gate:         gate,
		silenceLimit: DefaultSilenceLimit,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Record captures audio until the speaker has been silent for the silence
// limit or maxDur of audio has accumulated. The continuous-silence counter
// resets on every speech frame. All captured samples are returned, silence
// included, so the transcriber sees the utterance's natural trailing pause.
//
// On context cancellation the samples captured so far are returned
// alongside ctx's error.
func (r *Recorder) Record(ctx context.Context, maxDur time.Duration) ([]float32, error) {
	if maxDur <= 0 {
		maxDur = DefaultMaxUtterance
	}

	// Wall-clock bound with slack, in case the source stalls.
	deadline := time.NewTimer(maxDur + 2*time.Second)
	defer deadline.Stop()

	var (
		samples  []float32
		recorded time.Duration
		silence  time.Duration
	)
	frames := r.source.Frames()
	for {
		select {
		case <-ctx.Done():
			return samples, ctx.Err()

		case <-deadline.C:
			r.logger.Warn("recording wall clock expired before audio ceiling", "recorded", recorded)
			return samples, nil

		case f, ok := <-frames:
			if !ok {
				return samples, ErrSourceClosed
			}

			samples = append(samples, f.Samples...)
			recorded += f.Duration()

			rms := audio.RMS(f.Samples)
			if r.onVolume != nil {
				r.onVolume(rms)
			}
			if r.gate.ClassifyRMS(rms) == ClassSpeech {
				silence = 0
			} else {
				silence += f.Duration()
			}

			if silence >= r.silenceLimit {
				r.logger.Debug("recording ended on silence", "recorded", recorded)
				return samples, nil
			}
			if recorded >= maxDur {
				r.logger.Debug("recording ended on duration ceiling", "recorded", recorded)
				return samples, nil
			}
		}
	}
}
