package voice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
	"github.com/iacademy-nexus/bearnard/pkg/audio/capture"
	"github.com/iacademy-nexus/bearnard/pkg/provider/stt"
)

// ErrSourceClosed indicates the capture source's frame channel closed
// while the pipeline was still listening.
var ErrSourceClosed = errors.New("voice: audio source closed")

const (
	// DefaultWindowDuration is the span of audio the wake scan covers.
	DefaultWindowDuration = 3 * time.Second

	// DefaultMinWindow is the minimum buffered audio before the first
	// wake inference; scanning tiny snippets wastes cycles and invites
	// hallucinated matches.
	DefaultMinWindow = 1 * time.Second

	// DefaultInferenceInterval runs the wake inference on every Nth
	// speech frame rather than every frame.
	DefaultInferenceInterval = 3

	// DefaultMaxScanChars rejects wake-scan transcripts at or above this
	// normalized length; real wake utterances are short, and very long
	// transcripts are background conversation.
	DefaultMaxScanChars = 60
)

// defaultFastOptions is the low-latency transcription profile for wake
// scanning.
var defaultFastOptions = stt.Options{BeamSize: 1}

// Detector scans the microphone stream for the wake phrase.
//
// Each delivered frame is pushed into the sliding window regardless of
// energy, so context preceding the wake phrase is retained. Inference only
// runs when the frame carries speech energy, only on every Nth such frame,
// and only once the window holds enough audio. Transcription failures are
// logged and scanning continues.
type Detector struct {
	source  capture.Source
	engine  stt.Engine
	gate    *Gate
	matcher *Matcher
	window  *Window

	interval  int
	minWindow time.Duration
	maxChars  int
	fastOpts  stt.Options
	logger    *slog.Logger

	onVolume     func(rms float64)
	onTranscript func(text string)

	speechFrames int
}

// DetectorOption is a functional option for Detector.
type DetectorOption func(*Detector)

// WithWindowDuration sets the sliding-window span.
func WithWindowDuration(d time.Duration) DetectorOption {
	return func(det *Detector) {
		if d > 0 {
			det.window = NewWindow(d)
		}
	}
}

// WithMinWindow sets the minimum buffered audio before inference runs.
func WithMinWindow(d time.Duration) DetectorOption {
	return func(det *Detector) {
		if d > 0 {
			det.minWindow = d
		}
	}
}

// WithInferenceInterval runs wake inference on every nth speech frame.
func WithInferenceInterval(n int) DetectorOption {
	return func(det *Detector) {
		if n > 0 {
			det.interval = n
		}
	}
}

// WithMaxScanChars sets the normalized-length cutoff for scan transcripts.
func WithMaxScanChars(n int) DetectorOption {
	return func(det *Detector) {
		if n > 0 {
			det.maxChars = n
		}
	}
}

// WithFastOptions overrides the transcription profile used for scanning.
func WithFastOptions(opts stt.Options) DetectorOption {
	return func(det *Detector) {
		det.fastOpts = opts
	}
}

// WithVolumeObserver registers a callback receiving each frame's RMS
// energy. The callback runs on the listening goroutine and must not block.
func WithVolumeObserver(f func(rms float64)) DetectorOption {
	return func(det *Detector) {
		det.onVolume = f
	}
}

// WithTranscriptObserver registers a callback receiving each normalized
// scan transcript that survived the reject filters. The callback runs on
// the listening goroutine and must not block.
func WithTranscriptObserver(f func(text string)) DetectorOption {
	return func(det *Detector) {
		det.onTranscript = f
	}
}

// WithDetectorLogger sets the logger for scan diagnostics.
func WithDetectorLogger(l *slog.Logger) DetectorOption {
	return func(det *Detector) {
		if l != nil {
			det.logger = l
		}
	}
}

// NewDetector constructs a Detector reading from source, transcribing with
// engine, gating on gate and matching with matcher.
func NewDetector(source capture.Source, engine stt.Engine, gate *Gate, matcher *Matcher, opts ...DetectorOption) *Detector {
	det := &Detector{
		source:    source,
		engine:    engine,
		gate:      gate,
		matcher:   matcher,
		window:    NewWindow(DefaultWindowDuration),
		interval:  DefaultInferenceInterval,
		minWindow: DefaultMinWindow,
		maxChars:  DefaultMaxScanChars,
		fastOpts:  defaultFastOptions,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(det)
	}
	return det
}

// Listen scans incoming frames until the wake phrase is heard, timeout
// elapses, or ctx is cancelled. It returns (true, nil) on a wake match and
// (false, nil) on timeout; a timeout leaves no side effects beyond the
// updated window. Listen is not safe for concurrent invocation.
func (det *Detector) Listen(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	frames := det.source.Frames()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()

		case <-deadline.C:
			return false, nil

		case f, ok := <-frames:
			if !ok {
				return false, ErrSourceClosed
			}

			det.window.Push(f)
			rms := audio.RMS(f.Samples)
			if det.onVolume != nil {
				det.onVolume(rms)
			}

			if det.gate.ClassifyRMS(rms) == ClassSilence {
				continue
			}
			det.speechFrames++
			if det.speechFrames%det.interval != 0 {
				continue
			}
			if det.window.Duration() < det.minWindow {
				continue
			}

			text, err := det.engine.Transcribe(ctx, det.window.Snapshot(), det.fastOpts)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				det.logger.Warn("wake scan transcription failed", "error", err)
				continue
			}

			norm := Normalize(text)
			if norm == "" || isStoplisted(norm) {
				continue
			}
			if len(norm) >= det.maxChars {
				continue
			}
			if det.onTranscript != nil {
				det.onTranscript(norm)
			}

			if det.matcher.Match(norm) {
				det.logger.Info("wake phrase detected", "transcript", norm)
				return true, nil
			}
		}
	}
}

// Reset clears the sliding window and the speech-frame counter. The
// engine calls it after the assistant finishes speaking so the window
// cannot contain the assistant's own voice.
func (det *Detector) Reset() {
	det.window.Clear()
	det.speechFrames = 0
}

// WindowDuration exposes the buffered audio span, for diagnostics.
func (det *Detector) WindowDuration() time.Duration {
	return det.window.Duration()
}
