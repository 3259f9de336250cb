package kiosk

import (
	"context"
	"log/slog"
	"time"

	"github.com/iacademy-nexus/bearnard/internal/voice"
	"github.com/iacademy-nexus/bearnard/pkg/audio/capture"
	"github.com/iacademy-nexus/bearnard/pkg/provider/stt"
)

// Session bundles the voice pipeline built around one capture source, one
// shared STT engine, and one energy gate. Constructing the pipeline in one
// place guarantees the wake detector and the utterance recorder agree on
// the calibrated threshold.
type Session struct {
	Source      capture.Source
	Gate        *voice.Gate
	Matcher     *voice.Matcher
	Detector    *voice.Detector
	Recorder    *voice.Recorder
	Transcriber *voice.Transcriber

	logger *slog.Logger
}

type sessionConfig struct {
	wakeVariants    []string
	matcherOpts     []voice.MatcherOption
	detectorOpts    []voice.DetectorOption
	recorderOpts    []voice.RecorderOption
	transcriberOpts []voice.TranscriberOption
	logger          *slog.Logger
}

// SessionOption is a functional option for NewSession.
type SessionOption func(*sessionConfig)

// WithWakeVariants overrides the accepted wake-phrase spellings.
func WithWakeVariants(variants []string) SessionOption {
	return func(c *sessionConfig) {
		c.wakeVariants = variants
	}
}

// WithMatcherOptions forwards options to the wake-phrase matcher.
func WithMatcherOptions(opts ...voice.MatcherOption) SessionOption {
	return func(c *sessionConfig) {
		c.matcherOpts = append(c.matcherOpts, opts...)
	}
}

// WithDetectorOptions forwards options to the wake detector.
func WithDetectorOptions(opts ...voice.DetectorOption) SessionOption {
	return func(c *sessionConfig) {
		c.detectorOpts = append(c.detectorOpts, opts...)
	}
}

// WithRecorderOptions forwards options to the utterance recorder.
func WithRecorderOptions(opts ...voice.RecorderOption) SessionOption {
	return func(c *sessionConfig) {
		c.recorderOpts = append(c.recorderOpts, opts...)
	}
}

// WithTranscriberOptions forwards options to the utterance transcriber.
func WithTranscriberOptions(opts ...voice.TranscriberOption) SessionOption {
	return func(c *sessionConfig) {
		c.transcriberOpts = append(c.transcriberOpts, opts...)
	}
}

// WithSessionLogger sets the logger for calibration diagnostics.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewSession wires the full listening pipeline over src and engine.
func NewSession(src capture.Source, engine stt.Engine, opts ...SessionOption) *Session {
	cfg := sessionConfig{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	gate := voice.NewGate(voice.DefaultThreshold)
	matcher := voice.NewMatcher(cfg.wakeVariants, cfg.matcherOpts...)

	return &Session{
		Source:      src,
		Gate:        gate,
		Matcher:     matcher,
		Detector:    voice.NewDetector(src, engine, gate, matcher, cfg.detectorOpts...),
		Recorder:    voice.NewRecorder(src, gate, cfg.recorderOpts...),
		Transcriber: voice.NewTranscriber(engine, cfg.transcriberOpts...),
		logger:      cfg.logger,
	}
}

// Calibrate measures ambient noise for dur and applies the derived
// threshold to the shared gate, so one calibration governs both wake
// detection and end-of-utterance silence. On failure the gate keeps its
// current threshold; calibration is never fatal. The applied threshold is
// returned.
func (s *Session) Calibrate(ctx context.Context, dur time.Duration) float64 {
	threshold, err := voice.Calibrate(ctx, s.Source, dur)
	if err != nil {
		s.logger.Warn("calibration failed, keeping current threshold",
			"error", err, "threshold", s.Gate.Threshold())
		return s.Gate.Threshold()
	}
	s.Gate.SetThreshold(threshold)
	s.logger.Info("energy gate calibrated", "threshold", threshold)
	return threshold
}
