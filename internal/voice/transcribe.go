package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iacademy-nexus/bearnard/pkg/provider/stt"
)

// DefaultMaxUtteranceChars rejects utterance transcripts at or above this
// normalized length.
const DefaultMaxUtteranceChars = 200

// defaultAccurateOptions is the higher-quality transcription profile for
// full utterances.
var defaultAccurateOptions = stt.Options{BeamSize: 5}

// RejectReason explains why a transcript was not accepted.
type RejectReason string

const (
	// RejectNone marks an accepted transcript.
	RejectNone RejectReason = ""

	// RejectEmpty marks a transcript that normalized to nothing.
	RejectEmpty RejectReason = "empty"

	// RejectHallucination marks a transcript matching the stoplist of
	// phrases the model invents from silence.
	RejectHallucination RejectReason = "hallucination"

	// RejectTooLong marks a transcript exceeding the length cutoff.
	RejectTooLong RejectReason = "too_long"
)

// Result is the outcome of transcribing one recorded utterance.
type Result struct {
	// Text is the trimmed transcript, populated even when rejected.
	Text string

	// Accepted reports whether the transcript passed the reject policy.
	Accepted bool

	// Reason explains a rejection; RejectNone when accepted.
	Reason RejectReason
}

// Transcriber converts recorded utterances to text and applies the
// accept/reject policy. It shares the wake detector's engine but uses the
// accurate transcription profile.
type Transcriber struct {
	engine   stt.Engine
	opts     stt.Options
	maxChars int
	logger   *slog.Logger
}

// TranscriberOption is a functional option for Transcriber.
type TranscriberOption func(*Transcriber)

// WithAccurateOptions overrides the transcription profile for utterances.
func WithAccurateOptions(opts stt.Options) TranscriberOption {
	return func(t *Transcriber) {
		t.opts = opts
	}
}

// WithMaxUtteranceChars sets the normalized-length cutoff.
func WithMaxUtteranceChars(n int) TranscriberOption {
	return func(t *Transcriber) {
		if n > 0 {
			t.maxChars = n
		}
	}
}

// WithTranscriberLogger sets the logger for policy decisions.
func WithTranscriberLogger(l *slog.Logger) TranscriberOption {
	return func(t *Transcriber) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTranscriber constructs a Transcriber over engine.
func NewTranscriber(engine stt.Engine, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{
		engine:   engine,
		opts:     defaultAccurateOptions,
		maxChars: DefaultMaxUtteranceChars,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transcribe runs the accurate transcription profile over samples and
// applies the accept/reject policy. A non-nil error means the engine
// itself failed; policy rejections return a Result with Accepted false and
// a nil error.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	text, err := t.engine.Transcribe(ctx, samples, t.opts)
	if err != nil {
		return Result{}, fmt.Errorf("voice: transcribe utterance: %w", err)
	}

	trimmed := strings.TrimSpace(text)
	norm := Normalize(trimmed)

	switch {
	case norm == "":
		return Result{Text: trimmed, Reason: RejectEmpty}, nil
	case isStoplisted(norm):
		t.logger.Debug("rejected hallucinated transcript", "text", trimmed)
		return Result{Text: trimmed, Reason: RejectHallucination}, nil
	case len(norm) >= t.maxChars:
		t.logger.Debug("rejected over-long transcript", "chars", len(norm))
		return Result{Text: trimmed, Reason: RejectTooLong}, nil
	}

	return Result{Text: trimmed, Accepted: true}, nil
}
