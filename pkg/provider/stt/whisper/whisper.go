// Package whisper provides an stt.Engine backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once and shared by all callers. Each Transcribe call
// creates a fresh whisper context, so calls are independent of each other:
// no tokens from a previous transcription leak into the next, and multiple
// goroutines may transcribe concurrently.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/iacademy-nexus/bearnard/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Engine satisfies stt.Engine.
var _ stt.Engine = (*Engine)(nil)

// Engine implements stt.Engine using a locally loaded whisper.cpp model.
type Engine struct {
	model    whisperlib.Model
	language string

	mu     sync.Mutex
	closed bool
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the default ISO 639-1 language code used when a call
// does not specify one. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) {
		if lang != "" {
			e.language = lang
		}
	}
}

// New creates an Engine that loads the whisper.cpp model from the given
// file path. The caller must call Close when the engine is no longer
// needed.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model. Calling Close more than once is safe
// and returns nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.model.Close()
}

// Transcribe implements stt.Engine. It runs batch inference over samples
// using a fresh whisper context and returns the concatenated segment text.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, opts stt.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", errors.New("whisper: engine is closed")
	}
	e.mu.Unlock()

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines; a fresh context per call keeps calls independent.
	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = e.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if opts.BeamSize > 0 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	if opts.Threads > 0 {
		wctx.SetThreads(uint(opts.Threads))
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
