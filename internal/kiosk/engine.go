// Package kiosk implements the conversation engine: the single
// orchestration loop that takes a question from wake-phrase voice input or
// typed text, grounds it in the knowledge base, generates an answer, and
// speaks it.
//
// The engine owns all conversation state. The presentation layer talks to
// it through two channels only: commands in (SubmitText, TriggerWake,
// SetMode) and events out (StateChanged, VolumeLevel, Transcript,
// Response, LogLine). Event sends never block, so presentation can lag or
// disappear without stalling a turn.
package kiosk

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iacademy-nexus/bearnard/internal/kb"
	"github.com/iacademy-nexus/bearnard/internal/voice"
	"github.com/iacademy-nexus/bearnard/pkg/provider/llm"
	"github.com/iacademy-nexus/bearnard/pkg/provider/tts"
)

const (
	// DefaultWakePollTimeout bounds each wake-detector poll so the idle
	// loop stays responsive to queued commands and mode switches.
	DefaultWakePollTimeout = 500 * time.Millisecond

	// DefaultMaxResults is how many knowledge-base chunks ground a turn.
	DefaultMaxResults = 3

	// DefaultEventBuffer is the event channel depth. Sized to absorb a
	// burst of volume levels without dropping state transitions.
	DefaultEventBuffer = 64

	// defaultCommandBuffer is the command channel depth.
	defaultCommandBuffer = 16

	// defaultTemperature matches the answer style tuned for the kiosk.
	defaultTemperature = 0.6

	// defaultWordPause and defaultPauseBuffer estimate playback time for
	// fire-and-forget speakers. A genuine playback-completed signal from a
	// blocking speaker is always preferred; this heuristic is only the
	// fallback.
	defaultWordPause   = 300 * time.Millisecond
	defaultPauseBuffer = time.Second
)

// Engine drives the conversation state machine on a single goroutine.
type Engine struct {
	session *Session
	store   kb.Store
	llm     llm.Provider
	speaker tts.Speaker

	persona      string
	mode         Mode
	pollTimeout  time.Duration
	maxResults   int
	maxUtterance time.Duration
	wordPause    time.Duration
	pauseBuffer  time.Duration
	calibration  time.Duration
	now          func() time.Time
	logger       *slog.Logger

	state    State
	events   chan Event
	commands chan Command
}

// EngineOption is a functional option for Engine.
type EngineOption func(*Engine)

// WithMode sets the initial input mode.
func WithMode(m Mode) EngineOption {
	return func(e *Engine) {
		e.mode = m
	}
}

// WithPersona overrides the assistant's prompt persona.
func WithPersona(p string) EngineOption {
	return func(e *Engine) {
		if p != "" {
			e.persona = p
		}
	}
}

// WithWakePollTimeout sets the per-iteration wake poll bound.
func WithWakePollTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.pollTimeout = d
		}
	}
}

// WithMaxResults sets how many knowledge-base chunks each turn retrieves.
func WithMaxResults(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxResults = n
		}
	}
}

// WithMaxUtterance caps the recorded utterance duration.
func WithMaxUtterance(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.maxUtterance = d
		}
	}
}

// WithCalibration runs an ambient-noise calibration pass of the given
// duration before the engine goes idle.
func WithCalibration(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.calibration = d
	}
}

// WithEventBuffer sets the event channel depth.
func WithEventBuffer(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.events = make(chan Event, n)
		}
	}
}

// WithSpeechEstimate tunes the estimated-pause fallback used when the
// speaker is fire-and-forget: perWord of pause per spoken word plus a
// fixed buffer.
func WithSpeechEstimate(perWord, buffer time.Duration) EngineOption {
	return func(e *Engine) {
		if perWord > 0 {
			e.wordPause = perWord
		}
		if buffer >= 0 {
			e.pauseBuffer = buffer
		}
	}
}

// WithClock overrides the time source used in prompts.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine constructs an Engine over the voice session and the turn
// collaborators.
func NewEngine(session *Session, store kb.Store, provider llm.Provider, speaker tts.Speaker, opts ...EngineOption) *Engine {
	e := &Engine{
		session:      session,
		store:        store,
		llm:          provider,
		speaker:      speaker,
		persona:      DefaultPersona,
		pollTimeout:  DefaultWakePollTimeout,
		maxResults:   DefaultMaxResults,
		maxUtterance: voice.DefaultMaxUtterance,
		wordPause:    defaultWordPause,
		pauseBuffer:  defaultPauseBuffer,
		now:          time.Now,
		logger:       slog.Default(),
		state:        StateLoading,
		events:       make(chan Event, DefaultEventBuffer),
		commands:     make(chan Command, defaultCommandBuffer),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Events returns the engine's notification channel. It is closed when Run
// returns.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// ObserveVolume forwards a frame's RMS level to the presentation layer.
// Pass it as the voice pipeline's volume observer.
func (e *Engine) ObserveVolume(rms float64) {
	e.emit(VolumeLevel{RMS: rms})
}

// ObserveScan forwards a wake-scan transcript as a debug log line. Pass it
// as the detector's transcript observer.
func (e *Engine) ObserveScan(text string) {
	e.emit(LogLine{Text: text, Category: "wake-scan"})
}

// Dispatch queues a command for the run loop. It never blocks; false
// means the queue was full and the command was dropped.
func (e *Engine) Dispatch(cmd Command) bool {
	select {
	case e.commands <- cmd:
		return true
	default:
		e.logger.Warn("command queue full, dropping command")
		return false
	}
}

// Run drives the state machine until ctx is cancelled or the audio source
// closes. It performs the one-time calibration prefix, then loops: drain
// queued commands first (typed text beats wake polling), then poll the
// wake detector when in voice mode.
//
// Run must be called exactly once; the event channel is closed when it
// returns.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.events)

	if e.calibration > 0 {
		e.setState(StateCalibrating)
		e.session.Calibrate(ctx, e.calibration)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	e.setState(StateIdle)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case cmd := <-e.commands:
			e.handleCommand(ctx, cmd)
			continue
		default:
		}

		if e.mode == ModeText {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cmd := <-e.commands:
				e.handleCommand(ctx, cmd)
			}
			continue
		}

		woke, err := e.session.Detector.Listen(ctx, e.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, voice.ErrSourceClosed) {
				return err
			}
			e.logger.Warn("wake polling failed", "error", err)
			continue
		}
		if woke {
			e.setState(StateWakeDetected)
			e.listenTurn(ctx)
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case SubmitText:
		text := strings.TrimSpace(c.Text)
		if text == "" {
			return
		}
		e.emit(Transcript{Text: text})
		e.runTurn(ctx, text, true)

	case TriggerWake:
		e.setState(StateWakeDetected)
		e.listenTurn(ctx)

	case SetMode:
		if c.Mode == e.mode {
			return
		}
		if c.Mode == ModeVoice {
			// The microphone may never have been started when the kiosk
			// booted in text mode. Start is idempotent, so this is a no-op
			// when capture is already running.
			if err := e.session.Source.Start(ctx); err != nil {
				e.logger.Warn("voice mode unavailable", "error", err)
				e.emit(LogLine{Text: "voice mode unavailable: " + err.Error(), Category: "mode"})
				return
			}
		}
		e.mode = c.Mode
		e.logger.Info("input mode changed", "mode", c.Mode)
		e.emit(LogLine{Text: "input mode: " + c.Mode.String(), Category: "mode"})

	case UpdatePersona:
		if c.Persona == "" || c.Persona == e.persona {
			return
		}
		e.persona = c.Persona
		e.logger.Info("persona updated")
		e.emit(LogLine{Text: "persona updated", Category: "config"})

	case UpdateWake:
		e.session.Matcher.Configure(c.Variants, c.Similarity)
		e.logger.Info("wake matcher updated", "variants", e.session.Matcher.Variants())
		e.emit(LogLine{Text: "wake matcher updated", Category: "config"})
	}
}

// listenTurn records and transcribes one utterance, then runs the turn.
// Rejected or failed transcripts return the engine to idle without a
// response.
func (e *Engine) listenTurn(ctx context.Context) {
	e.setState(StateListening)

	// The window still holds the wake-phrase audio. Clear it now so a
	// rejected or failed utterance cannot leave it behind to re-trigger
	// the next wake scan.
	e.session.Detector.Reset()

	samples, err := e.session.Recorder.Record(ctx, e.maxUtterance)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Warn("utterance recording failed", "error", err)
		}
		e.setState(StateIdle)
		return
	}

	result, err := e.session.Transcriber.Transcribe(ctx, samples)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Warn("utterance transcription failed", "error", err)
		}
		e.setState(StateIdle)
		return
	}
	if !result.Accepted {
		e.logger.Debug("utterance rejected", "reason", string(result.Reason), "text", result.Text)
		e.emit(LogLine{Text: "utterance rejected: " + string(result.Reason), Category: "stt"})
		e.setState(StateIdle)
		return
	}

	e.emit(Transcript{Text: result.Text})
	e.runTurn(ctx, result.Text, false)
}

// runTurn executes retrieval, completion and speech for one question.
// Collaborator failures end the turn: logged on the voice path, surfaced
// as the canned apology on the text path.
func (e *Engine) runTurn(ctx context.Context, query string, textPath bool) {
	e.setState(StateThinking)

	docs, err := e.store.Search(ctx, query, e.maxResults)
	if err != nil {
		e.turnFailure(textPath, "retrieval failed", err)
		return
	}

	prompt := BuildPrompt(e.persona, e.now(), query, docs)
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: defaultTemperature,
		MaxTokens:   TokenBudget(query),
	})
	if err != nil {
		e.turnFailure(textPath, "completion failed", err)
		return
	}

	answer := strings.TrimSpace(resp.Content)
	e.emit(Response{Text: answer})
	e.speak(ctx, answer)

	// Clear the wake window so the assistant's own voice cannot trigger
	// or pollute the next wake scan.
	e.session.Detector.Reset()
	e.setState(StateIdle)
}

func (e *Engine) turnFailure(textPath bool, stage string, err error) {
	e.logger.Error("turn failed", "stage", stage, "error", err)
	e.emit(LogLine{Text: stage + ": " + err.Error(), Category: "error"})
	if textPath {
		e.emit(Response{Text: Apology})
	}
	e.setState(StateIdle)
}

// speak plays the answer. For blocking speakers Speak returns only after
// playback finishes. For fire-and-forget speakers the engine pauses for
// an estimated speaking duration instead, so capture does not resume while
// the speaker is still audible.
func (e *Engine) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	e.setState(StateSpeaking)

	if err := e.speaker.Speak(ctx, text); err != nil {
		if ctx.Err() == nil {
			e.logger.Warn("speech synthesis failed", "error", err)
			e.emit(LogLine{Text: "speech failed: " + err.Error(), Category: "tts"})
		}
		return
	}

	if !e.speaker.Blocking() {
		wait := time.Duration(len(strings.Fields(text)))*e.wordPause + e.pauseBuffer
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
}

// setState records a transition and notifies observers.
func (e *Engine) setState(s State) {
	if s == e.state {
		return
	}
	from := e.state
	e.state = s
	e.logger.Debug("state changed", "from", from, "to", s)
	e.emit(StateChanged{From: from, To: s})
}

// emit delivers ev without blocking; when the buffer is full the event is
// dropped rather than stalling orchestration.
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}
