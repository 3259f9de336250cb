// Package mock provides a scripted stt.Engine for tests.
package mock

import (
	"context"
	"sync"

	"github.com/iacademy-nexus/bearnard/pkg/provider/stt"
)

// Ensure Engine implements the stt.Engine interface.
var _ stt.Engine = (*Engine)(nil)

// Result is one scripted transcription outcome.
type Result struct {
	Text string
	Err  error
}

// Call records the arguments of one Transcribe invocation.
type Call struct {
	SampleCount int
	Opts        stt.Options
}

// Engine is an stt.Engine that returns scripted results in order. Once the
// script is exhausted it returns empty text, mimicking a model that hears
// nothing. All fields must be set before first use; methods are safe for
// concurrent use afterwards.
type Engine struct {
	// Script is consumed one entry per Transcribe call.
	Script []Result

	// TranscribeFunc, when set, overrides the script entirely.
	TranscribeFunc func(ctx context.Context, samples []float32, opts stt.Options) (string, error)

	mu    sync.Mutex
	next  int
	Calls []Call
}

// New constructs an Engine that replays the given results.
func New(script ...Result) *Engine {
	return &Engine{Script: script}
}

// Transcribe implements stt.Engine.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, opts stt.Options) (string, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, Call{SampleCount: len(samples), Opts: opts})
	fn := e.TranscribeFunc
	var res Result
	if fn == nil && e.next < len(e.Script) {
		res = e.Script[e.next]
		e.next++
	}
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, samples, opts)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return res.Text, res.Err
}

// CallCount returns the number of Transcribe invocations so far.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}
