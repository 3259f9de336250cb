package voice

import (
	"sync"
	"time"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
)

// Window is the sliding buffer of recent frames the wake detector scans.
// Pushing past the maximum duration evicts the oldest frames first, so the
// window always holds the most recent maxDur of audio. Safe for concurrent
// use.
type Window struct {
	mu     sync.Mutex
	maxDur time.Duration
	frames []audio.Frame
	total  time.Duration
}

// NewWindow constructs a Window holding at most maxDur of audio.
func NewWindow(maxDur time.Duration) *Window {
	if maxDur <= 0 {
		maxDur = 3 * time.Second
	}
	return &Window{maxDur: maxDur}
}

// Push appends frame, evicting the oldest frames until the window fits
// within its maximum duration again.
func (w *Window) Push(f audio.Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.frames = append(w.frames, f)
	w.total += f.Duration()
	for w.total > w.maxDur && len(w.frames) > 1 {
		w.total -= w.frames[0].Duration()
		w.frames = w.frames[1:]
	}
}

// Snapshot returns the window's samples concatenated in chronological
// order. The returned slice is a copy; pushing more frames does not
// mutate it.
func (w *Window) Snapshot() []float32 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, f := range w.frames {
		n += len(f.Samples)
	}
	out := make([]float32, 0, n)
	for _, f := range w.frames {
		out = append(out, f.Samples...)
	}
	return out
}

// Clear empties the window.
func (w *Window) Clear() {
	w.mu.Lock()
	w.frames = nil
	w.total = 0
	w.mu.Unlock()
}

// Duration returns the span of audio currently buffered.
func (w *Window) Duration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// Len returns the number of buffered frames.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}
