package voice_test

import (
	"testing"
	"time"

	"github.com/iacademy-nexus/bearnard/internal/voice"
	"github.com/iacademy-nexus/bearnard/pkg/audio"
)

func TestWindowEvictsOldest(t *testing.T) {
	t.Parallel()

	w := voice.NewWindow(150 * time.Millisecond)
	for range 10 {
		w.Push(frame(0.1))
	}

	if got := w.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3 (150ms / 50ms frames)", got)
	}
	if got := w.Duration(); got != 150*time.Millisecond {
		t.Errorf("Duration() = %v, want 150ms", got)
	}
}

func TestWindowSnapshotChronological(t *testing.T) {
	t.Parallel()

	w := voice.NewWindow(time.Second)
	amps := []float32{0.1, 0.2, 0.3}
	for _, a := range amps {
		w.Push(frame(a))
	}

	snap := w.Snapshot()
	if len(snap) != 3*testFrameLen {
		t.Fatalf("len(snapshot) = %d, want %d", len(snap), 3*testFrameLen)
	}
	for i, a := range amps {
		if snap[i*testFrameLen] != a {
			t.Errorf("segment %d starts with %v, want %v", i, snap[i*testFrameLen], a)
		}
	}
}

func TestWindowSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	w := voice.NewWindow(time.Second)
	w.Push(frame(0.1))
	snap := w.Snapshot()
	w.Push(frame(0.9))

	if snap[0] != 0.1 || len(snap) != testFrameLen {
		t.Error("snapshot mutated by later pushes")
	}
}

func TestWindowClear(t *testing.T) {
	t.Parallel()

	w := voice.NewWindow(time.Second)
	w.Push(frame(0.1))
	w.Clear()

	if w.Len() != 0 || w.Duration() != 0 || len(w.Snapshot()) != 0 {
		t.Error("Clear() left residual state")
	}
}

func TestWindowKeepsSingleOversizeFrame(t *testing.T) {
	t.Parallel()

	// A frame longer than the window must still be retained; eviction
	// never empties the buffer entirely.
	w := voice.NewWindow(10 * time.Millisecond)
	big := audio.Frame{Samples: make([]float32, testRate), SampleRate: testRate}
	w.Push(big)
	if w.Len() != 1 {
		t.Errorf("Len() = %d, want 1", w.Len())
	}
}
