package voice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iacademy-nexus/bearnard/internal/voice"
	"github.com/iacademy-nexus/bearnard/pkg/audio"
	capturemock "github.com/iacademy-nexus/bearnard/pkg/audio/capture/mock"
)

func newRecorder(t *testing.T, src *capturemock.Source, opts ...voice.RecorderOption) *voice.Recorder {
	t.Helper()
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return voice.NewRecorder(src, voice.NewGate(0.01), opts...)
}

func TestRecorderStopsOnSilence(t *testing.T) {
	t.Parallel()

	// 3 speech frames then 4 silent ones; a 200 ms silence limit trips on
	// the 4th silent frame and everything heard so far is returned.
	script := append(frames(3, 0.5), frames(10, 0)...)
	src := capturemock.New(script...)
	rec := newRecorder(t, src, voice.WithSilenceLimit(200*time.Millisecond))

	samples, err := rec.Record(context.Background(), 15*time.Second)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if want := 7 * testFrameLen; len(samples) != want {
		t.Errorf("len(samples) = %d, want %d", len(samples), want)
	}
}

func TestRecorderSpeechResetsSilenceCounter(t *testing.T) {
	t.Parallel()

	// A pause shorter than the limit must not end the recording.
	script := frames(1, 0.5)
	script = append(script, frames(3, 0)...)
	script = append(script, frame(0.5))
	script = append(script, frames(10, 0)...)
	src := capturemock.New(script...)
	rec := newRecorder(t, src, voice.WithSilenceLimit(200*time.Millisecond))

	samples, err := rec.Record(context.Background(), 15*time.Second)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if want := 9 * testFrameLen; len(samples) != want {
		t.Errorf("len(samples) = %d, want %d", len(samples), want)
	}
}

func TestRecorderStopsAtCeiling(t *testing.T) {
	t.Parallel()

	// Continuous speech never goes silent; the duration ceiling ends the
	// recording without error.
	src := capturemock.New(frames(10, 0.5)...)
	rec := newRecorder(t, src)

	samples, err := rec.Record(context.Background(), 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if want := 6 * testFrameLen; len(samples) != want {
		t.Errorf("len(samples) = %d, want %d", len(samples), want)
	}
}

func TestRecorderContextCancelReturnsPartial(t *testing.T) {
	t.Parallel()

	src := capturemock.New()
	rec := newRecorder(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	samples, err := rec.Record(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Record() error = %v, want context.Canceled", err)
	}
	if len(samples) != 0 {
		t.Errorf("len(samples) = %d, want 0", len(samples))
	}
}

func TestRecorderSourceClosed(t *testing.T) {
	t.Parallel()

	src := capturemock.New()
	src.CloseAfterScript = true
	rec := newRecorder(t, src)

	if _, err := rec.Record(context.Background(), time.Second); !errors.Is(err, voice.ErrSourceClosed) {
		t.Errorf("Record() error = %v, want ErrSourceClosed", err)
	}
}

func TestRecorderVolumeObserver(t *testing.T) {
	t.Parallel()

	script := append(frames(1, 0.5), frames(4, 0)...)
	src := capturemock.New(script...)

	var levels []float64
	rec := newRecorder(t, src,
		voice.WithSilenceLimit(200*time.Millisecond),
		voice.WithRecorderVolumeObserver(func(rms float64) {
			levels = append(levels, rms)
		}))

	if _, err := rec.Record(context.Background(), time.Second); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(levels) != 5 {
		t.Errorf("volume observer saw %d frames, want 5", len(levels))
	}
	if loud := levels[0]; loud < 0.4 {
		t.Errorf("first frame RMS = %v, want the speech frame's energy", loud)
	}
}

func TestRecorderKeepsTrailingSilence(t *testing.T) {
	t.Parallel()

	script := append(frames(2, 0.5), frames(4, 0)...)
	src := capturemock.New(script...)
	rec := newRecorder(t, src, voice.WithSilenceLimit(200*time.Millisecond))

	samples, err := rec.Record(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// Trailing silence is part of the utterance handed to transcription.
	tail := samples[len(samples)-testFrameLen:]
	if rms := audio.RMS(tail); rms != 0 {
		t.Errorf("trailing frame RMS = %v, want 0", rms)
	}
}
