package audio

import (
	"math"
	"testing"
	"time"
)

func TestFrameDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    Frame
		want time.Duration
	}{
		{
			name: "50ms at 16kHz",
			f:    Frame{Samples: make([]float32, 800), SampleRate: 16000},
			want: 50 * time.Millisecond,
		},
		{
			name: "one second at 16kHz",
			f:    Frame{Samples: make([]float32, 16000), SampleRate: 16000},
			want: time.Second,
		},
		{
			name: "empty frame",
			f:    Frame{SampleRate: 16000},
			want: 0,
		},
		{
			name: "invalid sample rate",
			f:    Frame{Samples: make([]float32, 800)},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.f.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS(make([]float32, 100)); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}

	// A constant signal of amplitude a has RMS a.
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 0.5
	}
	if got := RMS(samples); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("RMS(const 0.5) = %v, want 0.5", got)
	}

	// A full-scale square wave has RMS 1.
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1
		} else {
			samples[i] = -1
		}
	}
	if got := RMS(samples); math.Abs(got-1) > 1e-6 {
		t.Errorf("RMS(square) = %v, want 1", got)
	}
}

func TestRMSMonotonicInAmplitude(t *testing.T) {
	t.Parallel()

	mk := func(amp float32) []float32 {
		s := make([]float32, 160)
		for i := range s {
			s[i] = amp * float32(math.Sin(float64(i)/10))
		}
		return s
	}

	quiet := RMS(mk(0.01))
	loud := RMS(mk(0.5))
	if quiet >= loud {
		t.Errorf("RMS not monotonic: quiet %v >= loud %v", quiet, loud)
	}
}
