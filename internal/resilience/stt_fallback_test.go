package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/iacademy-nexus/bearnard/pkg/provider/stt"
	sttmock "github.com/iacademy-nexus/bearnard/pkg/provider/stt/mock"
)

func TestSTTFallback_Transcribe_PrimarySuccess(t *testing.T) {
	primary := sttmock.New(sttmock.Result{Text: "hello from primary"})
	secondary := sttmock.New(sttmock.Result{Text: "hello from secondary"})

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	text, err := fb.Transcribe(context.Background(), make([]float32, 1600), stt.Options{BeamSize: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello from primary" {
		t.Fatalf("text = %q, want 'hello from primary'", text)
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CallCount())
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_Transcribe_Failover(t *testing.T) {
	primary := sttmock.New(sttmock.Result{Err: errors.New("primary down")})
	secondary := sttmock.New(sttmock.Result{Text: "hello from secondary"})

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	text, err := fb.Transcribe(context.Background(), make([]float32, 1600), stt.Options{BeamSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello from secondary" {
		t.Fatalf("text = %q, want 'hello from secondary'", text)
	}
	if secondary.CallCount() != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.CallCount())
	}
	// The fallback must see the same decoding options as the primary.
	if got := secondary.Calls[0].Opts.BeamSize; got != 1 {
		t.Fatalf("fallback BeamSize = %d, want 1", got)
	}
}

func TestSTTFallback_Transcribe_AllFail(t *testing.T) {
	primary := &sttmock.Engine{
		TranscribeFunc: func(context.Context, []float32, stt.Options) (string, error) {
			return "", errors.New("primary down")
		},
	}
	secondary := &sttmock.Engine{
		TranscribeFunc: func(context.Context, []float32, stt.Options) (string, error) {
			return "", errors.New("secondary down")
		},
	}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), make([]float32, 800), stt.Options{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
