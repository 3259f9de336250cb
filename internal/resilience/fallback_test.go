package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_PrimaryServes(t *testing.T) {
	g := NewFallbackGroup("ollama", "llm-ollama", FallbackConfig{})
	g.AddFallback("llm-llamacpp", "llamacpp")

	var served string
	err := g.Execute(func(v string) error {
		served = v
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if served != "ollama" {
		t.Errorf("served by %q, want the primary", served)
	}
}

func TestFallbackGroup_FailsOverInOrder(t *testing.T) {
	g := NewFallbackGroup("ollama", "llm-ollama", FallbackConfig{})
	g.AddFallback("llm-llamacpp", "llamacpp")

	var tried []string
	err := g.Execute(func(v string) error {
		tried = append(tried, v)
		if v == "ollama" {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tried) != 2 || tried[0] != "ollama" || tried[1] != "llamacpp" {
		t.Errorf("tried %v, want primary then fallback", tried)
	}
}

func TestFallbackGroup_AllFailed(t *testing.T) {
	g := NewFallbackGroup("coqui", "tts-coqui", FallbackConfig{})
	g.AddFallback("tts-backup", "backup")

	err := g.Execute(func(string) error {
		return errors.New("synthesis failed")
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	g := NewFallbackGroup("ollama", "llm-ollama", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  1,
			ResetTimeout: time.Hour,
		},
	})
	g.AddFallback("llm-llamacpp", "llamacpp")

	// Trip the primary's breaker.
	_ = g.Execute(func(v string) error {
		if v == "ollama" {
			return errors.New("connection refused")
		}
		return nil
	})

	var tried []string
	err := g.Execute(func(v string) error {
		tried = append(tried, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tried) != 1 || tried[0] != "llamacpp" {
		t.Errorf("tried %v, want only the fallback while the primary is benched", tried)
	}
}

func TestExecuteWithResult_Primary(t *testing.T) {
	g := NewFallbackGroup(40, "llm-ollama", FallbackConfig{})

	got, err := ExecuteWithResult(g, func(v int) (int, error) {
		return v + 2, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	g := NewFallbackGroup("whisper", "stt-whisper", FallbackConfig{})
	g.AddFallback("stt-remote", "remote")

	got, err := ExecuteWithResult(g, func(v string) (string, error) {
		if v == "whisper" {
			return "", errors.New("model not loaded")
		}
		return "hello from " + v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello from remote" {
		t.Errorf("result = %q, want the fallback's answer", got)
	}
}

func TestExecuteWithResult_AllFailed(t *testing.T) {
	g := NewFallbackGroup("whisper", "stt-whisper", FallbackConfig{})

	got, err := ExecuteWithResult(g, func(string) (string, error) {
		return "partial", errors.New("decode failed")
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if got != "" {
		t.Errorf("result = %q, want the zero value on total failure", got)
	}
}
