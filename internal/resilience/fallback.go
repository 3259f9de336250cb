package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] failed or
// was skipped by an open breaker, meaning the turn cannot be served.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the breaker created for each provider added to
// a [FallbackGroup]. The same tuning applies to every entry; only the
// breaker name differs.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// groupEntry pairs one provider with its dedicated breaker.
type groupEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary provider and any number of fallbacks of the
// same type, each behind its own [CircuitBreaker]. Calls walk the entries
// in registration order, skipping open breakers, until one succeeds. The
// typed wrappers (LLMFallback, STTFallback, TTSFallback) build on this.
//
// FallbackGroup is safe for concurrent use once assembled; AddFallback must
// finish before the first Execute.
type FallbackGroup[T any] struct {
	entries []groupEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends a provider tried after all earlier entries.
func (g *FallbackGroup[T]) AddFallback(name string, fallback T) {
	g.add(name, fallback)
}

func (g *FallbackGroup[T]) add(name string, value T) {
	cbCfg := g.cfg.CircuitBreaker
	cbCfg.Name = name
	g.entries = append(g.entries, groupEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute tries fn against each healthy entry in order until one succeeds.
// When every entry fails, the last error is wrapped in [ErrAllFailed].
func (g *FallbackGroup[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range g.entries {
		entry := &g.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		logEntryFailure(entry.name, err)
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that return a
// value. It is a package function because Go methods cannot introduce the
// result type parameter.
func ExecuteWithResult[T any, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range g.entries {
		entry := &g.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		logEntryFailure(entry.name, err)
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

func logEntryFailure(name string, err error) {
	if errors.Is(err, ErrCircuitOpen) {
		slog.Debug("provider skipped, breaker open", "provider", name)
		return
	}
	slog.Warn("provider failed, trying next entry", "provider", name, "error", err)
}
