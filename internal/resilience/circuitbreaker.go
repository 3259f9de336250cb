// Package resilience keeps the kiosk answering when a hosted collaborator
// (the LLM endpoint, a speech server, a remote STT service) starts failing.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops a turn from waiting on a provider that has already failed several
// turns in a row. [FallbackGroup] layers one breaker per configured provider
// so a broken primary is skipped in favour of the next healthy entry, which
// is how the llm_fallback, stt_fallback and tts_fallback config entries take
// effect.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// is open and the retry timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Defaults are tuned to the kiosk's turn cadence: a visitor turn happens
// every few seconds, so three straight failures already mean a stretch of
// broken answers, and twenty seconds open is long enough for a local model
// server to come back without benching it for a whole conversation.
const (
	defaultMaxFailures  = 3
	defaultResetTimeout = 20 * time.Second
	defaultHalfOpenMax  = 2
)

// State is a [CircuitBreaker] operating mode.
type State int

const (
	// StateClosed forwards every call; the provider is considered healthy.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after
	// MaxFailures consecutive failures, left when ResetTimeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through. The
	// probes decide whether the breaker closes again or re-opens.
	StateHalfOpen
)

// String returns the state's display name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds the tuning knobs for a [CircuitBreaker].
// Zero fields take the package defaults.
type CircuitBreakerConfig struct {
	// Name labels the guarded provider in log lines, e.g. "llm-ollama".
	Name string

	// MaxFailures is how many consecutive closed-state failures trip the
	// breaker. Default 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing the
	// provider again. Default 20s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the probe calls allowed while half-open; that
	// many successes close the breaker, any failure re-opens it.
	// Default 2.
	HalfOpenMax int
}

// CircuitBreaker guards calls to one provider. It is safe for concurrent
// use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.Mutex
	state         State
	failStreak    int
	lastFailureAt time.Time
	probesUsed    int
	probeFails    int
}

// NewCircuitBreaker creates a closed [CircuitBreaker] from cfg, filling
// zero fields with the package defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = defaultHalfOpenMax
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute runs fn unless the breaker forbids it. While open it returns
// [ErrCircuitOpen] without calling fn; while half-open only the probe
// budget gets through.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probesUsed = 0
		cb.probeFails = 0
		slog.Info("breaker half-open, probing provider", "breaker", cb.name)

	case StateHalfOpen:
		if cb.probesUsed >= cb.halfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	probing := cb.state == StateHalfOpen
	if probing {
		cb.probesUsed++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.recordFailure(probing)
	} else {
		cb.recordSuccess(probing)
	}
	return err
}

// recordFailure updates failure accounting. Caller holds cb.mu.
func (cb *CircuitBreaker) recordFailure(probing bool) {
	cb.lastFailureAt = time.Now()

	if probing {
		// One failed probe is enough; back to open for a full timeout.
		cb.probeFails++
		cb.state = StateOpen
		cb.failStreak = cb.maxFailures
		slog.Warn("breaker re-opened, probe failed", "breaker", cb.name)
		return
	}

	cb.failStreak++
	if cb.failStreak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("breaker opened, provider failing",
			"breaker", cb.name, "failures", cb.failStreak)
	}
}

// recordSuccess updates success accounting. Caller holds cb.mu.
func (cb *CircuitBreaker) recordSuccess(probing bool) {
	if probing {
		if cb.probesUsed-cb.probeFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failStreak = 0
			cb.probesUsed = 0
			cb.probeFails = 0
			slog.Info("breaker closed, provider healthy again", "breaker", cb.name)
		}
		return
	}

	cb.failStreak = 0
}

// State reports the breaker's mode. An open breaker whose retry timeout has
// elapsed reports [StateHalfOpen]; the stored state flips on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailureAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failStreak = 0
	cb.probesUsed = 0
	cb.probeFails = 0
	slog.Info("breaker reset", "breaker", cb.name)
}
