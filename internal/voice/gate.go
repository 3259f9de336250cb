package voice

import (
	"sync"

	"github.com/iacademy-nexus/bearnard/pkg/audio"
)

// Class is the energy classification of a single frame.
type Class int

const (
	// ClassSilence marks a frame whose energy is below the gate threshold.
	ClassSilence Class = iota

	// ClassSpeech marks a frame whose energy reaches the gate threshold.
	ClassSpeech
)

// String returns the human-readable name of the class.
func (c Class) String() string {
	switch c {
	case ClassSilence:
		return "SILENCE"
	case ClassSpeech:
		return "SPEECH"
	default:
		return "UNKNOWN"
	}
}

// DefaultThreshold is the RMS energy threshold used when calibration is
// unavailable, expressed in normalized [-1, 1] sample units.
const DefaultThreshold = 0.01

// Gate classifies frames as speech or silence by RMS energy against a
// settable threshold. Classification is a pure function of the frame and
// the current threshold; the gate keeps no history.
//
// One Gate instance is shared between the wake detector and the utterance
// recorder so a single calibration governs both. Safe for concurrent use.
type Gate struct {
	mu        sync.RWMutex
	threshold float64
}

// NewGate constructs a Gate. A non-positive threshold falls back to
// DefaultThreshold.
func NewGate(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{threshold: threshold}
}

// Classify returns ClassSpeech when the frame's RMS energy is at or above
// the threshold, ClassSilence otherwise.
func (g *Gate) Classify(f audio.Frame) Class {
	return g.ClassifyRMS(audio.RMS(f.Samples))
}

// ClassifyRMS classifies a pre-computed RMS value, letting callers that
// already measured a frame's energy avoid a second pass.
func (g *Gate) ClassifyRMS(rms float64) Class {
	g.mu.RLock()
	t := g.threshold
	g.mu.RUnlock()
	if rms >= t {
		return ClassSpeech
	}
	return ClassSilence
}

// Threshold returns the current RMS threshold.
func (g *Gate) Threshold() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.threshold
}

// SetThreshold replaces the RMS threshold. Non-positive values are
// ignored.
func (g *Gate) SetThreshold(t float64) {
	if t <= 0 {
		return
	}
	g.mu.Lock()
	g.threshold = t
	g.mu.Unlock()
}
