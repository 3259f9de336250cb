package kiosk

// State is the conversation engine's current phase. Exactly one state is
// active at a time and only the engine's run loop mutates it; observers
// follow along via StateChanged events.
type State int

const (
	// StateLoading covers startup before the audio pipeline is ready.
	StateLoading State = iota

	// StateCalibrating covers the ambient-noise calibration pass.
	StateCalibrating

	// StateIdle waits for a wake phrase, a manual trigger, or typed text.
	StateIdle

	// StateWakeDetected is the brief transition between hearing the wake
	// phrase and recording the utterance.
	StateWakeDetected

	// StateListening records the user's utterance.
	StateListening

	// StateThinking retrieves context and generates the answer.
	StateThinking

	// StateSpeaking plays the answer back.
	StateSpeaking
)

// String returns the state's display name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateCalibrating:
		return "CALIBRATING"
	case StateIdle:
		return "IDLE"
	case StateWakeDetected:
		return "WAKE_DETECTED"
	case StateListening:
		return "LISTENING"
	case StateThinking:
		return "THINKING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return "UNKNOWN"
	}
}
