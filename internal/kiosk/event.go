package kiosk

// Event is a notification from the engine to the presentation layer.
// Events flow one way on a buffered channel; the engine never waits for a
// consumer, so a slow or absent presentation layer cannot stall a turn.
type Event interface {
	isEvent()
}

// StateChanged reports a conversation state transition.
type StateChanged struct {
	From State
	To   State
}

// VolumeLevel reports one audio frame's RMS energy, for level meters.
type VolumeLevel struct {
	RMS float64
}

// Transcript reports an accepted user utterance or submitted text.
type Transcript struct {
	Text string
}

// Response reports the assistant's answer for a turn.
type Response struct {
	Text string
}

// LogLine reports a diagnostic line for on-screen debug panes.
type LogLine struct {
	Text     string
	Category string
}

func (StateChanged) isEvent() {}
func (VolumeLevel) isEvent()  {}
func (Transcript) isEvent()   {}
func (Response) isEvent()     {}
func (LogLine) isEvent()      {}

// Mode selects how the engine acquires user input.
type Mode int

const (
	// ModeVoice polls the wake detector between commands.
	ModeVoice Mode = iota

	// ModeText waits for submitted text only; the microphone is ignored.
	ModeText
)

// String returns the mode's display name.
func (m Mode) String() string {
	if m == ModeText {
		return "text"
	}
	return "voice"
}

// Command is an instruction from the presentation layer to the engine.
// Commands are the only way observers influence orchestration; they are
// queued and handled at the top of the engine's idle loop, with queued
// text taking priority over wake polling.
type Command interface {
	isCommand()
}

// SubmitText runs a turn for typed input, skipping straight to thinking.
type SubmitText struct {
	Text string
}

// TriggerWake starts a listening turn as if the wake phrase was heard.
type TriggerWake struct{}

// SetMode switches between voice and text input.
type SetMode struct {
	Mode Mode
}

// UpdatePersona swaps the prompt persona, taking effect on the next turn.
// Issued by the config reloader, not by presentation clients.
type UpdatePersona struct {
	Persona string
}

// UpdateWake reconfigures the wake-phrase matcher. Issued by the config
// reloader, not by presentation clients.
type UpdateWake struct {
	Variants   []string
	Similarity float64
}

func (SubmitText) isCommand()    {}
func (TriggerWake) isCommand()   {}
func (SetMode) isCommand()       {}
func (UpdatePersona) isCommand() {}
func (UpdateWake) isCommand()    {}
