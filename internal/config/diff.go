package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything touching
// the audio device, providers, or the knowledge store requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonaChanged is set when the prompt persona line changed.
	PersonaChanged bool
	NewPersona     string

	// WakeChanged is set when the wake variants or similarity threshold
	// changed. The detector's matcher must be rebuilt.
	WakeChanged bool
	NewWake     WakeConfig
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.PersonaChanged || d.WakeChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Kiosk.Persona != new.Kiosk.Persona {
		d.PersonaChanged = true
		d.NewPersona = new.Kiosk.Persona
	}

	if !slices.Equal(old.Wake.Variants, new.Wake.Variants) ||
		old.Wake.Similarity != new.Wake.Similarity {
		d.WakeChanged = true
		d.NewWake = new.Wake
	}

	return d
}
