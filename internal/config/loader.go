package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"whisper"},
	"llm":        {"openai", "ollama", "llamacpp"},
	"tts":        {"coqui"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	// Pre-fill defaults that have a meaningful zero value in YAML. Device 0
	// is a real PortAudio index, so "not set" must be -1 (host default).
	cfg := &Config{Audio: AudioConfig{Device: -1}}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.Device < -1 {
		errs = append(errs, fmt.Errorf("audio.device %d is invalid; use -1 for the default device or a non-negative index", cfg.Audio.Device))
	}
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameDuration < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_duration %s must not be negative", cfg.Audio.FrameDuration))
	}

	// Wake
	if cfg.Wake.Similarity < 0 || cfg.Wake.Similarity > 1 {
		errs = append(errs, fmt.Errorf("wake.similarity %.2f is out of range [0, 1]", cfg.Wake.Similarity))
	}
	for i, v := range cfg.Wake.Variants {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("wake.variants[%d] is blank", i))
		}
	}

	// Recorder
	if cfg.Recorder.SilenceLimit < 0 {
		errs = append(errs, fmt.Errorf("recorder.silence_limit %s must not be negative", cfg.Recorder.SilenceLimit))
	}
	if cfg.Recorder.MaxUtterance < 0 {
		errs = append(errs, fmt.Errorf("recorder.max_utterance %s must not be negative", cfg.Recorder.MaxUtterance))
	}
	if cfg.Recorder.SilenceLimit > 0 && cfg.Recorder.MaxUtterance > 0 &&
		cfg.Recorder.SilenceLimit > cfg.Recorder.MaxUtterance {
		errs = append(errs, fmt.Errorf("recorder.silence_limit %s exceeds recorder.max_utterance %s", cfg.Recorder.SilenceLimit, cfg.Recorder.MaxUtterance))
	}

	// Calibration
	if cfg.Calibration.Duration < 0 {
		errs = append(errs, fmt.Errorf("calibration.duration %s must not be negative", cfg.Calibration.Duration))
	}

	// Kiosk
	if cfg.Kiosk.Mode != "" && !cfg.Kiosk.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("kiosk.mode %q is invalid; valid values: voice, text", cfg.Kiosk.Mode))
	}

	// Provider name validation, warn only for unknown names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("tts", cfg.Providers.TTSFallback.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// STT needs a model file when configured.
	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.Model == "" {
		errs = append(errs, errors.New("providers.stt.model is required for whisper (path to the ggml model file)"))
	}

	// A fallback without a primary is almost certainly a mistake.
	if cfg.Providers.LLMFallback.Name != "" && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallback is set but providers.llm is not"))
	}
	if cfg.Providers.STTFallback.Name != "" && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallback is set but providers.stt is not"))
	}
	if cfg.Providers.TTSFallback.Name != "" && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts_fallback is set but providers.tts is not"))
	}

	// Knowledge
	if cfg.Knowledge.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("knowledge.max_results %d must not be negative", cfg.Knowledge.MaxResults))
	}
	if cfg.Knowledge.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("knowledge.chunk_size %d must not be negative", cfg.Knowledge.ChunkSize))
	}
	if cfg.Knowledge.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("knowledge.chunk_overlap %d must not be negative", cfg.Knowledge.ChunkOverlap))
	}
	if cfg.Knowledge.ChunkSize > 0 && cfg.Knowledge.ChunkOverlap >= cfg.Knowledge.ChunkSize {
		errs = append(errs, fmt.Errorf("knowledge.chunk_overlap %d must be smaller than knowledge.chunk_size %d", cfg.Knowledge.ChunkOverlap, cfg.Knowledge.ChunkSize))
	}
	if cfg.Knowledge.PostgresDSN == "" && cfg.Providers.LLM.Name != "" {
		slog.Warn("knowledge.postgres_dsn is empty; every answer will use the no-data apology")
	}
	if cfg.Knowledge.PostgresDSN != "" && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("knowledge.postgres_dsn is set but providers.embeddings is not configured"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
