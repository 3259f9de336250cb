package config_test

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/iacademy-nexus/bearnard/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  metrics_addr: ":9090"
  log_level: debug
audio:
  device: 2
  sample_rate: 16000
  frame_duration: 50ms
wake:
  variants: ["hey bearnard", "hello bearnard"]
  similarity: 0.9
  min_window: 1s
  poll_timeout: 500ms
recorder:
  silence_limit: 1500ms
  max_utterance: 15s
calibration:
  enabled: true
  duration: 2s
providers:
  stt:
    name: whisper
    model: models/ggml-base.en.bin
    options:
      language: en
      threads: 4
  llm:
    name: ollama
    model: gemma3:4b
    base_url: http://localhost:11434
  tts:
    name: coqui
    base_url: http://localhost:5002
    model: p225
  embeddings:
    name: ollama
    model: nomic-embed-text
knowledge:
  postgres_dsn: "postgres://localhost/bearnard"
  data_dir: ./data
  max_results: 3
  chunk_size: 250
  chunk_overlap: 50
kiosk:
  mode: voice
  persona: "You are Bearnard."
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Audio.FrameDuration.Std() != 50*time.Millisecond {
		t.Errorf("frame_duration = %s, want 50ms", cfg.Audio.FrameDuration)
	}
	if len(cfg.Wake.Variants) != 2 {
		t.Errorf("wake variants = %v, want two entries", cfg.Wake.Variants)
	}
	if cfg.Recorder.SilenceLimit.Std() != 1500*time.Millisecond {
		t.Errorf("silence_limit = %s, want 1.5s", cfg.Recorder.SilenceLimit)
	}
	if cfg.Recorder.MaxUtterance.Std() != 15*time.Second {
		t.Errorf("max_utterance = %s, want 15s", cfg.Recorder.MaxUtterance)
	}
	if !cfg.Calibration.Enabled {
		t.Error("calibration.enabled = false, want true")
	}
	if cfg.Providers.STT.StringOption("language", "") != "en" {
		t.Errorf("stt language option = %q, want en", cfg.Providers.STT.StringOption("language", ""))
	}
	if cfg.Providers.STT.IntOption("threads", 0) != 4 {
		t.Errorf("stt threads option = %d, want 4", cfg.Providers.STT.IntOption("threads", 0))
	}
	if cfg.Kiosk.Mode != config.ModeVoice {
		t.Errorf("kiosk.mode = %q, want voice", cfg.Kiosk.Mode)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listne_addr: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/bearnard.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
audio:
  device: -3
wake:
  similarity: 1.5
kiosk:
  mode: telepathy
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log_level", "audio.device", "wake.similarity", "kiosk.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_WhisperRequiresModel(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for whisper without model path, got nil")
	}
	if !strings.Contains(err.Error(), "providers.stt.model") {
		t.Errorf("error should mention providers.stt.model, got: %v", err)
	}
}

func TestValidate_FallbackRequiresPrimary(t *testing.T) {
	t.Parallel()
	cases := []struct {
		field string
		yaml  string
	}{
		{"llm_fallback", `
providers:
  llm_fallback:
    name: llamacpp
    model: gemma-2b
`},
		{"stt_fallback", `
providers:
  stt_fallback:
    name: whisper
    model: models/ggml-tiny.en.bin
`},
		{"tts_fallback", `
providers:
  tts_fallback:
    name: coqui
    base_url: http://localhost:5003
`},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error for fallback without its primary, got nil")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error should mention %s, got: %v", tc.field, err)
			}
		})
	}
}

func TestLoadFromReader_FallbackEntries(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: whisper
    model: models/ggml-base.en.bin
  stt_fallback:
    name: whisper
    model: models/ggml-tiny.en.bin
  tts:
    name: coqui
    base_url: http://localhost:5002
  tts_fallback:
    name: coqui
    base_url: http://localhost:5003
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.STTFallback.Model != "models/ggml-tiny.en.bin" {
		t.Errorf("stt_fallback.model = %q", cfg.Providers.STTFallback.Model)
	}
	if cfg.Providers.TTSFallback.BaseURL != "http://localhost:5003" {
		t.Errorf("tts_fallback.base_url = %q", cfg.Providers.TTSFallback.BaseURL)
	}
}

func TestValidate_DSNRequiresEmbeddings(t *testing.T) {
	t.Parallel()
	yaml := `
knowledge:
  postgres_dsn: "postgres://localhost/bearnard"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for postgres_dsn without embeddings provider, got nil")
	}
	if !strings.Contains(err.Error(), "embeddings") {
		t.Errorf("error should mention embeddings, got: %v", err)
	}
}

func TestValidate_ChunkOverlapBounds(t *testing.T) {
	t.Parallel()
	yaml := `
knowledge:
  chunk_size: 100
  chunk_overlap: 100
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for overlap >= chunk size, got nil")
	}
	if !strings.Contains(err.Error(), "chunk_overlap") {
		t.Errorf("error should mention chunk_overlap, got: %v", err)
	}
}

func TestValidate_SilenceLimitVsCeiling(t *testing.T) {
	t.Parallel()
	yaml := `
recorder:
  silence_limit: 20s
  max_utterance: 15s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for silence_limit > max_utterance, got nil")
	}
}

func TestValidate_EmptyConfigIsValid(t *testing.T) {
	t.Parallel()
	if err := config.Validate(&config.Config{}); err != nil {
		t.Fatalf("empty config should validate, got: %v", err)
	}
}

func TestLogLevel_Level(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := tc.in.Level(); got != tc.want {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	sttNames := config.ValidProviderNames["stt"]
	if len(sttNames) == 0 {
		t.Fatal("ValidProviderNames[\"stt\"] should not be empty")
	}
	found := false
	for _, n := range sttNames {
		if n == "whisper" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"stt\"] should contain \"whisper\"")
	}
}
