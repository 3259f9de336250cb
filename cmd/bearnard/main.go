// Command bearnard runs the Bearnard kiosk assistant: an always-listening
// voice pipeline in front of a retrieval-grounded LLM, with a websocket
// bridge for the presentation shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/iacademy-nexus/bearnard/internal/config"
	"github.com/iacademy-nexus/bearnard/internal/health"
	"github.com/iacademy-nexus/bearnard/internal/kb"
	"github.com/iacademy-nexus/bearnard/internal/kiosk"
	"github.com/iacademy-nexus/bearnard/internal/observe"
	"github.com/iacademy-nexus/bearnard/internal/resilience"
	"github.com/iacademy-nexus/bearnard/internal/ui"
	"github.com/iacademy-nexus/bearnard/internal/voice"
	"github.com/iacademy-nexus/bearnard/pkg/audio/capture"
	"github.com/iacademy-nexus/bearnard/pkg/provider/embeddings"
	ollamaembed "github.com/iacademy-nexus/bearnard/pkg/provider/embeddings/ollama"
	oaembed "github.com/iacademy-nexus/bearnard/pkg/provider/embeddings/openai"
	"github.com/iacademy-nexus/bearnard/pkg/provider/llm"
	"github.com/iacademy-nexus/bearnard/pkg/provider/llm/anyllm"
	"github.com/iacademy-nexus/bearnard/pkg/provider/stt"
	"github.com/iacademy-nexus/bearnard/pkg/provider/stt/whisper"
	"github.com/iacademy-nexus/bearnard/pkg/provider/tts"
	"github.com/iacademy-nexus/bearnard/pkg/provider/tts/coqui"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	devices := flag.Bool("devices", false, "list audio input devices and exit")
	ingest := flag.Bool("ingest", false, "ingest knowledge.data_dir into the knowledge base and exit")
	flag.Parse()

	// Device enumeration needs no config.
	if *devices {
		return listDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "bearnard: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "bearnard: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// A LevelVar lets the config watcher change verbosity without restart.
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("bearnard starting",
		"config", *configPath,
		"mode", cfg.Kiosk.Mode,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Knowledge base ────────────────────────────────────────────────────────
	var store kb.Store = emptyStore{}
	var pgStore *kb.PGStore
	if cfg.Knowledge.PostgresDSN != "" {
		embedder, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			slog.Error("failed to create embeddings provider", "err", err)
			return 1
		}
		pgStore, err = kb.NewPGStore(ctx, cfg.Knowledge.PostgresDSN, embedder)
		if err != nil {
			slog.Error("failed to open knowledge base", "err", err)
			return 1
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		slog.Warn("no knowledge base configured; every answer will use the no-data apology")
	}

	if *ingest {
		return runIngest(ctx, cfg, pgStore)
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	engine, err := buildSTT(cfg, reg)
	if err != nil {
		slog.Error("failed to create stt engine", "err", err)
		return 1
	}

	provider, err := buildLLM(cfg, reg)
	if err != nil {
		slog.Error("failed to create llm provider", "err", err)
		return 1
	}

	speaker, err := buildTTS(cfg, reg)
	if err != nil {
		slog.Error("failed to create tts speaker", "err", err)
		return 1
	}

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "bearnard",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Microphone + voice session ────────────────────────────────────────────
	// Stop is deferred unconditionally: a text-mode kiosk never starts the
	// microphone here, but the engine starts it when a client switches to
	// voice at runtime, and Stop without Start is a no-op.
	mic := buildMicrophone(cfg)
	defer func() {
		if err := mic.Stop(); err != nil {
			slog.Warn("microphone stop error", "err", err)
		}
	}()
	if cfg.Kiosk.Mode != config.ModeText || cfg.Calibration.Enabled {
		if err := mic.Start(ctx); err != nil {
			slog.Error("failed to open audio input device", "err", err)
			return 1
		}
	}

	// Declared ahead of the session so the observer closures can reach the
	// engine that is constructed afterwards.
	var eng *kiosk.Engine

	session := kiosk.NewSession(mic, engine, sessionOptions(cfg,
		func(rms float64) { eng.ObserveVolume(rms) },
		func(text string) { eng.ObserveScan(text) },
	)...)

	eng = kiosk.NewEngine(session, store, provider, speaker, engineOptions(cfg)...)

	// ── Presentation bridge ───────────────────────────────────────────────────
	uiSrv := ui.NewServer(eng, ui.WithOriginPatterns(cfg.Server.OriginPatterns...))

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, cur *config.Config) {
		d := config.Diff(old, cur)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			logLevel.Set(d.NewLogLevel.Level())
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.PersonaChanged {
			eng.Dispatch(kiosk.UpdatePersona{Persona: d.NewPersona})
		}
		if d.WakeChanged {
			eng.Dispatch(kiosk.UpdateWake{
				Variants:   d.NewWake.Variants,
				Similarity: d.NewWake.Similarity,
			})
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("kiosk ready, press Ctrl+C to shut down")

	// ── Run loop ──────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return eng.Run(gctx) })

	// Fan engine events through a metrics tap before the websocket bridge.
	events := make(chan kiosk.Event, kiosk.DefaultEventBuffer)
	g.Go(func() error {
		defer close(events)
		for ev := range eng.Events() {
			switch e := ev.(type) {
			case kiosk.StateChanged:
				metrics.RecordStateTransition(gctx, e.To.String())
				if e.To == kiosk.StateWakeDetected {
					metrics.WakeDetections.Add(gctx, 1)
				}
			}
			select {
			case events <- ev:
			default:
			}
		}
		return nil
	})
	g.Go(func() error { return uiSrv.Run(gctx, events) })

	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", observe.Middleware(metrics)(uiSrv))
		serveHTTP(g, gctx, cfg.Server.ListenAddr, mux)
	}
	if cfg.Server.MetricsAddr != "" {
		var checkers []health.Checker
		if pgStore != nil {
			checkers = append(checkers, health.PingChecker("knowledge", pgStore.Ping))
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(checkers...).Register(mux)
		serveHTTP(g, gctx, cfg.Server.MetricsAddr, mux)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// version is stamped by the build; "dev" for local builds.
var version = "dev"

// serveHTTP starts an HTTP server inside g and shuts it down when gctx ends.
func serveHTTP(g *errgroup.Group, gctx context.Context, addr string, handler http.Handler) {
	srv := &http.Server{Addr: addr, Handler: handler}
	g.Go(func() error {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// ── Pipeline wiring ───────────────────────────────────────────────────────────

func buildMicrophone(cfg *config.Config) *capture.Microphone {
	opts := []capture.Option{capture.WithDevice(cfg.Audio.Device)}
	if cfg.Audio.SampleRate > 0 {
		opts = append(opts, capture.WithSampleRate(cfg.Audio.SampleRate))
	}
	if d := cfg.Audio.FrameDuration.Std(); d > 0 {
		opts = append(opts, capture.WithFrameDuration(d))
	}
	return capture.NewMicrophone(opts...)
}

func sessionOptions(cfg *config.Config, onVolume func(float64), onScan func(string)) []kiosk.SessionOption {
	opts := []kiosk.SessionOption{
		kiosk.WithDetectorOptions(
			voice.WithVolumeObserver(onVolume),
			voice.WithTranscriptObserver(onScan),
		),
		kiosk.WithRecorderOptions(
			voice.WithRecorderVolumeObserver(onVolume),
		),
	}
	if len(cfg.Wake.Variants) > 0 {
		opts = append(opts, kiosk.WithWakeVariants(cfg.Wake.Variants))
	}
	if cfg.Wake.Similarity > 0 {
		opts = append(opts, kiosk.WithMatcherOptions(voice.WithSimilarity(cfg.Wake.Similarity)))
	}
	if d := cfg.Wake.MinWindow.Std(); d > 0 {
		opts = append(opts, kiosk.WithDetectorOptions(voice.WithMinWindow(d)))
	}
	if d := cfg.Recorder.SilenceLimit.Std(); d > 0 {
		opts = append(opts, kiosk.WithRecorderOptions(voice.WithSilenceLimit(d)))
	}
	return opts
}

func engineOptions(cfg *config.Config) []kiosk.EngineOption {
	var opts []kiosk.EngineOption
	if cfg.Kiosk.Mode == config.ModeText {
		opts = append(opts, kiosk.WithMode(kiosk.ModeText))
	}
	if cfg.Kiosk.Persona != "" {
		opts = append(opts, kiosk.WithPersona(cfg.Kiosk.Persona))
	}
	if d := cfg.Wake.PollTimeout.Std(); d > 0 {
		opts = append(opts, kiosk.WithWakePollTimeout(d))
	}
	if cfg.Knowledge.MaxResults > 0 {
		opts = append(opts, kiosk.WithMaxResults(cfg.Knowledge.MaxResults))
	}
	if d := cfg.Recorder.MaxUtterance.Std(); d > 0 {
		opts = append(opts, kiosk.WithMaxUtterance(d))
	}
	if cfg.Calibration.Enabled {
		dur := cfg.Calibration.Duration.Std()
		if dur <= 0 {
			dur = 2 * time.Second
		}
		opts = append(opts, kiosk.WithCalibration(dur))
	}
	return opts
}

// buildLLM creates the primary LLM provider and, when configured, wraps it in
// a circuit-breaker fallback group with the secondary model.
func buildLLM(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	if cfg.Providers.LLMFallback.Name == "" {
		return primary, nil
	}

	secondary, err := reg.CreateLLM(cfg.Providers.LLMFallback)
	if err != nil {
		return nil, fmt.Errorf("create llm fallback %q: %w", cfg.Providers.LLMFallback.Name, err)
	}
	fb := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	fb.AddFallback(cfg.Providers.LLMFallback.Name, secondary)
	slog.Info("llm failover enabled",
		"primary", cfg.Providers.LLM.Name,
		"fallback", cfg.Providers.LLMFallback.Name,
	)
	return fb, nil
}

// buildSTT creates the primary STT engine, wrapped in a fallback group when
// a secondary engine is configured.
func buildSTT(cfg *config.Config, reg *config.Registry) (stt.Engine, error) {
	primary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt engine %q: %w", cfg.Providers.STT.Name, err)
	}
	if cfg.Providers.STTFallback.Name == "" {
		return primary, nil
	}

	secondary, err := reg.CreateSTT(cfg.Providers.STTFallback)
	if err != nil {
		return nil, fmt.Errorf("create stt fallback %q: %w", cfg.Providers.STTFallback.Name, err)
	}
	fb := resilience.NewSTTFallback(primary, cfg.Providers.STT.Name, resilience.FallbackConfig{})
	fb.AddFallback(cfg.Providers.STTFallback.Name, secondary)
	slog.Info("stt failover enabled",
		"primary", cfg.Providers.STT.Name,
		"fallback", cfg.Providers.STTFallback.Name,
	)
	return fb, nil
}

// buildTTS creates the primary speaker, wrapped in a fallback group when a
// secondary speaker is configured.
func buildTTS(cfg *config.Config, reg *config.Registry) (tts.Speaker, error) {
	primary, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts speaker %q: %w", cfg.Providers.TTS.Name, err)
	}
	if cfg.Providers.TTSFallback.Name == "" {
		return primary, nil
	}

	secondary, err := reg.CreateTTS(cfg.Providers.TTSFallback)
	if err != nil {
		return nil, fmt.Errorf("create tts fallback %q: %w", cfg.Providers.TTSFallback.Name, err)
	}
	fb := resilience.NewTTSFallback(primary, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
	fb.AddFallback(cfg.Providers.TTSFallback.Name, secondary)
	slog.Info("tts failover enabled",
		"primary", cfg.Providers.TTS.Name,
		"fallback", cfg.Providers.TTSFallback.Name,
	)
	return fb, nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Engine, error) {
		var opts []whisper.Option
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.Model, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai and llamacpp share the same pattern: optional APIKey + BaseURL.
	for _, providerName := range []string{"openai", "llamacpp"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Speaker, error) {
		var opts []coqui.Option
		if entry.Model != "" {
			opts = append(opts, coqui.WithVoice(entry.Model))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := entry.StringOption("api_mode", ""); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims := entry.IntOption("dimensions", 0); dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})
}

// ── Subcommands ───────────────────────────────────────────────────────────────

// listDevices prints the available audio input devices (the mic check).
func listDevices() int {
	devices, err := capture.ListInputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bearnard: list devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no audio input devices found")
		return 0
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s [%d] %s (channels=%d, rate=%.0f Hz)\n",
			marker, d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return 0
}

// runIngest chunks the files in knowledge.data_dir into the pgvector store.
func runIngest(ctx context.Context, cfg *config.Config, store *kb.PGStore) int {
	if store == nil {
		fmt.Fprintln(os.Stderr, "bearnard: ingest requires knowledge.postgres_dsn and providers.embeddings")
		return 1
	}
	if cfg.Knowledge.DataDir == "" {
		fmt.Fprintln(os.Stderr, "bearnard: ingest requires knowledge.data_dir")
		return 1
	}

	var opts []kb.IngestOption
	if cfg.Knowledge.ChunkSize > 0 {
		opts = append(opts, kb.WithChunking(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap))
	}
	ingestor := kb.NewIngestor(store, opts...)

	n, err := ingestor.IngestDir(ctx, cfg.Knowledge.DataDir)
	if err != nil {
		slog.Error("ingest failed", "dir", cfg.Knowledge.DataDir, "err", err)
		return 1
	}
	slog.Info("ingest complete", "dir", cfg.Knowledge.DataDir, "chunks", n)
	return 0
}

// emptyStore serves the no-knowledge-base configuration: every search
// returns no documents, which the engine turns into the no-data apology.
type emptyStore struct{}

var _ kb.Store = emptyStore{}

func (emptyStore) Search(context.Context, string, int) ([]string, error) {
	return nil, nil
}
