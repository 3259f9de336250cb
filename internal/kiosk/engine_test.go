package kiosk_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	kbmock "github.com/iacademy-nexus/bearnard/internal/kb/mock"
	"github.com/iacademy-nexus/bearnard/internal/kiosk"
	"github.com/iacademy-nexus/bearnard/internal/voice"
	"github.com/iacademy-nexus/bearnard/pkg/audio"
	capturemock "github.com/iacademy-nexus/bearnard/pkg/audio/capture/mock"
	llmmock "github.com/iacademy-nexus/bearnard/pkg/provider/llm/mock"
	sttmock "github.com/iacademy-nexus/bearnard/pkg/provider/stt/mock"
	ttsmock "github.com/iacademy-nexus/bearnard/pkg/provider/tts/mock"
)

const (
	testRate     = 16000
	testFrameLen = 800 // 50 ms at 16 kHz
)

func speechFrames(n int, amp float32) []audio.Frame {
	out := make([]audio.Frame, n)
	for i := range out {
		samples := make([]float32, testFrameLen)
		for j := range samples {
			samples[j] = amp
		}
		out[i] = audio.Frame{Samples: samples, SampleRate: testRate, Timestamp: time.Now()}
	}
	return out
}

// fixture bundles a fully mocked engine for scenario tests.
type fixture struct {
	source  *capturemock.Source
	stt     *sttmock.Engine
	store   *kbmock.Store
	llm     *llmmock.Provider
	speaker *ttsmock.Speaker
	session *kiosk.Session
	engine  *kiosk.Engine
}

// newFixture wires an engine over scripted audio and transcripts. The
// session uses a short minimum wake window and silence limit so small
// scripts drive full turns.
func newFixture(t *testing.T, script []audio.Frame, transcripts []sttmock.Result, opts ...kiosk.EngineOption) *fixture {
	t.Helper()

	f := &fixture{
		source:  capturemock.New(script...),
		stt:     sttmock.New(transcripts...),
		store:   kbmock.New(),
		llm:     llmmock.New("ok"),
		speaker: ttsmock.New(),
	}
	if err := f.source.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.session = kiosk.NewSession(f.source, f.stt,
		kiosk.WithDetectorOptions(voice.WithMinWindow(100*time.Millisecond)),
		kiosk.WithRecorderOptions(voice.WithSilenceLimit(200*time.Millisecond)),
	)
	opts = append([]kiosk.EngineOption{kiosk.WithWakePollTimeout(100 * time.Millisecond)}, opts...)
	f.engine = kiosk.NewEngine(f.session, f.store, f.llm, f.speaker, opts...)
	return f
}

// run starts the engine loop and returns a stop function that cancels it
// and waits for shutdown.
func (f *fixture) run(t *testing.T) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := f.engine.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("engine did not stop")
		}
	}
}

// awaitTurn collects events until one turn has completed: the second
// transition to idle, the first being the startup transition.
func awaitTurn(t *testing.T, events <-chan kiosk.Event) []kiosk.Event {
	t.Helper()
	var (
		collected []kiosk.Event
		idleSeen  int
	)
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed before turn completed")
			}
			collected = append(collected, ev)
			if sc, is := ev.(kiosk.StateChanged); is && sc.To == kiosk.StateIdle {
				idleSeen++
				if idleSeen == 2 {
					return collected
				}
			}
		case <-deadline:
			t.Fatalf("turn did not complete; events so far: %v", collected)
		}
	}
}

func stateOrder(events []kiosk.Event) []kiosk.State {
	var out []kiosk.State
	for _, ev := range events {
		if sc, is := ev.(kiosk.StateChanged); is {
			out = append(out, sc.To)
		}
	}
	return out
}

func responses(events []kiosk.Event) []string {
	var out []string
	for _, ev := range events {
		if r, is := ev.(kiosk.Response); is {
			out = append(out, r.Text)
		}
	}
	return out
}

func equalStates(got, want []kiosk.State) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestEngineTextTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	f.store.Results = []string{"The library opens at 8 AM."}
	f.llm.Response.Content = "The library opens at 8 AM."
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SubmitText{Text: "when does the library open"})
	events := awaitTurn(t, f.engine.Events())

	want := []kiosk.State{kiosk.StateIdle, kiosk.StateThinking, kiosk.StateSpeaking, kiosk.StateIdle}
	if got := stateOrder(events); !equalStates(got, want) {
		t.Errorf("state order = %v, want %v", got, want)
	}
	if got := responses(events); len(got) != 1 || got[0] != "The library opens at 8 AM." {
		t.Errorf("responses = %v, want exactly the model's answer", got)
	}
	if spoken := f.speaker.SpokenTexts(); len(spoken) != 1 || spoken[0] != "The library opens at 8 AM." {
		t.Errorf("spoken = %v, want the answer", spoken)
	}
	if q := f.store.Queries[0]; q.Text != "when does the library open" || q.MaxResults != kiosk.DefaultMaxResults {
		t.Errorf("retrieval query = %+v", q)
	}
}

func TestEngineInjectsNoDataSentinel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	f.llm.Response.Content = kiosk.Apology
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SubmitText{Text: "where is the swimming pool"})
	awaitTurn(t, f.engine.Events())

	req := f.llm.LastRequest()
	if len(req.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(req.Messages))
	}
	if !strings.Contains(req.Messages[0].Content, kiosk.NoDataSentinel) {
		t.Error("prompt missing the no-data sentinel for empty retrieval")
	}
	if req.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want 256", req.MaxTokens)
	}
}

func TestEngineListBudget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SubmitText{Text: "list all computer labs"})
	awaitTurn(t, f.engine.Events())

	if got := f.llm.LastRequest().MaxTokens; got != 1024 {
		t.Errorf("MaxTokens = %d, want 1024 for list query", got)
	}
}

func TestEngineLLMFailureTextPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	f.llm.Err = errors.New("model offline")
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SubmitText{Text: "where is the gym"})
	events := awaitTurn(t, f.engine.Events())

	if got := responses(events); len(got) != 1 || got[0] != kiosk.Apology {
		t.Errorf("responses = %v, want the canned apology", got)
	}
	if spoken := f.speaker.SpokenTexts(); len(spoken) != 0 {
		t.Errorf("spoken = %v, want nothing on a failed turn", spoken)
	}
	want := []kiosk.State{kiosk.StateIdle, kiosk.StateThinking, kiosk.StateIdle}
	if got := stateOrder(events); !equalStates(got, want) {
		t.Errorf("state order = %v, want %v", got, want)
	}
}

func TestEngineRetrievalFailureTextPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	f.store.Err = errors.New("database unreachable")
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SubmitText{Text: "where is the gym"})
	events := awaitTurn(t, f.engine.Events())

	if got := responses(events); len(got) != 1 || got[0] != kiosk.Apology {
		t.Errorf("responses = %v, want the canned apology", got)
	}
	if f.llm.RequestCount() != 0 {
		t.Error("LLM called despite retrieval failure")
	}
}

func TestEngineVoiceTurn(t *testing.T) {
	t.Parallel()

	// Wake scan hears the phrase on the 3rd speech frame; the recorder
	// then captures two speech frames and exactly the four silent frames
	// that trip the 200 ms silence limit.
	script := speechFrames(3, 0.5)
	script = append(script, speechFrames(2, 0.5)...)
	script = append(script, speechFrames(4, 0)...)

	f := newFixture(t, script, []sttmock.Result{
		{Text: "hey bearnard"},
		{Text: "What time is it?"},
	})
	f.store.Results = []string{"Opening hours: 8 AM to 6 PM."}
	f.llm.Response.Content = "It is ten past three."
	stop := f.run(t)
	defer stop()

	events := awaitTurn(t, f.engine.Events())

	want := []kiosk.State{
		kiosk.StateIdle, kiosk.StateWakeDetected, kiosk.StateListening,
		kiosk.StateThinking, kiosk.StateSpeaking, kiosk.StateIdle,
	}
	if got := stateOrder(events); !equalStates(got, want) {
		t.Errorf("state order = %v, want %v", got, want)
	}

	var transcript string
	for _, ev := range events {
		if tr, is := ev.(kiosk.Transcript); is {
			transcript = tr.Text
		}
	}
	if transcript != "What time is it?" {
		t.Errorf("transcript = %q, want the accepted utterance", transcript)
	}
	if spoken := f.speaker.SpokenTexts(); len(spoken) != 1 || spoken[0] != "It is ten past three." {
		t.Errorf("spoken = %v, want the answer", spoken)
	}
	if d := f.session.Detector.WindowDuration(); d != 0 {
		t.Errorf("wake window = %v after speaking, want cleared", d)
	}
}

func TestEngineTriggerWakeSkipsDetection(t *testing.T) {
	t.Parallel()

	script := append(speechFrames(2, 0.5), speechFrames(4, 0)...)
	f := newFixture(t, script, []sttmock.Result{{Text: "Where is the registrar?"}})
	f.llm.Response.Content = "On the second floor."

	// Queue the manual trigger before the loop starts so it beats wake
	// polling for the scripted frames.
	f.engine.Dispatch(kiosk.TriggerWake{})
	stop := f.run(t)
	defer stop()

	events := awaitTurn(t, f.engine.Events())

	if got := responses(events); len(got) != 1 || got[0] != "On the second floor." {
		t.Fatalf("responses = %v, want one answer", got)
	}
	// The single scripted transcription served the utterance, not a wake
	// scan.
	if got := f.stt.Calls[0].Opts.BeamSize; got != 5 {
		t.Errorf("first transcription BeamSize = %d, want accurate profile 5", got)
	}
}

func TestEngineRejectedUtterance(t *testing.T) {
	t.Parallel()

	script := append(speechFrames(2, 0.5), speechFrames(4, 0)...)
	f := newFixture(t, script, []sttmock.Result{{Text: "Thank you."}})

	f.engine.Dispatch(kiosk.TriggerWake{})
	stop := f.run(t)
	defer stop()

	events := awaitTurn(t, f.engine.Events())

	if got := responses(events); len(got) != 0 {
		t.Errorf("responses = %v, want none for a rejected utterance", got)
	}
	if f.llm.RequestCount() != 0 {
		t.Error("LLM called despite rejected utterance")
	}
	want := []kiosk.State{
		kiosk.StateIdle, kiosk.StateWakeDetected, kiosk.StateListening, kiosk.StateIdle,
	}
	if got := stateOrder(events); !equalStates(got, want) {
		t.Errorf("state order = %v, want %v", got, want)
	}
}

func TestEngineRejectedUtteranceClearsWakeWindow(t *testing.T) {
	t.Parallel()

	// Same shape as the full voice turn: the wake scan hears the phrase,
	// then the recorder captures an utterance that the transcriber rejects.
	script := speechFrames(3, 0.5)
	script = append(script, speechFrames(2, 0.5)...)
	script = append(script, speechFrames(4, 0)...)

	f := newFixture(t, script, []sttmock.Result{
		{Text: "hey bearnard"},
		{Text: "Thank you."},
	})
	stop := f.run(t)
	defer stop()

	events := awaitTurn(t, f.engine.Events())

	if f.llm.RequestCount() != 0 {
		t.Error("LLM called despite rejected utterance")
	}
	want := []kiosk.State{
		kiosk.StateIdle, kiosk.StateWakeDetected, kiosk.StateListening, kiosk.StateIdle,
	}
	if got := stateOrder(events); !equalStates(got, want) {
		t.Errorf("state order = %v, want %v", got, want)
	}
	// A stale window would still hold the wake-phrase audio and re-trigger
	// on the next above-threshold frame.
	if d := f.session.Detector.WindowDuration(); d != 0 {
		t.Errorf("wake window = %v after a rejected utterance, want cleared", d)
	}
}

func TestEngineCalibrationPrefix(t *testing.T) {
	t.Parallel()

	f := newFixture(t, speechFrames(4, 0.1), nil,
		kiosk.WithMode(kiosk.ModeText),
		kiosk.WithCalibration(200*time.Millisecond))
	stop := f.run(t)
	defer stop()

	var states []kiosk.State
	deadline := time.After(5 * time.Second)
	for len(states) < 2 {
		select {
		case ev := <-f.engine.Events():
			if sc, is := ev.(kiosk.StateChanged); is {
				states = append(states, sc.To)
			}
		case <-deadline:
			t.Fatalf("startup did not finish; states = %v", states)
		}
	}

	want := []kiosk.State{kiosk.StateCalibrating, kiosk.StateIdle}
	if !equalStates(states, want) {
		t.Errorf("startup states = %v, want %v", states, want)
	}
	if got := f.session.Gate.Threshold(); got <= voice.DefaultThreshold {
		t.Errorf("Threshold() = %v, want raised above the default by calibration", got)
	}
}

func TestEngineSetMode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithWakePollTimeout(50*time.Millisecond))
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SetMode{Mode: kiosk.ModeText})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-f.engine.Events():
			if ll, is := ev.(kiosk.LogLine); is && ll.Category == "mode" {
				if !strings.Contains(ll.Text, "text") {
					t.Errorf("mode log = %q, want mention of text mode", ll.Text)
				}
				return
			}
		case <-deadline:
			t.Fatal("mode change never reported")
		}
	}
}

func TestEngineSetModeVoiceStartsCapture(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SetMode{Mode: kiosk.ModeVoice})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-f.engine.Events():
			if ll, is := ev.(kiosk.LogLine); is && ll.Category == "mode" {
				if !strings.Contains(ll.Text, "voice") {
					t.Errorf("mode log = %q, want mention of voice mode", ll.Text)
				}
				if f.source.StartCalls < 2 {
					t.Errorf("StartCalls = %d, want the switch to start capture", f.source.StartCalls)
				}
				return
			}
		case <-deadline:
			t.Fatal("mode change never reported")
		}
	}
}

func TestEngineSetModeVoiceRefusedWithoutCapture(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	f.source.StartErr = errors.New("no input device")
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SetMode{Mode: kiosk.ModeVoice})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-f.engine.Events():
			ll, is := ev.(kiosk.LogLine)
			if !is || ll.Category != "mode" {
				continue
			}
			if !strings.Contains(ll.Text, "voice mode unavailable") {
				t.Fatalf("mode log = %q, want the refusal; the switch must not be reported", ll.Text)
			}
			// The engine must still be serving text turns.
			f.llm.Response.Content = "Still here."
			f.engine.Dispatch(kiosk.SubmitText{Text: "are you there"})
			for {
				select {
				case ev := <-f.engine.Events():
					if r, is := ev.(kiosk.Response); is {
						if r.Text != "Still here." {
							t.Errorf("response = %q, want the answer over the text path", r.Text)
						}
						return
					}
				case <-deadline:
					t.Fatal("text turn never answered after the refused switch")
				}
			}
		case <-deadline:
			t.Fatal("refusal never reported")
		}
	}
}

func TestEngineUpdatePersona(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	stop := f.run(t)
	defer stop()

	// Commands are handled in dispatch order, so the new persona applies
	// before the queued turn runs.
	f.engine.Dispatch(kiosk.UpdatePersona{Persona: "You are Nardbear, a grumpy badger."})
	f.engine.Dispatch(kiosk.SubmitText{Text: "who are you"})
	awaitTurn(t, f.engine.Events())

	prompt := f.llm.LastRequest().Messages[0].Content
	if !strings.Contains(prompt, "Nardbear") {
		t.Errorf("prompt does not carry the updated persona:\n%s", prompt)
	}
}

func TestEngineUpdateWake(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.UpdateWake{Variants: []string{"hallo barney"}, Similarity: 0.95})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-f.engine.Events():
			if ll, is := ev.(kiosk.LogLine); is && ll.Category == "config" {
				got := f.session.Matcher.Variants()
				if len(got) != 1 || got[0] != "hallo barney" {
					t.Errorf("Variants() = %v, want the replacement variant", got)
				}
				if !f.session.Matcher.Match("well hallo barney there") {
					t.Error("updated matcher does not match the new variant")
				}
				if f.session.Matcher.Match("hey bearnard") {
					t.Error("updated matcher still matches a removed variant")
				}
				return
			}
		case <-deadline:
			t.Fatal("wake matcher update never reported")
		}
	}
}

func TestEngineNonBlockingSpeakerStillCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil,
		kiosk.WithMode(kiosk.ModeText),
		kiosk.WithSpeechEstimate(time.Millisecond, 10*time.Millisecond))
	f.speaker.NonBlocking = true
	f.llm.Response.Content = "Hello there."
	stop := f.run(t)
	defer stop()

	f.engine.Dispatch(kiosk.SubmitText{Text: "say hello"})
	events := awaitTurn(t, f.engine.Events())

	want := []kiosk.State{kiosk.StateIdle, kiosk.StateThinking, kiosk.StateSpeaking, kiosk.StateIdle}
	if got := stateOrder(events); !equalStates(got, want) {
		t.Errorf("state order = %v, want %v", got, want)
	}
	if spoken := f.speaker.SpokenTexts(); len(spoken) != 1 {
		t.Errorf("spoken = %v, want one utterance", spoken)
	}
}

func TestEngineObservers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, kiosk.WithMode(kiosk.ModeText))
	stop := f.run(t)
	defer stop()

	f.engine.ObserveVolume(0.42)
	f.engine.ObserveScan("hey bear")

	var gotVolume, gotScan bool
	deadline := time.After(5 * time.Second)
	for !gotVolume || !gotScan {
		select {
		case ev := <-f.engine.Events():
			switch e := ev.(type) {
			case kiosk.VolumeLevel:
				if e.RMS == 0.42 {
					gotVolume = true
				}
			case kiosk.LogLine:
				if e.Category == "wake-scan" && e.Text == "hey bear" {
					gotScan = true
				}
			}
		case <-deadline:
			t.Fatal("observer events never arrived")
		}
	}
}
