// Package coqui provides a tts.Speaker backed by a locally-running Coqui
// TTS server, playing synthesized speech through the host's default audio
// output via PortAudio.
//
// Two server API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts
//     with URL query parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is
//     performed via POST /tts_to_audio/ with a JSON body.
//
// Both servers operate in batch mode (one HTTP call per utterance), so
// Speak synthesizes the full reply, then streams the decoded PCM to the
// output device and returns once playback has drained. Blocking therefore
// reports true.
//
// Typical usage:
//
//	s, err := coqui.New("http://localhost:5002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithTimeout(15*time.Second),
//	)
//	err = s.Speak(ctx, "Room 204 is on the second floor.")
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iacademy-nexus/bearnard/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Speaker = (*Speaker)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	apiTTSEndpoint = "/api/tts"
	xttsEndpoint   = "/tts_to_audio/"
)

// APIMode selects which Coqui server API the speaker will target.
type APIMode string

const (
	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"

	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"
)

// Option is a functional option for configuring a Speaker.
type Option func(*Speaker)

// WithLanguage sets the language code sent to the TTS server (e.g., "en",
// "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Speaker) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithVoice sets the speaker/voice identifier. For the standard server
// this is the speaker_id of a multi-speaker model; for XTTS it is the
// speaker_wav reference and must be non-empty.
func WithVoice(id string) Option {
	return func(s *Speaker) {
		s.voice = id
	}
}

// WithTimeout sets the per-request HTTP timeout for calls to the server.
// Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Speaker) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// WithAPIMode sets the server API mode. Use APIModeStandard (default) for
// the standard Coqui TTS Docker image or APIModeXTTS for the XTTS v2 API
// server.
func WithAPIMode(mode APIMode) Option {
	return func(s *Speaker) {
		s.apiMode = mode
	}
}

// WithPlayer overrides the playback sink. Intended for tests; the default
// plays through PortAudio's default output device.
func WithPlayer(p Player) Option {
	return func(s *Speaker) {
		if p != nil {
			s.player = p
		}
	}
}

// Speaker implements tts.Speaker backed by a Coqui TTS server.
// It is safe for concurrent use.
type Speaker struct {
	serverURL  string
	language   string
	voice      string
	apiMode    APIMode
	httpClient *http.Client
	player     Player
}

// New creates a Speaker that targets the TTS server at serverURL (e.g.,
// "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Speaker, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	s := &Speaker{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
		player:     portAudioPlayer{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.apiMode == APIModeXTTS && s.voice == "" {
		return nil, errors.New("coqui: voice must be set in XTTS mode")
	}
	return s, nil
}

// Blocking implements tts.Speaker. Playback is synchronous.
func (s *Speaker) Blocking() bool { return true }

// Speak implements tts.Speaker. It synthesizes text via the server, then
// plays the result and returns once the output device has drained.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	wav, err := s.synthesize(ctx, text)
	if err != nil {
		return err
	}
	if err := s.player.Play(ctx, wav); err != nil {
		return fmt.Errorf("coqui: playback: %w", err)
	}
	return nil
}

// synthesize issues one HTTP synthesis request and returns the raw WAV
// response body.
func (s *Speaker) synthesize(ctx context.Context, text string) ([]byte, error) {
	var req *http.Request
	var err error

	switch s.apiMode {
	case APIModeXTTS:
		body, merr := json.Marshal(struct {
			Text       string `json:"text"`
			SpeakerWav string `json:"speaker_wav"`
			Language   string `json:"language"`
		}{Text: text, SpeakerWav: s.voice, Language: s.language})
		if merr != nil {
			return nil, fmt.Errorf("coqui: marshal request: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+xttsEndpoint, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		q := url.Values{}
		q.Set("text", text)
		if s.voice != "" {
			q.Set("speaker_id", s.voice)
		}
		if s.language != "" {
			q.Set("language_id", s.language)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, s.serverURL+apiTTSEndpoint+"?"+q.Encode(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("coqui: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read response body: %w", err)
	}
	return wav, nil
}
