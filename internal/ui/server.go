// Package ui bridges the conversation engine to kiosk front ends over a
// local websocket.
//
// The bridge is strictly message-passing: engine events are broadcast to
// every connected client as JSON, and clients send commands back on the
// same connection. The GUI shell never touches engine state directly, and
// a slow client only loses its own messages.
package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/iacademy-nexus/bearnard/internal/kiosk"
)

// defaultSendBuffer is the per-client outbound queue depth. Volume levels
// arrive every frame, so the buffer absorbs short write stalls before
// messages are dropped.
const defaultSendBuffer = 128

// Dispatcher accepts presentation commands. *kiosk.Engine satisfies it.
type Dispatcher interface {
	Dispatch(cmd kiosk.Command) bool
}

// wireEvent is the JSON form of an engine event.
type wireEvent struct {
	Type     string  `json:"type"`
	State    string  `json:"state,omitempty"`
	From     string  `json:"from,omitempty"`
	RMS      float64 `json:"rms,omitempty"`
	Text     string  `json:"text,omitempty"`
	Category string  `json:"category,omitempty"`
}

// wireCommand is the JSON form of a client command.
type wireCommand struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Mode string `json:"mode,omitempty"`
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// Server is the websocket bridge. It implements http.Handler for the
// websocket endpoint; mount it wherever the kiosk shell connects.
type Server struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	sendBuffer int
	origins    []string

	mu      sync.Mutex
	clients map[*client]struct{}
}

// Option is a functional option for Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSendBuffer sets the per-client outbound queue depth.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithOriginPatterns allows the given origins to connect. By default only
// same-origin requests are accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.origins = patterns
	}
}

// NewServer constructs a Server forwarding commands to d.
func NewServer(d Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		logger:     slog.Default(),
		sendBuffer: defaultSendBuffer,
		clients:    make(map[*client]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run forwards engine events to all connected clients until the channel
// closes or ctx is cancelled.
func (s *Server) Run(ctx context.Context, events <-chan kiosk.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Broadcast(ev)
		}
	}
}

// Broadcast delivers one event to every connected client. Clients whose
// outbound queue is full miss the event rather than stalling the caller.
func (s *Server) Broadcast(ev kiosk.Event) {
	data, ok := encodeEvent(ev)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.out <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request to a websocket session and serves it
// until the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	c := &client{conn: conn, out: make(chan []byte, s.sendBuffer)}
	s.addClient(c)
	defer s.removeClient(c)
	defer conn.Close(websocket.StatusNormalClosure, "session closed")

	ctx := r.Context()
	go s.writeLoop(ctx, c)
	s.readLoop(ctx, c)
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

func (s *Server) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.out:
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		cmd, err := decodeCommand(data)
		if err != nil {
			s.logger.Warn("bad client command", "error", err)
			continue
		}
		if !s.dispatcher.Dispatch(cmd) {
			s.logger.Warn("command dropped, engine queue full")
		}
	}
}

// encodeEvent converts an engine event to its wire form. Unknown event
// types are skipped.
func encodeEvent(ev kiosk.Event) ([]byte, bool) {
	var we wireEvent
	switch e := ev.(type) {
	case kiosk.StateChanged:
		we = wireEvent{Type: "state", State: e.To.String(), From: e.From.String()}
	case kiosk.VolumeLevel:
		we = wireEvent{Type: "volume", RMS: e.RMS}
	case kiosk.Transcript:
		we = wireEvent{Type: "transcript", Text: e.Text}
	case kiosk.Response:
		we = wireEvent{Type: "response", Text: e.Text}
	case kiosk.LogLine:
		we = wireEvent{Type: "log", Text: e.Text, Category: e.Category}
	default:
		return nil, false
	}
	data, err := json.Marshal(we)
	if err != nil {
		return nil, false
	}
	return data, true
}

// decodeCommand parses a client command from its wire form.
func decodeCommand(data []byte) (kiosk.Command, error) {
	var wc wireCommand
	if err := json.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("ui: decode command: %w", err)
	}

	switch wc.Type {
	case "submit_text":
		if strings.TrimSpace(wc.Text) == "" {
			return nil, fmt.Errorf("ui: submit_text without text")
		}
		return kiosk.SubmitText{Text: wc.Text}, nil
	case "trigger_wake":
		return kiosk.TriggerWake{}, nil
	case "set_mode":
		switch wc.Mode {
		case "voice":
			return kiosk.SetMode{Mode: kiosk.ModeVoice}, nil
		case "text":
			return kiosk.SetMode{Mode: kiosk.ModeText}, nil
		default:
			return nil, fmt.Errorf("ui: unknown mode %q", wc.Mode)
		}
	default:
		return nil, fmt.Errorf("ui: unknown command type %q", wc.Type)
	}
}
