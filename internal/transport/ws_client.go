// Package transport manages the persistent streaming connection to the Nexus
// websocket endpoint. One Conn serves one session; it owns the physical
// connection exclusively and exposes only typed events and commands upward.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"nexus-chat-cli/internal/dto"
	"nexus-chat-cli/internal/pkg/apierror"
	"nexus-chat-cli/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait               = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

type EventKind string

const (
	// EventThinking marks that the server accepted a turn and is working.
	EventThinking EventKind = "thinking"
	// EventConnected is the greeting frame after the handshake. Liveness
	// signal only; it never yields a timeline Message.
	EventConnected EventKind = "connected"
	// EventMessage is a completed assistant turn. Any inbound type other
	// than "thinking" and "connected" lands here, including "error" frames,
	// so a failed turn is still visible in the timeline.
	EventMessage EventKind = "message"
)

// Event is the typed union delivered to the session controller.
type Event struct {
	Kind     EventKind
	Type     string // raw inbound type: "response", "analysis", "integrated", "error", ...
	Content  string
	Analysis *dto.AnalysisResult
}

type wsOutbound struct {
	Message string       `json:"message"`
	Mode    dto.ChatMode `json:"mode"`
}

type wsInbound struct {
	Type     string              `json:"type"`
	Content  string              `json:"content"`
	Analysis *dto.AnalysisResult `json:"analysis,omitempty"`
}

// Conn is the streaming transport client for one session.
type Conn struct {
	url string
	log logger.ILogger

	handshakeTimeout time.Duration

	mu       sync.Mutex
	ws       *websocket.Conn
	state    State
	thinking bool
	done     chan struct{} // closed when the current read loop exits
	stop     chan struct{} // closed on teardown to release a parked read loop

	events    chan Event
	stateCh   chan State
	parseErrs atomic.Int64
}

func NewConn(wsBaseURL string, sessionId uuid.UUID, handshakeTimeout time.Duration, log logger.ILogger) *Conn {
	if handshakeTimeout == 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	return &Conn{
		url:              fmt.Sprintf("%s/ws/chat/%s", wsBaseURL, sessionId),
		log:              log,
		handshakeTimeout: handshakeTimeout,
		state:            StateIdle,
		events:           make(chan Event, 32),
		stateCh:          make(chan State, 8),
	}
}

// Connect opens the connection. No-op when already open. There is no
// automatic retry: leaving closed requires another explicit Connect.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateClosed)
		c.mu.Unlock()
		return &apierror.TransportError{Err: fmt.Errorf("dial %s: %w", c.url, err)}
	}

	c.mu.Lock()
	c.ws = ws
	c.done = make(chan struct{})
	c.stop = make(chan struct{})
	c.setStateLocked(StateOpen)
	done, stop := c.done, c.stop
	c.mu.Unlock()

	c.log.Info("Transport", "Connected", map[string]interface{}{"url": c.url})
	go c.readLoop(ws, done, stop)
	return nil
}

// Send submits one user turn. Valid only while open; sends are never queued.
// A successful write marks thinking until an inbound completion clears it.
func (c *Conn) Send(message string, mode dto.ChatMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return &apierror.NotConnectedError{State: string(c.state)}
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(wsOutbound{Message: message, Mode: mode}); err != nil {
		c.closeLocked()
		return &apierror.TransportError{Err: fmt.Errorf("write frame: %w", err)}
	}

	c.thinking = true
	return nil
}

// Disconnect closes the connection and clears thinking.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil || c.state == StateClosed {
		c.setStateLocked(StateClosed)
		return nil
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.closeLocked()
	return nil
}

// Events delivers inbound events in socket order.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// StateChanges signals every transition, including failure-driven closes.
func (c *Conn) StateChanges() <-chan State {
	return c.stateCh
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) Thinking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thinking
}

// ParseErrors counts malformed inbound frames dropped so far.
func (c *Conn) ParseErrors() int64 {
	return c.parseErrs.Load()
}

func (c *Conn) readLoop(ws *websocket.Conn, done, stop chan struct{}) {
	defer close(done)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			// Stale loop after a reconnect must not touch current state.
			if c.ws == ws {
				c.closeLocked()
				c.log.Warn("Transport", "Connection lost", map[string]interface{}{"error": err.Error()})
			}
			c.mu.Unlock()
			return
		}

		var frame wsInbound
		if err := decodeFrame(raw, &frame); err != nil {
			c.parseErrs.Add(1)
			c.log.Warn("Transport", "Dropping malformed frame", map[string]interface{}{"error": err.Error()})
			continue
		}

		var ev Event
		switch frame.Type {
		case "thinking":
			c.mu.Lock()
			c.thinking = true
			c.mu.Unlock()
			ev = Event{Kind: EventThinking, Type: frame.Type}
		case "connected":
			ev = Event{Kind: EventConnected, Type: frame.Type, Content: frame.Content}
		default:
			c.mu.Lock()
			c.thinking = false
			c.mu.Unlock()
			ev = Event{Kind: EventMessage, Type: frame.Type, Content: frame.Content, Analysis: frame.Analysis}
		}

		// The consumer may be gone (torn-down session) with the buffer
		// full; teardown must still release this goroutine.
		select {
		case c.events <- ev:
		case <-stop:
			return
		}
	}
}

func decodeFrame(raw []byte, frame *wsInbound) error {
	if err := json.Unmarshal(raw, frame); err != nil {
		return &apierror.ParseError{Err: err}
	}
	if frame.Type == "" {
		return &apierror.ParseError{Err: fmt.Errorf("frame missing type field")}
	}
	return nil
}

// closeLocked tears the socket down and broadcasts the closed state.
// Caller must hold c.mu.
func (c *Conn) closeLocked() {
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.thinking = false
	c.setStateLocked(StateClosed)
}

func (c *Conn) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	select {
	case c.stateCh <- s:
	default:
		// Slow consumer; the latest state is still readable via State().
	}
}
