// Package session owns the visible conversation: the mode, the ordered
// message timeline, the transport choice and the thinking indicator. All
// state lives on one goroutine; intents and transport events are serialized
// through its run loop, so the timeline never needs a lock.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"nexus-chat-cli/internal/client"
	"nexus-chat-cli/internal/dto"
	"nexus-chat-cli/internal/pkg/logger"
	"nexus-chat-cli/internal/transport"

	"github.com/google/uuid"
)

var (
	ErrClosed = errors.New("session controller closed")
	// ErrBusy rejects a send while the previous turn is still outstanding.
	// Only one turn may be in flight; this is what keeps each user Message
	// immediately followed by its own assistant reply on the request path.
	ErrBusy = errors.New("previous turn still in progress")
)

type TransportKind string

const (
	TransportRequest   TransportKind = "request"
	TransportStreaming TransportKind = "streaming"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one timeline entry. The timeline is append-only: once appended
// a Message is never mutated or removed.
type Message struct {
	Id             uuid.UUID
	Role           string
	Content        string
	Mode           dto.ChatMode
	Analysis       *dto.AnalysisResult
	Contradictions []dto.Contradiction
	BeliefsUpdated []dto.Belief
	CreatedAt      time.Time
}

// Stream is the slice of transport.Conn the controller drives. Kept as an
// interface so controller tests can script inbound events.
type Stream interface {
	Connect(ctx context.Context) error
	Send(message string, mode dto.ChatMode) error
	Disconnect() error
	Events() <-chan transport.Event
	StateChanges() <-chan transport.State
	State() transport.State
}

type Controller struct {
	sessionId uuid.UUID
	rest      client.IClient
	stream    Stream
	log       logger.ILogger

	intents   chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// State below is touched only from the run loop.
	mode      dto.ChatMode
	kind      TransportKind
	timeline  []Message
	thinking  bool
	connState transport.State
	epoch     uint64

	updates chan struct{}
}

func New(sessionId uuid.UUID, mode dto.ChatMode, rest client.IClient, stream Stream, log logger.ILogger) *Controller {
	if !mode.Valid() {
		mode = dto.ModeIntegrated
	}

	c := &Controller{
		sessionId: sessionId,
		rest:      rest,
		stream:    stream,
		log:       log,
		intents:   make(chan func()),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		mode:      mode,
		kind:      TransportRequest,
		connState: transport.StateIdle,
		updates:   make(chan struct{}, 1),
	}

	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.intents:
			fn()
		case ev := <-c.stream.Events():
			c.handleStreamEvent(ev)
		case st := <-c.stream.StateChanges():
			c.handleStateChange(st)
		case <-c.quit:
			return
		}
	}
}

// post runs fn on the controller goroutine and waits for it to finish.
func (c *Controller) post(fn func()) error {
	done := make(chan struct{})
	select {
	case c.intents <- func() { fn(); close(done) }:
	case <-c.quit:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return ErrClosed
	}
}

// deliver hands a completion back to the run loop without waiting.
func (c *Controller) deliver(fn func()) {
	select {
	case c.intents <- fn:
	case <-c.quit:
	}
}

func (c *Controller) SessionId() uuid.UUID {
	return c.sessionId
}

// SetMode changes the mode for subsequently sent messages. In-flight
// operations are unaffected; existing timeline entries keep their mode.
func (c *Controller) SetMode(mode dto.ChatMode) error {
	if !mode.Valid() {
		return errors.New("unknown chat mode: " + string(mode))
	}
	return c.post(func() {
		c.mode = mode
		c.thinking = false // a switch never leaves thinking stuck
		c.notify()
	})
}

// SelectTransport switches the send path. Switching to streaming connects
// the transport first; switching away leaves an open connection open (only
// an explicit Disconnect closes it) but stops sending through it.
func (c *Controller) SelectTransport(ctx context.Context, streaming bool) error {
	if streaming {
		if err := c.stream.Connect(ctx); err != nil {
			return err
		}
	}
	return c.post(func() {
		if streaming {
			c.kind = TransportStreaming
		} else {
			c.kind = TransportRequest
		}
		c.thinking = false
		c.notify()
	})
}

// Disconnect explicitly closes the streaming connection.
func (c *Controller) Disconnect() error {
	return c.stream.Disconnect()
}

// SendUserMessage appends the user Message first (it is never lost, even if
// the dispatch below fails) and then dispatches via the selected transport.
// Failures on an accepted turn become a visible assistant Message carrying
// the error text; no error escapes to the caller for a failed turn. While a
// turn is outstanding (thinking true) further sends are rejected with
// ErrBusy before anything is appended.
func (c *Controller) SendUserMessage(ctx context.Context, content string) error {
	busy := false
	err := c.post(func() {
		if c.thinking {
			busy = true
			return
		}
		mode := c.mode
		epoch := c.epoch

		c.append(Message{
			Id:      uuid.New(),
			Role:    RoleUser,
			Content: content,
			Mode:    mode,
		})

		if c.kind == TransportStreaming && c.stream.State() == transport.StateOpen {
			if err := c.stream.Send(content, mode); err != nil {
				c.thinking = false
				c.appendFailure(err, mode)
				return
			}
			c.thinking = true
			c.notify()
			return
		}

		// Request/response path. The network call suspends off-loop; its
		// completion re-enters through deliver.
		c.thinking = true
		c.notify()
		go c.dispatchChat(ctx, content, mode, epoch)
	})
	if err != nil {
		return err
	}
	if busy {
		return ErrBusy
	}
	return nil
}

func (c *Controller) dispatchChat(ctx context.Context, content string, mode dto.ChatMode, epoch uint64) {
	sessionId := c.sessionId
	res, err := c.rest.Chat(ctx, &dto.ChatRequest{
		Message:   content,
		Mode:      mode,
		SessionId: &sessionId,
	})

	c.deliver(func() {
		if epoch != c.epoch {
			// Response from a torn-down session generation: drop it.
			c.log.Warn("Session", "Dropping stale chat response", map[string]interface{}{"epoch": epoch})
			return
		}
		c.thinking = false

		if err != nil {
			c.appendFailure(err, mode)
			return
		}

		replyMode := res.Mode
		if !replyMode.Valid() {
			replyMode = mode
		}
		c.append(Message{
			Id:             uuid.New(),
			Role:           RoleAssistant,
			Content:        res.Message,
			Mode:           replyMode,
			Analysis:       res.Analysis,
			Contradictions: res.Contradictions,
			BeliefsUpdated: res.BeliefsUpdated,
		})
	})
}

func (c *Controller) handleStreamEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventThinking:
		c.thinking = true
		c.notify()
	case transport.EventConnected:
		c.log.Info("Session", "Streaming session established", map[string]interface{}{"content": ev.Content})
	case transport.EventMessage:
		c.thinking = false
		c.append(Message{
			Id:       uuid.New(),
			Role:     RoleAssistant,
			Content:  ev.Content,
			Mode:     modeForFrameType(ev.Type, c.mode),
			Analysis: ev.Analysis,
		})
	}
}

func (c *Controller) handleStateChange(st transport.State) {
	c.connState = st
	if st == transport.StateClosed {
		// Any transport-level failure degrades to closed and unsticks the
		// indicator; subsequent sends fall back to the request path.
		c.thinking = false
	}
	c.notify()
}

// modeForFrameType recovers the producing mode from the inbound frame type
// where the protocol makes it unambiguous; otherwise the current mode is the
// best available attribution.
func modeForFrameType(frameType string, current dto.ChatMode) dto.ChatMode {
	switch frameType {
	case "response":
		return dto.ModeConversation
	case "analysis":
		return dto.ModeAnalysis
	case "integrated":
		return dto.ModeIntegrated
	}
	return current
}

func (c *Controller) append(m Message) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	c.timeline = append(c.timeline, m)
	c.notify()
}

func (c *Controller) appendFailure(err error, mode dto.ChatMode) {
	c.append(Message{
		Id:      uuid.New(),
		Role:    RoleAssistant,
		Content: err.Error(),
		Mode:    mode,
	})
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Updates signals after every state change; the presentation layer re-reads
// snapshots when it fires.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Timeline returns a copy of the current timeline.
func (c *Controller) Timeline() []Message {
	var out []Message
	_ = c.post(func() {
		out = append([]Message(nil), c.timeline...)
	})
	return out
}

func (c *Controller) Thinking() bool {
	var out bool
	_ = c.post(func() { out = c.thinking })
	return out
}

func (c *Controller) Mode() dto.ChatMode {
	var out dto.ChatMode
	_ = c.post(func() { out = c.mode })
	return out
}

func (c *Controller) Transport() TransportKind {
	var out TransportKind
	_ = c.post(func() { out = c.kind })
	return out
}

func (c *Controller) ConnectionState() transport.State {
	var out transport.State
	_ = c.post(func() { out = c.connState })
	return out
}

// Close tears the session down: the streaming connection is closed before
// the controller is discarded, and the epoch is bumped so any request
// completion still in flight is dropped instead of appended.
func (c *Controller) Close() error {
	var discErr error
	c.closeOnce.Do(func() {
		_ = c.post(func() {
			c.epoch++
			c.thinking = false
		})
		discErr = c.stream.Disconnect()
		close(c.quit)
		<-c.stopped
	})
	return discErr
}
