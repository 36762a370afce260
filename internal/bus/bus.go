// Package bus models the boundary between the privileged host process and
// an isolated rendering surface. The two endpoints share no memory: every
// message crosses as a JSON-encoded envelope over an ordered, at-most-once
// channel. Sends never block; when the peer's queue is full the message is
// dropped, matching the no-backpressure contract of the real boundary.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned when sending on a torn-down endpoint.
	ErrClosed = errors.New("bus: endpoint closed")
	// ErrDropped is returned when the peer queue was full.
	ErrDropped = errors.New("bus: message dropped, peer queue full")
	// ErrNoHandler is returned to a request whose name nothing handles.
	ErrNoHandler = errors.New("bus: no handler registered")
)

const defaultQueueDepth = 64

// envelope is the only thing that crosses the boundary.
type envelope struct {
	Name    string          `json:"name"`
	ID      uint64          `json:"id,omitempty"`
	IsReply bool            `json:"isReply,omitempty"`
	Err     string          `json:"err,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handler processes one named message. For fire-and-forget pushes the
// returned payload is discarded.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Endpoint is one side of the boundary.
type Endpoint struct {
	side string

	out chan []byte
	in  chan []byte

	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool

	pendingMu sync.Mutex
	pending   map[uint64]chan envelope
	nextID    atomic.Uint64
}

// NewPair creates two connected endpoints. The names are used only for
// error text and logging.
func NewPair(sideA, sideB string) (*Endpoint, *Endpoint) {
	ab := make(chan []byte, defaultQueueDepth)
	ba := make(chan []byte, defaultQueueDepth)

	a := &Endpoint{
		side:     sideA,
		out:      ab,
		in:       ba,
		handlers: make(map[string]Handler),
		pending:  make(map[uint64]chan envelope),
	}
	b := &Endpoint{
		side:     sideB,
		out:      ba,
		in:       ab,
		handlers: make(map[string]Handler),
		pending:  make(map[uint64]chan envelope),
	}
	return a, b
}

// Handle registers the handler for a message name, replacing any previous
// registration.
func (e *Endpoint) Handle(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

// HandleNotify registers a handler for a fire-and-forget push.
func (e *Endpoint) HandleNotify(name string, fn func(payload json.RawMessage)) {
	e.Handle(name, func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		fn(payload)
		return nil, nil
	})
}

// Send dispatches a fire-and-forget message. The payload is marshalled at
// the boundary; failures to deliver are reported but carry no guarantee
// either way once the message is queued.
func (e *Endpoint) Send(name string, v any) error {
	return e.post(envelope{Name: name}, v)
}

// Request sends a named message and decodes the reply into out (which may
// be nil when no reply body is expected). It fails when the peer reports an
// error, the queue is full, or ctx expires first.
func (e *Endpoint) Request(ctx context.Context, name string, v any, out any) error {
	id := e.nextID.Add(1)

	ch := make(chan envelope, 1)
	e.pendingMu.Lock()
	e.pending[id] = ch
	e.pendingMu.Unlock()
	defer func() {
		e.pendingMu.Lock()
		delete(e.pending, id)
		e.pendingMu.Unlock()
	}()

	if err := e.post(envelope{Name: name, ID: id}, v); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case reply := <-ch:
		if reply.Err != "" {
			return fmt.Errorf("bus: %s rejected %s: %s", e.peerName(), name, reply.Err)
		}
		if out == nil || len(reply.Payload) == 0 {
			return nil
		}
		return json.Unmarshal(reply.Payload, out)
	}
}

// Pump delivers incoming messages to handlers until ctx is cancelled.
// Handlers run on the pump goroutine, preserving message order.
func (e *Endpoint) Pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.close()
			return ctx.Err()
		case raw, ok := <-e.in:
			if !ok {
				return nil
			}
			e.dispatch(ctx, raw)
		}
	}
}

func (e *Endpoint) dispatch(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	if env.IsReply {
		e.pendingMu.Lock()
		ch := e.pending[env.ID]
		e.pendingMu.Unlock()
		if ch != nil {
			ch <- env
		}
		return
	}

	e.mu.RLock()
	h := e.handlers[env.Name]
	e.mu.RUnlock()

	if env.ID == 0 {
		// Push: silently ignored when unhandled, like the real boundary.
		if h != nil {
			_, _ = h(ctx, env.Payload)
		}
		return
	}

	reply := envelope{Name: env.Name, ID: env.ID, IsReply: true}
	if h == nil {
		reply.Err = ErrNoHandler.Error()
	} else if payload, err := h(ctx, env.Payload); err != nil {
		reply.Err = err.Error()
	} else {
		reply.Payload = payload
	}
	_ = e.postRaw(reply)
}

func (e *Endpoint) post(env envelope, v any) error {
	if v != nil {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("bus: marshal %s: %w", env.Name, err)
		}
		env.Payload = payload
	}
	return e.postRaw(env)
}

func (e *Endpoint) postRaw(env envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bus: marshal envelope: %w", err)
	}

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	select {
	case e.out <- raw:
		return nil
	default:
		return ErrDropped
	}
}

func (e *Endpoint) close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

func (e *Endpoint) peerName() string {
	if e.side == "host" {
		return "surface"
	}
	return "host"
}
