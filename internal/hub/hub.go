// Package hub tracks client WebSocket connections, groups them per game and
// correlates requests sent to a client with the answers it sends back.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultWriteTimeout bounds every write to a client.
const DefaultWriteTimeout = 3 * time.Second

// ErrUnknownConnection is returned when sending to a connection that is not registered.
var ErrUnknownConnection = errors.New("unknown connection")

// Envelope is the frame exchanged with clients in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Writer is the part of a connection the hub writes to. *websocket.Conn
// satisfies it and is safe for concurrent writes.
type Writer interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
}

type pendingRequest struct {
	connID string
	answer chan json.RawMessage
}

// Hub implements game.Channel over WebSocket connections.
type Hub struct {
	logger       logrus.FieldLogger
	writeTimeout time.Duration

	mu      sync.Mutex
	conns   map[string]Writer
	groups  map[string]map[string]struct{}
	pending map[string]*pendingRequest
}

func New(logger logrus.FieldLogger) *Hub {
	return &Hub{
		logger:       logger,
		writeTimeout: DefaultWriteTimeout,
		conns:        make(map[string]Writer),
		groups:       make(map[string]map[string]struct{}),
		pending:      make(map[string]*pendingRequest),
	}
}

// Register adds a connection and returns its id.
func (h *Hub) Register(w Writer) string {
	id := uuid.NewString()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = w
	return id
}

// Unregister drops a connection from the hub and from every group. Requests
// still waiting on it run until their context ends.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for name, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, name)
		}
	}
}

func (h *Hub) AddToGroup(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[connID] = struct{}{}
}

func encode(event, requestID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Type: event, RequestID: requestID, Payload: raw})
}

func (h *Hub) write(ctx context.Context, w Writer, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return w.Write(ctx, websocket.MessageText, data)
}

// NotifyGroup sends event to every connection in group.
func (h *Hub) NotifyGroup(ctx context.Context, group, event string, payload any) error {
	data, err := encode(event, "", payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	targets := make([]Writer, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		if w, ok := h.conns[id]; ok {
			targets = append(targets, w)
		}
	}
	h.mu.Unlock()

	var errs []error
	for _, w := range targets {
		if err := h.write(ctx, w, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyOne sends event to a single connection.
func (h *Hub) NotifyOne(ctx context.Context, connID, event string, payload any) error {
	data, err := encode(event, "", payload)
	if err != nil {
		return err
	}
	return h.send(ctx, connID, data)
}

func (h *Hub) send(ctx context.Context, connID string, data []byte) error {
	h.mu.Lock()
	w, ok := h.conns[connID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}
	return h.write(ctx, w, data)
}

// RequestOne sends event with a fresh request id and waits for the matching
// answer. A connection that is gone or fails the write is not an error: the
// request simply waits out ctx, so the caller's timeout decides.
func (h *Hub) RequestOne(ctx context.Context, connID, event string, payload any) (json.RawMessage, error) {
	requestID := uuid.NewString()
	data, err := encode(event, requestID, payload)
	if err != nil {
		return nil, err
	}

	p := &pendingRequest{connID: connID, answer: make(chan json.RawMessage, 1)}
	h.mu.Lock()
	h.pending[requestID] = p
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, requestID)
		h.mu.Unlock()
	}()

	if err := h.send(ctx, connID, data); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{"conn": connID, "event": event}).Warn("request not delivered")
	}

	select {
	case answer := <-p.answer:
		return answer, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Resolve hands a client's answer to the request waiting for it. Answers for
// unknown or finished requests, or from another connection, are dropped.
func (h *Hub) Resolve(connID, requestID string, payload json.RawMessage) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[requestID]
	if !ok || p.connID != connID {
		return false
	}
	delete(h.pending, requestID)
	p.answer <- payload
	return true
}

// Len is the number of registered connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
