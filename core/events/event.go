package events

import (
	"sync"

	"github.com/google/uuid"

	"agora/core/types"
)

// Event represents a structured state change emitted by the marketplace.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is implemented by events that can render the canonical wire
// representation consumed by the RPC event log.
type Payload interface {
	Event() *types.Event
}

// Sink retains every emitted event in order, assigning each a correlation ID.
// The RPC server serves the retained log; tests use it to assert emission.
type Sink struct {
	mu     sync.RWMutex
	events []*types.Event
	limit  int
}

// NewSink builds a sink retaining at most limit events (0 means unbounded).
func NewSink(limit int) *Sink {
	return &Sink{limit: limit}
}

// Emit implements Emitter.
func (s *Sink) Emit(evt Event) {
	if s == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok {
		return
	}
	rendered := payload.Event()
	if rendered == nil {
		return
	}
	rendered.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rendered)
	if s.limit > 0 && len(s.events) > s.limit {
		s.events = s.events[len(s.events)-s.limit:]
	}
}

// Events returns a snapshot of the retained log, newest last. An optional type
// prefix filters the result.
func (s *Sink) Events(prefix string) []*types.Event {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Event, 0, len(s.events))
	for _, evt := range s.events {
		if prefix != "" && !hasPrefix(evt.Type, prefix) {
			continue
		}
		out = append(out, evt)
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
