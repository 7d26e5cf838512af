package telemetry

import (
	"context"
	"sync"
)

// MemoryStore keeps events in memory. Used by tests and by the CLI, which has
// no reason to persist engine telemetry across runs.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryStore creates an empty in-memory telemetry store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendEvent implements Store.
func (s *MemoryStore) AppendEvent(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

// Events returns a copy of all recorded events in append order.
func (s *MemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsNamed returns recorded events matching name.
func (s *MemoryStore) EventsNamed(name string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, evt := range s.events {
		if evt.Name == name {
			out = append(out, evt)
		}
	}
	return out
}
