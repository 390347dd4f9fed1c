package channel

import (
	"context"
	"sync"
)

// SharedChange is the payload published on SharedChanged.
type SharedChange struct {
	Op    string `json:"op"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Shared data operations.
const (
	OpSet    = "set"
	OpDelete = "delete"
	OpClear  = "clear"
)

// SharedData is an open-ended key/value map scoped to one host session.
// It is never persisted. Changes are published on SharedChanged when a bus is attached.
type SharedData struct {
	mu   sync.RWMutex
	data map[string]any
	bus  Bus
}

// NewSharedData creates an empty store. bus may be nil.
func NewSharedData(bus Bus) *SharedData {
	return &SharedData{data: make(map[string]any), bus: bus}
}

// Bus returns the bus changes are published on, or nil.
func (s *SharedData) Bus() Bus {
	return s.bus
}

func (s *SharedData) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *SharedData) Set(key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	s.publish(SharedChange{Op: OpSet, Key: key, Value: value})
	return nil
}

func (s *SharedData) Delete(key string) {
	s.mu.Lock()
	_, existed := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()
	if existed {
		s.publish(SharedChange{Op: OpDelete, Key: key})
	}
}

// Clear removes every key.
func (s *SharedData) Clear() {
	s.mu.Lock()
	s.data = make(map[string]any)
	s.mu.Unlock()
	s.publish(SharedChange{Op: OpClear})
}

// Snapshot returns a copy of the current contents.
func (s *SharedData) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

func (s *SharedData) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *SharedData) publish(change SharedChange) {
	if s.bus == nil {
		return
	}
	// Best effort; subscribers re-read Snapshot on reconnect.
	_ = s.bus.Publish(context.Background(), SharedChanged, change)
}
