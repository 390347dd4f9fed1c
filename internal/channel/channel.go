// Package channel is the cross-module state channel: a persistent key/value
// store and a publish/subscribe bus over a closed set of topics.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Topic names a bus topic.
type Topic string

const (
	// ThemeChanged carries a full theme definition.
	ThemeChanged Topic = "theme:changed"
	// SharedChanged carries a SharedChange for the session's shared data.
	SharedChanged Topic = "shared:changed"
)

var (
	// ErrUnknownTopic is returned for a topic outside the known set.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrEmptyKey is returned by stores for an empty key.
	ErrEmptyKey = errors.New("key is required")
)

// Topics returns every known topic.
func Topics() []Topic {
	return []Topic{ThemeChanged, SharedChanged}
}

// Valid reports whether t is a known topic.
func (t Topic) Valid() bool {
	switch t {
	case ThemeChanged, SharedChanged:
		return true
	default:
		return false
	}
}

// ParseTopic checks a topic name received at a boundary.
func ParseTopic(s string) (Topic, error) {
	t := Topic(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTopic, s)
	}
	return t, nil
}

// Store is the persistent key/value half of the channel.
// Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
