package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Manager keeps one Gate per browser session id. Idle gates expire after TTL.
type Manager struct {
	provider Provider
	opts     GateOptions
	gates    *expirable.LRU[string, *Gate]

	mu sync.Mutex
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Gate        GateOptions
	MaxSessions int
	TTL         time.Duration
}

// NewManager creates a Manager.
func NewManager(p Provider, opts ManagerOptions) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10000
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	return &Manager{
		provider: p,
		opts:     opts.Gate,
		gates:    expirable.NewLRU[string, *Gate](opts.MaxSessions, nil, opts.TTL),
	}
}

// Get returns the gate of id.
func (m *Manager) Get(id string) (*Gate, bool) {
	if id == "" {
		return nil, false
	}
	return m.gates.Get(id)
}

// Acquire returns the gate of id, creating a fresh one under a new id when id
// is unknown. created reports whether a new gate was made.
func (m *Manager) Acquire(id string) (string, *Gate, bool) {
	if g, ok := m.Get(id); ok {
		return id, g, false
	}
	id = uuid.NewString()
	g := NewGate(m.provider, m.opts)
	m.gates.Add(id, g)
	return id, g, true
}

// Restore creates a gate for a browser that presents a provider token but whose
// gate has expired, and validates the token.
func (m *Manager) Restore(ctx context.Context, token string) (string, *Gate) {
	id, g, _ := m.Acquire("")
	g.SetToken(token)
	g.CheckSession(ctx)
	return id, g
}

// Rotate moves the gate of id under a fresh id, so an id handed out before
// sign-in stops naming the signed-in session. ok is false for an unknown id.
func (m *Manager) Rotate(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.Get(id)
	if !ok {
		return "", false
	}
	m.gates.Remove(id)
	newID := uuid.NewString()
	m.gates.Add(newID, g)
	return newID, true
}

// Detached returns an anonymous gate that is not tracked by the manager.
func (m *Manager) Detached() *Gate {
	return NewGate(m.provider, m.opts)
}

// Remove drops the gate of id.
func (m *Manager) Remove(id string) {
	m.gates.Remove(id)
}

// Len returns the number of live gates.
func (m *Manager) Len() int {
	return m.gates.Len()
}
