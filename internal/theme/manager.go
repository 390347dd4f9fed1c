package theme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/report-zone/mfe-demo-sub000/internal/channel"
)

// Manager owns the theme selection of the host.
//
// Select writes the selected id and publishes the full definition on
// theme:changed. The manager itself is a subscriber: Current reflects the last
// payload applied, never a store re-read.
type Manager struct {
	store channel.Store
	bus   channel.Bus
	log   zerolog.Logger

	mu          sync.RWMutex
	current     Definition
	custom      []Definition
	unsubscribe func()
}

// NewManager creates a Manager holding the default theme until Start runs.
func NewManager(store channel.Store, bus channel.Bus, logger *zerolog.Logger) *Manager {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	def, _ := Builtin(DefaultID)
	return &Manager{store: store, bus: bus, log: l, current: def}
}

// Start loads the persisted selection and subscribes to theme:changed.
// Corrupt or dangling persisted state is logged and treated as absent.
func (m *Manager) Start(ctx context.Context) error {
	custom := m.loadCustom(ctx)

	m.mu.Lock()
	m.custom = custom
	m.mu.Unlock()

	selected := m.loadSelected(ctx)
	m.Apply(selected)

	unsubscribe, err := m.bus.Subscribe(channel.ThemeChanged, m.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", channel.ThemeChanged, err)
	}
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
	return nil
}

// Stop unsubscribes from the bus.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Manager) handle(ev channel.Event) {
	def, err := Parse(ev.Payload)
	if err != nil {
		m.log.Warn().Err(err).Msg("ignoring malformed theme payload")
		return
	}
	m.Apply(def)
}

// Apply makes def the current theme. It reports whether anything changed, so
// applying the same payload twice is a no-op the second time.
func (m *Manager) Apply(def Definition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reflect.DeepEqual(m.current, def) {
		return false
	}
	m.current = def.Clone()
	return true
}

// Current returns the applied theme.
func (m *Manager) Current() Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Definitions returns the built-in themes followed by the custom ones.
func (m *Manager) Definitions() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Builtins()
	for _, d := range m.custom {
		out = append(out, d.Clone())
	}
	return out
}

// Custom returns the custom definitions.
func (m *Manager) Custom() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Definition, 0, len(m.custom))
	for _, d := range m.custom {
		out = append(out, d.Clone())
	}
	return out
}

// Lookup finds a built-in or custom definition.
func (m *Manager) Lookup(id string) (Definition, bool) {
	if d, ok := Builtin(id); ok {
		return d, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.custom {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return Definition{}, false
}

// Select persists id as the selection and publishes its definition.
func (m *Manager) Select(ctx context.Context, id string) (Definition, error) {
	def, ok := m.Lookup(id)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownTheme, id)
	}
	if err := m.store.Set(ctx, KeySelectedID, id); err != nil {
		return Definition{}, fmt.Errorf("persist theme selection: %w", err)
	}
	if err := m.bus.Publish(ctx, channel.ThemeChanged, def); err != nil {
		return Definition{}, fmt.Errorf("publish theme: %w", err)
	}
	return def, nil
}

// SaveCustom validates def and inserts or replaces the custom definition with
// the same id. Saving the selected theme republishes it.
func (m *Manager) SaveCustom(ctx context.Context, def Definition) (Definition, error) {
	if IsBuiltin(def.ID) {
		return Definition{}, fmt.Errorf("%w: %q", ErrReservedID, def.ID)
	}
	def, err := Validate(def)
	if err != nil {
		return Definition{}, err
	}

	m.mu.Lock()
	custom := slices.Clone(m.custom)
	if i := slices.IndexFunc(custom, func(d Definition) bool { return d.ID == def.ID }); i >= 0 {
		custom[i] = def
	} else {
		custom = append(custom, def)
	}
	selected := m.current.ID == def.ID
	m.mu.Unlock()

	if err := m.persistCustom(ctx, custom); err != nil {
		return Definition{}, err
	}
	m.mu.Lock()
	m.custom = custom
	m.mu.Unlock()

	if selected {
		if err := m.bus.Publish(ctx, channel.ThemeChanged, def); err != nil {
			return Definition{}, fmt.Errorf("publish theme: %w", err)
		}
	}
	return def.Clone(), nil
}

// DeleteCustom removes a custom definition. Deleting the selected theme
// selects the default.
func (m *Manager) DeleteCustom(ctx context.Context, id string) error {
	if IsBuiltin(id) {
		return fmt.Errorf("%w: %q", ErrReservedID, id)
	}

	m.mu.Lock()
	i := slices.IndexFunc(m.custom, func(d Definition) bool { return d.ID == id })
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownTheme, id)
	}
	custom := slices.Delete(slices.Clone(m.custom), i, i+1)
	selected := m.current.ID == id
	m.mu.Unlock()

	if err := m.persistCustom(ctx, custom); err != nil {
		return err
	}
	m.mu.Lock()
	m.custom = custom
	m.mu.Unlock()

	if !selected {
		persisted, ok, err := m.store.Get(ctx, KeySelectedID)
		selected = err == nil && ok && persisted == id
	}
	if selected {
		if _, err := m.Select(ctx, DefaultID); err != nil {
			return err
		}
	}
	return nil
}

// DownloadedFilenames returns the filenames already offered for download.
func (m *Manager) DownloadedFilenames(ctx context.Context) ([]string, error) {
	raw, ok, err := m.store.Get(ctx, KeyDownloadedFilenames)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []string{}, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		m.log.Warn().Err(err).Str("key", KeyDownloadedFilenames).Msg("discarding corrupt download list")
		return []string{}, nil
	}
	return names, nil
}

// RecordDownload adds name to the download list. It reports whether the name
// was already present.
func (m *Manager) RecordDownload(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, errors.New("filename is required")
	}
	names, err := m.DownloadedFilenames(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(names, name) {
		return true, nil
	}
	raw, err := json.Marshal(append(names, name))
	if err != nil {
		return false, err
	}
	return false, m.store.Set(ctx, KeyDownloadedFilenames, string(raw))
}

func (m *Manager) loadCustom(ctx context.Context) []Definition {
	raw, ok, err := m.store.Get(ctx, KeyCustomDefinitions)
	if err != nil {
		m.log.Error().Err(err).Str("key", KeyCustomDefinitions).Msg("failed to read custom themes")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		m.log.Warn().Err(err).Str("key", KeyCustomDefinitions).Msg("discarding corrupt custom themes")
		return nil
	}
	var out []Definition
	for _, entry := range entries {
		def, err := Parse(entry)
		if err != nil {
			m.log.Warn().Err(err).Msg("skipping invalid custom theme")
			continue
		}
		if IsBuiltin(def.ID) || slices.ContainsFunc(out, func(d Definition) bool { return d.ID == def.ID }) {
			m.log.Warn().Str("theme_id", def.ID).Msg("skipping duplicate custom theme")
			continue
		}
		out = append(out, def)
	}
	return out
}

func (m *Manager) loadSelected(ctx context.Context) Definition {
	fallback, _ := Builtin(DefaultID)
	id, ok, err := m.store.Get(ctx, KeySelectedID)
	if err != nil {
		m.log.Error().Err(err).Str("key", KeySelectedID).Msg("failed to read theme selection")
		return fallback
	}
	if !ok || id == "" {
		return fallback
	}
	def, found := m.Lookup(id)
	if !found {
		m.log.Warn().Str("theme_id", id).Msg("selected theme no longer exists, using default")
		return fallback
	}
	return def
}

func (m *Manager) persistCustom(ctx context.Context, custom []Definition) error {
	if custom == nil {
		custom = []Definition{}
	}
	raw, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("encode custom themes: %w", err)
	}
	if err := m.store.Set(ctx, KeyCustomDefinitions, string(raw)); err != nil {
		return fmt.Errorf("persist custom themes: %w", err)
	}
	return nil
}
