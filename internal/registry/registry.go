// Package registry maps logical panel names to component loaders.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/report-zone/mfe-demo-sub000/internal/environment"
	"github.com/report-zone/mfe-demo-sub000/internal/loader"
)

// DefaultExport is the conventional export name of a panel component.
const DefaultExport = "default"

var (
	// ErrNoExports is returned when a panel module exports nothing.
	ErrNoExports = errors.New("module has no exports")
	// ErrInvalidDescriptor is returned by Register for a descriptor missing its name or loader.
	ErrInvalidDescriptor = errors.New("invalid panel descriptor")
)

// Component is a loaded panel ready to be mounted by the shell.
type Component struct {
	Panel    string
	Export   string
	EntryURL string
	Origin   environment.Kind
	Module   *loader.Module
	NotFound bool
}

// LoadFunc produces a panel component.
type LoadFunc func(ctx context.Context) (*Component, error)

// PanelDescriptor describes one registered panel.
type PanelDescriptor struct {
	Name          string
	Title         string
	Description   string
	NavOrder      int
	RemoteBaseURL string
	LoadComponent LoadFunc
}

// NotFound returns the stand-in component rendered for an unknown panel.
func NotFound(name string) *Component {
	return &Component{Panel: name, NotFound: true}
}

// EntryPath is the host path the browser imports a panel module from.
func EntryPath(panel string) string {
	return "/modules/" + panel + ".js"
}

// ResolveExport picks the component export of mod: the default export when present,
// else the first named export.
func ResolveExport(panel string, mod *loader.Module) (string, error) {
	if mod == nil || len(mod.Exports) == 0 {
		return "", fmt.Errorf("panel %q: %w", panel, ErrNoExports)
	}
	if mod.HasExport(DefaultExport) {
		return DefaultExport, nil
	}
	return mod.Exports[0], nil
}

// Registry is the set of known panels. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	panels map[string]PanelDescriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{panels: make(map[string]PanelDescriptor)}
}

// Register adds d, replacing any descriptor already registered under d.Name.
func (r *Registry) Register(d PanelDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDescriptor)
	}
	if d.LoadComponent == nil {
		return fmt.Errorf("%w: panel %q has no loader", ErrInvalidDescriptor, d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels[d.Name] = d
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (PanelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.panels[name]
	return d, ok
}

// Len returns the number of registered panels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.panels)
}

// Names returns registered panel names in navigation order.
func (r *Registry) Names() []string {
	descs := r.Descriptors()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

// Descriptors returns every descriptor ordered by NavOrder, then name.
func (r *Registry) Descriptors() []PanelDescriptor {
	r.mu.RLock()
	out := make([]PanelDescriptor, 0, len(r.panels))
	for _, d := range r.panels {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].NavOrder != out[j].NavOrder {
			return out[i].NavOrder < out[j].NavOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GetLoader returns the loader of name. An unknown name yields a loader that
// resolves to the NotFound component instead of failing.
func (r *Registry) GetLoader(name string) LoadFunc {
	d, ok := r.Get(name)
	if !ok {
		return func(context.Context) (*Component, error) {
			return NotFound(name), nil
		}
	}
	return d.LoadComponent
}
