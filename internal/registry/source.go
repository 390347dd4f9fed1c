package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"github.com/report-zone/mfe-demo-sub000/internal/config"
	"github.com/report-zone/mfe-demo-sub000/internal/environment"
	"github.com/report-zone/mfe-demo-sub000/internal/loader"
	"github.com/report-zone/mfe-demo-sub000/internal/telemetry"
)

// LocalScheme prefixes cache keys of modules read from the co-located build.
const LocalScheme = "local:"

// LocalURL is the loader cache key of a panel's co-located build.
func LocalURL(panel string) string {
	return LocalScheme + environment.ModuleFile(panel)
}

// Fetcher serves local: keys from a build directory and everything else
// through the wrapped remote fetcher.
type Fetcher struct {
	FS       afero.Fs
	BuildDir string
	Remote   loader.Fetcher
}

// NewFetcher creates a Fetcher. A nil remote uses loader.NewHTTPFetcher.
func NewFetcher(fs afero.Fs, buildDir string, remote loader.Fetcher) *Fetcher {
	if remote == nil {
		remote = loader.NewHTTPFetcher(nil)
	}
	return &Fetcher{FS: fs, BuildDir: buildDir, Remote: remote}
}

// Fetch implements loader.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*loader.Module, error) {
	if !strings.HasPrefix(url, LocalScheme) {
		return f.Remote.Fetch(ctx, url)
	}

	file := path.Join(f.BuildDir, path.Clean("/"+strings.TrimPrefix(url, LocalScheme)))
	source, err := afero.ReadFile(f.FS, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("local build not found at %s", file)
		}
		return nil, fmt.Errorf("read local build: %w", err)
	}
	if len(strings.TrimSpace(string(source))) == 0 {
		return nil, loader.ErrEmptyModule
	}

	mod := loader.NewModule(url, source)
	if info, err := f.FS.Stat(file); err == nil {
		mod.ETag = fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
	}
	return mod, nil
}

// Sources wires the default component loader of a panel.
type Sources struct {
	Resolver *environment.Resolver
	Loader   *loader.Loader
}

// NewDescriptor builds a descriptor whose loader resolves the panel's origin,
// loads the module through the shared module cache and picks its export.
func NewDescriptor(name string, p config.PanelConfig, src Sources) PanelDescriptor {
	title := p.Title
	if title == "" {
		title = name
	}
	return PanelDescriptor{
		Name:          name,
		Title:         title,
		Description:   p.Description,
		NavOrder:      p.NavOrder,
		RemoteBaseURL: p.RemoteURL,
		LoadComponent: src.loadFunc(name),
	}
}

func (s Sources) loadFunc(name string) LoadFunc {
	return func(ctx context.Context) (*Component, error) {
		target := s.Resolver.Resolve(ctx, name)

		ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRegistry, "registry.LoadComponent",
			attribute.String(telemetry.AttrPanelName, name),
			attribute.String(telemetry.AttrPanelOrigin, target.Kind.String()),
		)
		defer span.End()

		mod, err := s.Loader.Load(ctx, s.URL(ctx, name))
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		export, err := ResolveExport(name, mod)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		return &Component{
			Panel:    name,
			Export:   export,
			EntryURL: EntryPath(name),
			Origin:   target.Kind,
			Module:   mod,
		}, nil
	}
}

// URL returns the module cache key the panel resolves to for this request.
func (s Sources) URL(ctx context.Context, name string) string {
	target := s.Resolver.Resolve(ctx, name)
	if target.Kind == environment.Local {
		return LocalURL(name)
	}
	return target.URL
}

// RegisterConfigured registers every panel named in cfg.
func (r *Registry) RegisterConfigured(cfg *config.Config, src Sources) error {
	for _, name := range cfg.PanelNames() {
		if err := r.Register(NewDescriptor(name, cfg.Panels[name], src)); err != nil {
			return err
		}
	}
	return nil
}
