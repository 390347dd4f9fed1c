package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/report-zone/mfe-demo-sub000/internal/config"
	"github.com/report-zone/mfe-demo-sub000/internal/environment"
	"github.com/report-zone/mfe-demo-sub000/internal/loader"
)

func staticLoader(export string) LoadFunc {
	return func(context.Context) (*Component, error) {
		return &Component{Export: export}, nil
	}
}

func TestRegister_ReplacesExisting(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(PanelDescriptor{Name: "home", LoadComponent: staticLoader("v1")}))
	require.NoError(t, r.Register(PanelDescriptor{Name: "admin", LoadComponent: staticLoader("admin")}))
	require.Equal(t, 2, r.Len())

	require.NoError(t, r.Register(PanelDescriptor{Name: "home", LoadComponent: staticLoader("v2")}))
	assert.Equal(t, 2, r.Len(), "re-registration must not grow the registry")

	c, err := r.GetLoader("home")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", c.Export)
}

func TestRegister_Invalid(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register(PanelDescriptor{LoadComponent: staticLoader("x")}), ErrInvalidDescriptor)
	assert.ErrorIs(t, r.Register(PanelDescriptor{Name: "x"}), ErrInvalidDescriptor)
	assert.Equal(t, 0, r.Len())
}

func TestGetLoader_UnknownPanel(t *testing.T) {
	r := New()
	c, err := r.GetLoader("nope")(context.Background())
	require.NoError(t, err)
	assert.True(t, c.NotFound)
	assert.Equal(t, "nope", c.Panel)
}

func TestNames_NavOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(PanelDescriptor{Name: "b", NavOrder: 2, LoadComponent: staticLoader("")}))
	require.NoError(t, r.Register(PanelDescriptor{Name: "a", NavOrder: 2, LoadComponent: staticLoader("")}))
	require.NoError(t, r.Register(PanelDescriptor{Name: "z", NavOrder: 1, LoadComponent: staticLoader("")}))
	assert.Equal(t, []string{"z", "a", "b"}, r.Names())
}

func TestResolveExport(t *testing.T) {
	tests := []struct {
		name    string
		exports []string
		want    string
		wantErr bool
	}{
		{name: "default preferred", exports: []string{"Panel", "default"}, want: "default"},
		{name: "first named", exports: []string{"Panel", "helper"}, want: "Panel"},
		{name: "no exports", exports: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveExport("home", &loader.Module{Exports: tt.exports})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoExports)
				assert.Contains(t, err.Error(), `"home"`)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newSources(t *testing.T, fs afero.Fs, remote loader.Fetcher, panels map[string]environment.Addresses) Sources {
	t.Helper()
	l, err := loader.New(loader.Options{Fetcher: NewFetcher(fs, "dist/panels", remote), Timeout: time.Second})
	require.NoError(t, err)
	return Sources{
		Resolver: environment.NewResolver(false, "app.example.com", panels),
		Loader:   l,
	}
}

func TestNewDescriptor_LocalBuild(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "dist/panels/home-module.js", []byte("export const Home = () => null\n"), 0o644))

	src := newSources(t, fs, nil, nil)
	d := NewDescriptor("home", config.PanelConfig{NavOrder: 10}, src)
	assert.Equal(t, "home", d.Title)

	c, err := d.LoadComponent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Home", c.Export)
	assert.Equal(t, environment.Local, c.Origin)
	assert.Equal(t, "/modules/home.js", c.EntryURL)
	assert.Equal(t, loader.StateReady, src.Loader.State(LocalURL("home")))
}

func TestNewDescriptor_MissingLocalBuild(t *testing.T) {
	src := newSources(t, afero.NewMemMapFs(), nil, nil)
	d := NewDescriptor("admin", config.PanelConfig{}, src)

	_, err := d.LoadComponent(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local:admin-module.js")
	assert.Contains(t, err.Error(), "local build not found")
}

func TestNewDescriptor_RemoteWithoutExports(t *testing.T) {
	remote := loader.FetcherFunc(func(ctx context.Context, url string) (*loader.Module, error) {
		return loader.NewModule(url, []byte("window.sideEffect = true")), nil
	})
	src := newSources(t, afero.NewMemMapFs(), remote, map[string]environment.Addresses{
		"home": {RemoteBaseURL: "https://cdn.example.com"},
	})

	_, err := NewDescriptor("home", config.PanelConfig{}, src).LoadComponent(context.Background())
	assert.ErrorIs(t, err, ErrNoExports)
}

func TestNewDescriptor_RemoteURL(t *testing.T) {
	var requested string
	remote := loader.FetcherFunc(func(ctx context.Context, url string) (*loader.Module, error) {
		requested = url
		return loader.NewModule(url, []byte("export default {}")), nil
	})
	src := newSources(t, afero.NewMemMapFs(), remote, map[string]environment.Addresses{
		"home": {RemoteBaseURL: "https://cdn.example.com/"},
	})

	c, err := NewDescriptor("home", config.PanelConfig{}, src).LoadComponent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/home-module.js", requested)
	assert.Equal(t, environment.Remote, c.Origin)
	assert.Equal(t, DefaultExport, c.Export)
}

func TestRegisterConfigured(t *testing.T) {
	cfg := &config.Config{Panels: config.DefaultPanels}
	r := New()
	require.NoError(t, r.RegisterConfigured(cfg, newSources(t, afero.NewMemMapFs(), nil, nil)))
	assert.Equal(t, []string{"home", "preferences", "account", "admin"}, r.Names())
}

func TestFetcher_DelegatesRemote(t *testing.T) {
	sentinel := errors.New("remote called")
	f := NewFetcher(afero.NewMemMapFs(), "dist", loader.FetcherFunc(func(ctx context.Context, url string) (*loader.Module, error) {
		return nil, sentinel
	}))
	_, err := f.Fetch(context.Background(), "https://cdn/home-module.js")
	assert.ErrorIs(t, err, sentinel)
}
