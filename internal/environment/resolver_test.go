package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/report-zone/mfe-demo-sub000/internal/config"
)

func TestResolve_DecisionOrder(t *testing.T) {
	panels := map[string]Addresses{
		"home":        {RemoteBaseURL: "https://cdn.example.com/home"},
		"preferences": {RemoteBaseURL: "https://cdn.example.com/prefs/", PreviewBaseURL: "http://localhost:4174"},
	}

	tests := []struct {
		name        string
		development bool
		host        string
		panel       string
		want        Target
	}{
		{
			name:        "development always local",
			development: true,
			host:        "app.example.com",
			panel:       "home",
			want:        Target{Kind: Local},
		},
		{
			name:  "no remote configured",
			host:  "app.example.com",
			panel: "account",
			want:  Target{Kind: Local},
		},
		{
			name:  "local host prefers preview",
			host:  "127.0.0.1:4000",
			panel: "preferences",
			want:  Target{Kind: Preview, URL: "http://localhost:4174/preferences-module.js"},
		},
		{
			name:  "private network prefers preview",
			host:  "192.168.1.20",
			panel: "preferences",
			want:  Target{Kind: Preview, URL: "http://localhost:4174/preferences-module.js"},
		},
		{
			name:  "local host without preview uses remote",
			host:  "localhost",
			panel: "home",
			want:  Target{Kind: Remote, URL: "https://cdn.example.com/home/home-module.js"},
		},
		{
			name:  "public host uses remote",
			host:  "app.example.com",
			panel: "preferences",
			want:  Target{Kind: Remote, URL: "https://cdn.example.com/prefs/preferences-module.js"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.development, "", panels)
			ctx := WithHostname(context.Background(), tt.host)
			assert.Equal(t, tt.want, r.Resolve(ctx, tt.panel))
		})
	}
}

func TestResolve_FallsBackToConfiguredHostname(t *testing.T) {
	r := NewResolver(false, "localhost", map[string]Addresses{
		"home": {RemoteBaseURL: "https://cdn", PreviewBaseURL: "http://localhost:5001"},
	})
	got := r.Resolve(context.Background(), "home")
	assert.Equal(t, Preview, got.Kind)
	assert.Equal(t, "preview", got.Kind.String())
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Mode: config.ModeProduction,
		Panels: map[string]config.PanelConfig{
			"home": {RemoteURL: "https://cdn.example.com"},
		},
	}
	r := FromConfig(cfg)
	got := r.Resolve(WithHostname(context.Background(), "example.org"), "home")
	assert.Equal(t, Target{Kind: Remote, URL: "https://cdn.example.com/home-module.js"}, got)
	assert.Equal(t, "https://cdn.example.com", r.Addresses("home").RemoteBaseURL)
}

func TestIsLocalHost(t *testing.T) {
	tests := map[string]bool{
		"localhost":         true,
		"LOCALHOST:8080":    true,
		"panels.localhost":  true,
		"devbox.local":      true,
		"127.0.0.1":         true,
		"[::1]:4000":        true,
		"10.1.2.3":          true,
		"172.16.0.9":        true,
		"192.168.0.1:3000":  true,
		"169.254.10.1":      true,
		"8.8.8.8":           false,
		"app.example.com":   false,
		"localhost.example": false,
		"":                  false,
	}
	for host, want := range tests {
		assert.Equal(t, want, IsLocalHost(host), host)
	}
}
