// Package environment decides, per panel, where the panel's module is loaded from.
package environment

import (
	"context"
	"net"
	"net/netip"
	"strings"

	"github.com/report-zone/mfe-demo-sub000/internal/config"
)

// Kind identifies the origin of a panel module.
type Kind int

const (
	// Local is the co-located build served by the host itself.
	Local Kind = iota
	// Preview is a locally served preview instance of the panel.
	Preview
	// Remote is the production remote address.
	Remote
)

func (k Kind) String() string {
	switch k {
	case Preview:
		return "preview"
	case Remote:
		return "remote"
	default:
		return "local"
	}
}

// Target is the resolved origin of one panel.
// URL is empty for Local targets.
type Target struct {
	Kind Kind
	URL  string
}

// ModuleFile returns the conventional file name of a panel module.
func ModuleFile(panel string) string {
	return panel + "-module.js"
}

// ModuleURL joins a base address and a panel name: {base}/{panel}-module.js.
func ModuleURL(base, panel string) string {
	return strings.TrimRight(base, "/") + "/" + ModuleFile(panel)
}

type hostnameKey struct{}

// WithHostname returns a context carrying the host the current request was addressed to.
func WithHostname(ctx context.Context, host string) context.Context {
	return context.WithValue(ctx, hostnameKey{}, host)
}

// HostnameFromContext returns the request host stored by WithHostname.
func HostnameFromContext(ctx context.Context) (string, bool) {
	host, ok := ctx.Value(hostnameKey{}).(string)
	return host, ok && host != ""
}

// Addresses holds the configured addresses of a single panel.
type Addresses struct {
	RemoteBaseURL  string
	PreviewBaseURL string
}

// Resolver applies the origin decision order to a panel.
type Resolver struct {
	development bool
	hostname    string
	panels      map[string]Addresses
}

// NewResolver creates a resolver. hostname is used when the context carries none.
func NewResolver(development bool, hostname string, panels map[string]Addresses) *Resolver {
	copied := make(map[string]Addresses, len(panels))
	for name, a := range panels {
		copied[name] = a
	}
	return &Resolver{development: development, hostname: hostname, panels: copied}
}

// FromConfig builds a resolver from the loaded configuration.
func FromConfig(cfg *config.Config) *Resolver {
	panels := make(map[string]Addresses, len(cfg.Panels))
	for name, p := range cfg.Panels {
		panels[name] = Addresses{RemoteBaseURL: p.RemoteURL, PreviewBaseURL: p.PreviewURL}
	}
	return NewResolver(cfg.IsDevelopment(), cfg.Hostname, panels)
}

// Addresses returns the configured addresses of panel.
func (r *Resolver) Addresses(panel string) Addresses {
	return r.panels[panel]
}

// Resolve picks the origin of panel:
//  1. development build mode: local build
//  2. no remote address configured: local build
//  3. local or private host with a preview address: preview instance
//  4. otherwise the remote address
func (r *Resolver) Resolve(ctx context.Context, panel string) Target {
	if r.development {
		return Target{Kind: Local}
	}

	addrs := r.panels[panel]
	if addrs.RemoteBaseURL == "" {
		return Target{Kind: Local}
	}

	host, ok := HostnameFromContext(ctx)
	if !ok {
		host = r.hostname
	}
	if addrs.PreviewBaseURL != "" && IsLocalHost(host) {
		return Target{Kind: Preview, URL: ModuleURL(addrs.PreviewBaseURL, panel)}
	}

	return Target{Kind: Remote, URL: ModuleURL(addrs.RemoteBaseURL, panel)}
}

// IsLocalHost reports whether host (optionally with a port) names a loopback,
// private or link-local address, localhost, or a .local name.
func IsLocalHost(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	host = strings.TrimSuffix(strings.ToLower(host), ".")

	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
