// Package config carries the resolved global flags of a panelctl invocation.
package config

import (
	"context"
	"errors"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/client"
	"github.com/report-zone/mfe-demo-sub000/pkg/sdk"
)

type globalConfigKey struct{}

// GlobalConfig is resolved once by the root command and shared by every subcommand.
type GlobalConfig struct {
	ServerURL      string
	NonInteractive bool
	ClientProvider *client.Provider
}

// ErrNoConfig means a command ran without the root command's pre-run.
var ErrNoConfig = errors.New("panelctl: command context carries no configuration")

// InjectConfig returns ctx carrying cfg.
func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, globalConfigKey{}, cfg)
}

// FromContext returns the configuration stored by InjectConfig.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	if ctx == nil {
		return nil, false
	}
	cfg, ok := ctx.Value(globalConfigKey{}).(*GlobalConfig)
	return cfg, ok && cfg != nil
}

// MustFromContext is FromContext for code paths the root command always prepares.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoConfig)
	}
	return cfg
}

// Client returns the session-aware API client of the invocation.
func Client(ctx context.Context) (*sdk.Client, error) {
	cfg, ok := FromContext(ctx)
	if !ok || cfg.ClientProvider == nil {
		return nil, ErrNoConfig
	}
	return cfg.ClientProvider.SDKClient()
}
