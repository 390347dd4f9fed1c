package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Build modes understood by the environment resolver.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// EnvPrefix is the prefix of every PANELHOST_* environment variable.
const EnvPrefix = "PANELHOST"

// Config holds the application configuration
type Config struct {
	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Public base URL of the host shell
	ServerURL string `mapstructure:"server_url"`

	// Database connection string (DSN), sqlite file or postgres URL
	DatabaseURL string `mapstructure:"database_url"`

	// Build mode: development always serves panels from the local build
	Mode string `mapstructure:"mode"`

	// Hostname used for locality checks when a request carries none
	Hostname string `mapstructure:"hostname"`

	Debug      bool   `mapstructure:"debug"`
	LogLevel   string `mapstructure:"log_level"`
	LogConsole bool   `mapstructure:"log_console"`

	Loader  LoaderConfig           `mapstructure:"loader"`
	Session SessionConfig          `mapstructure:"session"`
	Panels  map[string]PanelConfig `mapstructure:"panels"`
	Routes  []RouteConfig          `mapstructure:"routes"`
	CORS    CORSConfig             `mapstructure:"cors"`
	Shell   ShellConfig            `mapstructure:"shell"`
}

// LoaderConfig tunes the remote module loader and the co-located build.
type LoaderConfig struct {
	// BuildDir holds the co-located panel builds ({panel}-module.js)
	BuildDir string `mapstructure:"build_dir"`
	// WatchBuildDir evicts cached local modules when their files change
	WatchBuildDir bool          `mapstructure:"watch_build_dir"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheSize     int           `mapstructure:"cache_size"`
	// Preload fetches every remote panel at startup
	Preload bool `mapstructure:"preload"`
}

// SessionConfig configures the session gate and the local session provider.
type SessionConfig struct {
	CookieName    string        `mapstructure:"cookie_name"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	CheckTimeout  time.Duration `mapstructure:"check_timeout"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	ElevatedGroup string        `mapstructure:"elevated_group"`
}

// PanelConfig describes one statically registered panel.
type PanelConfig struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	NavOrder    int    `mapstructure:"nav_order"`
	RemoteURL   string `mapstructure:"remote_url"`
	PreviewURL  string `mapstructure:"preview_url"`
}

// RouteConfig is a declarative route rule. Exactly one of Pattern or Regex is set.
type RouteConfig struct {
	Pattern string `mapstructure:"pattern"`
	Regex   string `mapstructure:"regex"`
	Panel   string `mapstructure:"panel"`
	Exact   bool   `mapstructure:"exact"`
	Access  string `mapstructure:"access"`
}

// CORSConfig lists origins allowed to call the channel API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ShellConfig tunes the rendering of the host shell.
type ShellConfig struct {
	Title      string        `mapstructure:"title"`
	SignInPath string        `mapstructure:"sign_in_path"`
	HomePath   string        `mapstructure:"home_path"`
	RenderWait time.Duration `mapstructure:"render_wait"`
}

// DefaultCookieName names the browser session cookie.
const DefaultCookieName = "panelhost_session"

// DefaultPanels are registered when the configuration names none.
var DefaultPanels = map[string]PanelConfig{
	"home":        {Title: "Home", Description: "Landing panel", NavOrder: 10},
	"preferences": {Title: "Preferences", Description: "Theme and account preferences", NavOrder: 20},
	"account":     {Title: "Account", Description: "Profile and credentials", NavOrder: 30},
	"admin":       {Title: "Admin", Description: "Administration", NavOrder: 40},
}

// RemoteEnvVar returns the environment variable carrying a panel's remote base URL.
func RemoteEnvVar(panel string) string {
	return envName(panel) + "_REMOTE_URL"
}

// PreviewEnvVar returns the environment variable carrying a panel's preview base URL.
func PreviewEnvVar(panel string) string {
	return envName(panel) + "_PREVIEW_URL"
}

func envName(panel string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(panel))
}

func setDefaults() {
	viper.SetDefault("server_addr", "localhost:4000")
	viper.SetDefault("server_url", "http://localhost:4000")
	viper.SetDefault("database_url", "file:panelhost.db?cache=shared")
	viper.SetDefault("mode", ModeProduction)
	viper.SetDefault("hostname", "")
	viper.SetDefault("debug", false)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_console", false)

	viper.SetDefault("loader.build_dir", "dist/panels")
	viper.SetDefault("loader.watch_build_dir", false)
	viper.SetDefault("loader.timeout", 30*time.Second)
	viper.SetDefault("loader.cache_size", 256)
	viper.SetDefault("loader.preload", false)

	viper.SetDefault("session.cookie_name", DefaultCookieName)
	viper.SetDefault("session.ttl", 12*time.Hour)
	viper.SetDefault("session.max_sessions", 10000)
	viper.SetDefault("session.check_timeout", 5*time.Second)
	viper.SetDefault("session.jwt_secret", "")
	viper.SetDefault("session.elevated_group", "admin")

	viper.SetDefault("cors.allowed_origins", []string{"http://localhost:4000", "http://127.0.0.1:4000"})

	viper.SetDefault("shell.title", "Panel Host")
	viper.SetDefault("shell.sign_in_path", "/sign-in")
	viper.SetDefault("shell.home_path", "/")
	viper.SetDefault("shell.render_wait", 2*time.Second)
}

// Load reads configuration from the config file (if one was read into viper),
// PANELHOST_* environment variables and per-panel *_REMOTE_URL variables.
func Load() (*Config, error) {
	setDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Panels) == 0 {
		cfg.Panels = make(map[string]PanelConfig, len(DefaultPanels))
		for name, p := range DefaultPanels {
			cfg.Panels[name] = p
		}
	}

	// Per-panel addresses come from the environment, one variable per panel.
	for name, p := range cfg.Panels {
		if v, ok := os.LookupEnv(RemoteEnvVar(name)); ok {
			p.RemoteURL = v
		}
		if v, ok := os.LookupEnv(PreviewEnvVar(name)); ok {
			p.PreviewURL = v
		}
		p.RemoteURL = strings.TrimRight(strings.TrimSpace(p.RemoteURL), "/")
		p.PreviewURL = strings.TrimRight(strings.TrimSpace(p.PreviewURL), "/")
		cfg.Panels[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	switch c.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode)
	}
	if c.Loader.Timeout <= 0 {
		return fmt.Errorf("loader.timeout must be positive")
	}
	if c.Loader.CacheSize <= 0 {
		return fmt.Errorf("loader.cache_size must be positive")
	}
	for i, r := range c.Routes {
		if (r.Pattern == "") == (r.Regex == "") {
			return fmt.Errorf("routes[%d]: exactly one of pattern or regex is required", i)
		}
		if r.Panel == "" {
			return fmt.Errorf("routes[%d]: panel is required", i)
		}
	}
	return nil
}

// IsDevelopment reports whether the host runs in local development mode.
func (c *Config) IsDevelopment() bool {
	return c.Mode == ModeDevelopment
}

// PanelNames returns configured panel names ordered by NavOrder, then name.
func (c *Config) PanelNames() []string {
	names := make([]string, 0, len(c.Panels))
	for name := range c.Panels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := c.Panels[names[i]], c.Panels[names[j]]
		if a.NavOrder != b.NavOrder {
			return a.NavOrder < b.NavOrder
		}
		return names[i] < names[j]
	})
	return names
}
