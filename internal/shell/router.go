// Package shell is the host shell: it resolves request paths to panels, gates
// them through the session, renders the chrome around the panel mount point and
// exposes the cross-module state channel over HTTP.
package shell

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/report-zone/mfe-demo-sub000/internal/channel"
	"github.com/report-zone/mfe-demo-sub000/internal/config"
	"github.com/report-zone/mfe-demo-sub000/internal/registry"
	"github.com/report-zone/mfe-demo-sub000/internal/routes"
	"github.com/report-zone/mfe-demo-sub000/internal/session"
	"github.com/report-zone/mfe-demo-sub000/internal/telemetry"
	"github.com/report-zone/mfe-demo-sub000/internal/theme"
)

// Defaults applied to zero Options fields.
const (
	DefaultTitle       = "Panel Host"
	DefaultCookieName  = config.DefaultCookieName
	DefaultRenderWait  = 2 * time.Second
	DefaultRefreshWait = 2 * time.Second
)

// Options controls the construction of the host shell router.
// Registry, Routes, Sources, Sessions and Themes are required.
type Options struct {
	Registry *registry.Registry
	Routes   *routes.Resolver
	Sources  registry.Sources
	Sessions *session.Manager
	Themes   *theme.Manager
	Store    channel.Store
	Bus      channel.Bus

	Title      string
	SignInPath string
	HomePath   string
	CookieName string
	// RenderWait is how long a page request waits for a panel module before
	// rendering the loading view.
	RenderWait    time.Duration
	SecureCookies bool
	CORSOptions   *cors.Options
	Metrics       *telemetry.ShellMetrics
	Logger        *zerolog.Logger
	HealthHandler http.HandlerFunc
	Middleware    []func(http.Handler) http.Handler
	ExtraRoutes   func(chi.Router)
}

// Shell holds the handlers of the host shell.
type Shell struct {
	opts Options
	log  zerolog.Logger
}

// DefaultCORSOptions returns the development CORS policy for panels served
// from other origins.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://localhost:5174",
			"http://127.0.0.1:5174",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// New creates a Shell.
func New(opts Options) *Shell {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.SignInPath == "" {
		opts.SignInPath = "/sign-in"
	}
	if opts.HomePath == "" {
		opts.HomePath = "/"
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.RenderWait <= 0 {
		opts.RenderWait = DefaultRenderWait
	}
	if opts.Store == nil {
		opts.Store = channel.NewMemoryStore()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Bus == nil {
		opts.Bus = channel.NewLocalBus(&logger)
	}
	return &Shell{opts: opts, log: logger}
}

// NewRouter assembles the shell router with the shared middleware, the CORS
// policy and every shell endpoint mounted.
func NewRouter(opts Options) chi.Router {
	return New(opts).Router()
}

// Router builds the chi router of s.
func (s *Shell) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if s.opts.CORSOptions != nil {
		corsCfg = *s.opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range s.opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Use(withHostname)
	r.Use(s.sessionMiddleware)

	healthHandler := s.opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	r.Get(s.opts.SignInPath, s.handleSignInPage)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/sign-in", s.handleSignIn)
		r.Post("/rotate", s.handleRotate)
		r.Post("/sign-out", s.handleSignOut)
		r.Post("/sign-up", s.handleSignUp)
		r.Post("/confirm-sign-up", s.handleConfirmSignUp)
		r.Post("/reset-password", s.handleResetPassword)
		r.Post("/confirm-reset-password", s.handleConfirmResetPassword)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/panels", s.handlePanels)

		r.Get("/store/{key}", s.handleStoreGet)
		r.Put("/store/{key}", s.handleStorePut)
		r.Delete("/store/{key}", s.handleStoreDelete)

		r.Get("/events", s.handleEvents)
		r.Post("/events/{topic}", s.handlePublish)

		r.Get("/shared", s.handleSharedSnapshot)
		r.Delete("/shared", s.handleSharedClear)
		r.Get("/shared/events", s.handleSharedEvents)
		r.Get("/shared/{key}", s.handleSharedGet)
		r.Put("/shared/{key}", s.handleSharedPut)
		r.Delete("/shared/{key}", s.handleSharedDelete)

		r.Get("/themes", s.handleThemes)
		r.Get("/themes/current", s.handleThemeCurrent)
		r.Put("/themes/current", s.handleThemeSelect)
		r.Get("/themes/downloads", s.handleDownloads)
		r.Post("/themes/downloads", s.handleRecordDownload)
		r.Put("/themes/{id}", s.handleThemeSave)
		r.Delete("/themes/{id}", s.handleThemeDelete)
	})

	r.Get("/modules/{file}", s.handleModule)
	r.Post("/admin/cache/evict", s.handleEvict)

	if s.opts.ExtraRoutes != nil {
		s.opts.ExtraRoutes(r)
	}

	r.Get("/*", s.handlePage)
	return r
}
