package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/internal/channel"
	"github.com/report-zone/mfe-demo-sub000/internal/db/bunx"
	"github.com/report-zone/mfe-demo-sub000/internal/environment"
	"github.com/report-zone/mfe-demo-sub000/internal/loader"
	"github.com/report-zone/mfe-demo-sub000/internal/logging"
	"github.com/report-zone/mfe-demo-sub000/internal/registry"
	"github.com/report-zone/mfe-demo-sub000/internal/repository"
	"github.com/report-zone/mfe-demo-sub000/internal/routes"
	"github.com/report-zone/mfe-demo-sub000/internal/session"
	"github.com/report-zone/mfe-demo-sub000/internal/shell"
	"github.com/report-zone/mfe-demo-sub000/internal/telemetry"
	"github.com/report-zone/mfe-demo-sub000/internal/theme"
	"github.com/report-zone/mfe-demo-sub000/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the host shell",
	Long:  `Starts the HTTP server that renders the host shell, serves panel modules and the channel API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		provider, err := newProvider(db)
		if err != nil {
			return fmt.Errorf("failed to create session provider: %w", err)
		}

		sessionLog := logging.Component(logger, "session")
		sessions := session.NewManager(provider, session.ManagerOptions{
			Gate: session.GateOptions{
				ElevatedGroup: cfg.Session.ElevatedGroup,
				SignInPath:    cfg.Shell.SignInPath,
				HomePath:      cfg.Shell.HomePath,
				CheckTimeout:  cfg.Session.CheckTimeout,
				Logger:        &sessionLog,
			},
			MaxSessions: cfg.Session.MaxSessions,
			TTL:         cfg.Session.TTL,
		})

		channelLog := logging.Component(logger, "channel")
		store := repository.NewBunKVStore(db)
		bus := channel.NewLocalBus(&channelLog)

		themeLog := logging.Component(logger, "theme")
		themes := theme.NewManager(store, bus, &themeLog)
		if err := themes.Start(ctx); err != nil {
			return fmt.Errorf("failed to start theme manager: %w", err)
		}
		defer themes.Stop()

		loaderMetrics, err := telemetry.NewLoaderMetrics()
		if err != nil {
			return fmt.Errorf("failed to create loader metrics: %w", err)
		}
		shellMetrics, err := telemetry.NewShellMetrics()
		if err != nil {
			return fmt.Errorf("failed to create shell metrics: %w", err)
		}

		loaderLog := logging.Component(logger, "loader")
		modules, err := loader.New(loader.Options{
			Fetcher:   registry.NewFetcher(afero.NewOsFs(), cfg.Loader.BuildDir, nil),
			Timeout:   cfg.Loader.Timeout,
			CacheSize: cfg.Loader.CacheSize,
			Metrics:   loaderMetrics,
			Logger:    &loaderLog,
		})
		if err != nil {
			return fmt.Errorf("failed to create module loader: %w", err)
		}

		resolver := environment.FromConfig(cfg)
		sources := registry.Sources{Resolver: resolver, Loader: modules}
		panels := registry.New()
		if err := panels.RegisterConfigured(cfg, sources); err != nil {
			return fmt.Errorf("failed to register panels: %w", err)
		}

		routeTable, err := routes.FromConfig(cfg.Routes)
		if err != nil {
			return fmt.Errorf("failed to build route table: %w", err)
		}

		if cfg.Loader.WatchBuildDir {
			watchLog := logging.Component(logger, "watch")
			w, err := watch.NewWatcher(cfg.Loader.BuildDir, modules, &watchLog)
			if err != nil {
				return fmt.Errorf("failed to create build watcher: %w", err)
			}
			defer w.Stop()
			if err := w.Start(); err != nil {
				logger.Warn().Err(err).Str("dir", cfg.Loader.BuildDir).Msg("build directory not watched")
			}
		}

		if cfg.Loader.Preload {
			go preload(ctx, panels, sources)
		}

		corsOpts := shell.DefaultCORSOptions()
		if len(cfg.CORS.AllowedOrigins) > 0 {
			corsOpts.AllowedOrigins = cfg.CORS.AllowedOrigins
		}

		shellLog := logging.Component(logger, "shell")
		router := shell.NewRouter(shell.Options{
			Registry:      panels,
			Routes:        routeTable,
			Sources:       sources,
			Sessions:      sessions,
			Themes:        themes,
			Store:         store,
			Bus:           bus,
			Title:         cfg.Shell.Title,
			SignInPath:    cfg.Shell.SignInPath,
			HomePath:      cfg.Shell.HomePath,
			CookieName:    cfg.Session.CookieName,
			RenderWait:    cfg.Shell.RenderWait,
			SecureCookies: !cfg.IsDevelopment(),
			CORSOptions:   &corsOpts,
			Metrics:       shellMetrics,
			Logger:        &shellLog,
		})

		srv := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info().
				Str("addr", cfg.ServerAddr).
				Str("mode", cfg.Mode).
				Int("panels", panels.Len()).
				Msg("panelhost listening")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// SIGHUP drops every cached module so the next request refetches.
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)

		for {
			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)

			case sig := <-reload:
				modules.EvictAll()
				logger.Info().Str("signal", sig.String()).Msg("module cache cleared")

			case sig := <-shutdown:
				logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := srv.Shutdown(ctx); err != nil {
					srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}

				logger.Info().Msg("server stopped")
				return nil
			}
		}
	},
}

// preload warms the module cache with every registered panel's module.
func preload(ctx context.Context, panels *registry.Registry, sources registry.Sources) {
	urls := make([]string, 0, panels.Len())
	for _, name := range panels.Names() {
		urls = append(urls, sources.URL(ctx, name))
	}
	if err := sources.Loader.Preload(ctx, urls...); err != nil {
		logger.Warn().Err(err).Msg("preload incomplete")
		return
	}
	logger.Info().Int("modules", len(urls)).Msg("modules preloaded")
}

func init() {
	serveCmd.Flags().String("build-dir", "", "Directory of co-located panel builds (env: PANELHOST_LOADER_BUILD_DIR)")
	serveCmd.Flags().Bool("watch", false, "Evict cached local modules when their build changes (env: PANELHOST_LOADER_WATCH_BUILD_DIR)")
	serveCmd.Flags().Bool("preload", false, "Fetch every panel module at startup (env: PANELHOST_LOADER_PRELOAD)")
	bindFlag("loader.build_dir", serveCmd.Flags().Lookup("build-dir"))
	bindFlag("loader.watch_build_dir", serveCmd.Flags().Lookup("watch"))
	bindFlag("loader.preload", serveCmd.Flags().Lookup("preload"))
}
