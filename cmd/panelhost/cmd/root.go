package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/report-zone/mfe-demo-sub000/internal/config"
	"github.com/report-zone/mfe-demo-sub000/internal/logging"
)

var (
	cfgFile  string
	envFiles []string
	cfg      *config.Config
	logger   zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "panelhost",
	Short: "Runtime panel composition host",
	Long: `panelhost serves the host shell that composes independently deployed
panels at request time. It resolves each panel's origin, loads its module
through a shared cache, guards routes by session and broadcasts theme and
shared-state changes to every panel.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFiles(envFiles...); err != nil {
			return err
		}
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := cfg.LogLevel
		if cfg.Debug {
			level = "debug"
		}
		logger = logging.Init("panelhost", logging.Options{Level: level, Console: cfg.LogConsole})
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	flags.StringSliceVar(&envFiles, "env-file", nil, "Dotenv file(s) to export before loading config (default .env when present)")
	flags.String("db-url", "", "Database connection URL (env: PANELHOST_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: PANELHOST_SERVER_ADDR)")
	flags.String("mode", "", "Build mode, development or production (env: PANELHOST_MODE)")
	flags.String("log-level", "", "Log level (env: PANELHOST_LOG_LEVEL)")
	flags.Bool("log-console", false, "Human readable log output (env: PANELHOST_LOG_CONSOLE)")
	flags.Bool("debug", false, "Enable debug logging (env: PANELHOST_DEBUG)")

	bindFlag("database_url", flags.Lookup("db-url"))
	bindFlag("server_addr", flags.Lookup("server-addr"))
	bindFlag("mode", flags.Lookup("mode"))
	bindFlag("log_level", flags.Lookup("log-level"))
	bindFlag("log_console", flags.Lookup("log-console"))
	bindFlag("debug", flags.Lookup("debug"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(routesCmd)
}

// bindFlag lets an explicitly set flag override the config key.
func bindFlag(key string, f *pflag.Flag) {
	_ = viper.BindPFlag(key, f)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
