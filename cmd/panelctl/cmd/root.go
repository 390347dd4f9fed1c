package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/cmd/auth"
	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/cmd/channel"
	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/cmd/panels"
	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/cmd/theme"
	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/client"
	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/config"
)

var (
	serverURL      string
	sessionDir     string
	nonInteractive bool
	provider       *client.Provider
)

var rootCmd = &cobra.Command{
	Use:   "panelctl",
	Short: "panelctl - panel host client",
	Long: `panelctl is the command-line client of a panelhost instance. Use it to sign in,
switch and manage themes, read and write the shared store, tail bus events and
manage the panel module cache.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("PANELCTL_NON_INTERACTIVE") == "1" {
			nonInteractive = true
		}
		if v := os.Getenv("PANELCTL_SERVER"); v != "" && !cmd.Flags().Changed("server") {
			serverURL = v
		}

		provider = client.NewProvider(serverURL, sessionDir)
		cmd.SetContext(config.InjectConfig(cmd.Context(), &config.GlobalConfig{
			ServerURL:      serverURL,
			NonInteractive: nonInteractive,
			ClientProvider: provider,
		}))
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if provider == nil {
			return nil
		}
		if err := provider.Persist(); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:4000", "panelhost URL (env: PANELCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&sessionDir, "session-dir", "", "Directory of saved sessions (default ~/.panelhost)")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Disable interactive prompts (also set via PANELCTL_NON_INTERACTIVE=1)")

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(theme.ThemeCmd)
	rootCmd.AddCommand(channel.StoreCmd)
	rootCmd.AddCommand(channel.SharedCmd)
	rootCmd.AddCommand(channel.EventsCmd)
	rootCmd.AddCommand(panels.PanelsCmd)
}
