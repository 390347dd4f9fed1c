package auth

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/config"
)

var (
	loginUsername string
	loginStdin    bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a username and password",
	Long: `Signs in to the host. When the account requires a new password the command
prompts for one and completes the rotation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if loginUsername == "" {
			return fmt.Errorf("--username flag is required")
		}
		c, err := config.Client(ctx)
		if err != nil {
			return err
		}

		lines := stdinLines(cmd.InOrStdin(), loginStdin)
		password, err := readSecret(ctx, lines, "Password")
		if err != nil {
			return err
		}
		res, err := c.SignIn(ctx, loginUsername, password)
		if err != nil {
			return fmt.Errorf("sign in failed: %w", err)
		}

		if res.RotationRequired() {
			pterm.Warning.Println("A new password is required before signing in")
			newPassword, err := readSecret(ctx, lines, "New password")
			if err != nil {
				return err
			}
			if res, err = c.CompleteRotation(ctx, newPassword); err != nil {
				return fmt.Errorf("password rotation failed: %w", err)
			}
		}

		pterm.Success.Println("Signed in")
		printSession(res.Session)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := config.Client(ctx)
		if err != nil {
			return err
		}
		config.MustFromContext(ctx).ClientProvider.Forget()
		if err := c.SignOut(ctx); err != nil {
			return fmt.Errorf("sign out failed, saved session forgotten anyway: %w", err)
		}
		pterm.Success.Println("Signed out")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display the session of the saved host session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		s, err := c.Session(cmd.Context())
		if err != nil {
			return err
		}
		pterm.DefaultSection.Println("Session")
		printSession(s)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Username to sign in as")
	loginCmd.Flags().BoolVar(&loginStdin, "stdin", false, "Read the password (and a new password when required) from stdin")
}
