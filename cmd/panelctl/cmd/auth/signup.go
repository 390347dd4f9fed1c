package auth

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/config"
	"github.com/report-zone/mfe-demo-sub000/pkg/sdk"
)

var (
	signUpEmail string
	accountName string
	secretStdin bool
)

var signUpCmd = &cobra.Command{
	Use:   "sign-up",
	Short: "Register a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if accountName == "" || signUpEmail == "" {
			return fmt.Errorf("--username and --email flags are required")
		}
		c, err := config.Client(ctx)
		if err != nil {
			return err
		}
		password, err := readSecret(ctx, stdinLines(cmd.InOrStdin(), secretStdin), "Password")
		if err != nil {
			return err
		}
		if err := c.SignUp(ctx, sdk.SignUpInput{Username: accountName, Email: signUpEmail, Password: password}); err != nil {
			return fmt.Errorf("sign up failed: %w", err)
		}
		pterm.Success.Printfln("Account %s created", accountName)
		pterm.Info.Println("Confirm it with the code sent to your email: panelctl auth confirm --username " + accountName + " CODE")
		return nil
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm CODE",
	Short: "Confirm a new account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if accountName == "" {
			return fmt.Errorf("--username flag is required")
		}
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.ConfirmSignUp(cmd.Context(), accountName, args[0]); err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		pterm.Success.Printfln("Account %s confirmed", accountName)
		return nil
	},
}

var resetCode string

var resetCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Request a reset code, or set a new password with --code",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if accountName == "" {
			return fmt.Errorf("--username flag is required")
		}
		c, err := config.Client(ctx)
		if err != nil {
			return err
		}

		if resetCode == "" {
			if err := c.ResetPassword(ctx, accountName); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			pterm.Success.Println("Reset code sent")
			return nil
		}

		password, err := readSecret(ctx, stdinLines(cmd.InOrStdin(), secretStdin), "New password")
		if err != nil {
			return err
		}
		if err := c.ConfirmResetPassword(ctx, accountName, resetCode, password); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		pterm.Success.Println("Password updated")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{signUpCmd, confirmCmd, resetCmd} {
		c.Flags().StringVar(&accountName, "username", "", "Account username")
	}
	signUpCmd.Flags().StringVar(&signUpEmail, "email", "", "Email address of the account")
	signUpCmd.Flags().BoolVar(&secretStdin, "stdin", false, "Read the password from stdin")
	resetCmd.Flags().StringVar(&resetCode, "code", "", "Reset code received by email")
	resetCmd.Flags().BoolVar(&secretStdin, "stdin", false, "Read the new password from stdin")
}
