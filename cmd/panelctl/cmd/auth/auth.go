package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/config"
	"github.com/report-zone/mfe-demo-sub000/pkg/sdk"
)

// AuthCmd is the parent command for session operations
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in to and out of the host",
}

func init() {
	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(logoutCmd)
	AuthCmd.AddCommand(statusCmd)
	AuthCmd.AddCommand(signUpCmd)
	AuthCmd.AddCommand(confirmCmd)
	AuthCmd.AddCommand(resetCmd)
}

// stdinLines returns a line scanner over in when secrets come from stdin.
func stdinLines(in io.Reader, fromStdin bool) *bufio.Scanner {
	if !fromStdin {
		return nil
	}
	return bufio.NewScanner(in)
}

// readSecret reads the next line of scanner, or prompts when scanner is nil.
func readSecret(ctx context.Context, scanner *bufio.Scanner, prompt string) (string, error) {
	if scanner != nil {
		if scanner.Scan() {
			return strings.TrimSpace(scanner.Text()), nil
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(prompt), err)
		}
		return "", fmt.Errorf("%s is required", strings.ToLower(prompt))
	}
	if config.MustFromContext(ctx).NonInteractive {
		return "", fmt.Errorf("%s is required (use --stdin in non-interactive mode)", strings.ToLower(prompt))
	}
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show(prompt)
}

func printSession(s *sdk.Session) {
	if s == nil {
		return
	}
	if !s.IsAuthenticated() {
		pterm.Info.Printfln("Not signed in (%s)", s.State)
		return
	}
	pterm.Info.Printfln("Signed in as %s", s.User.Username)
	if s.User.Email != "" {
		pterm.Info.Printfln("Email: %s", s.User.Email)
	}
	pterm.Info.Printfln("Groups: %s", strings.Join(s.User.Groups, ", "))
	if s.Elevated {
		pterm.Info.Println("Elevated privileges")
	}
}
