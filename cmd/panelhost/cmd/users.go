package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/internal/auth"
	"github.com/report-zone/mfe-demo-sub000/internal/db/bunx"
	"github.com/report-zone/mfe-demo-sub000/internal/repository"
	"github.com/report-zone/mfe-demo-sub000/internal/session"
)

var (
	emailFlag      string
	usernameFlag   string
	passwordFlag   string
	groupsInput    []string
	stdinFlag      bool
	mustRotateFlag bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage local accounts",
	Long:  `Commands for managing accounts of the local session provider directly from the server.`,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a confirmed local account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		if usernameFlag == "" {
			return fmt.Errorf("--username flag is required")
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		ctx := context.Background()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		provider, err := newProvider(db)
		if err != nil {
			return err
		}

		user, err := provider.CreateUser(ctx, auth.CreateUserInput{
			Username:   usernameFlag,
			Email:      emailFlag,
			Password:   password,
			Groups:     groupsInput,
			MustRotate: mustRotateFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %s", session.UserMessage(err))
		}

		cmd.Printf("Created user %s (%s)\n", user.Username, user.ID)
		cmd.Printf("  Groups: %s\n", strings.Join(user.Groups, ", "))
		if user.MustRotate {
			cmd.Println("  A new password is required at first sign-in")
		}
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		users, err := repository.NewBunUserRepository(db).List(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "USERNAME\tEMAIL\tGROUPS\tSTATUS")
		for _, u := range users {
			status := "active"
			switch {
			case u.Disabled():
				status = "disabled"
			case !u.Confirmed():
				status = "unconfirmed"
			case u.MustRotate:
				status = "rotation required"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Username, u.Email, strings.Join(u.Groups, ","), status)
		}
		return tw.Flush()
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")
	usersCreateCmd.Flags().StringVar(&usernameFlag, "username", "", "Username of the user")
	usersCreateCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the user (use --stdin to avoid shell history)")
	usersCreateCmd.Flags().StringSliceVar(&groupsInput, "group", []string{}, "Group(s) to assign, defaults to users")
	usersCreateCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")
	usersCreateCmd.Flags().BoolVar(&mustRotateFlag, "must-rotate", false, "Require a new password at first sign-in")

	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersListCmd)
}
