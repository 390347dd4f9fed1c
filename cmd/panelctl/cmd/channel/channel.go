package channel

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/config"
	"github.com/report-zone/mfe-demo-sub000/pkg/sdk"
)

// StoreCmd is the parent command for the persistent store
var StoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Read and write the host's persistent key/value store",
}

var storeGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print a stored value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		value, ok, err := c.GetValue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q is not set", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var storeSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.SetValue(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		pterm.Success.Printfln("%s set", args[0])
		return nil
	},
}

var storeRemoveCmd = &cobra.Command{
	Use:   "rm KEY",
	Short: "Remove a stored value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.RemoveValue(cmd.Context(), args[0]); err != nil {
			return err
		}
		pterm.Success.Printfln("%s removed", args[0])
		return nil
	},
}

// SharedCmd is the parent command for session-scoped shared data
var SharedCmd = &cobra.Command{
	Use:   "shared",
	Short: "Inspect and change the session's shared data",
}

var sharedListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every shared value as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		snapshot, err := c.Shared(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, snapshot)
	},
}

var sharedGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one shared value as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		var value json.RawMessage
		ok, err := c.GetShared(cmd.Context(), args[0], &value)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q is not set", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(value))
		return nil
	},
}

var sharedSetCmd = &cobra.Command{
	Use:   "set KEY JSON",
	Short: "Set a shared value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("value must be a JSON document")
		}
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		return c.SetShared(cmd.Context(), args[0], json.RawMessage(args[1]))
	},
}

var sharedRemoveCmd = &cobra.Command{
	Use:   "rm KEY",
	Short: "Remove a shared value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		return c.DeleteShared(cmd.Context(), args[0])
	},
}

var sharedClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every shared value",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		return c.ClearShared(cmd.Context())
	},
}

// EventsCmd is the parent command for the host bus
var EventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Publish to and tail the host bus",
}

var tailShared bool

var eventsTailCmd = &cobra.Command{
	Use:   "tail [TOPIC...]",
	Short: "Print bus events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := config.Client(ctx)
		if err != nil {
			return err
		}

		var sub *sdk.Subscription
		if tailShared {
			sub, err = c.SubscribeShared(ctx)
		} else {
			sub, err = c.Subscribe(ctx, args...)
		}
		if err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		defer sub.Close()

		pterm.Info.Println("Waiting for events, press Ctrl+C to stop")
		for ev := range sub.Events {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ev.PublishedAt.Format("15:04:05"), ev.Topic, ev.Payload)
		}
		return sub.Err()
	},
}

var eventsPublishCmd = &cobra.Command{
	Use:   "publish TOPIC JSON",
	Short: "Publish a JSON payload on a topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("payload must be a JSON document")
		}
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.Publish(cmd.Context(), args[0], json.RawMessage(args[1])); err != nil {
			return err
		}
		pterm.Success.Printfln("Published on %s", args[0])
		return nil
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	StoreCmd.AddCommand(storeGetCmd)
	StoreCmd.AddCommand(storeSetCmd)
	StoreCmd.AddCommand(storeRemoveCmd)

	SharedCmd.AddCommand(sharedListCmd)
	SharedCmd.AddCommand(sharedGetCmd)
	SharedCmd.AddCommand(sharedSetCmd)
	SharedCmd.AddCommand(sharedRemoveCmd)
	SharedCmd.AddCommand(sharedClearCmd)

	eventsTailCmd.Flags().BoolVar(&tailShared, "shared", false, "Tail the session's shared:changed events instead")
	EventsCmd.AddCommand(eventsTailCmd)
	EventsCmd.AddCommand(eventsPublishCmd)
}
