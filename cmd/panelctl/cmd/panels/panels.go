package panels

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/config"
	"github.com/report-zone/mfe-demo-sub000/pkg/sdk"
)

// PanelsCmd is the parent command for panel operations
var PanelsCmd = &cobra.Command{
	Use:   "panels",
	Short: "Inspect registered panels and their module cache",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered panels with their origin and cache state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		panels, err := c.Panels(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list panels: %w", err)
		}

		table := pterm.TableData{{"NAME", "TITLE", "ORDER", "ORIGIN", "STATE", "MODULE"}}
		for _, p := range panels {
			table = append(table, []string{p.Name, p.Title, strconv.Itoa(p.NavOrder), p.Origin, p.State, p.ModuleURL})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

var evictCmd = &cobra.Command{
	Use:   "evict [PANEL]",
	Short: "Drop a panel's cached module, or every module",
	Long:  `Evicts module cache entries so the next request refetches them. Requires an elevated session.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		panel := ""
		if len(args) == 1 {
			panel = args[0]
		}
		res, err := c.Evict(cmd.Context(), panel)
		if err != nil {
			if sdk.IsUnauthorized(err) {
				return fmt.Errorf("sign in first: panelctl auth login")
			}
			return fmt.Errorf("failed to evict: %w", err)
		}
		pterm.Success.Printfln("Evicted %s, %d module(s) still cached", res.Evicted, res.Entries)
		return nil
	},
}

func init() {
	PanelsCmd.AddCommand(listCmd)
	PanelsCmd.AddCommand(evictCmd)
}
