package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/internal/environment"
	"github.com/report-zone/mfe-demo-sub000/internal/routes"
)

var hostFlag string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Inspect the route table and panel origins",
}

var routesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List route rules in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := routes.FromConfig(cfg.Routes)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tRULE\tACCESS")
		for i, rule := range table.Rules() {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, rule, rule.Access)
		}
		return tw.Flush()
	},
}

var routesResolveCmd = &cobra.Command{
	Use:   "resolve PATH",
	Short: "Show the panel and module origin a path resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := routes.FromConfig(cfg.Routes)
		if err != nil {
			return err
		}

		rule, ok := table.Match(args[0])
		if !ok {
			cmd.Printf("%s -> %s\n", args[0], routes.Unknown)
			if suggestion, ok := table.Suggest(args[0]); ok {
				cmd.Printf("  did you mean %s?\n", suggestion)
			}
			return nil
		}

		ctx := context.Background()
		if hostFlag != "" {
			ctx = environment.WithHostname(ctx, hostFlag)
		}
		target := environment.FromConfig(cfg).Resolve(ctx, rule.Panel)

		cmd.Printf("%s -> %s\n", args[0], rule.Panel)
		cmd.Printf("  rule:   %s\n", rule)
		cmd.Printf("  access: %s\n", rule.Access)
		cmd.Printf("  origin: %s\n", target.Kind)
		if target.URL != "" {
			cmd.Printf("  module: %s\n", target.URL)
		}
		return nil
	},
}

func init() {
	routesResolveCmd.Flags().StringVar(&hostFlag, "host", "", "Request hostname used for the origin decision")

	routesCmd.AddCommand(routesListCmd)
	routesCmd.AddCommand(routesResolveCmd)
}
