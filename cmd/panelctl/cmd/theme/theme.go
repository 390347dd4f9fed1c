package theme

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/config"
	"github.com/report-zone/mfe-demo-sub000/pkg/sdk"
)

// ThemeCmd is the parent command for theme operations
var ThemeCmd = &cobra.Command{
	Use:   "theme",
	Short: "List, select and manage themes",
}

func init() {
	ThemeCmd.AddCommand(listCmd)
	ThemeCmd.AddCommand(selectCmd)
	ThemeCmd.AddCommand(applyCmd)
	ThemeCmd.AddCommand(exportCmd)
	ThemeCmd.AddCommand(deleteCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and custom themes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		themes, err := c.Themes(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list themes: %w", err)
		}

		table := pterm.TableData{{"", "ID", "NAME", "MODE", "PRIMARY", "BACKGROUND"}}
		for _, t := range themes.Definitions {
			marker := ""
			if t.ID == themes.Current {
				marker = "*"
			}
			table = append(table, []string{marker, t.ID, t.Name, t.Palette.Mode, t.Palette.Primary, t.Palette.Background})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(table).Render()
	},
}

var selectCmd = &cobra.Command{
	Use:   "select ID",
	Short: "Select a theme for every panel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		t, err := c.SelectTheme(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to select theme: %w", err)
		}
		pterm.Success.Printfln("Theme %s (%s) selected", t.ID, t.Name)
		return nil
	},
}

var applySelect bool

var applyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Create or replace a custom theme from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read theme file: %w", err)
		}
		var t sdk.Theme
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("failed to parse theme file: %w", err)
		}

		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		saved, err := c.SaveTheme(cmd.Context(), t)
		if err != nil {
			return fmt.Errorf("failed to save theme: %w", err)
		}
		pterm.Success.Printfln("Theme %s saved", saved.ID)

		if applySelect {
			if _, err := c.SelectTheme(cmd.Context(), saved.ID); err != nil {
				return fmt.Errorf("failed to select theme: %w", err)
			}
			pterm.Success.Printfln("Theme %s selected", saved.ID)
		}
		return nil
	},
}

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export ID",
	Short: "Write a theme definition to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := config.Client(ctx)
		if err != nil {
			return err
		}
		themes, err := c.Themes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list themes: %w", err)
		}

		var found *sdk.Theme
		for i := range themes.Definitions {
			if themes.Definitions[i].ID == args[0] {
				found = &themes.Definitions[i]
				break
			}
		}
		if found == nil {
			return fmt.Errorf("theme %q not found", args[0])
		}

		data, err := json.MarshalIndent(found, "", "  ")
		if err != nil {
			return err
		}
		filename := found.ID + ".theme.json"
		if err := os.WriteFile(filepath.Join(exportDir, filename), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write theme file: %w", err)
		}

		existed, err := c.RecordThemeDownload(ctx, filename)
		if err != nil {
			pterm.Warning.Printfln("Export not recorded: %v", err)
		} else if existed {
			pterm.Info.Printfln("%s was exported before and has been overwritten", filename)
		}
		pterm.Success.Printfln("Theme %s written to %s", found.ID, filepath.Join(exportDir, filename))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a custom theme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Client(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.DeleteTheme(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete theme: %w", err)
		}
		pterm.Success.Printfln("Theme %s deleted", args[0])
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applySelect, "select", false, "Select the theme after saving it")
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "Directory to write the theme file to")
}
