package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatterbox-vr/chatterbox/internal/app"
	"github.com/chatterbox-vr/chatterbox/internal/config"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the available modules and their placeholders",
	Long: `List every data-source module with its example placeholders, ready to
paste into a template.

Examples:
  chatterbox modules              # List all modules
  chatterbox modules --premium    # List only premium modules`,
	RunE: modulesHandler,
}

var modulesPremiumOnly bool

func modulesHandler(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	if err := a.LoadModules(context.Background()); err != nil {
		return err
	}

	for _, m := range a.Registry().Modules() {
		desc := m.Descriptor()
		if modulesPremiumOnly && !desc.Premium {
			continue
		}
		premium := ""
		if desc.Premium {
			premium = " (premium)"
		}
		fmt.Printf("%s%s - %s\n", desc.Name, premium, desc.Description)
		for _, example := range desc.Examples() {
			fmt.Printf("  %-40s %s\n", example.Outer, example.Description)
		}
		fmt.Println()
	}
	return nil
}

func init() {
	modulesCmd.Flags().BoolVar(&modulesPremiumOnly, "premium", false, "Show only premium modules")
	rootCmd.AddCommand(modulesCmd)
}
