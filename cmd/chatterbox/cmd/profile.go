package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatterbox-vr/chatterbox/internal/app"
	"github.com/chatterbox-vr/chatterbox/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Export or import module configuration profiles",
	Long: `Export or import the full module configuration as a JSON profile.

Exported profiles mask secret inputs (auth tokens) with their defaults, so a
profile is always safe to share.

Examples:
  chatterbox profile export > my-profile.json
  chatterbox profile import my-profile.json`,
}

var profileExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current module configuration to stdout as JSON",
	RunE:  profileExportHandler,
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore module configuration from a JSON profile",
	Args:  cobra.ExactArgs(1),
	RunE:  profileImportHandler,
}

func loadedApp() (*app.App, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := a.LoadModules(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

func profileExportHandler(cmd *cobra.Command, args []string) error {
	a, err := loadedApp()
	if err != nil {
		return err
	}

	values := a.Registry().AllInputValues(false)
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(values)
}

func profileImportHandler(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	var values map[string]map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse profile: %w", err)
	}

	a, err := loadedApp()
	if err != nil {
		return err
	}
	if err := a.Registry().SetAllInputValues(values); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported profile for %d modules\n", len(values))
	return nil
}

func init() {
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileImportCmd)
	rootCmd.AddCommand(profileCmd)
}
