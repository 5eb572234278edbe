package cmd

import (
	"fmt"

	"github.com/atelier-ml/atelier/internal/catalog"
	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/templates"

	"github.com/spf13/cobra"
)

// Cmd makes the lazy first-run setup explicit: the home directory and the
// default .env and config.yaml already exist by the time RunE executes, so
// this only adds the editable catalog and reports where everything lives.
var Cmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the atelier home directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.GetConfig()

		force, _ := cmd.Flags().GetBool("force")
		if force {
			if err := templates.WriteConfig(cfg.ConfigFile); err != nil {
				return fmt.Errorf("failed to reset config file: %w", err)
			}
		}

		if err := catalog.WriteDefault(cfg.CatalogFile, force); err != nil {
			return err
		}

		fmt.Printf("Atelier home initialized at %s\n", cfg.AtelierHome)
		fmt.Printf("  config:  %s\n", cfg.ConfigFile)
		fmt.Printf("  catalog: %s\n", cfg.CatalogFile)
		fmt.Printf("  models:  %s\n", cfg.ModelsDir)
		fmt.Printf("  registry: %s\n", cfg.DBFile)

		return nil
	},
}

func init() {
	Cmd.Flags().Bool("force", false, "Overwrite existing config and catalog files with the defaults")
}
