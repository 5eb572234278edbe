package cmd

import (
	"fmt"

	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/registry"
	"github.com/atelier-ml/atelier/pkg/logger"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Cmd = &cobra.Command{
	Use:   "list",
	Short: "List installed models",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.GetConfig()
		log := logger.MustNewLogger(cfg)
		defer log.Sync()

		db, err := registry.NewDB(cmd.Context(), cfg.DBFile, false)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close registry", zap.Error(err))
			}
		}()

		models, err := registry.NewModelRepository(db).All(cmd.Context())
		if err != nil {
			return err
		}

		if len(models) == 0 {
			fmt.Println("No models installed")
			return nil
		}

		category := ""
		for _, model := range models {
			if model.Category != category {
				category = model.Category
				fmt.Printf("\n%s:\n", category)
			}

			line := "  " + model.Name
			if model.SizeBytes > 0 {
				line += fmt.Sprintf(" (%s)", humanize.IBytes(uint64(model.SizeBytes)))
			}
			fmt.Println(line)
		}

		return nil
	},
}
