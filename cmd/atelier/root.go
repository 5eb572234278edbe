package cmd

import (
	"fmt"
	"os"
	"strings"

	// Subcommands
	initialize "github.com/atelier-ml/atelier/cmd/atelier/initialize"
	install "github.com/atelier-ml/atelier/cmd/atelier/install"
	list "github.com/atelier-ml/atelier/cmd/atelier/list"
	worker "github.com/atelier-ml/atelier/cmd/atelier/worker"
	"github.com/atelier-ml/atelier/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const atelierPrefix = "ATELIER"

var Cmd = &cobra.Command{
	Use:   "atelier",
	Short: "Atelier model manager CLI",
	Long:  "A terminal toolkit for installing and curating Stable Diffusion models from HuggingFace, Civitai and local folders",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Set global viper options
		viper.SetEnvPrefix(atelierPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(
			`-`, `_`, // convert hyphens to underscores
			`.`, `_`, // convert dots to underscores
		))
		viper.AutomaticEnv()

		// Bind all flags from the current command persistent parent flags
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
			return err
		}

		// Load config and env files
		if err := config.LoadEnvAndConfigFiles(); err != nil {
			return err
		}

		return nil
	},
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("atelier-home", "", "Path to the atelier home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	// Bind flags to viper
	viper.BindPFlag("atelier_home", pflags.Lookup("atelier-home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	// Add subcommands
	Cmd.AddCommand(install.Cmd, list.Cmd, initialize.Cmd, worker.Cmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
