package cmd

import (
	"os"

	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/orchestrator"

	"github.com/spf13/cobra"
)

// Cmd is the hidden entry point the orchestrator spawns. It reads one
// install request from stdin, applies it, and streams log frames to stdout.
var Cmd = &cobra.Command{
	Use:    orchestrator.WorkerCommand,
	Hidden: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return orchestrator.RunWorker(cmd.Context(), config.GetConfig(), os.Stdin, os.Stdout)
	},
}
