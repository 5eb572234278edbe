package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/atelier-ml/atelier/internal/catalog"
	"github.com/atelier-ml/atelier/internal/config"
	"github.com/atelier-ml/atelier/internal/selection"
)

// Run drives the interactive installer until the user applies or quits. It
// returns the request chosen on exit, if any, and whether the session was
// cancelled. The caller is expected to run the returned request after the
// terminal has been restored.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, cat *catalog.Catalog, repo InstalledLister, runner Runner, precision string) (*selection.InstallRequest, bool, error) {
	m, err := New(ctx, cfg, logger, cat, repo, runner, precision)
	if err != nil {
		return nil, false, err
	}

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return nil, false, fmt.Errorf("failed to run installer UI: %w", err)
	}

	result, ok := final.(*Model)
	if !ok {
		return nil, false, fmt.Errorf("unexpected final model type %T", final)
	}

	req, cancelled := result.Result()
	return req, cancelled, nil
}
