package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/ui"
	"github.com/urfave/cli/v3"
)

// UI launches the interactive terminal backup browser.
func (r *Runner) UI(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.requireUser(ctx)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/replay-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, controller.Engine(), controller.Snapshots())
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
