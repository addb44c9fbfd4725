package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/shared"
	"github.com/desertthunder/prematch/internal/tasks"
	"github.com/desertthunder/prematch/internal/ui"
)

// TUI launches the interactive terminal UI for browsing the PreDB and running the global stage.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/prematch-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	s, err := r.open()
	if err != nil {
		return err
	}

	run := func(ctx context.Context, policy matching.WritePolicy, progress chan<- tasks.ProgressUpdate) ([]*tasks.MatchSummary, error) {
		result, err := s.stages.Run(ctx, tasks.StageTarget{Global: true}, policy, progress)
		if result == nil {
			return nil, err
		}
		return result.Passes, err
	}

	model := ui.NewModel(ctx, s.predb, run)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
