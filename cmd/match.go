package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prematch/internal/formatter"
	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/tasks"
)

func policyOf(cmd *cli.Command) matching.WritePolicy {
	if cmd.Bool("apply") {
		return matching.Apply
	}
	return matching.DryPreview
}

// MatchCorrelate runs one hash correlation pass over the selected window.
func (r *Runner) MatchCorrelate(ctx context.Context, cmd *cli.Command) error {
	window, err := tasks.ParseWindow(cmd.String("window"))
	if err != nil {
		return err
	}

	s, err := r.open()
	if err != nil {
		return err
	}

	mode := tasks.CorrelationMode{
		Window:  window,
		Policy:  policyOf(cmd),
		GroupID: cmd.Int64("group"),
		Limit:   cmd.Int("limit"),
	}
	if mode.GroupID > 0 && window != tasks.RecentWindow {
		r.logger.Warn("--group only applies to the recent window", "window", window)
	}

	progress, wait := r.watchProgress()
	summary, err := s.engine.Correlate(ctx, mode, progress)
	wait()
	if err != nil {
		return err
	}

	return r.writeSummaries(cmd.Bool("json"), summary)
}

// MatchBackfill runs one direct title pass.
func (r *Runner) MatchBackfill(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open()
	if err != nil {
		return err
	}

	mode := tasks.BackfillMode{
		Policy:  policyOf(cmd),
		Days:    cmd.Int("days"),
		GroupID: cmd.Int64("group"),
		Limit:   cmd.Int("limit"),
	}

	progress, wait := r.watchProgress()
	summary, err := s.engine.Backfill(ctx, mode, progress)
	wait()
	if err != nil {
		return err
	}

	return r.writeSummaries(cmd.Bool("json"), summary)
}

func (r *Runner) writeSummaries(asJSON bool, summaries ...*tasks.MatchSummary) error {
	if asJSON {
		return r.writeJSON(summaries, true)
	}
	formatter.SummaryTable(r.output, summaries...)
	return nil
}
