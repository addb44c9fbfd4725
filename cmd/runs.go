package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prematch/internal/formatter"
)

type runJSON struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
	Driver   string `json:"driver"`
	Mode     string `json:"mode"`
	Policy   string `json:"policy"`
	GroupID  int64  `json:"group_id,omitempty"`
	Status   string `json:"status"`
	Total    int    `json:"total"`
	Checked  int    `json:"checked"`
	Changed  int    `json:"changed"`
	Missed   int    `json:"missed"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
	Started  string `json:"started_at,omitempty"`
	Finished string `json:"completed_at,omitempty"`
}

// RunsList prints the recorded match runs, newest first.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open()
	if err != nil {
		return err
	}

	runs, err := s.runs.List(map[string]any{
		"driver":   cmd.String("driver"),
		"status":   cmd.String("status"),
		"group_id": cmd.Int64("group"),
		"limit":    cmd.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if !cmd.Bool("json") {
		if len(runs) == 0 {
			return r.writePlain("No runs recorded\n")
		}
		r.writePlainHeader("Match runs")
		formatter.RunsTable(r.output, runs)
		return nil
	}

	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		counts := run.Counts()
		row := runJSON{
			ID:       run.ID(),
			Sequence: run.Sequence(),
			Driver:   run.Driver(),
			Mode:     run.Mode(),
			Policy:   run.Policy(),
			GroupID:  run.GroupID(),
			Status:   string(run.Status()),
			Total:    counts.Total,
			Checked:  counts.Checked,
			Changed:  counts.Changed,
			Missed:   counts.Missed,
			Failed:   counts.Failed,
			Error:    run.ErrorMessage(),
		}
		if t := run.StartedAt(); t != nil {
			row.Started = t.UTC().Format("2006-01-02T15:04:05Z")
		}
		if t := run.CompletedAt(); t != nil {
			row.Finished = t.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, row)
	}
	return r.writeJSON(out, true)
}
