package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/shared"
	"github.com/desertthunder/prematch/internal/tasks"
)

// Stage runs the per-group stage for every group id argument, or the global stage for "Stage7b".
//
// A group that is already being processed elsewhere is skipped with a warning. Other failures are returned
// together once every group has finished.
func (r *Runner) Stage(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("%w: group id or %s", shared.ErrMissingArgument, tasks.GlobalStageName)
	}

	var (
		global bool
		groups []int64
	)
	for _, arg := range args {
		target, err := tasks.ParseStageTarget(arg)
		if err != nil {
			return err
		}
		if target.Global {
			global = true
			continue
		}
		groups = append(groups, target.GroupID)
	}
	if global && len(groups) > 0 {
		return fmt.Errorf("%w: %s cannot be combined with group ids", shared.ErrInvalidStage, tasks.GlobalStageName)
	}

	s, err := r.open()
	if err != nil {
		return err
	}

	policy := policyOf(cmd)
	progress, wait := r.watchProgress()

	var (
		results []*tasks.StageResult
		errs    []error
	)
	if global {
		result, err := s.stages.Run(ctx, tasks.StageTarget{Global: true}, policy, progress)
		results, errs = []*tasks.StageResult{result}, []error{err}
	} else {
		results, errs = s.stages.RunGroups(ctx, groups, cmd.Int("workers"), policy, progress)
	}
	wait()

	var (
		summaries []*tasks.MatchSummary
		changed   int
	)
	for _, result := range results {
		if result != nil {
			summaries = append(summaries, result.Passes...)
			changed += result.Changed()
		}
	}
	if len(summaries) > 0 {
		if err := r.writeSummaries(false, summaries...); err != nil {
			return err
		}
		verb := "would change"
		if policy == matching.Apply {
			verb = "changed"
		}
		r.writePlainln("%d releases %s", changed, verb)
	}

	var failed []error
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, shared.ErrGroupLocked):
			r.logger.Warn("skipped", "reason", err)
		default:
			failed = append(failed, err)
		}
	}
	return errors.Join(failed...)
}
