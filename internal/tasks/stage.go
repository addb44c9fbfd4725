package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/shared"
)

// GlobalStageName is the stage argument selecting the post-all-groups stage.
const GlobalStageName = "Stage7b"

// StageTarget is either one group or the global stage.
type StageTarget struct {
	Global  bool
	GroupID int64
}

func (t StageTarget) String() string {
	if t.Global {
		return "global"
	}
	return fmt.Sprintf("group %d", t.GroupID)
}

func (t StageTarget) lockName() string {
	if t.Global {
		return "global.lock"
	}
	return fmt.Sprintf("group-%d.lock", t.GroupID)
}

// ParseStageTarget reads a stage argument: a positive group id, or "Stage7b" / "global" for the global stage.
func ParseStageTarget(arg string) (StageTarget, error) {
	arg = strings.TrimSpace(arg)
	if strings.EqualFold(arg, GlobalStageName) || strings.EqualFold(arg, "global") {
		return StageTarget{Global: true}, nil
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return StageTarget{}, fmt.Errorf("%w: %q is neither a group id nor %s", shared.ErrInvalidStage, arg, GlobalStageName)
	}
	return StageTarget{GroupID: id}, nil
}

// StageResult collects the summaries of the passes run by one stage.
type StageResult struct {
	Target StageTarget
	Passes []*MatchSummary
}

// Changed totals the releases changed by every pass.
func (r *StageResult) Changed() int {
	n := 0
	for _, p := range r.Passes {
		n += p.Changed
	}
	return n
}

// StageRunner runs the matching passes of a per-group or global stage.
//
// A stage holds a lock file for its target while it runs; a second run of the same target fails with
// shared.ErrGroupLocked while other groups proceed.
type StageRunner struct {
	engine   *MatchEngine
	lockDir  string
	cfg      shared.CorrelationConfig
	backfill shared.BackfillConfig
	logger   *log.Logger
}

// NewStageRunner creates a StageRunner keeping its lock files in the configured locks directory.
func NewStageRunner(engine *MatchEngine, cfg *shared.Config, logger *log.Logger) *StageRunner {
	if logger == nil {
		logger = engine.logger
	}
	return &StageRunner{
		engine:   engine,
		lockDir:  cfg.Locks.Dir,
		cfg:      cfg.Correlation,
		backfill: cfg.Backfill,
		logger:   logger,
	}
}

// Plan lists the passes a stage runs, in order.
//
// A group stage backfills the group, then correlates its recent window. The global stage correlates the "other"
// categories, retries every unlinked release and finishes with a backfill.
func (s *StageRunner) Plan(target StageTarget, policy matching.WritePolicy) []Pass {
	backfill := BackfillMode{Policy: policy, Days: s.backfill.Days}

	if !target.Global {
		backfill.GroupID = target.GroupID
		return []Pass{
			backfill,
			CorrelationMode{Window: RecentWindow, Policy: policy, GroupID: target.GroupID, Limit: s.cfg.GroupBatch},
		}
	}
	return []Pass{
		CorrelationMode{Window: CategoryWindow, Policy: policy, Limit: s.cfg.GlobalBatch},
		CorrelationMode{Window: RetryWindow, Policy: policy, Limit: s.cfg.GlobalBatch},
		backfill,
	}
}

// Run executes the stage for target under its lock.
func (s *StageRunner) Run(ctx context.Context, target StageTarget, policy matching.WritePolicy, progress chan<- ProgressUpdate) (*StageResult, error) {
	if err := os.MkdirAll(s.lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(s.lockDir, target.lockName()))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", target, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", shared.ErrGroupLocked, target)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release stage lock", "target", target, "error", err)
		}
	}()

	plan := s.Plan(target, policy)
	result := &StageResult{Target: target}
	sendProgress(progress, stageStartUpdate(target, len(plan)))

	for _, pass := range plan {
		summary, err := pass.run(ctx, s.engine, progress)
		if summary != nil {
			result.Passes = append(result.Passes, summary)
		}
		if err != nil {
			return result, fmt.Errorf("%s stage: %w", target, err)
		}
	}

	s.logger.Info("stage complete", "target", target, "passes", len(result.Passes), "changed", result.Changed())
	sendProgress(progress, stageDoneUpdate(target, result))
	return result, nil
}

// RunGroups runs the stages of several groups with up to workers concurrent stages.
//
// Results are returned in the order of groups. A failed or locked group does not stop the others; its error is
// reported in the returned slice.
func (s *StageRunner) RunGroups(ctx context.Context, groups []int64, workers int, policy matching.WritePolicy, progress chan<- ProgressUpdate) ([]*StageResult, []error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(groups) {
		workers = len(groups)
	}

	results := make([]*StageResult, len(groups))
	errs := make([]error, len(groups))
	jobs := make(chan int, len(groups))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				results[i], errs[i] = s.Run(ctx, StageTarget{GroupID: groups[i]}, policy, progress)
			}
		}()
	}

	for i := range groups {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, errs
}
