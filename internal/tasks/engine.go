package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/metrics"
	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/repositories"
	"github.com/desertthunder/prematch/internal/shared"
)

const (
	DriverCorrelate = "correlate"
	DriverBackfill  = "backfill"
)

// ReleaseStore is the release access both drivers need.
//
// Stream callbacks may write through the same store while the stream is open.
type ReleaseStore interface {
	matching.ReleaseWriter
	CountHashCandidates(ctx context.Context, sel repositories.HashSelection) (int, error)
	EachHashCandidate(ctx context.Context, sel repositories.HashSelection, fn func(models.HashCandidate) error) error
	CountUnmatched(ctx context.Context, sel repositories.UnmatchedSelection) (int, error)
	EachUnmatched(ctx context.Context, sel repositories.UnmatchedSelection, fn func(models.UnmatchedRelease) error) error
	SetPreDBID(ctx context.Context, releaseID, predbID int64) (bool, error)
}

// MatchSummary is the result of one driver run.
type MatchSummary struct {
	models.RunCounts
	RunID   string
	Driver  string
	Mode    string
	Policy  matching.WritePolicy
	Elapsed time.Duration
}

// EngineDeps holds the collaborators of a [MatchEngine]. Runs, Categorizer, Metrics and Logger are optional.
type EngineDeps struct {
	PreDB       matching.PreDBLookup
	Releases    ReleaseStore
	Runs        models.Repository[*models.MatchRun]
	Categorizer matching.Categorizer
	Metrics     *metrics.MatchMetrics
	Logger      *log.Logger
}

// MatchEngine runs the hash correlation and direct title drivers.
//
// Each run processes one row at a time from a streaming cursor and returns its own [MatchSummary].
type MatchEngine struct {
	releases  ReleaseStore
	runs      models.Repository[*models.MatchRun]
	extractor *matching.Extractor
	hashes    *matching.HashMatcher
	titles    *matching.TitleMatcher
	cfg       shared.CorrelationConfig
	metrics   *metrics.MatchMetrics
	logger    *log.Logger
	now       func() time.Time
}

// NewMatchEngine creates a MatchEngine from deps and the correlation settings.
func NewMatchEngine(deps EngineDeps, cfg shared.CorrelationConfig) *MatchEngine {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &MatchEngine{
		releases:  deps.Releases,
		runs:      deps.Runs,
		extractor: matching.NewExtractor(),
		hashes:    matching.NewHashMatcher(deps.PreDB, deps.Releases, deps.Categorizer, cfg.RetryFloor),
		titles:    matching.NewTitleMatcher(deps.PreDB),
		cfg:       cfg,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for time windows.
func (e *MatchEngine) WithClock(now func() time.Time) *MatchEngine {
	e.now = now
	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full, skip this update
	}
}

// fatal reports whether err must abort the run.
func fatal(err error) bool {
	return errors.Is(err, shared.ErrStoreUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// runRecorder tracks the history row of one run. Recording failures are logged, never returned.
type runRecorder struct {
	engine  *MatchEngine
	run     *models.MatchRun
	started time.Time
}

func (e *MatchEngine) startRun(driver, mode string, policy matching.WritePolicy, groupID int64) *runRecorder {
	rec := &runRecorder{engine: e, started: time.Now()}
	if e.runs == nil {
		return rec
	}

	run := models.NewMatchRun(driver, mode, policy.String(), groupID)
	if err := e.runs.Create(run); err != nil {
		e.logger.Warn("failed to record run", "driver", driver, "error", err)
		return rec
	}
	rec.run = run
	return rec
}

func (r *runRecorder) finish(summary *MatchSummary, runErr error) {
	summary.Elapsed = time.Since(r.started)

	status := models.RunCompleted
	if runErr != nil {
		status = models.RunFailed
	}
	r.engine.metrics.RecordRun(summary.Driver, summary.Mode, string(status), summary.Changed, summary.Elapsed)

	if r.run == nil {
		return
	}
	summary.RunID = r.run.ID()
	if runErr != nil {
		r.run.Fail(summary.RunCounts, runErr)
	} else {
		r.run.Complete(summary.RunCounts)
	}
	if err := r.engine.runs.Update(r.run); err != nil {
		r.engine.logger.Warn("failed to update run", "run", r.run.ID(), "error", err)
	}
}

// Correlate runs one hash correlation pass.
//
// Rows without a digest are counted as checked and left untouched. Once a hash lookup was made for a release, its
// remaining file rows are skipped. Store failures abort the run; any other row error is logged and counted as failed.
func (e *MatchEngine) Correlate(ctx context.Context, mode CorrelationMode, progress chan<- ProgressUpdate) (*MatchSummary, error) {
	summary := &MatchSummary{Driver: DriverCorrelate, Mode: mode.String(), Policy: mode.Policy}
	logger := e.logger.With("driver", DriverCorrelate, "mode", summary.Mode, "policy", mode.Policy)
	rec := e.startRun(DriverCorrelate, summary.Mode, mode.Policy, mode.GroupID)

	err := e.correlate(ctx, mode, summary, logger, progress)
	rec.finish(summary, err)
	if err != nil {
		logger.Error("correlation aborted", "checked", summary.Checked, "error", err)
		return summary, fmt.Errorf("correlate %s: %w", summary.Mode, err)
	}

	logger.Info("correlation complete",
		"total", summary.Total, "checked", summary.Checked, "changed", summary.Changed,
		"missed", summary.Missed, "failed", summary.Failed, "elapsed", summary.Elapsed)
	sendProgress(progress, summaryUpdate(Correlate, summary))
	return summary, nil
}

func (e *MatchEngine) correlate(
	ctx context.Context,
	mode CorrelationMode,
	summary *MatchSummary,
	logger *log.Logger,
	progress chan<- ProgressUpdate,
) error {
	sel := mode.selection(e.cfg, e.now())

	total, err := e.releases.CountHashCandidates(ctx, sel)
	if err != nil {
		return err
	}
	summary.Total = total
	sendProgress(progress, countUpdate(Correlate, summary.Mode, total))
	if total == 0 {
		return nil
	}

	var (
		visited       int
		lastAttempted int64
	)
	return e.releases.EachHashCandidate(ctx, sel, func(c models.HashCandidate) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		visited++
		sendProgress(progress, rowUpdate(Correlate, visited, total, c.Name))

		if c.ReleaseID == lastAttempted {
			return nil
		}
		summary.Checked++
		e.metrics.RecordChecked(DriverCorrelate)

		hash, source, ok := e.extractor.Extract(c)
		if !ok {
			return nil
		}
		lastAttempted = c.ReleaseID

		result, err := e.hashes.Match(ctx, hash, c, mode.Policy)
		if err != nil {
			if fatal(err) {
				return err
			}
			summary.Failed++
			logger.Warn("hash match failed", "release", c.ReleaseID, "hash", hash, "error", err)
			return nil
		}

		e.metrics.RecordAttempt(string(matching.MethodHash), result.Outcome.String())
		if result.Outcome == matching.OutcomeMissed {
			summary.Missed++
		}
		summary.Changed += result.ChangedCount()

		logger.Debug("hash attempt",
			"release", c.ReleaseID, "source", source, "hash", hash,
			"outcome", result.Outcome, "predb", result.PreDBID, "changed", result.Changed)
		return nil
	})
}

// Backfill runs one direct title pass over releases without a PreDB link.
//
// A match only sets the link; the release keeps its searchname.
func (e *MatchEngine) Backfill(ctx context.Context, mode BackfillMode, progress chan<- ProgressUpdate) (*MatchSummary, error) {
	summary := &MatchSummary{Driver: DriverBackfill, Mode: mode.String(), Policy: mode.Policy}
	logger := e.logger.With("driver", DriverBackfill, "mode", summary.Mode, "policy", mode.Policy)
	rec := e.startRun(DriverBackfill, summary.Mode, mode.Policy, mode.GroupID)

	err := e.backfill(ctx, mode, summary, logger, progress)
	rec.finish(summary, err)
	if err != nil {
		logger.Error("backfill aborted", "checked", summary.Checked, "error", err)
		return summary, fmt.Errorf("backfill %s: %w", summary.Mode, err)
	}

	logger.Info("backfill complete",
		"total", summary.Total, "checked", summary.Checked, "matched", summary.Changed,
		"failed", summary.Failed, "elapsed", summary.Elapsed)
	sendProgress(progress, summaryUpdate(Backfill, summary))
	return summary, nil
}

func (e *MatchEngine) backfill(
	ctx context.Context,
	mode BackfillMode,
	summary *MatchSummary,
	logger *log.Logger,
	progress chan<- ProgressUpdate,
) error {
	sel := mode.selection(e.now())

	total, err := e.releases.CountUnmatched(ctx, sel)
	if err != nil {
		return err
	}
	summary.Total = total
	sendProgress(progress, countUpdate(Backfill, summary.Mode, total))
	if total == 0 {
		return nil
	}

	return e.releases.EachUnmatched(ctx, sel, func(u models.UnmatchedRelease) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary.Checked++
		e.metrics.RecordChecked(DriverBackfill)
		sendProgress(progress, rowUpdate(Backfill, summary.Checked, total, u.SearchName))

		match, err := e.titles.Match(ctx, u.SearchName)
		if err != nil {
			if fatal(err) {
				return err
			}
			summary.Failed++
			logger.Warn("title match failed", "release", u.ID, "error", err)
			return nil
		}
		if match == nil {
			summary.Missed++
			e.metrics.RecordAttempt(string(matching.MethodTitle), matching.OutcomeMissed.String())
			return nil
		}

		changed := true
		if mode.Policy == matching.Apply {
			changed, err = e.releases.SetPreDBID(ctx, u.ID, match.PreDBID)
			if err != nil {
				return err
			}
		}
		if changed {
			summary.Changed++
		}

		e.metrics.RecordAttempt(string(match.Method), matching.OutcomeMatched.String())
		logger.Debug("title match", "release", u.ID, "method", match.Method, "predb", match.PreDBID, "changed", changed)
		return nil
	})
}
