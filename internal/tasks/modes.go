package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/prematch/internal/matching"
	"github.com/desertthunder/prematch/internal/repositories"
	"github.com/desertthunder/prematch/internal/shared"
)

// Pass is one driver run of a stage: a [CorrelationMode] or a [BackfillMode].
type Pass interface {
	String() string
	run(ctx context.Context, e *MatchEngine, progress chan<- ProgressUpdate) (*MatchSummary, error)
}

// Window selects which releases a correlation pass visits.
type Window int

const (
	// RecentWindow visits unrenamed releases added within the configured recent window,
	// optionally limited to one group.
	RecentWindow Window = iota
	// CategoryWindow visits unrenamed releases in the configured "other" categories.
	CategoryWindow
	// RetryWindow visits every release that is still unlinked, renamed or not.
	RetryWindow
)

func (w Window) String() string {
	switch w {
	case RecentWindow:
		return "recent"
	case CategoryWindow:
		return "category"
	case RetryWindow:
		return "retry"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// ParseWindow accepts "recent", "category" or "retry".
func ParseWindow(v string) (Window, error) {
	for _, w := range []Window{RecentWindow, CategoryWindow, RetryWindow} {
		if strings.EqualFold(strings.TrimSpace(v), w.String()) {
			return w, nil
		}
	}
	return RecentWindow, fmt.Errorf("%w: unknown window %q", shared.ErrInvalidArgument, v)
}

// CorrelationMode fully describes one hash correlation pass.
type CorrelationMode struct {
	Window  Window
	Policy  matching.WritePolicy
	GroupID int64 // restricts RecentWindow to one group; ignored by the other windows
	Limit   int   // maximum rows visited, 0 for no limit
}

func (m CorrelationMode) String() string {
	if m.Window == RecentWindow && m.GroupID > 0 {
		return fmt.Sprintf("%s/group-%d", m.Window, m.GroupID)
	}
	return m.Window.String()
}

func (m CorrelationMode) run(ctx context.Context, e *MatchEngine, progress chan<- ProgressUpdate) (*MatchSummary, error) {
	return e.Correlate(ctx, m, progress)
}

// selection translates the mode into the repository predicate.
func (m CorrelationMode) selection(cfg shared.CorrelationConfig, now time.Time) repositories.HashSelection {
	sel := repositories.HashSelection{Floor: cfg.RetryFloor, Limit: m.Limit}

	switch m.Window {
	case RecentWindow:
		sel.RequireUnrenamed = true
		sel.AddedAfter = now.Add(-cfg.RecentWindow.Duration)
		sel.GroupID = m.GroupID
	case CategoryWindow:
		sel.RequireUnrenamed = true
		sel.ByCategory = true
		sel.Categories = cfg.OtherCategories
	case RetryWindow:
		sel.RequireUnmatched = true
	}
	return sel
}

// BackfillMode describes one direct title pass.
type BackfillMode struct {
	Policy  matching.WritePolicy
	Days    int   // only releases added within the last Days days, 0 for all
	GroupID int64 // 0 for every group
	Limit   int
}

func (m BackfillMode) String() string {
	s := "all"
	if m.Days > 0 {
		s = fmt.Sprintf("%dd", m.Days)
	}
	if m.GroupID > 0 {
		s += fmt.Sprintf("/group-%d", m.GroupID)
	}
	return s
}

func (m BackfillMode) run(ctx context.Context, e *MatchEngine, progress chan<- ProgressUpdate) (*MatchSummary, error) {
	return e.Backfill(ctx, m, progress)
}

func (m BackfillMode) selection(now time.Time) repositories.UnmatchedSelection {
	sel := repositories.UnmatchedSelection{GroupID: m.GroupID, Limit: m.Limit}
	if m.Days > 0 {
		sel.AddedAfter = now.AddDate(0, 0, -m.Days)
	}
	return sel
}
