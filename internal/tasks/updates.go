package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	CountCandidates Phase = iota
	Correlate
	Backfill
	StageStart
	StageDone
)

func (p Phase) String() string {
	switch p {
	case CountCandidates:
		return "count_candidates"
	case Correlate:
		return "correlate"
	case Backfill:
		return "backfill"
	case StageStart:
		return "stage_start"
	case StageDone:
		return "stage_done"
	default:
		return ""
	}
}

func countUpdate(phase Phase, mode string, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CountCandidates,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("%s (%s): %d candidate rows", phase, mode, total),
	}
}

func rowUpdate(phase Phase, step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, name),
	}
}

func summaryUpdate(phase Phase, summary *MatchSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    summary.Total,
		Total:   summary.Total,
		Message: fmt.Sprintf("%s (%s): checked %d, changed %d", phase, summary.Mode, summary.Checked, summary.Changed),
		Data:    summary,
	}
}

func stageStartUpdate(target StageTarget, passes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StageStart,
		Step:    0,
		Total:   passes,
		Message: fmt.Sprintf("Running %s stage...", target),
		Data:    target,
	}
}

func stageDoneUpdate(target StageTarget, result *StageResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StageDone,
		Step:    len(result.Passes),
		Total:   len(result.Passes),
		Message: fmt.Sprintf("%s stage complete: %d changed", target, result.Changed()),
		Data:    result,
	}
}
