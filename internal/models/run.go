package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [MatchRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunCounts is the accumulated outcome of a driver invocation.
type RunCounts struct {
	Total   int // rows selected for the run
	Checked int // rows inspected
	Changed int // releases changed (or that would change in a preview)
	Missed  int // lookups that found nothing
	Failed  int // rows skipped because of a row-level error
}

// MatchRun records one invocation of a matching driver.
type MatchRun struct {
	id           string
	sequence     int
	driver       string
	mode         string
	policy       string
	groupID      int64
	status       RunStatus
	counts       RunCounts
	errorMessage string
	startedAt    *time.Time
	completedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewMatchRun creates a running [MatchRun] for the given driver and mode.
func NewMatchRun(driver, mode, policy string, groupID int64) *MatchRun {
	now := time.Now().UTC()
	return &MatchRun{
		driver:    driver,
		mode:      mode,
		policy:    policy,
		groupID:   groupID,
		status:    RunRunning,
		startedAt: &now,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *MatchRun) ID() string              { return r.id }
func (r *MatchRun) Sequence() int           { return r.sequence }
func (r *MatchRun) Driver() string          { return r.driver }
func (r *MatchRun) Mode() string            { return r.mode }
func (r *MatchRun) Policy() string          { return r.policy }
func (r *MatchRun) GroupID() int64          { return r.groupID }
func (r *MatchRun) Status() RunStatus       { return r.status }
func (r *MatchRun) Counts() RunCounts       { return r.counts }
func (r *MatchRun) ErrorMessage() string    { return r.errorMessage }
func (r *MatchRun) StartedAt() *time.Time   { return r.startedAt }
func (r *MatchRun) CompletedAt() *time.Time { return r.completedAt }
func (r *MatchRun) CreatedAt() time.Time    { return r.createdAt }
func (r *MatchRun) UpdatedAt() time.Time    { return r.updatedAt }
func (r *MatchRun) DeletedAt() *time.Time   { return r.deletedAt }

func (r *MatchRun) SetID(id string)             { r.id = id }
func (r *MatchRun) SetSequence(seq int)         { r.sequence = seq }
func (r *MatchRun) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *MatchRun) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *MatchRun) SetDeletedAt(t *time.Time)   { r.deletedAt = t }
func (r *MatchRun) SetStartedAt(t *time.Time)   { r.startedAt = t }
func (r *MatchRun) SetCompletedAt(t *time.Time) { r.completedAt = t }
func (r *MatchRun) SetStatus(status RunStatus)  { r.status = status }
func (r *MatchRun) SetCounts(counts RunCounts)  { r.counts = counts }
func (r *MatchRun) SetErrorMessage(msg string)  { r.errorMessage = msg }

// Complete marks the run finished with the given counts.
func (r *MatchRun) Complete(counts RunCounts) {
	now := time.Now().UTC()
	r.counts = counts
	r.status = RunCompleted
	r.completedAt = &now
}

// Fail marks the run as aborted by err, keeping the counts reached so far.
func (r *MatchRun) Fail(counts RunCounts, err error) {
	now := time.Now().UTC()
	r.counts = counts
	r.status = RunFailed
	r.completedAt = &now
	if err != nil {
		r.errorMessage = err.Error()
	}
}

// Validate checks if the run's data is valid.
func (r *MatchRun) Validate() error {
	if r.driver == "" {
		return fmt.Errorf("driver is required")
	}
	switch r.status {
	case RunRunning, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	if r.counts.Checked < 0 || r.counts.Changed < 0 || r.counts.Missed < 0 || r.counts.Failed < 0 {
		return fmt.Errorf("counts cannot be negative")
	}
	return nil
}
