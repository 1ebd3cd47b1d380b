package domain

import (
	"context"
	"fmt"
	"time"
)

// ResultAction wraps the single AnalysisResult attached to a build.
type ResultAction struct {
	Build  BuildRef        `json:"build"`
	Result *AnalysisResult `json:"result"`
}

// Owner returns the build the action belongs to.
func (a *ResultAction) Owner() BuildRef { return a.Build }

// JobAction is the per-job view on the trend. It holds no state of its own
// and asks the store for the most recent finished build every time.
type JobAction struct {
	Job   string
	store TrendStore
}

func NewJobAction(job string, store TrendStore) *JobAction {
	return &JobAction{Job: job, store: store}
}

// LastAction returns the action of the most recent finished build with an
// attached result, or nil if no build ever attached one.
func (j *JobAction) LastAction(ctx context.Context) (*ResultAction, error) {
	action, err := j.store.LastAction(ctx, j.Job)
	if err != nil {
		return nil, fmt.Errorf("loading last action of %s: %w", j.Job, err)
	}
	return action, nil
}

// LastFinishedRun returns the build of LastAction. ok is false if there is none.
func (j *JobAction) LastFinishedRun(ctx context.Context) (build BuildRef, ok bool, err error) {
	action, err := j.LastAction(ctx)
	if err != nil || action == nil {
		return BuildRef{}, false, err
	}
	return action.Build, true, nil
}

// LastActionWithIssues returns the most recent action whose result has at
// least one finding.
func (j *JobAction) LastActionWithIssues(ctx context.Context) (*ResultAction, error) {
	action, err := j.store.LastActionWithIssues(ctx, j.Job)
	if err != nil {
		return nil, fmt.Errorf("loading last action with issues of %s: %w", j.Job, err)
	}
	return action, nil
}

// ReferenceAction returns the newest action of a build that precedes build,
// or nil if there is none. Rerunning a build therefore always compares
// against the same reference.
func (j *JobAction) ReferenceAction(ctx context.Context, build BuildRef) (*ResultAction, error) {
	action, err := j.store.PreviousAction(ctx, BuildRef{Job: j.Job, Number: build.Number})
	if err != nil {
		return nil, fmt.Errorf("loading reference build of %s: %w", build, err)
	}
	return action, nil
}

// Trend returns up to limit results, newest first. A limit of zero or less
// returns the whole history.
func (j *JobAction) Trend(ctx context.Context, limit int) ([]*ResultAction, error) {
	actions, err := j.store.History(ctx, j.Job, limit)
	if err != nil {
		return nil, fmt.Errorf("loading trend of %s: %w", j.Job, err)
	}
	return actions, nil
}

// ActionSummary is the compact form of a ResultAction used in trend listings.
type ActionSummary struct {
	Build         BuildRef       `json:"build"`
	TotalSize     int            `json:"total_size"`
	NewSize       int            `json:"new_size"`
	FixedSize     int            `json:"fixed_size"`
	Totals        SeverityCounts `json:"totals"`
	OverallResult OverallResult  `json:"overall_result"`
	Commit        string         `json:"commit,omitempty"`
	FinishedAt    time.Time      `json:"finished_at"`
}

func (a *ResultAction) Summary() ActionSummary {
	s := ActionSummary{Build: a.Build}
	if r := a.Result; r != nil {
		s.TotalSize = r.TotalSize
		s.NewSize = r.NewSize
		s.FixedSize = r.FixedSize
		s.Totals = r.Totals
		s.OverallResult = r.OverallResult
		s.Commit = r.Commit
		s.FinishedAt = r.FinishedAt
	}
	return s
}
