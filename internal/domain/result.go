package domain

import (
	"fmt"
	"sort"
	"time"
)

// OverallResult is the build outcome decided by the quality gate.
type OverallResult string

const (
	ResultSuccess  OverallResult = "SUCCESS"
	ResultUnstable OverallResult = "UNSTABLE"
	ResultFailure  OverallResult = "FAILURE"
)

// rank orders results so that a worse result always has a higher rank.
func (r OverallResult) rank() int {
	switch r {
	case ResultFailure:
		return 2
	case ResultUnstable:
		return 1
	default:
		return 0
	}
}

// WorseThan reports whether r is strictly worse than other.
func (r OverallResult) WorseThan(other OverallResult) bool { return r.rank() > other.rank() }

// Combine returns the worse of both results.
func (r OverallResult) Combine(other OverallResult) OverallResult {
	if other.WorseThan(r) {
		return other
	}
	if r == "" {
		return ResultSuccess
	}
	return r
}

// BuildRef identifies a build by job and build number. It is a foreign key,
// never an owning pointer.
type BuildRef struct {
	Job    string `json:"job"`
	Number int    `json:"number"`
}

// DisplayName renders the build the way CI servers show it, e.g. "#12".
func (b BuildRef) DisplayName() string { return fmt.Sprintf("#%d", b.Number) }

func (b BuildRef) String() string { return fmt.Sprintf("%s%s", b.Job, b.DisplayName()) }

// SeverityCounts holds one counter per severity.
type SeverityCounts struct {
	Error  int `json:"error"`
	High   int `json:"high"`
	Normal int `json:"normal"`
	Low    int `json:"low"`
}

// Add increments the counter for s.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityError:
		c.Error++
	case SeverityHigh:
		c.High++
	case SeverityLow:
		c.Low++
	default:
		c.Normal++
	}
}

// Of returns the counter for s.
func (c SeverityCounts) Of(s Severity) int {
	switch s {
	case SeverityError:
		return c.Error
	case SeverityHigh:
		return c.High
	case SeverityLow:
		return c.Low
	default:
		return c.Normal
	}
}

// Total sums all severities.
func (c SeverityCounts) Total() int { return c.Error + c.High + c.Normal + c.Low }

// CountSeverities tallies a slice of findings.
func CountSeverities(issues []*Finding) SeverityCounts {
	var c SeverityCounts
	for _, f := range issues {
		c.Add(f.Severity)
	}
	return c
}

// GroupStats summarises the findings of one module or package.
type GroupStats struct {
	Name   string         `json:"name"`
	Total  int            `json:"total"`
	Counts SeverityCounts `json:"counts"`
}

// GroupBy groups findings by the key function. Groups are sorted by name.
func GroupBy(issues []*Finding, key func(*Finding) string) []GroupStats {
	index := map[string]*GroupStats{}
	for _, f := range issues {
		name := key(f)
		g, ok := index[name]
		if !ok {
			g = &GroupStats{Name: name}
			index[name] = g
		}
		g.Total++
		g.Counts.Add(f.Severity)
	}

	groups := make([]GroupStats, 0, len(index))
	for _, g := range index {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

// GateStatus records one evaluated quality gate.
type GateStatus struct {
	Name      string        `json:"name"`
	Threshold int           `json:"threshold"`
	Actual    int           `json:"actual"`
	Result    OverallResult `json:"result"`
	Fired     bool          `json:"fired"`
}

// AnalysisResult is the persisted outcome of one build's analysis.
//
// TotalSize always equals len(Issues). OverallResult is computed once by the
// quality gate and never changed afterwards.
type AnalysisResult struct {
	ID             string            `json:"id"`
	Owner          BuildRef          `json:"owner"`
	Issues         []*Finding        `json:"issues"`
	InfoMessages   []string          `json:"info_messages"`
	ErrorMessages  []string          `json:"error_messages"`
	TotalSize      int               `json:"total_size"`
	NewSize        int               `json:"new_size"`
	FixedSize      int               `json:"fixed_size"`
	Totals         SeverityCounts    `json:"totals"`
	NewTotals      SeverityCounts    `json:"new_totals"`
	Modules        []GroupStats      `json:"modules,omitempty"`
	Packages       []GroupStats      `json:"packages,omitempty"`
	Resolution     ResolutionSummary `json:"resolution"`
	Copy           CopySummary       `json:"copy"`
	QualityGate    []GateStatus      `json:"quality_gate,omitempty"`
	OverallResult  OverallResult     `json:"overall_result"`
	ReferenceBuild *BuildRef         `json:"reference_build,omitempty"`
	NewIssues      []string          `json:"new_issues,omitempty"`
	FixedIssues    []string          `json:"fixed_issues,omitempty"`
	Commit         string            `json:"commit,omitempty"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// HasIssues reports whether the result contains at least one finding.
func (r *AnalysisResult) HasIssues() bool { return r != nil && r.TotalSize > 0 }

// Fingerprints returns the set of finding fingerprints.
func (r *AnalysisResult) Fingerprints() map[string]bool {
	set := make(map[string]bool, len(r.Issues))
	for _, f := range r.Issues {
		set[f.Fingerprint] = true
	}
	return set
}

// Info appends an info message.
func (r *AnalysisResult) Info(format string, args ...any) {
	r.InfoMessages = append(r.InfoMessages, fmt.Sprintf(format, args...))
}

// Error appends an error message.
func (r *AnalysisResult) Error(format string, args ...any) {
	r.ErrorMessages = append(r.ErrorMessages, fmt.Sprintf(format, args...))
}
