package domain

import "fmt"

// Thresholds configures the quality gate. A nil pointer means the gate on
// that dimension is not set.
type Thresholds struct {
	UnstableTotalAll    *int `yaml:"unstable_total_all,omitempty"    json:"unstable_total_all,omitempty"`
	UnstableTotalError  *int `yaml:"unstable_total_error,omitempty"  json:"unstable_total_error,omitempty"`
	UnstableTotalHigh   *int `yaml:"unstable_total_high,omitempty"   json:"unstable_total_high,omitempty"`
	UnstableTotalNormal *int `yaml:"unstable_total_normal,omitempty" json:"unstable_total_normal,omitempty"`
	UnstableTotalLow    *int `yaml:"unstable_total_low,omitempty"    json:"unstable_total_low,omitempty"`

	FailedTotalAll    *int `yaml:"failed_total_all,omitempty"    json:"failed_total_all,omitempty"`
	FailedTotalError  *int `yaml:"failed_total_error,omitempty"  json:"failed_total_error,omitempty"`
	FailedTotalHigh   *int `yaml:"failed_total_high,omitempty"   json:"failed_total_high,omitempty"`
	FailedTotalNormal *int `yaml:"failed_total_normal,omitempty" json:"failed_total_normal,omitempty"`
	FailedTotalLow    *int `yaml:"failed_total_low,omitempty"    json:"failed_total_low,omitempty"`

	UnstableNewAll    *int `yaml:"unstable_new_all,omitempty"    json:"unstable_new_all,omitempty"`
	UnstableNewError  *int `yaml:"unstable_new_error,omitempty"  json:"unstable_new_error,omitempty"`
	UnstableNewHigh   *int `yaml:"unstable_new_high,omitempty"   json:"unstable_new_high,omitempty"`
	UnstableNewNormal *int `yaml:"unstable_new_normal,omitempty" json:"unstable_new_normal,omitempty"`
	UnstableNewLow    *int `yaml:"unstable_new_low,omitempty"    json:"unstable_new_low,omitempty"`

	FailedNewAll    *int `yaml:"failed_new_all,omitempty"    json:"failed_new_all,omitempty"`
	FailedNewError  *int `yaml:"failed_new_error,omitempty"  json:"failed_new_error,omitempty"`
	FailedNewHigh   *int `yaml:"failed_new_high,omitempty"   json:"failed_new_high,omitempty"`
	FailedNewNormal *int `yaml:"failed_new_normal,omitempty" json:"failed_new_normal,omitempty"`
	FailedNewLow    *int `yaml:"failed_new_low,omitempty"    json:"failed_new_low,omitempty"`
}

// Scope selects which counts a threshold applies to.
type Scope string

const (
	ScopeTotal Scope = "total"
	ScopeNew   Scope = "new"
)

// Threshold is one configured gate, flattened out of Thresholds.
// Severity is empty for the "all" dimension.
type Threshold struct {
	Name     string
	Scope    Scope
	Severity Severity
	Limit    int
	Result   OverallResult
}

// List flattens the configured thresholds in a stable order: failed gates
// first, then unstable gates; totals before new counts.
func (t Thresholds) List() []Threshold {
	type entry struct {
		name     string
		scope    Scope
		severity Severity
		value    *int
		result   OverallResult
	}
	entries := []entry{
		{"failed_total_all", ScopeTotal, "", t.FailedTotalAll, ResultFailure},
		{"failed_total_error", ScopeTotal, SeverityError, t.FailedTotalError, ResultFailure},
		{"failed_total_high", ScopeTotal, SeverityHigh, t.FailedTotalHigh, ResultFailure},
		{"failed_total_normal", ScopeTotal, SeverityNormal, t.FailedTotalNormal, ResultFailure},
		{"failed_total_low", ScopeTotal, SeverityLow, t.FailedTotalLow, ResultFailure},
		{"failed_new_all", ScopeNew, "", t.FailedNewAll, ResultFailure},
		{"failed_new_error", ScopeNew, SeverityError, t.FailedNewError, ResultFailure},
		{"failed_new_high", ScopeNew, SeverityHigh, t.FailedNewHigh, ResultFailure},
		{"failed_new_normal", ScopeNew, SeverityNormal, t.FailedNewNormal, ResultFailure},
		{"failed_new_low", ScopeNew, SeverityLow, t.FailedNewLow, ResultFailure},
		{"unstable_total_all", ScopeTotal, "", t.UnstableTotalAll, ResultUnstable},
		{"unstable_total_error", ScopeTotal, SeverityError, t.UnstableTotalError, ResultUnstable},
		{"unstable_total_high", ScopeTotal, SeverityHigh, t.UnstableTotalHigh, ResultUnstable},
		{"unstable_total_normal", ScopeTotal, SeverityNormal, t.UnstableTotalNormal, ResultUnstable},
		{"unstable_total_low", ScopeTotal, SeverityLow, t.UnstableTotalLow, ResultUnstable},
		{"unstable_new_all", ScopeNew, "", t.UnstableNewAll, ResultUnstable},
		{"unstable_new_error", ScopeNew, SeverityError, t.UnstableNewError, ResultUnstable},
		{"unstable_new_high", ScopeNew, SeverityHigh, t.UnstableNewHigh, ResultUnstable},
		{"unstable_new_normal", ScopeNew, SeverityNormal, t.UnstableNewNormal, ResultUnstable},
		{"unstable_new_low", ScopeNew, SeverityLow, t.UnstableNewLow, ResultUnstable},
	}

	var out []Threshold
	for _, e := range entries {
		if e.value == nil {
			continue
		}
		out = append(out, Threshold{
			Name:     e.name,
			Scope:    e.scope,
			Severity: e.severity,
			Limit:    *e.value,
			Result:   e.result,
		})
	}
	return out
}

// IsEmpty reports whether no threshold is configured.
func (t Thresholds) IsEmpty() bool { return len(t.List()) == 0 }

// Validate rejects thresholds that are not positive.
func (t Thresholds) Validate() error {
	for _, th := range t.List() {
		if th.Limit <= 0 {
			return fmt.Errorf("thresholds.%s must be > 0 (got %d)", th.Name, th.Limit)
		}
	}
	return nil
}

// IntPtr is a convenience for building thresholds in code.
func IntPtr(v int) *int { return &v }
