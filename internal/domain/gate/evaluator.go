package gate

import (
	"github.com/openkraft/issuegate/internal/domain"
)

// Evaluation is the outcome of applying thresholds to aggregated counts.
type Evaluation struct {
	Result domain.OverallResult
	Gates  []domain.GateStatus
}

// Evaluate applies every configured threshold to the total and new counts.
// A gate fires when the count reaches the threshold. Failed gates dominate
// unstable gates, and no fired gate means SUCCESS.
//
// Evaluate is pure: the same inputs always yield the same evaluation.
func Evaluate(totals, news domain.SeverityCounts, thresholds domain.Thresholds) Evaluation {
	eval := Evaluation{Result: domain.ResultSuccess}

	for _, th := range thresholds.List() {
		counts := totals
		if th.Scope == domain.ScopeNew {
			counts = news
		}

		actual := counts.Total()
		if th.Severity != "" {
			actual = counts.Of(th.Severity)
		}

		status := domain.GateStatus{
			Name:      th.Name,
			Threshold: th.Limit,
			Actual:    actual,
			Result:    domain.ResultSuccess,
		}
		if actual >= th.Limit {
			status.Fired = true
			status.Result = th.Result
			eval.Result = eval.Result.Combine(th.Result)
		}
		eval.Gates = append(eval.Gates, status)
	}

	return eval
}

// Messages returns the info messages describing an evaluation.
func Messages(eval Evaluation) []string {
	switch {
	case len(eval.Gates) == 0:
		return []string{"No quality gates have been set - skipping"}
	case eval.Result == domain.ResultSuccess:
		return []string{"-> All quality gates have been passed"}
	default:
		return []string{"-> Some quality gates have been missed: overall result is " + string(eval.Result)}
	}
}
