package application

import (
	"time"

	"github.com/openkraft/issuegate/internal/domain"
)

// nopMetrics discards observations when no recorder is configured.
type nopMetrics struct{}

func (nopMetrics) ObserveResolution(domain.OutcomeKind) {}
func (nopMetrics) ObserveCopy(domain.OutcomeKind)       {}
func (nopMetrics) ObserveResult(domain.OverallResult)   {}
func (nopMetrics) ObserveDuration(time.Duration)        {}
