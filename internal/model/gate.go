package model

import (
	"strings"
	"time"
)

// CheckFailure describes one failed or timed-out health check.
type CheckFailure struct {
	Check  string `json:"check"`
	Reason string `json:"reason"`
}

// CheckOutcome is the recorded result of one health check run.
type CheckOutcome struct {
	Check    string        `json:"check"`
	Passed   bool          `json:"passed"`
	Skipped  bool          `json:"skipped,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

// GateResult aggregates a health gate evaluation. Failures carry the
// diagnostics for every check that did not pass; checks that were never
// started because the suite already failed are recorded as skipped.
type GateResult struct {
	Passed   bool           `json:"passed"`
	Failures []CheckFailure `json:"failures,omitempty"`
	Outcomes []CheckOutcome `json:"outcomes,omitempty"`
}

// FailureSummary renders the failed checks as one diagnostic line.
func (r GateResult) FailureSummary() string {
	if len(r.Failures) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range r.Failures {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Check)
		b.WriteString(": ")
		b.WriteString(f.Reason)
	}
	return b.String()
}
