// Package conformance implements the certline check catalog and the
// runner that executes it against an implementation adapter.
package conformance

import "time"

// Status is the outcome of a single conformance check.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusSkip  Status = "skip"
	StatusError Status = "error"
)

// Conformance levels follow RFC 2119 requirement strength.
const (
	LevelMust   = "MUST"
	LevelShould = "SHOULD"
	LevelMay    = "MAY"
)

// CheckResult is the result of a single conformance check within a protocol.
// It is immutable once produced.
type CheckResult struct {
	CheckID          string `json:"check_id"`
	Description      string `json:"description"`
	Status           Status `json:"status"`
	Message          string `json:"message,omitempty"`
	ConformanceLevel string `json:"conformance_level"`
}

// ProtocolResult aggregates the results of a single protocol's check suite.
type ProtocolResult struct {
	Protocol string        `json:"protocol"`
	Checks   []CheckResult `json:"checks"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Errors   int           `json:"errors"`
}

// Total is the number of checks executed, excluding skips.
func (r ProtocolResult) Total() int {
	return r.Passed + r.Failed + r.Errors
}

// Score is the pass rate for this protocol in [0.0, 1.0]. Returns 0.0 if
// no checks ran.
func (r ProtocolResult) Score() float64 {
	total := r.Total()
	if total == 0 {
		return 0.0
	}
	return float64(r.Passed) / float64(total)
}

// RunResult is the complete result set from one Runner execution.
type RunResult struct {
	ImplementationName string                    `json:"implementation_name"`
	RunID              string                    `json:"run_id"`
	StartedAt          time.Time                 `json:"started_at"`
	CompletedAt        time.Time                 `json:"completed_at"`
	ProtocolsRun       []string                  `json:"protocols_run"`
	ProtocolResults    map[string]ProtocolResult `json:"protocol_results"`
}

// OverallScore is the aggregate pass rate across all protocols in
// [0.0, 1.0]. Returns 0.0 if no checks ran.
func (r RunResult) OverallScore() float64 {
	totalChecks := 0
	totalPassed := 0
	for _, pr := range r.ProtocolResults {
		totalChecks += pr.Total()
		totalPassed += pr.Passed
	}
	if totalChecks == 0 {
		return 0.0
	}
	return float64(totalPassed) / float64(totalChecks)
}

// OverallScorePct is the overall score as a percentage (0-100).
func (r RunResult) OverallScorePct() float64 {
	return r.OverallScore() * 100.0
}
