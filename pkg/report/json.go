package report

import (
	"encoding/json"
	"fmt"

	"certline/pkg/certify"
	"certline/pkg/conformance"
)

// JSONExporter renders a certification result as a machine-readable
// JSON document for downstream tooling or CI pipeline consumption.
type JSONExporter struct {
	// Indent is the indentation string. NewJSONExporter uses two
	// spaces; empty produces compact single-line JSON.
	Indent string
}

func NewJSONExporter() *JSONExporter {
	return &JSONExporter{Indent: "  "}
}

type jsonPayload struct {
	ImplementationName         string                            `json:"implementation_name"`
	RunID                      string                            `json:"run_id"`
	StartedAt                  string                            `json:"started_at"`
	CompletedAt                string                            `json:"completed_at"`
	ProtocolsRun               []string                          `json:"protocols_run"`
	OverallScorePct            float64                           `json:"overall_score_pct"`
	AchievedLevel              *certify.Level                    `json:"achieved_level"`
	ScorePct                   float64                           `json:"score_pct"`
	RequiredProtocolsSatisfied bool                              `json:"required_protocols_satisfied"`
	MissingProtocols           []string                          `json:"missing_protocols"`
	LevelDetail                map[string]certify.LevelDetail    `json:"level_detail"`
	ProtocolResults            map[string]jsonProtocolResult     `json:"protocol_results"`
}

type jsonProtocolResult struct {
	Protocol string                    `json:"protocol"`
	Passed   int                       `json:"passed"`
	Failed   int                       `json:"failed"`
	Skipped  int                       `json:"skipped"`
	Errors   int                       `json:"errors"`
	Score    float64                   `json:"score"`
	Checks   []conformance.CheckResult `json:"checks"`
}

// Export serialises the result to a JSON string.
func (e *JSONExporter) Export(result certify.Result) (string, error) {
	run := result.RunResult
	protocolResults := make(map[string]jsonProtocolResult, len(run.ProtocolResults))
	for id, pr := range run.ProtocolResults {
		checks := pr.Checks
		if checks == nil {
			checks = []conformance.CheckResult{}
		}
		protocolResults[id] = jsonProtocolResult{
			Protocol: pr.Protocol,
			Passed:   pr.Passed,
			Failed:   pr.Failed,
			Skipped:  pr.Skipped,
			Errors:   pr.Errors,
			Score:    pr.Score(),
			Checks:   checks,
		}
	}

	payload := jsonPayload{
		ImplementationName:         run.ImplementationName,
		RunID:                      run.RunID,
		StartedAt:                  run.StartedAt.Format("2006-01-02T15:04:05.999999Z07:00"),
		CompletedAt:                run.CompletedAt.Format("2006-01-02T15:04:05.999999Z07:00"),
		ProtocolsRun:               run.ProtocolsRun,
		OverallScorePct:            run.OverallScorePct(),
		AchievedLevel:              result.AchievedLevel,
		ScorePct:                   result.ScorePct,
		RequiredProtocolsSatisfied: result.RequiredProtocolsSatisfied,
		MissingProtocols:           result.MissingProtocols,
		LevelDetail:                result.LevelDetail,
		ProtocolResults:            protocolResults,
	}

	var out []byte
	var err error
	if e.Indent != "" {
		out, err = json.MarshalIndent(payload, "", e.Indent)
	} else {
		out, err = json.Marshal(payload)
	}
	if err != nil {
		return "", fmt.Errorf("marshal certification result: %w", err)
	}
	return string(out), nil
}

// Write exports the result to a file, creating parent directories as
// needed.
func (e *JSONExporter) Write(result certify.Result, path string) error {
	out, err := e.Export(result)
	if err != nil {
		return err
	}
	return writeFile(path, out)
}
