package certify

import (
	"math"

	"certline/pkg/conformance"
)

// Result is the outcome of scoring a conformance run: the achieved
// level, if any, and per-level supporting detail.
type Result struct {
	RunResult                  conformance.RunResult  `json:"run_result"`
	AchievedLevel              *Level                 `json:"achieved_level"`
	ScorePct                   float64                `json:"score_pct"`
	RequiredProtocolsSatisfied bool                   `json:"required_protocols_satisfied"`
	MissingProtocols           []string               `json:"missing_protocols"`
	LevelDetail                map[string]LevelDetail `json:"level_detail"`
}

// LevelDetail is the per-level pass/fail summary included in reports.
type LevelDetail struct {
	MinimumScorePct         float64  `json:"minimum_score_pct"`
	ActualScorePct          float64  `json:"actual_score_pct"`
	ScoreSatisfiesThreshold bool     `json:"score_satisfies_threshold"`
	RequiredProtocols       []string `json:"required_protocols"`
	MissingProtocols        []string `json:"missing_protocols"`
	Satisfied               bool     `json:"satisfied"`
}

// Scorer maps a conformance RunResult to a certification Result.
// Scoring is deterministic and matches the published criteria exactly.
// There are no hidden thresholds or adaptive adjustments.
type Scorer struct{}

// Score awards the highest level whose criteria are fully satisfied: the
// overall pass rate meets the minimum threshold AND every required
// protocol ran and passed a MUST-level check. When no level is met,
// AchievedLevel is nil and MissingProtocols reports the gap from the
// lowest level evaluated.
func (Scorer) Score(run conformance.RunResult) Result {
	scorePct := run.OverallScorePct()
	detail := buildLevelDetail(run, scorePct)

	var achieved *Level
	var missingProtocols []string

	for _, def := range LevelsDescending() {
		ok, missing := levelIsSatisfied(run, scorePct, def)
		if ok {
			lvl := def.Level
			achieved = &lvl
			missingProtocols = nil
			break
		}
		if achieved == nil {
			missingProtocols = missing
		}
	}

	return Result{
		RunResult:                  run,
		AchievedLevel:              achieved,
		ScorePct:                   scorePct,
		RequiredProtocolsSatisfied: len(missingProtocols) == 0 && achieved != nil,
		MissingProtocols:           missingProtocols,
		LevelDetail:                detail,
	}
}

// levelIsSatisfied reports whether a single level's criteria are met,
// returning the required protocols that fall short when they are not.
// A required protocol counts once it has run at least one MUST check
// and passed it.
func levelIsSatisfied(run conformance.RunResult, scorePct float64, def LevelDefinition) (bool, []string) {
	if scorePct < def.MinimumScorePct {
		return false, append([]string(nil), def.RequiredProtocols...)
	}

	var missing []string
	for _, required := range def.RequiredProtocols {
		pr, ok := run.ProtocolResults[required]
		if !ok {
			missing = append(missing, required)
			continue
		}
		mustChecks, mustPasses := 0, 0
		for _, c := range pr.Checks {
			if c.ConformanceLevel != conformance.LevelMust {
				continue
			}
			mustChecks++
			if c.Status == conformance.StatusPass {
				mustPasses++
			}
		}
		if mustChecks == 0 || mustPasses == 0 {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return false, missing
	}
	return true, nil
}

func buildLevelDetail(run conformance.RunResult, scorePct float64) map[string]LevelDetail {
	detail := make(map[string]LevelDetail, 4)
	for _, def := range LevelsDescending() {
		ok, missing := levelIsSatisfied(run, scorePct, def)
		detail[string(def.Level)] = LevelDetail{
			MinimumScorePct:         def.MinimumScorePct,
			ActualScorePct:          math.Round(scorePct*100) / 100,
			ScoreSatisfiesThreshold: scorePct >= def.MinimumScorePct,
			RequiredProtocols:       append([]string(nil), def.RequiredProtocols...),
			MissingProtocols:        missing,
			Satisfied:               ok,
		}
	}
	return detail
}
