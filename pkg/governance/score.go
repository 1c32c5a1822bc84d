// Package governance computes a 0-100 governance score from an agent's
// governance posture, mapped to a certification level and a hosted
// badge URL.
package governance

import "fmt"

// Profile describes an agent's current governance posture. Coverage
// percentages are in [0, 100]. A false has_* flag forces its dimension
// to 0 regardless of the accompanying coverage value, which penalises
// agents that have not adopted the feature at all.
type Profile struct {
	HasTrustLevels        bool    `json:"has_trust_levels" yaml:"has_trust_levels"`
	TrustLevelCoveragePct float64 `json:"trust_level_coverage_pct" yaml:"trust_level_coverage_pct"`
	HasBudgetEnforcement  bool    `json:"has_budget_enforcement" yaml:"has_budget_enforcement"`
	BudgetCoveragePct     float64 `json:"budget_coverage_pct" yaml:"budget_coverage_pct"`
	HasConsentManagement  bool    `json:"has_consent_management" yaml:"has_consent_management"`
	ConsentCoveragePct    float64 `json:"consent_coverage_pct" yaml:"consent_coverage_pct"`
	HasAuditTrail         bool    `json:"has_audit_trail" yaml:"has_audit_trail"`
	AuditCoveragePct      float64 `json:"audit_coverage_pct" yaml:"audit_coverage_pct"`
	LinterWarnings        int     `json:"linter_warnings" yaml:"linter_warnings"`
	LinterTotalChecks     int     `json:"linter_total_checks" yaml:"linter_total_checks"`
	HasConformanceTests   bool    `json:"has_conformance_tests" yaml:"has_conformance_tests"`
	ConformanceLevel      string  `json:"conformance_level" yaml:"conformance_level"`
	HasShadowMode         bool    `json:"has_shadow_mode" yaml:"has_shadow_mode"`
}

// ScoreResult is the computed governance score with per-dimension
// breakdowns and the mapped certification level.
type ScoreResult struct {
	Overall         int      `json:"overall"`
	TrustCoverage   int      `json:"trust_coverage"`
	BudgetCoverage  int      `json:"budget_coverage"`
	ConsentCoverage int      `json:"consent_coverage"`
	AuditCoverage   int      `json:"audit_coverage"`
	LinterScore     int      `json:"linter_score"`
	Level           string   `json:"level"`
	BadgeURL        string   `json:"badge_url"`
	Details         []string `json:"details"`
}

// Dimension weights for the overall score.
const (
	weightTrust   = 0.25
	weightBudget  = 0.20
	weightConsent = 0.20
	weightAudit   = 0.25
	weightLinter  = 0.10
)

// ComputeScore computes the weighted governance score for a profile.
// The weighted sum is truncated to an integer, then conformance-test
// and shadow-mode bonuses are added, each capped at 100.
func ComputeScore(profile Profile) ScoreResult {
	trustScore := 0
	if profile.HasTrustLevels {
		trustScore = int(profile.TrustLevelCoveragePct)
	}
	budgetScore := 0
	if profile.HasBudgetEnforcement {
		budgetScore = int(profile.BudgetCoveragePct)
	}
	consentScore := 0
	if profile.HasConsentManagement {
		consentScore = int(profile.ConsentCoveragePct)
	}
	auditScore := 0
	if profile.HasAuditTrail {
		auditScore = int(profile.AuditCoveragePct)
	}

	linterScore := 100
	if profile.LinterTotalChecks > 0 {
		linterScore = int(float64(profile.LinterTotalChecks-profile.LinterWarnings) / float64(profile.LinterTotalChecks) * 100)
	}

	overall := int(float64(trustScore)*weightTrust +
		float64(budgetScore)*weightBudget +
		float64(consentScore)*weightConsent +
		float64(auditScore)*weightAudit +
		float64(linterScore)*weightLinter)

	if profile.HasConformanceTests {
		overall = min(100, overall+conformanceBonus(profile.ConformanceLevel))
	}
	if profile.HasShadowMode {
		overall = min(100, overall+3)
	}

	var details []string
	if trustScore < 50 {
		details = append(details, "Low trust level coverage: configure trust levels for more tool calls")
	}
	if budgetScore < 50 {
		details = append(details, "Low budget coverage: add budget enforcement to spending-heavy operations")
	}
	if consentScore < 50 {
		details = append(details, "Low consent coverage: add consent checks for data-sensitive operations")
	}
	if auditScore < 50 {
		details = append(details, "Low audit coverage: enable audit logging for compliance evidence")
	}

	return ScoreResult{
		Overall:         overall,
		TrustCoverage:   trustScore,
		BudgetCoverage:  budgetScore,
		ConsentCoverage: consentScore,
		AuditCoverage:   auditScore,
		LinterScore:     linterScore,
		Level:           scoreToLevel(overall),
		BadgeURL:        fmt.Sprintf("https://badge.certline.dev/score/%d", overall),
		Details:         details,
	}
}

func conformanceBonus(level string) int {
	switch level {
	case "basic":
		return 2
	case "standard":
		return 5
	case "full":
		return 10
	default:
		return 0
	}
}

func scoreToLevel(score int) string {
	switch {
	case score >= 90:
		return "Platinum"
	case score >= 75:
		return "Gold"
	case score >= 50:
		return "Silver"
	case score >= 25:
		return "Bronze"
	default:
		return "Unrated"
	}
}
