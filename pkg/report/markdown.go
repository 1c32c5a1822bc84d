// Package report renders certification results as Markdown, JSON, and
// HTML documents, and generates SVG badges. All output is
// self-contained and requires no external network resources.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"certline/pkg/certify"
	"certline/pkg/conformance"
)

// MarkdownExporter renders a certification result as a self-contained
// Markdown report covering the summary table, per-protocol check
// details, and level-by-level evaluation.
type MarkdownExporter struct {
	// IncludeLevelDetail controls whether the level-by-level section
	// is appended. NewMarkdownExporter enables it.
	IncludeLevelDetail bool
}

func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{IncludeLevelDetail: true}
}

// Export serialises the result to a Markdown string.
func (e *MarkdownExporter) Export(result certify.Result) string {
	sections := []string{
		mdHeader(result),
		mdSummary(result),
		mdProtocolResults(result),
	}
	if e.IncludeLevelDetail && len(result.LevelDetail) > 0 {
		sections = append(sections, mdLevelDetail(result))
	}
	sections = append(sections, mdFooter())
	return strings.Join(sections, "\n\n")
}

// Write exports the result to a file, creating parent directories as
// needed.
func (e *MarkdownExporter) Write(result certify.Result, path string) error {
	return writeFile(path, e.Export(result))
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func mdHeader(result certify.Result) string {
	run := result.RunResult
	return "# Certline Certification Report\n\n" +
		"> **This is a self-assessment report.** It is generated locally by " +
		"`certline` and reflects the implementer's own test results.\n" +
		"> The badge is labeled \"Self-Assessed\" — this is not an official third-party audit.\n\n" +
		"---\n\n" +
		fmt.Sprintf("**Implementation:** %s  \n", run.ImplementationName) +
		fmt.Sprintf("**Run ID:** `%s`  \n", run.RunID) +
		fmt.Sprintf("**Date:** %s", run.StartedAt.Format("2006-01-02 15:04 UTC"))
}

func mdSummary(result certify.Result) string {
	run := result.RunResult
	levelLabel := "None"
	var levelDef *certify.LevelDefinition
	if result.AchievedLevel != nil {
		levelLabel = capitalize(string(*result.AchievedLevel))
		if def, ok := certify.Definition(*result.AchievedLevel); ok {
			levelDef = &def
		}
	}

	rows := []string{
		"## Summary",
		"",
		"| Field | Value |",
		"|---|---|",
		fmt.Sprintf("| Overall Score | **%.1f%%** |", result.ScorePct),
		fmt.Sprintf("| Achieved Level | **%s** |", levelLabel),
		fmt.Sprintf("| Protocols Run | %d |", len(run.ProtocolsRun)),
		fmt.Sprintf("| Required Protocols Satisfied | %s |", yesNo(result.RequiredProtocolsSatisfied)),
	}
	if levelDef != nil {
		rows = append(rows,
			fmt.Sprintf("| Display Name | %s |", levelDef.DisplayName),
			fmt.Sprintf("| Badge Color | `%s` |", levelDef.BadgeColor))
	}
	if len(result.MissingProtocols) > 0 {
		rows = append(rows, fmt.Sprintf("| Missing Protocols | %s |", strings.Join(result.MissingProtocols, ", ")))
	}
	return strings.Join(rows, "\n")
}

func mdProtocolResults(result certify.Result) string {
	run := result.RunResult
	lines := []string{"## Protocol Results", ""}

	if len(run.ProtocolsRun) == 0 {
		lines = append(lines, "*No protocols were run.*")
		return strings.Join(lines, "\n")
	}

	for _, protocolID := range run.ProtocolsRun {
		pr, ok := run.ProtocolResults[protocolID]
		if !ok {
			continue
		}
		lines = append(lines,
			fmt.Sprintf("### %s", strings.ToUpper(protocolID)),
			"",
			fmt.Sprintf("**Score:** %.1f%% (%d/%d checks passed)", pr.Score()*100, pr.Passed, pr.Total()),
			"",
			"| Check ID | Description | Level | Status | Message |",
			"|---|---|---|---|---|",
		)
		for _, check := range pr.Checks {
			lines = append(lines, fmt.Sprintf("| `%s` | %s | %s | %s | %s |",
				check.CheckID,
				escapePipes(check.Description),
				check.ConformanceLevel,
				statusLabel(check.Status),
				escapePipes(check.Message)))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func mdLevelDetail(result certify.Result) string {
	lines := []string{"## Level Detail", ""}
	for _, levelID := range levelDetailOrder(result.LevelDetail) {
		detail := result.LevelDetail[levelID]
		status := "not satisfied"
		if detail.Satisfied {
			status = "ACHIEVED"
		}
		lines = append(lines,
			fmt.Sprintf("### %s — %s", capitalize(levelID), status),
			"",
			fmt.Sprintf("- Minimum score required: %v%%", detail.MinimumScorePct),
			fmt.Sprintf("- Actual score: %v%%", detail.ActualScorePct),
			fmt.Sprintf("- Required protocols: %s", strings.Join(detail.RequiredProtocols, ", ")),
		)
		if len(detail.MissingProtocols) > 0 {
			lines = append(lines, fmt.Sprintf("- Missing protocols: %s", strings.Join(detail.MissingProtocols, ", ")))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func mdFooter() string {
	return "---\n\n" +
		"*Generated by [certline](https://github.com/certline/certline). " +
		"Self-assessment only — not an official audit.*"
}

// levelDetailOrder returns the detail keys highest level first, matching
// how the scorer evaluates them.
func levelDetailOrder(detail map[string]certify.LevelDetail) []string {
	order := []string{"platinum", "gold", "silver", "bronze"}
	out := make([]string, 0, len(detail))
	for _, id := range order {
		if _, ok := detail[id]; ok {
			out = append(out, id)
		}
	}
	// Unknown keys, if any, go last in stable order.
	var extra []string
	for id := range detail {
		found := false
		for _, known := range order {
			if id == known {
				found = true
				break
			}
		}
		if !found {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func statusLabel(s conformance.Status) string {
	return strings.ToUpper(string(s))
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
