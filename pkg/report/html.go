package report

import (
	"fmt"
	"html"
	"strings"

	"certline/pkg/certify"
	"certline/pkg/conformance"
)

const inlineCSS = `  :root { --font: system-ui, sans-serif; --border: #dee2e6; }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: var(--font); font-size: 14px; color: #212529;
         background: #f8f9fa; padding: 32px; }
  .report { max-width: 900px; margin: 0 auto; background: #fff;
            border: 1px solid var(--border); border-radius: 8px;
            padding: 32px; }
  h1 { font-size: 1.6rem; margin-bottom: 8px; }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; border-bottom: 1px solid var(--border);
       padding-bottom: 6px; }
  h3 { font-size: 1rem; margin: 16px 0 8px; }
  .notice { background: #fff3cd; border: 1px solid #ffc107; border-radius: 4px;
            padding: 12px 16px; margin: 16px 0; font-size: 0.9rem; }
  .summary-table { width: 100%; border-collapse: collapse; margin: 12px 0; }
  .summary-table th, .summary-table td { border: 1px solid var(--border);
                                          padding: 8px 12px; text-align: left; }
  .summary-table th { background: #f1f3f5; font-weight: 600; }
  .level-badge { display: inline-block; padding: 4px 12px; border-radius: 12px;
                 font-weight: 700; font-size: 0.85rem; color: #212529; }
  .checks-table { width: 100%; border-collapse: collapse; margin: 8px 0; font-size: 0.85rem; }
  .checks-table th, .checks-table td { border: 1px solid var(--border);
                                        padding: 6px 10px; text-align: left; }
  .checks-table th { background: #f1f3f5; font-weight: 600; }
  .status-pass { color: #198754; font-weight: 600; }
  .status-fail { color: #dc3545; font-weight: 600; }
  .status-skip { color: #6c757d; }
  .status-error { color: #fd7e14; font-weight: 600; }
  .level-satisfied { color: #198754; font-weight: 600; }
  .level-missing { color: #6c757d; }
  .meta { color: #6c757d; font-size: 0.85rem; margin-bottom: 16px; }
  footer { margin-top: 32px; font-size: 0.8rem; color: #6c757d; border-top: 1px solid var(--border);
           padding-top: 12px; }
`

// HTMLExporter renders a certification result as a standalone HTML
// document with inline CSS, so the output renders in any browser
// without network access.
type HTMLExporter struct {
	IncludeLevelDetail bool
}

func NewHTMLExporter() *HTMLExporter {
	return &HTMLExporter{IncludeLevelDetail: true}
}

// Export serialises the result to an HTML string.
func (e *HTMLExporter) Export(result certify.Result) string {
	parts := []string{
		htmlHeader(result),
		htmlSummary(result),
		htmlProtocolResults(result),
	}
	if e.IncludeLevelDetail && len(result.LevelDetail) > 0 {
		parts = append(parts, htmlLevelDetail(result))
	}
	parts = append(parts, htmlFooter())
	return wrapDocument(result, strings.Join(parts, "\n"))
}

// Write exports the result to a file, creating parent directories as
// needed.
func (e *HTMLExporter) Write(result certify.Result, path string) error {
	return writeFile(path, e.Export(result))
}

func wrapDocument(result certify.Result, body string) string {
	title := html.EscapeString("Certline Certification Report — " + result.RunResult.ImplementationName)
	return "<!DOCTYPE html>\n" +
		"<html lang=\"en\">\n" +
		"<head>\n" +
		"  <meta charset=\"UTF-8\">\n" +
		"  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n" +
		"  <title>" + title + "</title>\n" +
		"<style>\n" + inlineCSS + "</style>\n" +
		"</head>\n" +
		"<body>\n" +
		"<div class=\"report\">\n" + body + "\n</div>\n" +
		"</body>\n" +
		"</html>"
}

func htmlHeader(result certify.Result) string {
	run := result.RunResult
	return "<h1>Certline Certification Report</h1>\n" +
		"<div class=\"meta\">" +
		"<strong>Implementation:</strong> " + html.EscapeString(run.ImplementationName) + " &nbsp;|&nbsp; " +
		"<strong>Run ID:</strong> <code>" + html.EscapeString(run.RunID) + "</code> &nbsp;|&nbsp; " +
		"<strong>Date:</strong> " + html.EscapeString(run.StartedAt.Format("2006-01-02 15:04 UTC")) +
		"</div>\n" +
		"<div class=\"notice\">" +
		"<strong>Self-Assessment Notice:</strong> This report is generated " +
		"locally by <code>certline</code> and reflects the implementer's " +
		"own test results. The badge is labeled &ldquo;Self-Assessed&rdquo; — " +
		"this is not an official third-party audit." +
		"</div>"
}

func htmlSummary(result certify.Result) string {
	levelLabel := "None"
	levelColor := "#adb5bd"
	var levelDef *certify.LevelDefinition
	if result.AchievedLevel != nil {
		levelLabel = capitalize(string(*result.AchievedLevel))
		if def, ok := certify.Definition(*result.AchievedLevel); ok {
			levelColor = def.BadgeColor
			levelDef = &def
		}
	}

	badge := fmt.Sprintf("<span class=\"level-badge\" style=\"background:%s\">%s</span>",
		levelColor, html.EscapeString(levelLabel))

	rows := []string{
		"<h2>Summary</h2>",
		"<table class=\"summary-table\">",
		"<thead><tr><th>Field</th><th>Value</th></tr></thead>",
		"<tbody>",
		fmt.Sprintf("  <tr><td>Overall Score</td><td><strong>%.1f%%</strong></td></tr>", result.ScorePct),
		fmt.Sprintf("  <tr><td>Achieved Level</td><td>%s</td></tr>", badge),
		fmt.Sprintf("  <tr><td>Protocols Run</td><td>%d</td></tr>", len(result.RunResult.ProtocolsRun)),
		fmt.Sprintf("  <tr><td>Required Protocols Satisfied</td><td>%s</td></tr>", yesNo(result.RequiredProtocolsSatisfied)),
	}
	if levelDef != nil {
		rows = append(rows, fmt.Sprintf("  <tr><td>Display Name</td><td>%s</td></tr>",
			html.EscapeString(levelDef.DisplayName)))
	}
	if len(result.MissingProtocols) > 0 {
		rows = append(rows, fmt.Sprintf("  <tr><td>Missing Protocols</td><td>%s</td></tr>",
			html.EscapeString(strings.Join(result.MissingProtocols, ", "))))
	}
	rows = append(rows, "</tbody>", "</table>")
	return strings.Join(rows, "\n")
}

func htmlProtocolResults(result certify.Result) string {
	run := result.RunResult
	lines := []string{"<h2>Protocol Results</h2>"}

	if len(run.ProtocolsRun) == 0 {
		lines = append(lines, "<p><em>No protocols were run.</em></p>")
		return strings.Join(lines, "\n")
	}

	for _, protocolID := range run.ProtocolsRun {
		pr, ok := run.ProtocolResults[protocolID]
		if !ok {
			continue
		}
		lines = append(lines,
			"<h3>"+html.EscapeString(strings.ToUpper(protocolID))+"</h3>",
			fmt.Sprintf("<p><strong>Score:</strong> %.1f%% (%d/%d checks passed)</p>",
				pr.Score()*100, pr.Passed, pr.Total()),
			"<table class=\"checks-table\">",
			"<thead><tr><th>Check ID</th><th>Description</th><th>Level</th><th>Status</th><th>Message</th></tr></thead>",
			"<tbody>",
		)
		for _, check := range pr.Checks {
			lines = append(lines, fmt.Sprintf(
				"  <tr><td><code>%s</code></td><td>%s</td><td>%s</td><td class=\"%s\">%s</td><td>%s</td></tr>",
				html.EscapeString(check.CheckID),
				html.EscapeString(check.Description),
				html.EscapeString(check.ConformanceLevel),
				statusCSSClass(check.Status),
				statusLabel(check.Status),
				html.EscapeString(check.Message)))
		}
		lines = append(lines, "</tbody>", "</table>")
	}
	return strings.Join(lines, "\n")
}

func htmlLevelDetail(result certify.Result) string {
	lines := []string{"<h2>Level Detail</h2>"}
	for _, levelID := range levelDetailOrder(result.LevelDetail) {
		detail := result.LevelDetail[levelID]
		statusClass, statusText := "level-missing", "not satisfied"
		if detail.Satisfied {
			statusClass, statusText = "level-satisfied", "ACHIEVED"
		}
		lines = append(lines,
			fmt.Sprintf("<h3>%s — <span class=\"%s\">%s</span></h3>",
				html.EscapeString(capitalize(levelID)), statusClass, statusText),
			"<ul>",
			fmt.Sprintf("  <li>Minimum score required: %v%%</li>", detail.MinimumScorePct),
			fmt.Sprintf("  <li>Actual score: %v%%</li>", detail.ActualScorePct),
			fmt.Sprintf("  <li>Required protocols: %s</li>",
				html.EscapeString(strings.Join(detail.RequiredProtocols, ", "))),
		)
		if len(detail.MissingProtocols) > 0 {
			lines = append(lines, fmt.Sprintf("  <li>Missing protocols: %s</li>",
				html.EscapeString(strings.Join(detail.MissingProtocols, ", "))))
		}
		lines = append(lines, "</ul>")
	}
	return strings.Join(lines, "\n")
}

func htmlFooter() string {
	return "<footer>\n" +
		"Generated by <a href=\"https://github.com/certline/certline\" rel=\"noopener noreferrer\">certline</a>. " +
		"Self-assessment only — not an official audit.\n" +
		"</footer>"
}

func statusCSSClass(s conformance.Status) string {
	switch s {
	case conformance.StatusPass:
		return "status-pass"
	case conformance.StatusFail:
		return "status-fail"
	case conformance.StatusSkip:
		return "status-skip"
	case conformance.StatusError:
		return "status-error"
	default:
		return ""
	}
}
