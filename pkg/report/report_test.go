package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"certline/pkg/certify"
	"certline/pkg/conformance"
)

func sampleResult() certify.Result {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := conformance.RunResult{
		ImplementationName: "TestImpl",
		RunID:              "run-001",
		StartedAt:          now,
		CompletedAt:        now.Add(2 * time.Second),
		ProtocolsRun:       []string{"atp"},
		ProtocolResults: map[string]conformance.ProtocolResult{
			"atp": {
				Protocol: "atp",
				Passed:   4,
				Failed:   2,
				Checks: []conformance.CheckResult{
					{
						CheckID:          "ATP-MUST-001",
						Description:      "Trust level assignment is supported",
						Status:           conformance.StatusPass,
						ConformanceLevel: conformance.LevelMust,
					},
					{
						CheckID:          "ATP-MUST-002",
						Description:      "Pipes | in text | get escaped",
						Status:           conformance.StatusFail,
						Message:          "got: <nothing>",
						ConformanceLevel: conformance.LevelMust,
					},
				},
			},
		},
	}
	return certify.Scorer{}.Score(run)
}

func TestMarkdownExportSections(t *testing.T) {
	md := NewMarkdownExporter().Export(sampleResult())

	for _, want := range []string{
		"# Certline Certification Report",
		"self-assessment report",
		"**Implementation:** TestImpl",
		"| Overall Score | **66.7%** |",
		"| Achieved Level | **Bronze** |",
		"### ATP",
		"**Score:** 66.7% (4/6 checks passed)",
		"`ATP-MUST-001`",
		"Pipes \\| in text \\| get escaped",
		"## Level Detail",
		"### Bronze — ACHIEVED",
		"### Silver — not satisfied",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdownLevelDetailCanBeOmitted(t *testing.T) {
	exp := NewMarkdownExporter()
	exp.IncludeLevelDetail = false
	md := exp.Export(sampleResult())
	if strings.Contains(md, "## Level Detail") {
		t.Fatal("level detail should be omitted")
	}
}

func TestMarkdownWriteCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "report.md")
	if err := NewMarkdownExporter().Write(sampleResult(), path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "# Certline Certification Report") {
		t.Fatal("written file does not look like a report")
	}
}

func TestJSONExportShape(t *testing.T) {
	out, err := NewJSONExporter().Export(sampleResult())
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["implementation_name"] != "TestImpl" {
		t.Fatalf("implementation_name = %v", payload["implementation_name"])
	}
	if payload["achieved_level"] != "bronze" {
		t.Fatalf("achieved_level = %v", payload["achieved_level"])
	}
	results, ok := payload["protocol_results"].(map[string]any)
	if !ok {
		t.Fatalf("protocol_results = %T", payload["protocol_results"])
	}
	atp, ok := results["atp"].(map[string]any)
	if !ok {
		t.Fatal("missing atp protocol result")
	}
	if atp["passed"] != float64(4) {
		t.Fatalf("atp passed = %v", atp["passed"])
	}
	if _, ok := atp["checks"].([]any); !ok {
		t.Fatalf("checks = %T", atp["checks"])
	}
}

func TestJSONExportCompactMode(t *testing.T) {
	exp := &JSONExporter{}
	out, err := exp.Export(sampleResult())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Contains(out, "\n") {
		t.Fatal("compact output should be one line")
	}
}

func TestHTMLExportIsSelfContained(t *testing.T) {
	html := NewHTMLExporter().Export(sampleResult())

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Certline Certification Report — TestImpl</title>",
		"<style>",
		"Self-Assessment Notice",
		"class=\"level-badge\" style=\"background:#CD7F32\"",
		"class=\"status-pass\"",
		"class=\"status-fail\"",
		"got: &lt;nothing&gt;",
		"<h2>Level Detail</h2>",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q", want)
		}
	}
	if strings.Contains(html, "<script") || strings.Contains(html, "<link") {
		t.Fatal("html should not require external resources")
	}
}

func TestSVGBadge(t *testing.T) {
	svg, err := SVGBadge(certify.LevelGold)
	if err != nil {
		t.Fatalf("badge: %v", err)
	}
	for _, want := range []string{
		"<svg xmlns=\"http://www.w3.org/2000/svg\"",
		"fill=\"#FFD700\"",
		">Gold</text>",
		"Self-Assessed",
		"Certline Certified — Gold (Self-Assessed)",
	} {
		if !strings.Contains(svg, want) {
			t.Fatalf("svg missing %q:\n%s", want, svg)
		}
	}

	if _, err := SVGBadge(certify.Level("diamond")); err == nil {
		t.Fatal("unknown level must be rejected")
	}
}

func TestWriteSVGBadge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badges", "gold.svg")
	if err := WriteSVGBadge(certify.LevelGold, path); err != nil {
		t.Fatalf("write badge: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "</svg>") {
		t.Fatal("badge file truncated")
	}
}
