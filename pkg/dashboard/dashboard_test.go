package dashboard

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"certline/pkg/certify"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDashboard(t *testing.T) *Dashboard {
	t.Helper()
	d := New("Acme Corp")
	d.Now = func() time.Time { return testNow }
	return d
}

func status(id, name string, level certify.Level, expiresIn time.Duration) AgentStatus {
	return AgentStatus{
		AgentID:            id,
		AgentName:          name,
		CertificationLevel: level,
		LastAssessmentDate: testNow.AddDate(-1, 0, 0),
		ExpiryDate:         testNow.Add(expiresIn),
		ProtocolsPassed:    []string{"atp", "aeap"},
		ProtocolsFailed:    []string{"aoap"},
		PassRate:           0.8,
	}
}

func TestRegisterValidatesStatus(t *testing.T) {
	d := newTestDashboard(t)

	bad := status("agent-001", "Support Agent", certify.LevelSilver, 24*time.Hour)
	bad.ExpiryDate = bad.LastAssessmentDate
	if err := d.RegisterAgent(bad); err == nil {
		t.Fatal("expiry at the assessment date must be rejected")
	}

	bad = status("agent-001", "Support Agent", certify.LevelSilver, 24*time.Hour)
	bad.PassRate = 1.5
	if err := d.RegisterAgent(bad); err == nil {
		t.Fatal("pass rate above 1 must be rejected")
	}

	if err := d.RegisterAgent(status("agent-001", "Support Agent", certify.LevelSilver, 24*time.Hour)); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestRegisterReplacesExistingAgent(t *testing.T) {
	d := newTestDashboard(t)
	if err := d.RegisterAgent(status("agent-001", "Old Name", certify.LevelBronze, 48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterAgent(status("agent-001", "New Name", certify.LevelGold, 48*time.Hour)); err != nil {
		t.Fatal(err)
	}

	got, ok := d.Agent("agent-001")
	if !ok || got.AgentName != "New Name" || got.CertificationLevel != certify.LevelGold {
		t.Fatalf("agent = %+v", got)
	}

	summary := d.GenerateSummary(testNow)
	if summary.TotalAgents != 1 {
		t.Fatalf("total agents = %d, want 1", summary.TotalAgents)
	}
}

func TestRemoveAgentIsIdempotent(t *testing.T) {
	d := newTestDashboard(t)
	if err := d.RegisterAgent(status("agent-001", "A", certify.LevelSilver, time.Hour)); err != nil {
		t.Fatal(err)
	}
	d.RemoveAgent("agent-001")
	d.RemoveAgent("agent-001")
	if _, ok := d.Agent("agent-001"); ok {
		t.Fatal("agent should be gone")
	}
}

func TestGenerateSummaryAggregates(t *testing.T) {
	d := newTestDashboard(t)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(d.RegisterAgent(status("agent-001", "A", certify.LevelSilver, 10*24*time.Hour)))
	must(d.RegisterAgent(status("agent-002", "B", certify.LevelGold, 90*24*time.Hour)))
	must(d.RegisterAgent(status("agent-003", "C", certify.LevelBronze, -24*time.Hour)))

	summary := d.GenerateSummary(testNow)

	if summary.TotalAgents != 3 || summary.CertifiedAgents != 2 || summary.ExpiredAgents != 1 {
		t.Fatalf("summary counts = %d/%d/%d", summary.TotalAgents, summary.CertifiedAgents, summary.ExpiredAgents)
	}

	// Expired bronze agent is excluded from the distribution.
	if summary.LevelDistribution["bronze"] != 0 || summary.LevelDistribution["silver"] != 1 || summary.LevelDistribution["gold"] != 1 {
		t.Fatalf("distribution = %v", summary.LevelDistribution)
	}

	// atp passed by all three agents at 0.8; aoap failed by all three.
	if got := summary.ProtocolsCoverage["atp"]; got < 0.79 || got > 0.81 {
		t.Fatalf("atp coverage = %v", got)
	}
	if got := summary.ProtocolsCoverage["aoap"]; got != 0 {
		t.Fatalf("aoap coverage = %v, want 0", got)
	}

	// Only agent-001 expires within 30 days; the already expired agent
	// does not count as upcoming.
	if len(summary.UpcomingExpirations) != 1 || summary.UpcomingExpirations[0].AgentID != "agent-001" {
		t.Fatalf("upcoming = %+v", summary.UpcomingExpirations)
	}
}

func TestAgentsExpiringWithinSortsSoonestFirst(t *testing.T) {
	d := newTestDashboard(t)
	if err := d.RegisterAgent(status("agent-001", "A", certify.LevelSilver, 20*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterAgent(status("agent-002", "B", certify.LevelSilver, 5*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterAgent(status("agent-003", "C", certify.LevelSilver, 90*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	expiring := d.AgentsExpiringWithin(30)
	if len(expiring) != 2 {
		t.Fatalf("expiring = %d, want 2", len(expiring))
	}
	if expiring[0].AgentID != "agent-002" || expiring[1].AgentID != "agent-001" {
		t.Fatalf("order = %s, %s", expiring[0].AgentID, expiring[1].AgentID)
	}
}

func TestAgentsByLevelOrdersByName(t *testing.T) {
	d := newTestDashboard(t)
	if err := d.RegisterAgent(status("agent-001", "Zeta", certify.LevelGold, time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterAgent(status("agent-002", "Alpha", certify.LevelGold, time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := d.RegisterAgent(status("agent-003", "Mid", certify.LevelBronze, time.Hour)); err != nil {
		t.Fatal(err)
	}

	gold := d.AgentsByLevel(certify.LevelGold)
	if len(gold) != 2 || gold[0].AgentName != "Alpha" || gold[1].AgentName != "Zeta" {
		t.Fatalf("gold = %+v", gold)
	}
}

func TestExportSummaryJSONRoundTrips(t *testing.T) {
	d := newTestDashboard(t)
	if err := d.RegisterAgent(status("agent-001", "A", certify.LevelSilver, time.Hour)); err != nil {
		t.Fatal(err)
	}

	out, err := d.ExportSummaryJSON(d.GenerateSummary(testNow))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var decoded Summary
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TotalAgents != 1 {
		t.Fatalf("decoded total = %d", decoded.TotalAgents)
	}
}

func TestExportSummaryMarkdown(t *testing.T) {
	d := newTestDashboard(t)
	if err := d.RegisterAgent(status("agent-001", "Support Agent", certify.LevelSilver, 10*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	md := d.ExportSummaryMarkdown(d.GenerateSummary(testNow))
	for _, want := range []string{
		"# Certline Certified — Fleet Dashboard",
		"**Organisation:** Acme Corp",
		"| Total agents | 1 |",
		"| Silver | 1 |",
		"| ATP |",
		"Support Agent",
		"self-assessed",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}

	empty := New("Empty Org")
	md = empty.ExportSummaryMarkdown(empty.GenerateSummary(testNow))
	if !strings.Contains(md, "No protocol data available") {
		t.Fatal("empty fleet should note missing protocol data")
	}
	if !strings.Contains(md, "No certifications expiring") {
		t.Fatal("empty fleet should note no upcoming expirations")
	}
}
