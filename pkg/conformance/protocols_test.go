package conformance

import (
	"context"
	"testing"
)

// conformingResponses scripts a fully conforming implementation for
// every registered protocol.
func conformingResponses() map[string]map[string]any {
	return map[string]map[string]any{
		"atp/set_trust_level":          {"success": true},
		"atp/check_trust_requirement":  {"allowed": false, "reason": "insufficient trust level"},
		"atp/change_trust_level":       {"success": true, "authorized_by": "owner-001"},
		"atp/get_recent_audit_entries": {"entries": []any{}},

		"aip/register_identity":   {"registered": true, "identity_id": "id-001"},
		"aip/lookup_identity":     {"agent_id": "test-agent-aip-001", "identity_id": "id-001"},
		"aip/validate_credential": {"valid": false},
		"aip/revoke_identity":     {"revoked": true},

		"aeap/check_spend_allowed": {"allowed": false},
		"aeap/record_spend":        {"recorded": true, "spend_id": "spend-001"},
		"aeap/get_budget_status":   {"remaining": 400, "limit": 500},

		"amgp/write_memory_record":  {"written": false, "error": "consent token required"},
		"amgp/query_memory_records": {"records": []any{}},
		"amgp/delete_memory_record": {"deleted": true},

		"aoap/append_audit_entry":   {"appended": true, "entry_id": "entry-001"},
		"aoap/export_audit_log":     {"entries": []any{}},
		"aoap/verify_audit_chain":   {"valid": true},
		"aoap/query_audit_entries":  {"entries": []any{}},

		"cross_protocol/check_action_allowed":              {"allowed": false, "blocked_by": "atp"},
		"cross_protocol/assign_trust_with_identity_check":  {"success": false, "reason": "identity not verified"},
		"cross_protocol/get_denial_audit_entries":          {"entries": []any{}},
	}
}

func TestSuitesPassAgainstConformingAdapter(t *testing.T) {
	responses := conformingResponses()
	// AMGP-SHOULD-001 deliberately refuses the write, so the shared
	// write_memory_record script refuses. AMGP-MUST-001 needs a
	// successful write, which the scripted adapter cannot express with
	// a single entry per operation, so check it separately below.
	adapter := &scriptedAdapter{name: "conforming", responses: responses}

	for _, s := range defaultSuites() {
		if s.protocol == "amgp" {
			continue
		}
		result := s.run(context.Background(), adapter)
		if result.Failed != 0 || result.Errors != 0 {
			t.Fatalf("%s: failed=%d errors=%d, checks=%+v", s.protocol, result.Failed, result.Errors, result.Checks)
		}
		if result.Passed != len(s.checks) {
			t.Fatalf("%s: passed=%d, want %d", s.protocol, result.Passed, len(s.checks))
		}
	}
}

func TestAMGPConsentRefusalPassesShouldCheck(t *testing.T) {
	adapter := &scriptedAdapter{name: "impl", responses: conformingResponses()}
	result := amgpSuite().run(context.Background(), adapter)

	for _, c := range result.Checks {
		switch c.CheckID {
		case "AMGP-SHOULD-001":
			if c.Status != StatusPass {
				t.Fatalf("consent refusal should pass, got %s (%s)", c.Status, c.Message)
			}
		case "AMGP-MUST-001":
			// Shares an operation with the consent check; the scripted
			// refusal makes it fail, which is the expected shape here.
			if c.Status != StatusFail {
				t.Fatalf("AMGP-MUST-001 = %s, want %s", c.Status, StatusFail)
			}
		}
	}
}

func TestAMGPConsentIgnoredSkipsShouldCheck(t *testing.T) {
	responses := conformingResponses()
	responses["amgp/write_memory_record"] = map[string]any{"written": true, "record_id": "rec-001"}
	adapter := &scriptedAdapter{name: "impl", responses: responses}

	result := amgpSuite().run(context.Background(), adapter)
	if result.Failed != 0 || result.Errors != 0 {
		t.Fatalf("failed=%d errors=%d", result.Failed, result.Errors)
	}
	for _, c := range result.Checks {
		if c.CheckID == "AMGP-SHOULD-001" && c.Status != StatusSkip {
			t.Fatalf("SHOULD check without consent enforcement = %s, want %s", c.Status, StatusSkip)
		}
	}
}

func TestATPAuditEntriesMissingKeyStillPasses(t *testing.T) {
	responses := conformingResponses()
	responses["atp/get_recent_audit_entries"] = map[string]any{}
	adapter := &scriptedAdapter{name: "impl", responses: responses}

	result := atpSuite().run(context.Background(), adapter)
	for _, c := range result.Checks {
		if c.CheckID == "ATP-SHOULD-001" && c.Status != StatusPass {
			t.Fatalf("missing entries key should read as empty list, got %s", c.Status)
		}
	}
}

func TestCrossProtocolDegradesToSkipOnWrongShape(t *testing.T) {
	responses := conformingResponses()
	responses["cross_protocol/check_action_allowed"] = map[string]any{"allowed": true}
	adapter := &scriptedAdapter{name: "impl", responses: responses}

	result := crossSuite().run(context.Background(), adapter)
	for _, c := range result.Checks {
		if c.CheckID == "CROSS-MUST-001" && c.Status != StatusSkip {
			t.Fatalf("non-priority response should skip, got %s (%s)", c.Status, c.Message)
		}
	}
	if result.Failed != 0 {
		t.Fatalf("cross-protocol checks never hard-fail, failed=%d", result.Failed)
	}
}

func TestProtocolResultScore(t *testing.T) {
	pr := ProtocolResult{Protocol: "atp", Passed: 3, Failed: 1, Skipped: 2, Errors: 0}
	if got := pr.Total(); got != 4 {
		t.Fatalf("total = %d, want 4 (skips excluded)", got)
	}
	if got := pr.Score(); got != 0.75 {
		t.Fatalf("score = %v, want 0.75", got)
	}

	empty := ProtocolResult{Protocol: "aip", Skipped: 3}
	if got := empty.Score(); got != 0 {
		t.Fatalf("all-skip score = %v, want 0", got)
	}
}

func TestOverallScoreAggregatesAcrossProtocols(t *testing.T) {
	rr := RunResult{
		ProtocolResults: map[string]ProtocolResult{
			"atp": {Passed: 4, Failed: 1},
			"aip": {Passed: 3, Failed: 2},
		},
	}
	if got := rr.OverallScore(); got != 0.7 {
		t.Fatalf("overall score = %v, want 0.7", got)
	}
	if got := rr.OverallScorePct(); got != 70 {
		t.Fatalf("overall pct = %v, want 70", got)
	}

	var zero RunResult
	if got := zero.OverallScore(); got != 0 {
		t.Fatalf("empty run score = %v, want 0", got)
	}
}
