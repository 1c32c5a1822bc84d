package mockagent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"certline/pkg/certify"
	"certline/pkg/conformance"
)

func TestFullRunAchievesGold(t *testing.T) {
	sys := New()
	runner := conformance.NewRunner(sys)
	run, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, proto := range run.ProtocolResults {
		for _, c := range proto.Checks {
			if c.Status == conformance.StatusFail || c.Status == conformance.StatusError {
				t.Errorf("%s: %s (%s)", c.CheckID, c.Status, c.Message)
			}
		}
	}

	result := (certify.Scorer{}).Score(run)
	if result.AchievedLevel == nil {
		t.Fatalf("expected an achieved level, got none (missing: %v)", result.MissingProtocols)
	}
	if *result.AchievedLevel != certify.LevelGold {
		t.Fatalf("expected gold, got %s", *result.AchievedLevel)
	}
}

func TestCrossProtocolChecksSkip(t *testing.T) {
	run, err := conformance.NewRunner(New()).Run(context.Background(), []string{"cross_protocol"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	proto, ok := run.ProtocolResults["cross_protocol"]
	if !ok || len(run.ProtocolResults) != 1 {
		t.Fatalf("expected only the cross_protocol result, got %v", run.ProtocolsRun)
	}
	for _, c := range proto.Checks {
		if c.Status != conformance.StatusSkip {
			t.Errorf("%s: expected skip, got %s", c.CheckID, c.Status)
		}
	}
}

func TestCrossProtocolNotImplemented(t *testing.T) {
	_, err := New().Invoke(context.Background(), "cross_protocol", "check_action_allowed", nil)
	if !errors.Is(err, conformance.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestSetupSeedsKnownAgents(t *testing.T) {
	sys := New()
	if err := sys.Setup(context.Background()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	resp, err := sys.Invoke(context.Background(), "atp", "check_trust_requirement", map[string]any{
		"agent_id":       "test-agent-001",
		"required_level": "L2",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["allowed"] != true {
		t.Fatalf("seeded agent at L2 should satisfy an L2 requirement, got %v", resp)
	}

	resp, err = sys.Invoke(context.Background(), "aip", "lookup_identity", map[string]any{
		"agent_id": "test-agent-aip-001",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["identity_id"] != "iid-test-aip-001" || resp["status"] != "active" {
		t.Fatalf("unexpected seeded identity: %v", resp)
	}
}

func TestUnknownAgentDefaultsToL1(t *testing.T) {
	resp, err := New().Invoke(context.Background(), "atp", "check_trust_requirement", map[string]any{
		"agent_id":       "never-seen",
		"required_level": "L2",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["allowed"] != false {
		t.Fatalf("unknown agent should default to L1 and be denied L2, got %v", resp)
	}
	reason, _ := resp["reason"].(string)
	if !strings.Contains(reason, "L1") {
		t.Fatalf("denial reason should mention the current level, got %q", reason)
	}
}

func TestSpendLimitEnforced(t *testing.T) {
	sys := New()
	ctx := context.Background()

	resp, err := sys.Invoke(ctx, "aeap", "check_spend_allowed", map[string]any{
		"agent_id": "a", "amount": 499.0, "currency": "USD",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["allowed"] != true {
		t.Fatalf("499 USD should be allowed, got %v", resp)
	}

	resp, err = sys.Invoke(ctx, "aeap", "check_spend_allowed", map[string]any{
		"agent_id": "a", "amount": 500.01, "currency": "USD",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["allowed"] != false {
		t.Fatalf("amount above the limit should be denied, got %v", resp)
	}
	if _, ok := resp["reason"]; !ok {
		t.Fatalf("denial should carry a reason, got %v", resp)
	}
}

func TestBudgetStatusTracksLedger(t *testing.T) {
	sys := New()
	ctx := context.Background()

	for _, amount := range []float64{100, 50.5} {
		resp, err := sys.Invoke(ctx, "aeap", "record_spend", map[string]any{
			"agent_id": "agent-x", "amount": amount, "currency": "USD",
		})
		if err != nil {
			t.Fatalf("record_spend: %v", err)
		}
		spendID, _ := resp["spend_id"].(string)
		if resp["recorded"] != true || !strings.HasPrefix(spendID, "spend-") {
			t.Fatalf("unexpected record_spend response: %v", resp)
		}
	}
	// A different agent's spend must not count.
	if _, err := sys.Invoke(ctx, "aeap", "record_spend", map[string]any{
		"agent_id": "agent-y", "amount": 400.0,
	}); err != nil {
		t.Fatalf("record_spend: %v", err)
	}

	resp, err := sys.Invoke(ctx, "aeap", "get_budget_status", map[string]any{"agent_id": "agent-x"})
	if err != nil {
		t.Fatalf("get_budget_status: %v", err)
	}
	if resp["spent"] != 150.5 || resp["remaining"] != 349.5 || resp["limit"] != 500.0 {
		t.Fatalf("unexpected budget status: %v", resp)
	}
}

func TestCredentialValidation(t *testing.T) {
	sys := New()
	ctx := context.Background()

	resp, err := sys.Invoke(ctx, "aip", "validate_credential", map[string]any{
		"credential_value": "cred-INVALID-token",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["valid"] != false {
		t.Fatalf("credential containing 'invalid' should be rejected, got %v", resp)
	}

	resp, err = sys.Invoke(ctx, "aip", "validate_credential", map[string]any{
		"credential_value": "cred-ok-token",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["valid"] != true {
		t.Fatalf("well-formed credential should validate, got %v", resp)
	}
}

func TestLongTermMemoryRequiresConsent(t *testing.T) {
	sys := New()
	ctx := context.Background()

	resp, err := sys.Invoke(ctx, "amgp", "write_memory_record", map[string]any{
		"agent_id":         "agent-m",
		"record_type":      "observation",
		"content":          map[string]any{"data": "x"},
		"retention_policy": "long_term",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	reason, _ := resp["reason"].(string)
	if resp["written"] != false || !strings.Contains(strings.ToLower(reason), "consent") {
		t.Fatalf("long-term write without consent should be refused, got %v", resp)
	}

	resp, err = sys.Invoke(ctx, "amgp", "write_memory_record", map[string]any{
		"agent_id":         "agent-m",
		"record_type":      "observation",
		"content":          map[string]any{"data": "x"},
		"retention_policy": "long_term",
		"consent_token":    "consent-123",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp["written"] != true {
		t.Fatalf("long-term write with consent should succeed, got %v", resp)
	}
}

func TestMemoryQueryAndDelete(t *testing.T) {
	sys := New()
	ctx := context.Background()

	write, err := sys.Invoke(ctx, "amgp", "write_memory_record", map[string]any{
		"agent_id":         "agent-m",
		"record_type":      "observation",
		"content":          map[string]any{"data": "x"},
		"retention_policy": "session",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	recordID, _ := write["record_id"].(string)
	if !strings.HasPrefix(recordID, "rec-") {
		t.Fatalf("unexpected record id %q", recordID)
	}

	query, err := sys.Invoke(ctx, "amgp", "query_memory_records", map[string]any{
		"agent_id": "agent-m", "retention_policy": "session",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if records, _ := query["records"].([]any); len(records) != 1 {
		t.Fatalf("expected one record, got %v", query)
	}

	if _, err := sys.Invoke(ctx, "amgp", "delete_memory_record", map[string]any{
		"record_id": recordID,
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	query, err = sys.Invoke(ctx, "amgp", "query_memory_records", map[string]any{
		"agent_id": "agent-m",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if records, _ := query["records"].([]any); len(records) != 0 {
		t.Fatalf("expected record to be gone, got %v", query)
	}
}

func TestAuditFilters(t *testing.T) {
	sys := New()
	ctx := context.Background()

	for _, entry := range []map[string]any{
		{"agent_id": "a1", "event_type": "action", "action": "one"},
		{"agent_id": "a2", "event_type": "action", "action": "two"},
		{"agent_id": "a1", "event_type": "denial", "action": "three"},
	} {
		if _, err := sys.Invoke(ctx, "aoap", "append_audit_entry", entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	resp, err := sys.Invoke(ctx, "aoap", "query_audit_entries", map[string]any{
		"agent_id": "a1", "event_type": "denial",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	entries, _ := resp["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one filtered entry, got %v", resp)
	}

	resp, err = sys.Invoke(ctx, "aoap", "verify_audit_chain", map[string]any{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if resp["valid"] != true || resp["entries_checked"] != 3 {
		t.Fatalf("unexpected chain verification: %v", resp)
	}
}
