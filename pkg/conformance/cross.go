package conformance

import (
	"fmt"
	"strings"
)

// crossSuite covers cross-protocol priority and consistency rules.
// These checks validate observable properties only. Cross-protocol
// operations are optional surfaces, so even MUST checks degrade to
// SKIP when the operation is absent.
func crossSuite() suite {
	return suite{
		protocol: "cross_protocol",
		checks: []check{
			{
				id:          "CROSS-MUST-001",
				description: "Insufficient trust blocks economic actions (ATP > AEAP priority)",
				level:       LevelMust,
				operation:   "check_action_allowed",
				payload: map[string]any{
					"agent_id":             "test-agent-cross-001",
					"action_type":          "economic_spend",
					"trust_level":          "L1",
					"required_trust_level": "L3",
					"budget_remaining":     1000,
					"amount":               10,
				},
				judge: func(resp map[string]any) (Status, string) {
					if resp["allowed"] == false && resp["blocked_by"] == "atp" {
						return StatusPass, ""
					}
					return StatusSkip, fmt.Sprintf("implementation did not expose 'check_action_allowed' with cross-protocol priority; consider implementing the cross-protocol action check. Got: %v", resp)
				},
				notImplemented:        StatusSkip,
				notImplementedMessage: "cross-protocol action check not implemented",
			},
			{
				id:          "CROSS-MUST-002",
				description: "Trust assignment requires verified identity (AIP prerequisite for ATP)",
				level:       LevelMust,
				operation:   "assign_trust_with_identity_check",
				payload: map[string]any{
					"agent_id":          "test-agent-cross-002",
					"requested_level":   "L2",
					"identity_verified": false,
				},
				judge: func(resp map[string]any) (Status, string) {
					if resp["success"] == false && strings.Contains(strings.ToLower(fmt.Sprint(resp)), "identity") {
						return StatusPass, ""
					}
					return StatusSkip, "implementation did not expose cross-protocol identity check for trust assignment; consider enforcing AIP verification as a prerequisite"
				},
				notImplemented:        StatusSkip,
				notImplementedMessage: "cross-protocol operation not implemented",
			},
			{
				id:          "CROSS-SHOULD-001",
				description: "Audit log covers denied actions from all protocols",
				level:       LevelShould,
				operation:   "get_denial_audit_entries",
				payload:     map[string]any{"agent_id": "test-agent-cross-001"},
				judge: func(resp map[string]any) (Status, string) {
					if entries, ok := resp["entries"]; ok && isList(entries) {
						return StatusPass, ""
					}
					return StatusSkip, "get_denial_audit_entries not implemented or returned unexpected structure (SHOULD, not MUST)"
				},
			},
		},
	}
}
