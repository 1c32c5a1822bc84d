package conformance

import "fmt"

// atpSuite verifies the normative requirements of the agent trust
// protocol. All checks are static governance decisions; no behavioral
// scoring is tested or expected. Later checks assume the trust level
// seeded by ATP-MUST-001 (or by adapter setup).
func atpSuite() suite {
	return suite{
		protocol: "atp",
		checks: []check{
			{
				id:          "ATP-MUST-001",
				description: "Trust level assignment is supported",
				level:       LevelMust,
				operation:   "set_trust_level",
				payload:     map[string]any{"agent_id": "test-agent-001", "level": "L2"},
				judge: func(resp map[string]any) (Status, string) {
					if resp["success"] == true {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("set_trust_level returned unexpected response: %v", resp)
				},
			},
			{
				id:          "ATP-MUST-002",
				description: "Trust level enforcement rejects insufficient level",
				level:       LevelMust,
				operation:   "check_trust_requirement",
				payload: map[string]any{
					"agent_id":       "test-agent-001",
					"required_level": "L3",
					"current_level":  "L2",
				},
				judge: func(resp map[string]any) (Status, string) {
					// An L2 agent requesting L3 access must be denied.
					if resp["allowed"] == false {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("check_trust_requirement should deny L2 agent requesting L3 access, but returned: %v", resp)
				},
			},
			{
				id:          "ATP-MUST-003",
				description: "Trust level changes require explicit owner authorization",
				level:       LevelMust,
				operation:   "change_trust_level",
				payload: map[string]any{
					"agent_id":      "test-agent-001",
					"new_level":     "L3",
					"authorized_by": "owner-001",
				},
				judge: func(resp map[string]any) (Status, string) {
					if resp["success"] == true && resp["authorized_by"] == "owner-001" {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("change_trust_level must record the authorizing owner. Got: %v", resp)
				},
			},
			{
				id:          "ATP-MUST-004",
				description: "Structured denial returned when trust level is insufficient",
				level:       LevelMust,
				operation:   "check_trust_requirement",
				payload: map[string]any{
					"agent_id":       "test-agent-002",
					"required_level": "L5",
					"current_level":  "L1",
				},
				judge: func(resp map[string]any) (Status, string) {
					if _, hasReason := resp["reason"]; resp["allowed"] == false && hasReason {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("denial response must include a 'reason' field. Got: %v", resp)
				},
			},
			{
				id:          "ATP-SHOULD-001",
				description: "Audit entries are recorded for trust decisions",
				level:       LevelShould,
				operation:   "get_recent_audit_entries",
				payload:     map[string]any{"limit": 10},
				judge: func(resp map[string]any) (Status, string) {
					// A missing 'entries' key is treated as an empty list.
					if entries, ok := resp["entries"]; !ok || isList(entries) {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("expected 'entries' list in response, got: %v", resp)
				},
			},
		},
	}
}
