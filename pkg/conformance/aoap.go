package conformance

import "fmt"

// aoapSuite covers audit logging. Recording only: nothing here tests or
// expects anomaly detection or counterfactual generation.
func aoapSuite() suite {
	return suite{
		protocol: "aoap",
		checks: []check{
			{
				id:          "AOAP-MUST-001",
				description: "Audit log append is supported with entry identifier",
				level:       LevelMust,
				operation:   "append_audit_entry",
				payload: map[string]any{
					"agent_id":   "test-agent-aoap-001",
					"event_type": "tool_call",
					"decision":   "allow",
					"context":    map[string]any{"tool": "read_file", "path": "/tmp/test"},
				},
				judge: func(resp map[string]any) (Status, string) {
					if _, hasID := resp["entry_id"]; resp["appended"] == true && hasID {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("append_audit_entry must return appended=true and entry_id. Got: %v", resp)
				},
			},
			{
				id:          "AOAP-MUST-002",
				description: "Audit log JSON export is supported",
				level:       LevelMust,
				operation:   "export_audit_log",
				payload:     map[string]any{"format": "json", "agent_id": "test-agent-aoap-001"},
				judge: func(resp map[string]any) (Status, string) {
					if entries, ok := resp["entries"]; ok && isList(entries) {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("export_audit_log must return an 'entries' list. Got: %v", resp)
				},
			},
			{
				id:          "AOAP-SHOULD-001",
				description: "Offline audit log integrity verification is supported",
				level:       LevelShould,
				operation:   "verify_audit_chain",
				payload:     map[string]any{"agent_id": "test-agent-aoap-001"},
				judge: func(resp map[string]any) (Status, string) {
					if _, ok := resp["valid"]; ok {
						return StatusPass, ""
					}
					return StatusSkip, "verify_audit_chain did not return a 'valid' field (SHOULD, not MUST); consider adding hash-chain integrity"
				},
			},
			{
				id:          "AOAP-MUST-003",
				description: "Audit log query by event type is supported",
				level:       LevelMust,
				operation:   "query_audit_entries",
				payload: map[string]any{
					"agent_id":   "test-agent-aoap-001",
					"event_type": "tool_call",
				},
				judge: func(resp map[string]any) (Status, string) {
					if entries, ok := resp["entries"]; ok && isList(entries) {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("query_audit_entries must return an 'entries' list. Got: %v", resp)
				},
			},
		},
	}
}
