package conformance

import (
	"fmt"
	"strings"
)

// amgpSuite covers memory record retention policies, deletion
// obligations, and consent requirements.
func amgpSuite() suite {
	return suite{
		protocol: "amgp",
		checks: []check{
			{
				id:          "AMGP-MUST-001",
				description: "Memory record writing with retention policy is supported",
				level:       LevelMust,
				operation:   "write_memory_record",
				payload: map[string]any{
					"agent_id":         "test-agent-amgp-001",
					"record_type":      "observation",
					"content":          map[string]any{"data": "test-memory-content"},
					"retention_policy": "session",
				},
				judge: func(resp map[string]any) (Status, string) {
					if _, hasID := resp["record_id"]; resp["written"] == true && hasID {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("write_memory_record must return written=true and record_id. Got: %v", resp)
				},
			},
			{
				id:          "AMGP-MUST-002",
				description: "Memory records can be queried by retention policy",
				level:       LevelMust,
				operation:   "query_memory_records",
				payload: map[string]any{
					"agent_id":         "test-agent-amgp-001",
					"retention_policy": "session",
				},
				judge: func(resp map[string]any) (Status, string) {
					if records, ok := resp["records"]; ok && isList(records) {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("query_memory_records must return a 'records' list. Got: %v", resp)
				},
			},
			{
				id:          "AMGP-MUST-003",
				description: "Memory record deletion is supported",
				level:       LevelMust,
				operation:   "delete_memory_record",
				payload: map[string]any{
					"record_id":    "test-record-amgp-delete",
					"requested_by": "owner-001",
				},
				judge: func(resp map[string]any) (Status, string) {
					if resp["deleted"] == true {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("delete_memory_record must return deleted=true. Got: %v", resp)
				},
			},
			{
				id:          "AMGP-SHOULD-001",
				description: "Long-term retention requires a consent token",
				level:       LevelShould,
				operation:   "write_memory_record",
				payload: map[string]any{
					"agent_id":         "test-agent-amgp-001",
					"record_type":      "observation",
					"content":          map[string]any{"data": "test-long-term-content"},
					"retention_policy": "long_term",
					"consent_token":    nil,
				},
				judge: func(resp map[string]any) (Status, string) {
					// Without consent, long-term retention should be refused.
					if resp["written"] == false && strings.Contains(strings.ToLower(fmt.Sprint(resp)), "consent") {
						return StatusPass, ""
					}
					// A different consent model is not a failure for a SHOULD.
					return StatusSkip, "implementation did not enforce consent for long-term retention (SHOULD, not MUST); consider adding consent enforcement"
				},
			},
		},
	}
}
