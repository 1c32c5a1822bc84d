package conformance

import "fmt"

// aeapSuite verifies economic action governance. All budget limits
// checked here are static; no adaptive allocation is tested or expected.
func aeapSuite() suite {
	return suite{
		protocol: "aeap",
		checks: []check{
			{
				id:          "AEAP-MUST-001",
				description: "Static spend limit enforcement is supported",
				level:       LevelMust,
				operation:   "check_spend_allowed",
				payload: map[string]any{
					"agent_id": "test-agent-aeap-001",
					"amount":   100,
					"currency": "USD",
					"period":   "daily",
				},
				judge: func(resp map[string]any) (Status, string) {
					if _, ok := resp["allowed"]; ok {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("check_spend_allowed must return 'allowed' field. Got: %v", resp)
				},
			},
			{
				id:          "AEAP-MUST-002",
				description: "Spend events are recorded with a unique identifier",
				level:       LevelMust,
				operation:   "record_spend",
				payload: map[string]any{
					"agent_id":    "test-agent-aeap-001",
					"amount":      10,
					"currency":    "USD",
					"description": "test-spend-event",
				},
				judge: func(resp map[string]any) (Status, string) {
					if _, hasID := resp["spend_id"]; resp["recorded"] == true && hasID {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("record_spend must return recorded=true and spend_id. Got: %v", resp)
				},
			},
			{
				id:          "AEAP-MUST-003",
				description: "Budget status query returns remaining and limit fields",
				level:       LevelMust,
				operation:   "get_budget_status",
				payload:     map[string]any{"agent_id": "test-agent-aeap-001", "period": "daily"},
				judge: func(resp map[string]any) (Status, string) {
					_, hasRemaining := resp["remaining"]
					_, hasLimit := resp["limit"]
					if hasRemaining && hasLimit {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("get_budget_status must return 'remaining' and 'limit'. Got: %v", resp)
				},
			},
			{
				id:          "AEAP-MUST-004",
				description: "Spend requests exceeding the static limit are denied",
				level:       LevelMust,
				operation:   "check_spend_allowed",
				// An amount far above any reasonable limit.
				payload: map[string]any{
					"agent_id": "test-agent-aeap-001",
					"amount":   999_999_999,
					"currency": "USD",
					"period":   "daily",
				},
				judge: func(resp map[string]any) (Status, string) {
					if resp["allowed"] == false {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("check_spend_allowed should deny an amount of 999999999, but returned: %v", resp)
				},
			},
		},
	}
}
