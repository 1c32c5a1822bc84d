package conformance

import "fmt"

// aipSuite verifies identity registration, lookup, credential validation,
// and identity revocation.
func aipSuite() suite {
	return suite{
		protocol: "aip",
		checks: []check{
			{
				id:          "AIP-MUST-001",
				description: "Agent identity registration is supported",
				level:       LevelMust,
				operation:   "register_identity",
				payload: map[string]any{
					"agent_id":   "test-agent-aip-001",
					"public_key": "test-public-key-placeholder",
					"metadata":   map[string]any{"version": "1.0"},
				},
				judge: func(resp map[string]any) (Status, string) {
					if _, hasID := resp["identity_id"]; resp["registered"] == true && hasID {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("register_identity returned unexpected response: %v", resp)
				},
			},
			{
				id:          "AIP-MUST-002",
				description: "Agent identity lookup is supported",
				level:       LevelMust,
				operation:   "lookup_identity",
				payload:     map[string]any{"agent_id": "test-agent-aip-001"},
				judge: func(resp map[string]any) (Status, string) {
					_, hasIdentityID := resp["identity_id"]
					_, hasAgentID := resp["agent_id"]
					if hasIdentityID || hasAgentID {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("lookup_identity returned unexpected response: %v", resp)
				},
			},
			{
				id:          "AIP-MUST-003",
				description: "Credential validation rejects invalid credentials",
				level:       LevelMust,
				operation:   "validate_credential",
				payload: map[string]any{
					"agent_id":         "test-agent-aip-001",
					"credential_type":  "api_key",
					"credential_value": "invalid-credential-for-test",
				},
				judge: func(resp map[string]any) (Status, string) {
					// An invalid credential must be rejected.
					if resp["valid"] == false {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("validate_credential should reject an invalid credential, but returned: %v", resp)
				},
			},
			{
				id:          "AIP-MUST-004",
				description: "Agent identity revocation is supported",
				level:       LevelMust,
				operation:   "revoke_identity",
				payload: map[string]any{
					"agent_id":   "test-agent-aip-revoke",
					"reason":     "test-revocation",
					"revoked_by": "owner-001",
				},
				judge: func(resp map[string]any) (Status, string) {
					if resp["revoked"] == true {
						return StatusPass, ""
					}
					return StatusFail, fmt.Sprintf("revoke_identity returned unexpected response: %v", resp)
				},
			},
		},
	}
}
