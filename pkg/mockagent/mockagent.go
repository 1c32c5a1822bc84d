// Package mockagent provides a minimal in-memory agent governance
// system used as a conformance target, handy for demos and for
// exercising the toolkit end to end without a real implementation.
//
// Trust levels and budget limits are static: set once by the owner,
// never modified automatically. Cross-protocol operations are
// deliberately not implemented, so runs against this mock show a
// realistic partial implementation.
package mockagent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"certline/pkg/conformance"
)

// Static spend limit per agent per period. Owner-configured, never
// computed.
const spendLimitUSD = 500.0

var levelRank = map[string]int{"L1": 1, "L2": 2, "L3": 3, "L4": 4, "L5": 5}

type identityRecord struct {
	IdentityID string         `json:"identity_id"`
	AgentID    string         `json:"agent_id"`
	PublicKey  string         `json:"public_key"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Status     string         `json:"status"`
}

type spendEntry struct {
	spendID     string
	agentID     string
	amount      float64
	hasAmount   bool
	currency    string
	description string
}

// System is the in-memory mock implementation of the Adapter contract.
type System struct {
	mu          sync.Mutex
	trustLevels map[string]string
	auditLog    []map[string]any
	identities  map[string]identityRecord
	spendLedger []spendEntry
	memory      map[string]map[string]any
}

func New() *System {
	return &System{
		trustLevels: make(map[string]string),
		identities:  make(map[string]identityRecord),
		memory:      make(map[string]map[string]any),
	}
}

func (s *System) ImplementationName() string { return "MockAgentSystem v0.1.0 (builtin)" }

// Setup seeds well-known agents so lookup checks pass without prior
// registration.
func (s *System) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trustLevels["test-agent-001"] = "L2"
	s.identities["test-agent-aip-001"] = identityRecord{
		IdentityID: "iid-test-aip-001",
		AgentID:    "test-agent-aip-001",
		PublicKey:  "test-public-key-placeholder",
		Status:     "active",
	}
	return nil
}

func (s *System) Teardown(ctx context.Context) error { return nil }

// Invoke dispatches a protocol operation to its handler through an
// explicit switch, so unhandled operations are visible at a glance.
func (s *System) Invoke(ctx context.Context, protocol, operation string, payload map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch protocol + "/" + operation {
	case "atp/set_trust_level":
		return s.setTrustLevel(payload), nil
	case "atp/check_trust_requirement":
		return s.checkTrustRequirement(payload), nil
	case "atp/change_trust_level":
		return s.changeTrustLevel(payload), nil
	case "atp/get_recent_audit_entries":
		return s.recentAuditEntries(payload), nil
	case "aip/register_identity":
		return s.registerIdentity(payload), nil
	case "aip/lookup_identity":
		return s.lookupIdentity(payload), nil
	case "aip/validate_credential":
		return s.validateCredential(payload), nil
	case "aip/revoke_identity":
		return s.revokeIdentity(payload), nil
	case "aeap/check_spend_allowed":
		return s.checkSpendAllowed(payload), nil
	case "aeap/record_spend":
		return s.recordSpend(payload), nil
	case "aeap/get_budget_status":
		return s.budgetStatus(payload), nil
	case "aoap/append_audit_entry":
		return s.appendAuditEntry(payload), nil
	case "aoap/export_audit_log":
		return s.exportAuditLog(payload), nil
	case "aoap/verify_audit_chain":
		return s.verifyAuditChain(payload), nil
	case "aoap/query_audit_entries":
		return s.queryAuditEntries(payload), nil
	case "amgp/write_memory_record":
		return s.writeMemoryRecord(payload), nil
	case "amgp/query_memory_records":
		return s.queryMemoryRecords(payload), nil
	case "amgp/delete_memory_record":
		return s.deleteMemoryRecord(payload), nil
	default:
		return nil, fmt.Errorf("operation %q for protocol %q: %w", operation, protocol, conformance.ErrNotImplemented)
	}
}

func str(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func num(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func (s *System) setTrustLevel(payload map[string]any) map[string]any {
	agentID, level := str(payload, "agent_id"), str(payload, "level")
	s.trustLevels[agentID] = level
	s.auditLog = append(s.auditLog, map[string]any{
		"event": "set_trust_level", "agent_id": agentID, "level": level,
	})
	return map[string]any{"success": true}
}

func (s *System) checkTrustRequirement(payload map[string]any) map[string]any {
	agentID := str(payload, "agent_id")
	required := str(payload, "required_level")
	current := str(payload, "current_level")
	if current == "" {
		current = s.trustLevels[agentID]
		if current == "" {
			current = "L1"
		}
	}

	currentRank := levelRank[current]
	requiredRank, ok := levelRank[required]
	if !ok {
		requiredRank = 99
	}
	allowed := currentRank >= requiredRank

	s.auditLog = append(s.auditLog, map[string]any{
		"event":          "check_trust_requirement",
		"agent_id":       agentID,
		"required_level": required,
		"current_level":  current,
		"allowed":        allowed,
	})
	if allowed {
		return map[string]any{"allowed": true}
	}
	return map[string]any{
		"allowed": false,
		"reason":  fmt.Sprintf("Agent '%s' has trust level %s, but %s is required.", agentID, current, required),
	}
}

func (s *System) changeTrustLevel(payload map[string]any) map[string]any {
	agentID := str(payload, "agent_id")
	newLevel := str(payload, "new_level")
	authorizedBy := str(payload, "authorized_by")
	s.trustLevels[agentID] = newLevel
	s.auditLog = append(s.auditLog, map[string]any{
		"event":         "change_trust_level",
		"agent_id":      agentID,
		"new_level":     newLevel,
		"authorized_by": authorizedBy,
	})
	return map[string]any{"success": true, "authorized_by": authorizedBy}
}

func (s *System) recentAuditEntries(payload map[string]any) map[string]any {
	limit := 10
	if v, ok := num(payload, "limit"); ok && v > 0 {
		limit = int(v)
	}
	start := len(s.auditLog) - limit
	if start < 0 {
		start = 0
	}
	entries := make([]any, 0, len(s.auditLog)-start)
	for _, e := range s.auditLog[start:] {
		entries = append(entries, e)
	}
	return map[string]any{"entries": entries}
}

func (s *System) registerIdentity(payload map[string]any) map[string]any {
	agentID := str(payload, "agent_id")
	identityID := "iid-" + uuid.NewString()[:12]
	metadata, _ := payload["metadata"].(map[string]any)
	s.identities[agentID] = identityRecord{
		IdentityID: identityID,
		AgentID:    agentID,
		PublicKey:  str(payload, "public_key"),
		Metadata:   metadata,
		Status:     "active",
	}
	return map[string]any{"registered": true, "identity_id": identityID}
}

func (s *System) lookupIdentity(payload map[string]any) map[string]any {
	agentID := str(payload, "agent_id")
	rec, ok := s.identities[agentID]
	if !ok {
		return map[string]any{"agent_id": agentID, "status": "not_found"}
	}
	return map[string]any{
		"identity_id": rec.IdentityID,
		"agent_id":    rec.AgentID,
		"public_key":  rec.PublicKey,
		"status":      rec.Status,
	}
}

func (s *System) validateCredential(payload map[string]any) map[string]any {
	// Test vectors: credentials containing "invalid" are always rejected.
	if strings.Contains(strings.ToLower(str(payload, "credential_value")), "invalid") {
		return map[string]any{"valid": false, "reason": "Credential failed validation"}
	}
	return map[string]any{"valid": true}
}

func (s *System) revokeIdentity(payload map[string]any) map[string]any {
	agentID := str(payload, "agent_id")
	reason := str(payload, "reason")
	if reason == "" {
		reason = "unspecified"
	}
	revokedBy := str(payload, "revoked_by")
	if revokedBy == "" {
		revokedBy = "unknown"
	}
	if rec, ok := s.identities[agentID]; ok {
		rec.Status = "revoked"
		s.identities[agentID] = rec
	}
	s.auditLog = append(s.auditLog, map[string]any{
		"event":      "revoke_identity",
		"agent_id":   agentID,
		"reason":     reason,
		"revoked_by": revokedBy,
	})
	return map[string]any{"revoked": true, "agent_id": agentID, "revoked_by": revokedBy}
}

func (s *System) checkSpendAllowed(payload map[string]any) map[string]any {
	amount, _ := num(payload, "amount")
	if amount > spendLimitUSD {
		return map[string]any{
			"allowed": false,
			"reason":  fmt.Sprintf("Requested amount %v USD exceeds the static limit of %v USD.", amount, spendLimitUSD),
		}
	}
	return map[string]any{"allowed": true}
}

func (s *System) recordSpend(payload map[string]any) map[string]any {
	spendID := "spend-" + uuid.NewString()[:12]
	amount, hasAmount := num(payload, "amount")
	currency := str(payload, "currency")
	if currency == "" {
		currency = "USD"
	}
	s.spendLedger = append(s.spendLedger, spendEntry{
		spendID:     spendID,
		agentID:     str(payload, "agent_id"),
		amount:      amount,
		hasAmount:   hasAmount,
		currency:    currency,
		description: str(payload, "description"),
	})
	return map[string]any{"recorded": true, "spend_id": spendID}
}

func (s *System) budgetStatus(payload map[string]any) map[string]any {
	agentID := str(payload, "agent_id")
	var totalSpent float64
	for _, entry := range s.spendLedger {
		if entry.agentID == agentID && entry.hasAmount {
			totalSpent += entry.amount
		}
	}
	remaining := spendLimitUSD - totalSpent
	if remaining < 0 {
		remaining = 0
	}
	return map[string]any{
		"agent_id":  agentID,
		"limit":     spendLimitUSD,
		"spent":     totalSpent,
		"remaining": remaining,
		"currency":  "USD",
	}
}

func (s *System) appendAuditEntry(payload map[string]any) map[string]any {
	entryID := "entry-" + uuid.NewString()[:12]
	entry := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		entry[k] = v
	}
	entry["entry_id"] = entryID
	s.auditLog = append(s.auditLog, entry)
	return map[string]any{"appended": true, "entry_id": entryID}
}

func (s *System) exportAuditLog(payload map[string]any) map[string]any {
	format := str(payload, "format")
	if format == "" {
		format = "json"
	}
	return map[string]any{
		"entries": s.filterAuditEntries(str(payload, "agent_id"), ""),
		"format":  format,
	}
}

func (s *System) verifyAuditChain(payload map[string]any) map[string]any {
	// The mock carries no real hash chain; it always reports valid.
	return map[string]any{"valid": true, "entries_checked": len(s.auditLog)}
}

func (s *System) queryAuditEntries(payload map[string]any) map[string]any {
	return map[string]any{
		"entries": s.filterAuditEntries(str(payload, "agent_id"), str(payload, "event_type")),
	}
}

func (s *System) filterAuditEntries(agentID, eventType string) []any {
	entries := make([]any, 0, len(s.auditLog))
	for _, e := range s.auditLog {
		if agentID != "" && e["agent_id"] != agentID {
			continue
		}
		if eventType != "" && e["event_type"] != eventType {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func (s *System) writeMemoryRecord(payload map[string]any) map[string]any {
	retention := str(payload, "retention_policy")
	if retention == "" {
		retention = "session"
	}
	if consent, ok := payload["consent_token"]; retention == "long_term" && (!ok || consent == nil) {
		return map[string]any{
			"written": false,
			"reason":  "Long-term retention requires a consent token.",
		}
	}
	recordID := "rec-" + uuid.NewString()[:12]
	s.memory[recordID] = map[string]any{
		"record_id":        recordID,
		"agent_id":         payload["agent_id"],
		"record_type":      payload["record_type"],
		"content":          payload["content"],
		"retention_policy": retention,
	}
	return map[string]any{"written": true, "record_id": recordID}
}

func (s *System) queryMemoryRecords(payload map[string]any) map[string]any {
	agentID := str(payload, "agent_id")
	retention := str(payload, "retention_policy")
	records := make([]any, 0, len(s.memory))
	for _, r := range s.memory {
		if agentID != "" && r["agent_id"] != agentID {
			continue
		}
		if retention != "" && r["retention_policy"] != retention {
			continue
		}
		records = append(records, r)
	}
	return map[string]any{"records": records}
}

func (s *System) deleteMemoryRecord(payload map[string]any) map[string]any {
	recordID := str(payload, "record_id")
	delete(s.memory, recordID)
	return map[string]any{"deleted": true, "record_id": recordID}
}
