// Package lifecycle manages certification records from issuance through
// renewal, suspension, reinstatement, revocation, and expiry.
//
// All state is held in memory. Expiry processing is not automatic: the
// operator must call CheckExpirations explicitly on a schedule of their
// choosing.
package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a certification record.
type State string

const (
	StateActive         State = "active"
	StateExpired        State = "expired"
	StateRevoked        State = "revoked"
	StateSuspended      State = "suspended"
	StatePendingRenewal State = "pending_renewal"
)

// Event types recorded in a record's lifecycle history.
const (
	EventIssued     = "issued"
	EventRenewed    = "renewed"
	EventExpired    = "expired"
	EventRevoked    = "revoked"
	EventSuspended  = "suspended"
	EventReinstated = "reinstated"
)

// ErrNotFound is returned when a record id is not in the registry. It
// is distinct from state-invariant violations: "not found" versus
// "found but invalid transition."
var ErrNotFound = errors.New("record not found")

// Record is an immutable snapshot of a single certification. Every
// transition produces a new snapshot; the registry stores the latest
// one and past snapshots are never altered.
type Record struct {
	RecordID             string     `json:"record_id"`
	AgentID              string     `json:"agent_id"`
	CertificationLevel   string     `json:"certification_level"`
	IssuedAt             time.Time  `json:"issued_at"`
	ExpiresAt            time.Time  `json:"expires_at"`
	State                State      `json:"state"`
	RenewalCount         int        `json:"renewal_count"`
	RevocationReason     string     `json:"revocation_reason,omitempty"`
	AssessmentReportHash string     `json:"assessment_report_hash"`
}

// Policy governs certification validity and renewal behaviour.
type Policy struct {
	// ValidityPeriodDays is how long a newly issued or renewed
	// certification remains valid.
	ValidityPeriodDays int `json:"validity_period_days" yaml:"validity_period_days"`

	// GracePeriodDays is how long after expiry a renewal is still
	// permitted.
	GracePeriodDays int `json:"grace_period_days" yaml:"grace_period_days"`

	// MaxRenewals caps how many times a record may be renewed. Once
	// reached, a new assessment and issuance is required.
	MaxRenewals int `json:"max_renewals" yaml:"max_renewals"`

	// RequireReassessment forces a new assessment report hash on every
	// renewal. When false the existing hash carries forward.
	RequireReassessment bool `json:"require_reassessment" yaml:"require_reassessment"`
}

// DefaultPolicy returns the documented default renewal policy: two
// years of validity, a 30-day grace period, at most 10 renewals, and
// mandatory reassessment.
func DefaultPolicy() Policy {
	return Policy{
		ValidityPeriodDays:  730,
		GracePeriodDays:     30,
		MaxRenewals:         10,
		RequireReassessment: true,
	}
}

// Event is a single immutable entry in a record's lifecycle history.
type Event struct {
	EventID    string    `json:"event_id"`
	RecordID   string    `json:"record_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Details    string    `json:"details"`
}

// Manager holds the record registry and the append-only event log.
// Public operations take the lock for their full read-then-write span,
// so transitions never interleave. Rejected operations leave the
// record unchanged and append no event.
type Manager struct {
	mu      sync.Mutex
	policy  Policy
	records map[string]Record
	events  map[string][]Event

	// Now is injectable for tests.
	Now func() time.Time
}

func NewManager(policy Policy) *Manager {
	return &Manager{
		policy:  policy,
		records: make(map[string]Record),
		events:  make(map[string][]Event),
		Now:     time.Now,
	}
}

// Policy returns the renewal policy the manager was built with.
func (m *Manager) Policy() Policy { return m.policy }

func (m *Manager) now() time.Time { return m.Now().UTC() }

func (m *Manager) appendEvent(recordID, eventType, details string, occurredAt time.Time) Event {
	ev := Event{
		EventID:    uuid.NewString(),
		RecordID:   recordID,
		EventType:  eventType,
		OccurredAt: occurredAt,
		Details:    details,
	}
	m.events[recordID] = append(m.events[recordID], ev)
	return ev
}

// Issue creates a new active certification record for an agent. Expiry
// is now plus the policy's validity period, and an "issued" event is
// appended.
func (m *Manager) Issue(agentID, certificationLevel, assessmentReportHash string) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := Record{
		RecordID:             uuid.NewString(),
		AgentID:              agentID,
		CertificationLevel:   certificationLevel,
		IssuedAt:             now,
		ExpiresAt:            now.AddDate(0, 0, m.policy.ValidityPeriodDays),
		State:                StateActive,
		AssessmentReportHash: assessmentReportHash,
	}
	m.records[rec.RecordID] = rec
	m.appendEvent(rec.RecordID, EventIssued, fmt.Sprintf(
		"Certification issued at level '%s' for agent '%s'. Expires %s.",
		certificationLevel, agentID, rec.ExpiresAt.Format("2006-01-02"),
	), now)
	return rec
}

// Renew extends a record's expiry. Renewal is permitted when the
// record is active, or expired but still within the grace period.
// Rejections are checked in a fixed order: unknown record, revoked,
// suspended, renewal limit, grace period, then missing reassessment
// hash. Pass an empty newAssessmentReportHash to carry the existing
// hash forward where the policy allows it.
func (m *Manager) Renew(recordID, newAssessmentReportHash string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[recordID]
	if !ok {
		return Record{}, fmt.Errorf("record %q: %w", recordID, ErrNotFound)
	}

	now := m.now()

	if rec.State == StateRevoked {
		return Record{}, fmt.Errorf("record %q has been revoked and cannot be renewed: a new assessment and issuance is required", recordID)
	}
	if rec.State == StateSuspended {
		return Record{}, fmt.Errorf("record %q is suspended: reinstate the record before renewing", recordID)
	}
	if rec.RenewalCount >= m.policy.MaxRenewals {
		return Record{}, fmt.Errorf("record %q has reached the maximum renewal limit (%d): a new assessment and issuance is required", recordID, m.policy.MaxRenewals)
	}

	graceDeadline := rec.ExpiresAt.AddDate(0, 0, m.policy.GracePeriodDays)
	if rec.State == StateExpired && now.After(graceDeadline) {
		return Record{}, fmt.Errorf("record %q expired on %s and the grace period (%d days) has passed: a new assessment and issuance is required",
			recordID, rec.ExpiresAt.Format("2006-01-02"), m.policy.GracePeriodDays)
	}

	reportHash := rec.AssessmentReportHash
	if m.policy.RequireReassessment {
		if newAssessmentReportHash == "" {
			return Record{}, errors.New("policy requires a new assessment report hash on renewal")
		}
		reportHash = newAssessmentReportHash
	} else if newAssessmentReportHash != "" {
		reportHash = newAssessmentReportHash
	}

	renewed := rec
	renewed.ExpiresAt = now.AddDate(0, 0, m.policy.ValidityPeriodDays)
	renewed.State = StateActive
	renewed.RenewalCount = rec.RenewalCount + 1
	renewed.AssessmentReportHash = reportHash
	m.records[recordID] = renewed
	m.appendEvent(recordID, EventRenewed, fmt.Sprintf(
		"Certification renewed (renewal #%d). New expiry: %s.",
		renewed.RenewalCount, renewed.ExpiresAt.Format("2006-01-02"),
	), now)
	return renewed, nil
}

// Revoke permanently revokes a record. Revocation is terminal: a
// revoked record cannot be renewed, suspended, or reinstated.
func (m *Manager) Revoke(recordID, reason string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[recordID]
	if !ok {
		return Record{}, fmt.Errorf("record %q: %w", recordID, ErrNotFound)
	}
	if rec.State == StateRevoked {
		return Record{}, fmt.Errorf("record %q is already revoked", recordID)
	}

	now := m.now()
	revoked := rec
	revoked.State = StateRevoked
	revoked.RevocationReason = reason
	m.records[recordID] = revoked
	m.appendEvent(recordID, EventRevoked, fmt.Sprintf("Certification revoked. Reason: %s", reason), now)
	return revoked, nil
}

// Suspend temporarily suspends a record. Unlike revocation, suspension
// is reversible through Reinstate.
func (m *Manager) Suspend(recordID, reason string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[recordID]
	if !ok {
		return Record{}, fmt.Errorf("record %q: %w", recordID, ErrNotFound)
	}
	if rec.State == StateSuspended {
		return Record{}, fmt.Errorf("record %q is already suspended", recordID)
	}
	if rec.State == StateRevoked {
		return Record{}, fmt.Errorf("record %q is revoked and cannot be suspended: revocation is terminal", recordID)
	}

	now := m.now()
	suspended := rec
	suspended.State = StateSuspended
	m.records[recordID] = suspended
	m.appendEvent(recordID, EventSuspended, fmt.Sprintf("Certification suspended. Reason: %s", reason), now)
	return suspended, nil
}

// Reinstate returns a suspended record to active state.
func (m *Manager) Reinstate(recordID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[recordID]
	if !ok {
		return Record{}, fmt.Errorf("record %q: %w", recordID, ErrNotFound)
	}
	if rec.State != StateSuspended {
		return Record{}, fmt.Errorf("only suspended records can be reinstated: record %q is currently in state %q", recordID, rec.State)
	}

	now := m.now()
	reinstated := rec
	reinstated.State = StateActive
	m.records[recordID] = reinstated
	m.appendEvent(recordID, EventReinstated, "Certification reinstated from SUSPENDED to ACTIVE.", now)
	return reinstated, nil
}

// CheckExpirations scans all records and transitions expired active
// records to expired state, returning the newly expired snapshots.
// Only active records whose expiry precedes the reference time change;
// everything else is untouched, so a repeated sweep with the same
// reference time returns nothing. Pass the zero time to use the
// current clock.
func (m *Manager) CheckExpirations(reference time.Time) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := reference
	if now.IsZero() {
		now = m.now()
	} else {
		now = now.UTC()
	}

	var newlyExpired []Record
	for id, rec := range m.records {
		if rec.State != StateActive || !rec.ExpiresAt.Before(now) {
			continue
		}
		expired := rec
		expired.State = StateExpired
		m.records[id] = expired
		m.appendEvent(id, EventExpired, fmt.Sprintf(
			"Certification expired. Expiry date was %s.", rec.ExpiresAt.Format("2006-01-02"),
		), now)
		newlyExpired = append(newlyExpired, expired)
	}
	return newlyExpired
}

// Record returns the current snapshot of a record.
func (m *Manager) Record(recordID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[recordID]
	if !ok {
		return Record{}, fmt.Errorf("record %q: %w", recordID, ErrNotFound)
	}
	return rec, nil
}

// RecordsForAgent returns every record held by an agent, newest first.
func (m *Manager) RecordsForAgent(agentID string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.records {
		if rec.AgentID == agentID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out
}

// AllRecords returns every record in the registry, newest first.
func (m *Manager) AllRecords() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out
}

// Events returns a record's lifecycle history in chronological order.
func (m *Manager) Events(recordID string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := append([]Event(nil), m.events[recordID]...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	return events
}

// ExportEventsJSON serialises a record's lifecycle events to an
// indented JSON array in chronological order. A record with no events
// exports as "[]".
func (m *Manager) ExportEventsJSON(recordID string) (string, error) {
	events := m.Events(recordID)
	if events == nil {
		events = []Event{}
	}
	out, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal lifecycle events: %w", err)
	}
	return string(out), nil
}

// Restore loads previously persisted records and events into the
// manager, replacing any in-memory state for the ids involved. It is
// intended for rehydrating from storage at startup.
func (m *Manager) Restore(records []Record, events []Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		m.records[rec.RecordID] = rec
	}
	for _, ev := range events {
		m.events[ev.RecordID] = append(m.events[ev.RecordID], ev)
	}
}
