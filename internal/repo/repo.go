// Package repo persists lifecycle records, lifecycle events, and fleet
// agent statuses in the workspace SQLite database. The lifecycle
// manager stays the source of truth for transition rules; the repo only
// stores and rehydrates its snapshots.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"certline/pkg/certify"
	"certline/pkg/dashboard"
	"certline/pkg/lifecycle"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// UpsertRecord stores the latest snapshot of a certification record.
func (r Repo) UpsertRecord(ctx context.Context, rec lifecycle.Record) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO cert_records(record_id,agent_id,certification_level,issued_at,expires_at,state,renewal_count,revocation_reason,assessment_report_hash)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(record_id) DO UPDATE SET
    expires_at=excluded.expires_at,
    state=excluded.state,
    renewal_count=excluded.renewal_count,
    revocation_reason=excluded.revocation_reason,
    assessment_report_hash=excluded.assessment_report_hash`,
		rec.RecordID, rec.AgentID, rec.CertificationLevel, formatTime(rec.IssuedAt), formatTime(rec.ExpiresAt),
		string(rec.State), rec.RenewalCount, nullable(rec.RevocationReason), rec.AssessmentReportHash)
	return err
}

func scanRecord(scan func(dest ...any) error) (lifecycle.Record, error) {
	var rec lifecycle.Record
	var issuedAt, expiresAt, state string
	var reason sql.NullString
	if err := scan(&rec.RecordID, &rec.AgentID, &rec.CertificationLevel, &issuedAt, &expiresAt, &state, &rec.RenewalCount, &reason, &rec.AssessmentReportHash); err != nil {
		return rec, err
	}
	var err error
	if rec.IssuedAt, err = parseTime(issuedAt); err != nil {
		return rec, err
	}
	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return rec, err
	}
	rec.State = lifecycle.State(state)
	if reason.Valid {
		rec.RevocationReason = reason.String
	}
	return rec, nil
}

const recordColumns = `record_id,agent_id,certification_level,issued_at,expires_at,state,renewal_count,revocation_reason,assessment_report_hash`

func (r Repo) GetRecord(ctx context.Context, recordID string) (lifecycle.Record, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM cert_records WHERE record_id=?`, recordID)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	return rec, err
}

// ListRecords returns every stored record, newest issuance first.
func (r Repo) ListRecords(ctx context.Context) ([]lifecycle.Record, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+recordColumns+` FROM cert_records ORDER BY issued_at DESC, record_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []lifecycle.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// InsertEvents appends lifecycle events. Events are immutable so
// duplicates by id are ignored rather than updated.
func (r Repo) InsertEvents(ctx context.Context, events []lifecycle.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO cert_events(event_id,record_id,event_type,occurred_at,details) VALUES (?,?,?,?,?)`,
			ev.EventID, ev.RecordID, ev.EventType, formatTime(ev.OccurredAt), ev.Details); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListEvents returns a record's lifecycle history in chronological
// order. An empty record id returns the full event log.
func (r Repo) ListEvents(ctx context.Context, recordID string) ([]lifecycle.Event, error) {
	query := `SELECT event_id,record_id,event_type,occurred_at,details FROM cert_events ORDER BY occurred_at ASC, event_id ASC`
	var args []any
	if recordID != "" {
		query = `SELECT event_id,record_id,event_type,occurred_at,details FROM cert_events WHERE record_id=? ORDER BY occurred_at ASC, event_id ASC`
		args = append(args, recordID)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []lifecycle.Event
	for rows.Next() {
		var ev lifecycle.Event
		var occurredAt string
		if err := rows.Scan(&ev.EventID, &ev.RecordID, &ev.EventType, &occurredAt, &ev.Details); err != nil {
			return nil, err
		}
		if ev.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

// LoadManager rehydrates a lifecycle manager from storage.
func (r Repo) LoadManager(ctx context.Context, policy lifecycle.Policy) (*lifecycle.Manager, error) {
	records, err := r.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	events, err := r.ListEvents(ctx, "")
	if err != nil {
		return nil, err
	}
	m := lifecycle.NewManager(policy)
	m.Restore(records, events)
	return m, nil
}

// SaveManagerState persists the given record snapshots and events in
// one pass, typically after a lifecycle transition.
func (r Repo) SaveManagerState(ctx context.Context, records []lifecycle.Record, events []lifecycle.Event) error {
	for _, rec := range records {
		if err := r.UpsertRecord(ctx, rec); err != nil {
			return fmt.Errorf("persist record %s: %w", rec.RecordID, err)
		}
	}
	if err := r.InsertEvents(ctx, events); err != nil {
		return fmt.Errorf("persist lifecycle events: %w", err)
	}
	return nil
}

// UpsertFleetAgent stores an agent status snapshot, replacing any
// previous snapshot for the same agent id.
func (r Repo) UpsertFleetAgent(ctx context.Context, status dashboard.AgentStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	passed, err := json.Marshal(status.ProtocolsPassed)
	if err != nil {
		return err
	}
	failed, err := json.Marshal(status.ProtocolsFailed)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO fleet_agents(agent_id,agent_name,certification_level,last_assessment_date,expiry_date,protocols_passed,protocols_failed,pass_rate)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(agent_id) DO UPDATE SET
    agent_name=excluded.agent_name,
    certification_level=excluded.certification_level,
    last_assessment_date=excluded.last_assessment_date,
    expiry_date=excluded.expiry_date,
    protocols_passed=excluded.protocols_passed,
    protocols_failed=excluded.protocols_failed,
    pass_rate=excluded.pass_rate`,
		status.AgentID, status.AgentName, string(status.CertificationLevel),
		formatTime(status.LastAssessmentDate), formatTime(status.ExpiryDate),
		string(passed), string(failed), status.PassRate)
	return err
}

func (r Repo) DeleteFleetAgent(ctx context.Context, agentID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM fleet_agents WHERE agent_id=?`, agentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFleetAgents returns all stored agent statuses ordered by name.
func (r Repo) ListFleetAgents(ctx context.Context) ([]dashboard.AgentStatus, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT agent_id,agent_name,certification_level,last_assessment_date,expiry_date,protocols_passed,protocols_failed,pass_rate FROM fleet_agents ORDER BY agent_name ASC, agent_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []dashboard.AgentStatus
	for rows.Next() {
		var status dashboard.AgentStatus
		var level, lastAssessment, expiry, passed, failed string
		if err := rows.Scan(&status.AgentID, &status.AgentName, &level, &lastAssessment, &expiry, &passed, &failed, &status.PassRate); err != nil {
			return nil, err
		}
		status.CertificationLevel = certify.Level(level)
		if status.LastAssessmentDate, err = parseTime(lastAssessment); err != nil {
			return nil, err
		}
		if status.ExpiryDate, err = parseTime(expiry); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(passed), &status.ProtocolsPassed); err != nil {
			return nil, fmt.Errorf("decode protocols_passed for %s: %w", status.AgentID, err)
		}
		if err := json.Unmarshal([]byte(failed), &status.ProtocolsFailed); err != nil {
			return nil, fmt.Errorf("decode protocols_failed for %s: %w", status.AgentID, err)
		}
		res = append(res, status)
	}
	return res, rows.Err()
}

// LoadDashboard rehydrates a fleet dashboard from storage.
func (r Repo) LoadDashboard(ctx context.Context, orgName string) (*dashboard.Dashboard, error) {
	agents, err := r.ListFleetAgents(ctx)
	if err != nil {
		return nil, err
	}
	d := dashboard.New(orgName)
	for _, status := range agents {
		if err := d.RegisterAgent(status); err != nil {
			return nil, fmt.Errorf("restore agent %s: %w", status.AgentID, err)
		}
	}
	return d, nil
}
