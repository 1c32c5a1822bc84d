// Package dashboard aggregates certification status across an
// organisation's agent fleet. All operations are purely local, no
// network calls are made by any operation in this package.
package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"certline/pkg/certify"
)

// AgentStatus is a snapshot of a single agent's certification state
// within the fleet.
type AgentStatus struct {
	AgentID            string        `json:"agent_id"`
	AgentName          string        `json:"agent_name"`
	CertificationLevel certify.Level `json:"certification_level"`
	LastAssessmentDate time.Time     `json:"last_assessment_date"`
	ExpiryDate         time.Time     `json:"expiry_date"`
	ProtocolsPassed    []string      `json:"protocols_passed"`
	ProtocolsFailed    []string      `json:"protocols_failed"`
	PassRate           float64       `json:"pass_rate"`
}

// Validate rejects malformed snapshots before registration.
func (s AgentStatus) Validate() error {
	if s.AgentID == "" {
		return errors.New("agent_id must not be empty")
	}
	if s.PassRate < 0 || s.PassRate > 1 {
		return fmt.Errorf("pass_rate %v out of range [0, 1]", s.PassRate)
	}
	if !s.ExpiryDate.After(s.LastAssessmentDate) {
		return errors.New("expiry_date must be strictly after last_assessment_date")
	}
	return nil
}

// Summary is a fleet-wide aggregation of certification status across
// all registered agents.
type Summary struct {
	TotalAgents int `json:"total_agents"`

	// CertifiedAgents counts agents whose certification has not yet
	// expired at the reference time.
	CertifiedAgents int `json:"certified_agents"`
	ExpiredAgents   int `json:"expired_agents"`

	// LevelDistribution counts active agents per certification level.
	LevelDistribution map[string]int `json:"level_distribution"`

	// ProtocolsCoverage is the average pass rate per protocol across
	// the full fleet, expired agents included, since a pass rate is a
	// historical fact.
	ProtocolsCoverage map[string]float64 `json:"protocols_coverage"`

	// UpcomingExpirations lists active agents expiring within 30 days
	// of the reference time, soonest first.
	UpcomingExpirations []AgentStatus `json:"upcoming_expirations"`
}

// Dashboard is an in-memory fleet certification registry with
// aggregation, filtering, and export capabilities.
type Dashboard struct {
	mu       sync.Mutex
	orgName  string
	registry map[string]AgentStatus

	// Now is injectable for tests.
	Now func() time.Time
}

func New(orgName string) *Dashboard {
	return &Dashboard{
		orgName:  orgName,
		registry: make(map[string]AgentStatus),
		Now:      time.Now,
	}
}

// OrgName returns the display name of the organisation owning the fleet.
func (d *Dashboard) OrgName() string { return d.orgName }

// RegisterAgent adds or replaces an agent's certification status.
// Replacement by agent id is the expected path for recording a
// re-assessment result.
func (d *Dashboard) RegisterAgent(status AgentStatus) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registry[status.AgentID] = status
	return nil
}

// RemoveAgent removes an agent from the registry. Removing an unknown
// agent is a no-op.
func (d *Dashboard) RemoveAgent(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.registry, agentID)
}

// Agent returns the status for a single agent.
func (d *Dashboard) Agent(agentID string) (AgentStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, ok := d.registry[agentID]
	return status, ok
}

// AgentsExpiringWithin returns agents whose certification expires
// between now and the given number of days from now, soonest first.
func (d *Dashboard) AgentsExpiringWithin(days int) []AgentStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.Now().UTC()
	cutoff := now.AddDate(0, 0, days)
	var expiring []AgentStatus
	for _, status := range d.registry {
		if !status.ExpiryDate.Before(now) && !status.ExpiryDate.After(cutoff) {
			expiring = append(expiring, status)
		}
	}
	sort.Slice(expiring, func(i, j int) bool { return expiring[i].ExpiryDate.Before(expiring[j].ExpiryDate) })
	return expiring
}

// AgentsByLevel returns all agents holding a given certification
// level, ordered by agent name.
func (d *Dashboard) AgentsByLevel(level certify.Level) []AgentStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []AgentStatus
	for _, status := range d.registry {
		if status.CertificationLevel == level {
			out = append(out, status)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentName < out[j].AgentName })
	return out
}

// GenerateSummary computes fleet-wide aggregations at a reference
// time. Pass the zero time to use the current clock.
func (d *Dashboard) GenerateSummary(reference time.Time) Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := reference
	if now.IsZero() {
		now = d.Now()
	}
	now = now.UTC()

	all := make([]AgentStatus, 0, len(d.registry))
	for _, status := range d.registry {
		all = append(all, status)
	}

	var active, expired []AgentStatus
	for _, status := range all {
		if status.ExpiryDate.Before(now) {
			expired = append(expired, status)
		} else {
			active = append(active, status)
		}
	}

	distribution := map[string]int{
		string(certify.LevelBronze):   0,
		string(certify.LevelSilver):   0,
		string(certify.LevelGold):     0,
		string(certify.LevelPlatinum): 0,
	}
	for _, status := range active {
		distribution[string(status.CertificationLevel)]++
	}

	totals := make(map[string][]float64)
	for _, status := range all {
		for _, id := range status.ProtocolsPassed {
			totals[id] = append(totals[id], status.PassRate)
		}
		for _, id := range status.ProtocolsFailed {
			totals[id] = append(totals[id], 0)
		}
	}
	coverage := make(map[string]float64, len(totals))
	for id, rates := range totals {
		var sum float64
		for _, r := range rates {
			sum += r
		}
		coverage[id] = sum / float64(len(rates))
	}

	cutoff := now.AddDate(0, 0, 30)
	var upcoming []AgentStatus
	for _, status := range active {
		if !status.ExpiryDate.After(cutoff) {
			upcoming = append(upcoming, status)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].ExpiryDate.Before(upcoming[j].ExpiryDate) })

	return Summary{
		TotalAgents:         len(all),
		CertifiedAgents:     len(active),
		ExpiredAgents:       len(expired),
		LevelDistribution:   distribution,
		ProtocolsCoverage:   coverage,
		UpcomingExpirations: upcoming,
	}
}

// ExportSummaryJSON serialises a summary with 2-space indentation.
func (d *Dashboard) ExportSummaryJSON(summary Summary) (string, error) {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal dashboard summary: %w", err)
	}
	return string(out), nil
}

// ExportSummaryMarkdown renders a summary as a Markdown report suitable
// for CI output or internal documentation.
func (d *Dashboard) ExportSummaryMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# Certline Certified — Fleet Dashboard\n\n")
	fmt.Fprintf(&b, "**Organisation:** %s\n\n", d.orgName)

	b.WriteString("## Fleet Overview\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total agents | %d |\n", summary.TotalAgents)
	fmt.Fprintf(&b, "| Certified (active) | %d |\n", summary.CertifiedAgents)
	fmt.Fprintf(&b, "| Expired | %d |\n\n", summary.ExpiredAgents)

	b.WriteString("## Certification Level Distribution\n\n")
	b.WriteString("| Level | Agent Count |\n|---|---|\n")
	for _, level := range []certify.Level{certify.LevelBronze, certify.LevelSilver, certify.LevelGold, certify.LevelPlatinum} {
		fmt.Fprintf(&b, "| %s | %d |\n", capitalize(string(level)), summary.LevelDistribution[string(level)])
	}

	b.WriteString("\n## Protocol Coverage\n\n")
	b.WriteString("Average pass rate per protocol across the full fleet.\n\n")
	b.WriteString("| Protocol | Average Pass Rate |\n|---|---|\n")
	if len(summary.ProtocolsCoverage) > 0 {
		ids := make([]string, 0, len(summary.ProtocolsCoverage))
		for id := range summary.ProtocolsCoverage {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "| %s | %.1f%% |\n", strings.ToUpper(id), summary.ProtocolsCoverage[id]*100)
		}
	} else {
		b.WriteString("| — | No protocol data available |\n")
	}

	b.WriteString("\n## Upcoming Expirations (within 30 days)\n\n")
	if len(summary.UpcomingExpirations) > 0 {
		b.WriteString("| Agent | Level | Expiry Date |\n|---|---|---|\n")
		for _, status := range summary.UpcomingExpirations {
			fmt.Fprintf(&b, "| %s | %s | %s |\n",
				status.AgentName,
				capitalize(string(status.CertificationLevel)),
				status.ExpiryDate.Format("2006-01-02"))
		}
	} else {
		b.WriteString("No certifications expiring within the next 30 days.\n")
	}

	b.WriteString("\n---\n\n*All certifications are self-assessed. No independent verification is implied.*")
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
