package certlinesdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"certline/pkg/dashboard"
	"certline/pkg/history"
	"certline/pkg/lifecycle"
)

// Client is a minimal Certline HTTP API client. The API is read-only;
// writes go through the certline CLI.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		Timeout:     10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Health checks server liveness. No auth required.
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]string
	return c.get(ctx, "v0/health", &resp)
}

// FleetSummary returns the fleet-wide certification summary.
func (c *Client) FleetSummary(ctx context.Context) (dashboard.Summary, error) {
	var resp dashboard.Summary
	err := c.get(ctx, "v0/fleet/summary", &resp)
	return resp, err
}

// FleetAgents lists registered agents, optionally filtered by level.
func (c *Client) FleetAgents(ctx context.Context, level string) ([]dashboard.AgentStatus, error) {
	endpoint := "v0/fleet/agents"
	if level != "" {
		endpoint += "?level=" + url.QueryEscape(level)
	}
	var resp []dashboard.AgentStatus
	err := c.get(ctx, endpoint, &resp)
	return resp, err
}

// FleetAgent fetches a single agent's certification status.
func (c *Client) FleetAgent(ctx context.Context, agentID string) (dashboard.AgentStatus, error) {
	var resp dashboard.AgentStatus
	err := c.get(ctx, "v0/fleet/agents/"+url.PathEscape(agentID), &resp)
	return resp, err
}

// FleetExpiring lists agents whose certification expires within the window.
func (c *Client) FleetExpiring(ctx context.Context, days int) ([]dashboard.AgentStatus, error) {
	endpoint := "v0/fleet/expiring"
	if days > 0 {
		endpoint = fmt.Sprintf("%s?days=%d", endpoint, days)
	}
	var resp []dashboard.AgentStatus
	err := c.get(ctx, endpoint, &resp)
	return resp, err
}

// Records lists certification records, optionally filtered by agent.
func (c *Client) Records(ctx context.Context, agentID string) ([]lifecycle.Record, error) {
	endpoint := "v0/lifecycle/records"
	if agentID != "" {
		endpoint += "?agent_id=" + url.QueryEscape(agentID)
	}
	var resp []lifecycle.Record
	err := c.get(ctx, endpoint, &resp)
	return resp, err
}

// Record fetches a certification record by id.
func (c *Client) Record(ctx context.Context, recordID string) (lifecycle.Record, error) {
	var resp lifecycle.Record
	err := c.get(ctx, "v0/lifecycle/records/"+url.PathEscape(recordID), &resp)
	return resp, err
}

// RecordEvents returns a record's lifecycle history, oldest first.
func (c *Client) RecordEvents(ctx context.Context, recordID string) ([]lifecycle.Event, error) {
	var resp []lifecycle.Event
	err := c.get(ctx, "v0/lifecycle/records/"+url.PathEscape(recordID)+"/events", &resp)
	return resp, err
}

// HistoryEntries lists recorded assessment runs, optionally filtered by
// implementation name.
func (c *Client) HistoryEntries(ctx context.Context, implementation string) ([]history.Entry, error) {
	endpoint := "v0/history/entries"
	if implementation != "" {
		endpoint += "?implementation=" + url.QueryEscape(implementation)
	}
	var resp []history.Entry
	err := c.get(ctx, endpoint, &resp)
	return resp, err
}

// HistoryLatest returns the most recent assessment run.
func (c *Client) HistoryLatest(ctx context.Context) (history.Entry, error) {
	var resp history.Entry
	err := c.get(ctx, "v0/history/latest", &resp)
	return resp, err
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
