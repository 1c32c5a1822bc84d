package conformance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// scriptedAdapter returns canned responses keyed by protocol/operation.
// Operations without a script entry report ErrNotImplemented, matching
// how a partial implementation behaves.
type scriptedAdapter struct {
	name      string
	responses map[string]map[string]any
	failWith  map[string]error

	setupCalls    int
	teardownCalls int
	invoked       []string
}

func (a *scriptedAdapter) ImplementationName() string { return a.name }

func (a *scriptedAdapter) Setup(ctx context.Context) error {
	a.setupCalls++
	return nil
}

func (a *scriptedAdapter) Teardown(ctx context.Context) error {
	a.teardownCalls++
	return nil
}

func (a *scriptedAdapter) Invoke(ctx context.Context, protocol, operation string, payload map[string]any) (map[string]any, error) {
	key := protocol + "/" + operation
	a.invoked = append(a.invoked, key)
	if err, ok := a.failWith[key]; ok {
		return nil, err
	}
	if resp, ok := a.responses[key]; ok {
		return resp, nil
	}
	return nil, fmt.Errorf("%s: %w", operation, ErrNotImplemented)
}

func TestRunnerRejectsUnknownProtocols(t *testing.T) {
	adapter := &scriptedAdapter{name: "impl"}
	runner := NewRunner(adapter)

	_, err := runner.Run(context.Background(), []string{"atp", "bogus", "asp"})
	if err == nil {
		t.Fatal("expected error for unknown protocols")
	}
	if !strings.Contains(err.Error(), "bogus") || !strings.Contains(err.Error(), "asp") {
		t.Fatalf("error should name every unknown id, got: %v", err)
	}
	if adapter.setupCalls != 0 {
		t.Fatalf("setup must not run when validation fails, ran %d times", adapter.setupCalls)
	}
}

func TestRunnerRunsAllRegisteredByDefault(t *testing.T) {
	adapter := &scriptedAdapter{name: "impl"}
	runner := NewRunner(adapter)
	runner.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	result, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"atp", "aip", "aeap", "amgp", "aoap", "cross_protocol"}
	if len(result.ProtocolsRun) != len(want) {
		t.Fatalf("protocols run = %v, want %v", result.ProtocolsRun, want)
	}
	for i, p := range want {
		if result.ProtocolsRun[i] != p {
			t.Fatalf("protocols run = %v, want %v", result.ProtocolsRun, want)
		}
		if _, ok := result.ProtocolResults[p]; !ok {
			t.Fatalf("missing protocol result for %s", p)
		}
	}
	if result.RunID == "" {
		t.Fatal("run id should be set")
	}
	if result.ImplementationName != "impl" {
		t.Fatalf("implementation name = %q", result.ImplementationName)
	}
	if adapter.setupCalls != 1 || adapter.teardownCalls != 1 {
		t.Fatalf("setup/teardown calls = %d/%d, want 1/1", adapter.setupCalls, adapter.teardownCalls)
	}
}

func TestRunnerSubsetKeepsRequestedOrder(t *testing.T) {
	adapter := &scriptedAdapter{name: "impl"}
	runner := NewRunner(adapter)

	result, err := runner.Run(context.Background(), []string{"aoap", "atp"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.ProtocolResults) != 2 {
		t.Fatalf("expected 2 protocol results, got %d", len(result.ProtocolResults))
	}
	if result.ProtocolsRun[0] != "aoap" || result.ProtocolsRun[1] != "atp" {
		t.Fatalf("protocols run = %v", result.ProtocolsRun)
	}
}

func TestNotImplementedMapsByLevel(t *testing.T) {
	adapter := &scriptedAdapter{name: "impl"}
	runner := NewRunner(adapter)

	result, err := runner.Run(context.Background(), []string{"aoap", "cross_protocol"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	aoap := result.ProtocolResults["aoap"]
	for _, c := range aoap.Checks {
		switch c.ConformanceLevel {
		case LevelMust:
			if c.Status != StatusFail {
				t.Fatalf("%s: unimplemented MUST should fail, got %s", c.CheckID, c.Status)
			}
		case LevelShould:
			if c.Status != StatusSkip {
				t.Fatalf("%s: unimplemented SHOULD should skip, got %s", c.CheckID, c.Status)
			}
		}
	}

	// Cross-protocol surfaces are optional, so even MUST checks skip.
	cross := result.ProtocolResults["cross_protocol"]
	for _, c := range cross.Checks {
		if c.Status != StatusSkip {
			t.Fatalf("%s: unimplemented cross-protocol check should skip, got %s", c.CheckID, c.Status)
		}
	}
	if cross.Skipped != len(cross.Checks) {
		t.Fatalf("cross skipped = %d, want %d", cross.Skipped, len(cross.Checks))
	}
}

func TestUnexpectedErrorBecomesErrorStatus(t *testing.T) {
	adapter := &scriptedAdapter{
		name: "impl",
		failWith: map[string]error{
			"aeap/check_spend_allowed": errors.New("connection refused"),
		},
	}
	runner := NewRunner(adapter)

	result, err := runner.Run(context.Background(), []string{"aeap"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	aeap := result.ProtocolResults["aeap"]
	if aeap.Errors != 2 {
		t.Fatalf("expected 2 errored checks (both spend-allowed probes), got %d", aeap.Errors)
	}
	var found bool
	for _, c := range aeap.Checks {
		if c.CheckID == "AEAP-MUST-001" {
			found = true
			if c.Status != StatusError {
				t.Fatalf("AEAP-MUST-001 status = %s, want %s", c.Status, StatusError)
			}
			if !strings.Contains(c.Message, "connection refused") {
				t.Fatalf("message should carry the cause, got %q", c.Message)
			}
		}
	}
	if !found {
		t.Fatal("AEAP-MUST-001 missing from results")
	}
}

// tracingAdapter records setup/teardown into a shared event trace so
// tests can assert ordering against clock reads.
type tracingAdapter struct {
	scriptedAdapter
	trace       *[]string
	teardownErr error
}

func (a *tracingAdapter) Setup(ctx context.Context) error {
	*a.trace = append(*a.trace, "setup")
	return a.scriptedAdapter.Setup(ctx)
}

func (a *tracingAdapter) Teardown(ctx context.Context) error {
	*a.trace = append(*a.trace, "teardown")
	if err := a.scriptedAdapter.Teardown(ctx); err != nil {
		return err
	}
	return a.teardownErr
}

func TestCompletedAtRecordedAfterTeardown(t *testing.T) {
	var trace []string
	adapter := &tracingAdapter{scriptedAdapter: scriptedAdapter{name: "impl"}, trace: &trace}
	runner := NewRunner(adapter)
	calls := 0
	runner.Now = func() time.Time {
		calls++
		trace = append(trace, "clock")
		return time.Date(2026, 3, 1, 12, 0, calls, 0, time.UTC)
	}

	if _, err := runner.Run(context.Background(), []string{"atp"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"clock", "setup", "teardown", "clock"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestTeardownErrorSurfaces(t *testing.T) {
	var trace []string
	adapter := &tracingAdapter{
		scriptedAdapter: scriptedAdapter{name: "impl"},
		trace:           &trace,
		teardownErr:     errors.New("session leak"),
	}
	runner := NewRunner(adapter)

	_, err := runner.Run(context.Background(), []string{"atp"})
	if err == nil || !strings.Contains(err.Error(), "session leak") {
		t.Fatalf("teardown failure should surface, got: %v", err)
	}
}

func TestTimestampsBracketTheRun(t *testing.T) {
	calls := 0
	adapter := &scriptedAdapter{name: "impl"}
	runner := NewRunner(adapter)
	runner.Now = func() time.Time {
		calls++
		return time.Date(2026, 3, 1, 12, 0, calls, 0, time.UTC)
	}

	result, err := runner.Run(context.Background(), []string{"atp"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.CompletedAt.After(result.StartedAt) {
		t.Fatalf("completed %v should be after started %v", result.CompletedAt, result.StartedAt)
	}
}
