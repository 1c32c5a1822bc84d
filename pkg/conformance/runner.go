package conformance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultSuites builds the full check catalog. Construction order is
// the canonical run order.
func defaultSuites() []suite {
	return []suite{
		atpSuite(),
		aipSuite(),
		aeapSuite(),
		amgpSuite(),
		aoapSuite(),
		crossSuite(),
	}
}

// RegisteredProtocols returns the identifiers of every runnable
// protocol suite, in canonical run order.
func RegisteredProtocols() []string {
	suites := defaultSuites()
	ids := make([]string, 0, len(suites))
	for _, s := range suites {
		ids = append(ids, s.protocol)
	}
	return ids
}

// Runner executes conformance suites against an Adapter. Each Runner
// carries its own suite catalog, so independent instances never share
// state.
type Runner struct {
	adapter Adapter
	suites  []suite

	// Now is injectable for tests.
	Now func() time.Time
}

func NewRunner(adapter Adapter) *Runner {
	return &Runner{adapter: adapter, suites: defaultSuites(), Now: time.Now}
}

// Run executes the requested protocol suites in the order given and
// aggregates the outcome. A nil or empty protocols slice runs every
// registered suite in canonical order. Unknown identifiers are rejected
// up front, all of them named, before Setup is called. CompletedAt is
// recorded after Teardown returns, so the run window includes teardown.
func (r *Runner) Run(ctx context.Context, protocols []string) (RunResult, error) {
	requested := protocols
	if len(requested) == 0 {
		requested = RegisteredProtocols()
	}

	var unknown []string
	for _, p := range requested {
		if r.lookup(p) == nil {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		return RunResult{}, fmt.Errorf("unknown protocol(s): %v, registered protocols: %v", unknown, RegisteredProtocols())
	}

	result := RunResult{
		ImplementationName: r.adapter.ImplementationName(),
		RunID:              uuid.NewString(),
		StartedAt:          r.Now().UTC(),
		ProtocolsRun:       requested,
		ProtocolResults:    make(map[string]ProtocolResult, len(requested)),
	}

	if err := r.adapter.Setup(ctx); err != nil {
		return RunResult{}, fmt.Errorf("adapter setup: %w", err)
	}
	if err := r.runSuites(ctx, requested, &result); err != nil {
		return RunResult{}, fmt.Errorf("adapter teardown: %w", err)
	}

	result.CompletedAt = r.Now().UTC()
	return result, nil
}

// runSuites executes the suites and tears the adapter down. Teardown
// runs even when a suite panics; its error is returned.
func (r *Runner) runSuites(ctx context.Context, requested []string, result *RunResult) (err error) {
	defer func() { err = r.adapter.Teardown(ctx) }()
	for _, p := range requested {
		result.ProtocolResults[p] = r.lookup(p).run(ctx, r.adapter)
	}
	return nil
}

func (r *Runner) lookup(protocol string) *suite {
	for i := range r.suites {
		if r.suites[i].protocol == protocol {
			return &r.suites[i]
		}
	}
	return nil
}
