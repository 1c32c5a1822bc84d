package conformance

import (
	"context"
	"errors"
)

// ErrNotImplemented is the signal an adapter returns from Invoke when the
// (protocol, operation) pair is not recognized. It is distinguished from
// every other failure: MUST-level checks map it to FAIL, SHOULD-level
// checks map it to SKIP. Adapters wrap it with fmt.Errorf and %w.
var ErrNotImplemented = errors.New("operation not implemented")

// Adapter connects an implementation under test to the Runner. Any system
// exposing the governance protocol operations implements this interface;
// there is no base type to embed.
type Adapter interface {
	// ImplementationName returns a human-readable name for the
	// implementation under test. It must not have side effects.
	ImplementationName() string

	// Invoke executes a single protocol operation and returns the
	// implementation's response. The response structure is protocol and
	// operation specific. Unrecognized operations return an error
	// wrapping ErrNotImplemented.
	Invoke(ctx context.Context, protocol, operation string, payload map[string]any) (map[string]any, error)

	// Setup is called exactly once before any checks run.
	Setup(ctx context.Context) error

	// Teardown is called exactly once after all checks complete. The
	// Runner guarantees it runs on every exit path.
	Teardown(ctx context.Context) error
}

// NopHooks provides no-op Setup and Teardown for adapters that need no
// fixture management. Embed it to satisfy the hook half of Adapter.
type NopHooks struct{}

func (NopHooks) Setup(context.Context) error    { return nil }
func (NopHooks) Teardown(context.Context) error { return nil }
