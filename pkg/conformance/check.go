package conformance

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// check declares a single conformance check: the operation it invokes,
// the literal payload it sends, and the judgement applied to the
// response. Dispatch is fully explicit, with no handler-name reflection.
type check struct {
	id          string
	description string
	level       string
	operation   string
	payload     map[string]any

	// judge inspects the response shape and returns the outcome.
	judge func(resp map[string]any) (Status, string)

	// notImplemented overrides the status reported when the adapter
	// signals ErrNotImplemented. Empty means the level default:
	// MUST -> fail, SHOULD -> skip.
	notImplemented        Status
	notImplementedMessage string
}

func (c check) notImplementedStatus() Status {
	if c.notImplemented != "" {
		return c.notImplemented
	}
	if c.level == LevelShould {
		return StatusSkip
	}
	return StatusFail
}

// suite is the fixed, ordered check catalog for one protocol.
type suite struct {
	protocol string
	checks   []check
}

// run executes every check in declared order and tallies the outcomes.
// Checks never retry; a failing or erroring check never aborts the rest
// of the suite.
func (s suite) run(ctx context.Context, adapter Adapter) ProtocolResult {
	result := ProtocolResult{Protocol: s.protocol}
	for _, c := range s.checks {
		result.Checks = append(result.Checks, runCheck(ctx, adapter, s.protocol, c))
	}
	for _, cr := range result.Checks {
		switch cr.Status {
		case StatusPass:
			result.Passed++
		case StatusFail:
			result.Failed++
		case StatusSkip:
			result.Skipped++
		case StatusError:
			result.Errors++
		}
	}
	return result
}

func runCheck(ctx context.Context, adapter Adapter, protocol string, c check) CheckResult {
	out := CheckResult{
		CheckID:          c.id,
		Description:      c.description,
		ConformanceLevel: c.level,
	}
	resp, err := adapter.Invoke(ctx, protocol, c.operation, c.payload)
	switch {
	case err == nil:
		out.Status, out.Message = c.judge(resp)
	case errors.Is(err, ErrNotImplemented):
		out.Status = c.notImplementedStatus()
		out.Message = c.notImplementedMessage
		if out.Message == "" {
			if c.level == LevelShould {
				out.Message = fmt.Sprintf("operation %q not implemented (SHOULD, not MUST)", c.operation)
			} else {
				out.Message = fmt.Sprintf("operation %q not implemented", c.operation)
			}
		}
	default:
		out.Status = StatusError
		out.Message = fmt.Sprintf("unexpected error: %v", err)
	}
	return out
}

// isList reports whether a response value is a list of any element type.
// Adapters return map[string]any, so lists may arrive as []any or as a
// typed slice.
func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
