// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package farcall

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/farcall/farcall/wire"
)

// A Target identifies a function registered for cross-process execution.
type Target struct {
	Module   string // the module under which the function is registered
	Function string // the name of the function within the module
}

// String returns the target rendered as "module.function".
func (t Target) String() string { return t.Module + "." + t.Function }

// ParseTarget parses a string of the form "module.function" into a Target.
// The function name is the text after the last dot, so module names may
// themselves contain dots.
func ParseTarget(s string) (Target, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return Target{}, fmt.Errorf("invalid target %q (want module.function)", s)
	}
	return Target{Module: s[:i], Function: s[i+1:]}, nil
}

// A Transport executes calls on behalf of the controlling process. The
// methods of a Transport are safe for concurrent use by multiple goroutines.
//
// A Transport reports definitive outcomes: either the result value of the
// target, or an error describing why the result could not be produced.
// Transports do not fall back on their own; call routing policy belongs to
// the dispatcher that owns the transport.
type Transport interface {
	// Call executes target with the given arguments and returns its result.
	// It blocks until the call completes or ctx ends. If ctx ends first the
	// call is abandoned and Call reports an error.
	Call(ctx context.Context, target Target, args []any, kwargs map[string]any) (any, error)

	// CallSync runs Call to completion on an isolated goroutine, for use by
	// callers that do not participate in context plumbing. The transport
	// applies its configured call timeout. A failure propagates unchanged.
	CallSync(target Target, args []any, kwargs map[string]any) (any, error)

	// HandleInbound services a call initiated by the remote peer. It always
	// returns a response; failures are described by the response body, and
	// never by an error or a panic.
	HandleInbound(ctx context.Context, req *wire.RFCRequest) *wire.RFCResponse

	// IsConnected reports whether the transport believes it can reach its
	// backing execution environment. It must not block beyond a short probe
	// budget, and must not panic or return an error.
	IsConnected() bool

	// Mode returns a short human-readable label for the transport, for
	// logging and health reports.
	Mode() string

	// Health returns a point-in-time snapshot of the transport's condition.
	Health() Health

	// Close releases the transport's resources. It is idempotent, and safe to
	// call on a transport that never connected.
	Close() error
}

// A Health is a point-in-time snapshot of a transport's condition. The
// counters reflect the lifetime of a single transport instance, and the
// error rate is 0 when no calls have been made. Details carries
// transport-specific extras such as endpoint addresses or probe errors.
type Health struct {
	Mode       string         `json:"mode"`
	Connected  bool           `json:"connected"`
	Calls      int64          `json:"calls"`
	Errors     int64          `json:"errors"`
	ErrorRate  float64        `json:"error_rate"`
	AvgElapsed time.Duration  `json:"avg_elapsed_ns"`
	Details    map[string]any `json:"details,omitempty"`
}
