// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package bridge adapts the transport contract onto the legacy HTTP call
// mechanism. A bridge transport forwards each call to a pre-existing remote
// endpoint speaking the legacy JSON-RPC shape, and owns only the fallback,
// timeout, and credential wrapping around that mechanism, not its wire
// format.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/wire"
)

// A CallFunc invokes a target on the legacy endpoint at url, authenticated
// by password. It is the external collaborator boundary of the bridge; the
// default is [JSONRPCCall].
type CallFunc func(ctx context.Context, url, password string, target farcall.Target, args []any, kwargs map[string]any) (any, error)

// Options configure a bridge transport.
type Options struct {
	// Endpoint resolves the legacy endpoint URL and credential at call time.
	// Returning an empty URL makes calls fail with a configuration error.
	Endpoint func() (url, password string)

	// Call invokes the legacy mechanism. If unset, JSONRPCCall is used.
	Call CallFunc

	// Registry resolves targets for local fallback execution. Optional;
	// without it fallback is not possible.
	Registry *farcall.Registry

	// Fallback reports whether failed remote calls may be retried locally.
	// If unset, fallback is disabled.
	Fallback func() bool

	// Native reports whether the process runs in native-execution mode.
	// Native mode enables the local retry after a remote failure even when
	// Fallback does not.
	Native func() bool

	// CallTimeout bounds CallSync. If zero, DefaultCallTimeout is used.
	CallTimeout time.Duration

	// Logger receives transport logs. If unset, logs are discarded.
	Logger zerolog.Logger

	// Debug enables argument-level logging of each call.
	Debug bool
}

// DefaultCallTimeout is the CallSync budget applied when the options do not
// specify one.
const DefaultCallTimeout = 30 * time.Second

// A Transport forwards calls over the legacy HTTP mechanism, with optional
// local fallback and a blocking interface bridged over a per-call worker.
type Transport struct {
	opts    Options
	metrics *farcall.Metrics

	mu    sync.Mutex
	avail *bool // cached connectivity, nil until first checked
}

// New constructs a bridge transport.
func New(opts Options) *Transport {
	if opts.Call == nil {
		opts.Call = JSONRPCCall
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	t := &Transport{opts: opts, metrics: farcall.NewMetrics()}
	t.opts.Logger.Info().Msg("legacy bridge transport initialized")
	return t
}

// endpoint resolves the legacy endpoint, reporting a configuration error
// when the URL or credential is missing. Configuration errors are surfaced
// immediately with no fallback: there is nothing to connect to.
func (t *Transport) endpoint() (url, password string, err error) {
	if t.opts.Endpoint != nil {
		url, password = t.opts.Endpoint()
	}
	if url == "" {
		return "", "", &farcall.ConfigError{Reason: "no legacy endpoint URL"}
	}
	if password == "" {
		return "", "", &farcall.ConfigError{Reason: "no legacy endpoint credential"}
	}
	return url, password, nil
}

func (t *Transport) fallbackEnabled() bool {
	return t.opts.Fallback != nil && t.opts.Fallback() && t.opts.Registry != nil
}

// retryLocally reports whether a failed remote call may be retried with
// local execution: in native mode, or when fallback is enabled.
func (t *Transport) retryLocally() bool {
	if t.opts.Registry == nil {
		return false
	}
	if t.opts.Native != nil && t.opts.Native() {
		return true
	}
	return t.opts.Fallback != nil && t.opts.Fallback()
}

// Call implements part of the [farcall.Transport] interface. The call is
// forwarded to the legacy endpoint; on failure, when fallback is enabled,
// the target is executed locally, and if that also fails the original remote
// error is re-raised so the root cause is never masked.
func (t *Transport) Call(ctx context.Context, target farcall.Target, args []any, kwargs map[string]any) (_ any, err error) {
	start := time.Now()
	defer func() { t.metrics.Observe(time.Since(start), err) }()

	url, password, err := t.endpoint()
	if err != nil {
		return nil, err
	}
	if t.opts.Debug {
		t.opts.Logger.Debug().Stringer("target", target).Str("url", url).
			Any("args", args).Any("kwargs", kwargs).Msg("legacy call")
	} else {
		t.opts.Logger.Debug().Stringer("target", target).Str("url", url).Msg("legacy call")
	}

	result, rerr := t.opts.Call(ctx, url, password, target, args, kwargs)
	if rerr == nil {
		return result, nil
	}
	t.opts.Logger.Error().Stringer("target", target).Err(rerr).Msg("legacy call failed")

	if t.retryLocally() {
		if v, lerr := t.runLocal(ctx, target, args, kwargs); lerr == nil {
			t.opts.Logger.Info().Stringer("target", target).Msg("local execution succeeded after remote failure")
			return v, nil
		} else {
			t.opts.Logger.Error().Stringer("target", target).Err(lerr).
				Msg("local execution also failed; reporting the original error")
		}
	}
	return nil, rerr
}

// runLocal executes the target from the local registry.
func (t *Transport) runLocal(ctx context.Context, target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	entry, err := t.opts.Registry.Resolve(target)
	if err != nil {
		return nil, err
	}
	return entry.Run(ctx, args, kwargs)
}

// CallSync implements part of the [farcall.Transport] interface. The call
// runs on its own worker goroutine with a single-assignment result cell and
// a bounded join: if the budget elapses first, the worker's context is
// canceled so it cannot linger, the timeout becomes eligible for local
// fallback, and finally a [farcall.TimeoutError] is reported. A worker that
// finishes after the deadline writes only into its own buffered cell and
// cannot disturb a later call.
func (t *Transport) CallSync(target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	type result struct {
		value any
		err   error
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cell := make(chan result, 1)
	go func() {
		v, err := t.Call(ctx, target, args, kwargs)
		cell <- result{value: v, err: err}
	}()

	timer := time.NewTimer(t.opts.CallTimeout)
	defer timer.Stop()
	select {
	case r := <-cell:
		return r.value, r.err
	case <-timer.C:
		cancel()
	}
	t.opts.Logger.Error().Stringer("target", target).Dur("budget", t.opts.CallTimeout).
		Msg("legacy call timed out")
	if t.fallbackEnabled() {
		fctx, fcancel := context.WithTimeout(context.Background(), t.opts.CallTimeout)
		defer fcancel()
		if v, lerr := t.runLocal(fctx, target, args, kwargs); lerr == nil {
			t.opts.Logger.Info().Stringer("target", target).Msg("local execution succeeded after timeout")
			return v, nil
		}
	}
	return nil, &farcall.TimeoutError{Target: target, Budget: t.opts.CallTimeout}
}

// HandleInbound implements part of the [farcall.Transport] interface by
// dispatching the legacy call shape in the request body through the local
// registry. It always returns a response; failures are reported in its
// status.
func (t *Transport) HandleInbound(ctx context.Context, req *wire.RFCRequest) *wire.RFCResponse {
	fail := func(kind, msg string, code int) *wire.RFCResponse {
		return &wire.RFCResponse{Status: wire.Failure(kind, msg), StatusCode: code, RequestID: req.RequestID}
	}
	if t.opts.Registry == nil {
		return fail(farcall.KindConfig, "no registry for inbound calls", 500)
	}
	var call wire.LegacyCall
	if err := json.Unmarshal(req.Body, &call); err != nil {
		return fail(farcall.KindEncoding, "invalid call body: "+err.Error(), 400)
	}
	v, err := t.runLocal(ctx, farcall.Target{Module: call.Module, Function: call.Function}, call.Args, call.Kwargs)
	if err != nil {
		return fail(farcall.Kind(err), err.Error(), 500)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fail(farcall.KindEncoding, err.Error(), 500)
	}
	return &wire.RFCResponse{
		Status:     wire.OK(),
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		RequestID:  req.RequestID,
	}
}

// IsConnected implements part of the [farcall.Transport] interface. The
// check is a cached boolean derived from whether the endpoint and credential
// resolve; the cache is invalidated only by Close.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.avail == nil {
		_, _, err := t.endpoint()
		ok := err == nil
		t.avail = &ok
	}
	return *t.avail
}

// Mode implements part of the [farcall.Transport] interface.
func (t *Transport) Mode() string { return "bridge(legacy-rfc)" }

// Health implements part of the [farcall.Transport] interface.
func (t *Transport) Health() farcall.Health {
	h := t.metrics.Snapshot(t.Mode(), t.IsConnected())
	url := ""
	if t.opts.Endpoint != nil {
		url, _ = t.opts.Endpoint()
	}
	h.Details = map[string]any{
		"endpoint":         url,
		"fallback_enabled": t.fallbackEnabled(),
	}
	return h
}

// Close implements part of the [farcall.Transport] interface. The bridge
// holds no persistent connection; Close clears the cached connectivity
// check. It is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.avail = nil
	t.opts.Logger.Info().Msg("legacy bridge transport closed")
	return nil
}

// Metrics returns the call metrics for t.
func (t *Transport) Metrics() *farcall.Metrics { return t.metrics }
