// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/config"
	"github.com/farcall/farcall/wire"
)

// A Dispatcher is the single entry point for issuing calls. It routes each
// call either directly into the local registry or through the factory's live
// transport, and applies the local-fallback policy when a transported call
// fails. The methods of a Dispatcher are safe for concurrent use by
// multiple goroutines.
type Dispatcher struct {
	settings *config.Settings
	reg      *farcall.Registry
	factory  *Factory
	log      zerolog.Logger
}

// NewDispatcher constructs a dispatcher routing calls per settings, serving
// local execution from reg and transported execution from factory.
func NewDispatcher(settings *config.Settings, reg *farcall.Registry, factory *Factory, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{settings: settings, reg: reg, factory: factory, log: log}
}

// Call executes target and returns its result.
//
// When the process is not detached, the target runs directly in-process and
// no transport is involved. Otherwise the call goes through the live
// transport; if it fails and local fallback is enabled, the target is
// retried in-process. A fallback that also fails reports the original
// transport error, since that is the root cause; the local error is only
// logged. Configuration errors are surfaced immediately with no fallback,
// because retrying cannot repair missing configuration.
func (d *Dispatcher) Call(ctx context.Context, target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	if !d.settings.Detached() {
		return d.runDirect(ctx, target, args, kwargs)
	}
	t := d.factory.Instance()
	result, err := t.Call(ctx, target, args, kwargs)
	if err == nil {
		return result, nil
	}
	return d.recover(ctx, target, args, kwargs, err)
}

// CallSync executes target to completion without caller-provided context,
// applying the configured call timeout. Routing and fallback follow Call.
func (d *Dispatcher) CallSync(target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	if !d.settings.Detached() {
		ctx, cancel := context.WithTimeout(context.Background(), d.callTimeout())
		defer cancel()
		return d.runDirect(ctx, target, args, kwargs)
	}
	t := d.factory.Instance()
	result, err := t.CallSync(target, args, kwargs)
	if err == nil {
		return result, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.callTimeout())
	defer cancel()
	return d.recover(ctx, target, args, kwargs, err)
}

// recover applies the fallback policy to a failed transported call.
func (d *Dispatcher) recover(ctx context.Context, target farcall.Target, args []any, kwargs map[string]any, cause error) (any, error) {
	if farcall.Kind(cause) == farcall.KindConfig || !d.settings.FallbackLocal() {
		return nil, cause
	}
	d.log.Warn().Stringer("target", target).Err(cause).Msg("transport call failed, retrying locally")
	result, lerr := d.runDirect(ctx, target, args, kwargs)
	if lerr != nil {
		d.log.Error().Stringer("target", target).Err(lerr).Msg("local fallback also failed")
		return nil, cause
	}
	return result, nil
}

// runDirect executes target in-process, converting a panic into an error.
func (d *Dispatcher) runDirect(ctx context.Context, target farcall.Target, args []any, kwargs map[string]any) (result any, err error) {
	entry, err := d.reg.Resolve(target)
	if err != nil {
		return nil, err
	}
	defer func() {
		if x := recover(); x != nil && err == nil {
			err = fmt.Errorf("target %q panicked: %v", target, x)
		}
	}()
	return entry.Run(ctx, args, kwargs)
}

// HandleInbound services a call initiated by the remote side. When the
// process is not detached, the call dispatches directly through the local
// registry; otherwise it is delegated to the live transport.
func (d *Dispatcher) HandleInbound(ctx context.Context, req *wire.RFCRequest) *wire.RFCResponse {
	if d.settings.Detached() {
		return d.factory.Instance().HandleInbound(ctx, req)
	}
	fail := func(kind, msg string, code int) *wire.RFCResponse {
		return &wire.RFCResponse{Status: wire.Failure(kind, msg), StatusCode: code, RequestID: req.RequestID}
	}
	var call wire.LegacyCall
	if err := json.Unmarshal(req.Body, &call); err != nil {
		return fail(farcall.KindEncoding, "invalid call body: "+err.Error(), 400)
	}
	v, err := d.runDirect(ctx, farcall.Target{Module: call.Module, Function: call.Function}, call.Args, call.Kwargs)
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

func (d *Dispatcher) callTimeout() time.Duration {
	if t := d.settings.CallTimeout(); t > 0 {
		return t
	}
	return 30 * time.Second
}
