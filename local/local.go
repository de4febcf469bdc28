// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package local implements an in-process transport.
//
// The local transport executes call targets directly in the calling process,
// with no remote peer. When a target fails and mock fallback is enabled, the
// transport synthesizes a plausible placeholder result from the shape of the
// target's name, trading correctness for availability so that the rest of
// the system can keep running with no execution environment attached.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/wire"
)

// Options configure a local transport. A zero Options is valid.
type Options struct {
	// Fallback enables synthesizing a mock result when a target fails or is
	// not registered.
	Fallback bool

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

// A Transport executes call targets in-process from the given registry.
type Transport struct {
	reg      *farcall.Registry
	fallback bool
	timeout  time.Duration
	debug    bool
	log      zerolog.Logger
	metrics  *farcall.Metrics
}

// New constructs a local transport serving targets from reg.
func New(reg *farcall.Registry, opts Options) *Transport {
	t := &Transport{
		reg:      reg,
		fallback: opts.Fallback,
		timeout:  opts.CallTimeout,
		debug:    opts.Debug,
		log:      opts.Logger,
		metrics:  farcall.NewMetrics(),
	}
	if t.timeout <= 0 {
		t.timeout = DefaultCallTimeout
	}
	t.log.Info().Bool("fallback", t.fallback).Msg("local transport active; inbound calls will be mocked")
	return t
}

// Call implements part of the [farcall.Transport] interface. The target runs
// on the calling goroutine. If the target fails (including a registry miss)
// and mock fallback is enabled, Call reports a synthesized placeholder result
// instead of the error.
func (t *Transport) Call(ctx context.Context, target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	start := time.Now()
	if t.debug {
		t.log.Debug().Stringer("target", target).Any("args", args).Any("kwargs", kwargs).Msg("local call")
	} else {
		t.log.Debug().Stringer("target", target).Msg("local call")
	}

	result, err := t.run(ctx, target, args, kwargs)
	t.metrics.Observe(time.Since(start), err)
	if err == nil {
		return result, nil
	}
	if t.fallback {
		mock := MockResult(target.Function, err)
		t.log.Warn().Stringer("target", target).Err(err).
			Msg("target failed, substituting mock result")
		return mock, nil
	}
	return nil, err
}

// run executes the target, converting a panic into an error.
func (t *Transport) run(ctx context.Context, target farcall.Target, args []any, kwargs map[string]any) (result any, err error) {
	entry, err := t.reg.Resolve(target)
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

// CallSync implements part of the [farcall.Transport] interface. It applies
// the configured call timeout.
func (t *Transport) CallSync(target farcall.Target, args []any, kwargs map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	return t.Call(ctx, target, args, kwargs)
}

// HandleInbound implements part of the [farcall.Transport] interface. With no
// remote peer there is nowhere to dispatch an inbound call, so the response
// is a fixed marker reporting that the call was mocked.
func (t *Transport) HandleInbound(ctx context.Context, req *wire.RFCRequest) *wire.RFCResponse {
	t.log.Info().Str("request_id", req.RequestID).Msg("mocking inbound call")
	body, _ := json.Marshal(map[string]any{
		"status":  "mock_handled",
		"mock":    true,
		"message": "inbound call handled in mock mode",
	})
	return &wire.RFCResponse{
		Status:     wire.OK(),
		StatusCode: 200,
		Body:       body,
		RequestID:  req.RequestID,
	}
}

// IsConnected implements part of the [farcall.Transport] interface.
// The local transport is always connected.
func (t *Transport) IsConnected() bool { return true }

// Mode implements part of the [farcall.Transport] interface.
func (t *Transport) Mode() string { return "mock(native)" }

// Health implements part of the [farcall.Transport] interface.
func (t *Transport) Health() farcall.Health {
	h := t.metrics.Snapshot(t.Mode(), true)
	h.Details = map[string]any{
		"fallback_enabled":   t.fallback,
		"registered_targets": t.reg.Len(),
	}
	return h
}

// Close implements part of the [farcall.Transport] interface. The local
// transport holds no resources; Close only logs.
func (t *Transport) Close() error {
	t.log.Info().Msg("local transport closed")
	return nil
}

// Metrics returns the call metrics for t.
func (t *Transport) Metrics() *farcall.Metrics { return t.metrics }

// Mock result categories, matched in order against the target's function
// name. The first matching category wins. This is a heuristic, not a
// contract: the substrings cover the operations observed in practice and are
// not exhaustive.
var mockCategories = []struct {
	substrs []string
	make    func(name string, err error) any
}{
	{[]string{"file_exists", "path_exists", "folder_exists", "dir_exists"},
		func(string, error) any { return false }},
	{[]string{"read_file", "get_file"},
		func(name string, _ error) any {
			if strings.Contains(name, "binary") {
				return []byte{}
			}
			return ""
		}},
	{[]string{"list_folder", "list_directory", "list_dir", "get_subdirectories", "get_files"},
		func(string, error) any { return []any{} }},
	{[]string{"write_file", "delete_file", "delete_folder", "make_dir", "move_file", "copy_file", "upload_file"},
		func(string, error) any { return true }},
	{[]string{"search"},
		func(string, error) any { return []any{} }},
	{[]string{"create", "update", "save", "set"},
		func(string, error) any { return true }},
}

// MockResult synthesizes a placeholder result for a failed call to the named
// function. Existence checks report false, read-like operations report empty
// content, list-like operations report an empty sequence, and mutating
// operations report success. A name matching no category yields a diagnostic
// object carrying the original error text.
func MockResult(function string, err error) any {
	name := strings.ToLower(function)
	for _, cat := range mockCategories {
		for _, sub := range cat.substrs {
			if strings.Contains(name, sub) {
				return cat.make(name, err)
			}
		}
	}
	return map[string]any{
		"status":  "mock_response",
		"message": "mock response for " + function,
		"error":   err.Error(),
		"mock":    true,
	}
}
