// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package farcall implements an inter-process execution layer.
//
// A controlling process uses farcall to invoke functions, file operations,
// and commands that must run inside a separate execution environment, for
// example a sandbox or a container. The caller names a function abstractly,
// and a transport carries the call to wherever that function actually runs.
//
// # Targets and Registries
//
// A [Target] names a function by module and function name. Functions are made
// callable by adding them to a [Registry]:
//
//	reg := farcall.NewRegistry()
//	reg.Register("files", "checksum", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
//	   ...
//	})
//
// Only registered functions are callable. There is no dynamic symbol
// resolution: a call to an unregistered target fails with a [NotFoundError].
//
// Entries registered with Register are treated as synchronous and may be
// offloaded to a worker pool by the serving peer; entries registered with
// RegisterAsync are expected to manage their own blocking and run directly on
// the service goroutine for the call.
//
// # Transports
//
// A [Transport] executes calls on behalf of the controlling process. The
// remote package provides a transport that carries calls over a persistent
// packet channel to a serving peer; the local package provides an in-process
// transport that can substitute mock results when execution fails; the bridge
// package provides a transport that tunnels calls over a legacy HTTP
// interface.
//
// Use the ipc package to select and manage a transport based on the running
// configuration, and to route calls with automatic fallback.
//
// # Errors
//
// Failures are reported with typed errors: [NotFoundError], [TransportError],
// [RemoteError], [TimeoutError], and [ConfigError]. Each carries an
// error-kind label, retrievable with [Kind], that survives transport
// boundaries: a remote failure reports the kind and message recorded where
// the error originally occurred.
//
// # Metrics
//
// Each transport instance owns a [Metrics] value recording call activity.
// Replacing a transport therefore starts its counters fresh. The counters are
// exported in an [expvar.Map] for publication alongside other process
// metrics.
package farcall
