// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package ipc selects and manages the transport used for cross-process
// execution, and routes calls through it.
//
// A [Factory] owns the single live transport instance for a process. The
// instance is chosen by the current configuration and rebuilt when the
// configuration changes, with the old instance torn down first. A
// [Dispatcher] is the call site used by the rest of the system: it decides
// between direct local execution and transport-mediated execution, and
// recovers transport failures with local execution when fallback is
// enabled.
package ipc

import "github.com/farcall/farcall/config"

// A Mode labels the transport selected by a configuration.
type Mode string

const (
	// ModeNativeRemote runs native execution over the remote packet
	// transport.
	ModeNativeRemote Mode = "native+remote"

	// ModeNativeMock runs native execution with the local mock transport.
	ModeNativeMock Mode = "native+mock"

	// ModeBridgeRemote uses the legacy bridge because the remote transport
	// was requested outside native mode or is unavailable.
	ModeBridgeRemote Mode = "bridge+remote"

	// ModeBridge is the default legacy bridge.
	ModeBridge Mode = "bridge"
)

// ResolveMode maps the three configuration booleans onto a transport mode.
// It is total: every combination yields exactly one mode, with precedence
// native+available-remote, then native-only, then remote-requested in a
// bridge context, then the default bridge.
func ResolveMode(native, remoteRequested, remoteAvailable bool) Mode {
	switch {
	case native && remoteRequested && remoteAvailable:
		return ModeNativeRemote
	case native:
		return ModeNativeMock
	case remoteRequested:
		return ModeBridgeRemote
	default:
		return ModeBridge
	}
}

// CurrentMode resolves the transport mode from the live settings.
func CurrentMode(s *config.Settings) Mode {
	return ResolveMode(s.NativeMode(), s.UseRemote(), s.RemoteAvailable())
}
