// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package ipc

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/bridge"
	"github.com/farcall/farcall/config"
	"github.com/farcall/farcall/local"
	"github.com/farcall/farcall/remote"
)

// A Factory owns the single live transport instance for a process. It is an
// explicitly constructed handle, not package-level state: whoever constructs
// the factory owns the transport lifecycle, and tests can build isolated
// factories freely. The methods of a Factory are safe for concurrent use by
// multiple goroutines.
type Factory struct {
	settings *config.Settings
	reg      *farcall.Registry
	log      zerolog.Logger

	// newTransport builds the transport for a mode. Overridable for tests.
	newTransport func(Mode) farcall.Transport

	mu   sync.Mutex
	cur  farcall.Transport
	mode Mode
}

// NewFactory constructs a factory choosing transports from settings and
// serving targets from reg.
func NewFactory(settings *config.Settings, reg *farcall.Registry, log zerolog.Logger) *Factory {
	f := &Factory{settings: settings, reg: reg, log: log}
	f.newTransport = f.build
	return f
}

// build constructs the transport for mode from the current settings.
func (f *Factory) build(mode Mode) farcall.Transport {
	s := f.settings
	switch mode {
	case ModeNativeRemote:
		return remote.NewClient(s.RemoteAddr(), remote.ClientOptions{
			Registry:    f.reg,
			CallTimeout: s.CallTimeout(),
			Logger:      f.log.With().Str("transport", "remote").Logger(),
			Debug:       s.Debug(),
		})
	case ModeNativeMock:
		return local.New(f.reg, local.Options{
			Fallback:    s.FallbackLocal(),
			CallTimeout: s.CallTimeout(),
			Logger:      f.log.With().Str("transport", "local").Logger(),
			Debug:       s.Debug(),
		})
	default:
		return bridge.New(bridge.Options{
			Endpoint:    func() (string, string) { return s.RFCURL(), s.RFCPassword() },
			Registry:    f.reg,
			Fallback:    s.FallbackLocal,
			Native:      s.NativeMode,
			CallTimeout: s.CallTimeout(),
			Logger:      f.log.With().Str("transport", "bridge").Logger(),
			Debug:       s.Debug(),
		})
	}
}

// Instance returns the live transport, building it if none exists or if the
// configured mode has changed since it was built. The check and swap is one
// critical section: concurrent callers cannot observe or create two live
// instances, and a replaced instance is closed before its successor is
// constructed.
func (f *Factory) Instance() farcall.Transport {
	mode := CurrentMode(f.settings)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur != nil && f.mode == mode {
		return f.cur
	}
	if f.cur != nil {
		f.log.Info().Str("from", string(f.mode)).Str("to", string(mode)).Msg("transport mode changed")
		if err := f.cur.Close(); err != nil {
			f.log.Warn().Err(err).Msg("closing previous transport")
		}
	}
	f.cur = f.newTransport(mode)
	f.mode = mode
	f.log.Info().Str("mode", f.cur.Mode()).Msg("transport initialized")
	return f.cur
}

// Reset tears down the live transport and clears the stored mode, so that
// the next Instance call rebuilds from the current configuration. It is used
// for configuration reloads and test isolation.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur != nil {
		f.log.Info().Str("mode", string(f.mode)).Msg("resetting transport")
		if err := f.cur.Close(); err != nil {
			f.log.Warn().Err(err).Msg("closing transport on reset")
		}
	}
	f.cur = nil
	f.mode = ""
}

// Available reports whether the live transport believes it can reach its
// execution environment.
func (f *Factory) Available() bool { return f.Instance().IsConnected() }

// ModeInfo reports the resolved mode and the live transport's own view of
// itself, for diagnostics.
func (f *Factory) ModeInfo() map[string]any {
	t := f.Instance()
	return map[string]any{
		"mode":      string(CurrentMode(f.settings)),
		"mode_name": t.Mode(),
		"connected": t.IsConnected(),
	}
}

// Health merges the live transport's health snapshot with the factory and
// environment view.
func (f *Factory) Health() farcall.Health {
	t := f.Instance()
	h := t.Health()
	if h.Details == nil {
		h.Details = make(map[string]any)
	}
	h.Details["resolved_mode"] = string(CurrentMode(f.settings))
	h.Details["environment"] = f.settings.Snapshot()
	return h
}
