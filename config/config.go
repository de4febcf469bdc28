// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package config provides the runtime settings of the farcall execution
// layer. Settings are backed by environment variables with the FARCALL_
// prefix, optionally layered over a configuration file, and are re-read on
// every access so that a change in the environment is observed by the next
// caller. Transport mode selection depends on this liveness.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Setting keys, bound to environment variables with the FARCALL_ prefix
// (for example, KeyNativeMode reads FARCALL_NATIVE_MODE).
const (
	KeyNativeMode      = "native_mode"      // execute with the native transport stack
	KeyUseRemote       = "use_remote"       // prefer the remote packet transport
	KeyRemoteAvailable = "remote_available" // the remote protocol may be used at all
	KeyRemoteHost      = "remote_host"      // remote service host
	KeyRemotePort      = "remote_port"      // remote service port
	KeyRFCURL          = "rfc_url"          // explicit legacy endpoint URL
	KeyRFCHost         = "rfc_host"         // legacy endpoint host, when no URL is set
	KeyRFCPort         = "rfc_port"         // legacy endpoint port, when no URL is set
	KeyRFCPassword     = "rfc_password"     // legacy endpoint credential
	KeyCallTimeout     = "call_timeout"     // blocking-call time budget
	KeyFallbackLocal   = "fallback_local"   // attempt local execution after failures
	KeyDetached        = "detached"         // running as the controlling process
	KeyDebug           = "debug"            // verbose argument-level logging
	KeyLogLevel        = "log_level"        // zerolog level name
	KeyTLSCert         = "tls_cert"         // server certificate path
	KeyTLSKey          = "tls_key"          // server key path
	KeyTLSRootCA       = "tls_root_ca"      // client verification root, enables mTLS
	KeyFlagsURL        = "flags_url"        // remote feature-flag service URL
)

// Settings is a live view of the farcall configuration. Accessors consult
// the backing store on every call, so environment changes take effect
// without rebuilding the value. A nil *Settings panics; use New.
type Settings struct {
	v *viper.Viper
}

// New constructs a Settings with defaults registered and environment
// binding enabled.
func New() *Settings {
	v := viper.New()
	v.SetEnvPrefix("FARCALL")
	v.AutomaticEnv()

	v.SetDefault(KeyNativeMode, false)
	v.SetDefault(KeyUseRemote, false)
	v.SetDefault(KeyRemoteAvailable, true)
	v.SetDefault(KeyRemoteHost, "localhost")
	v.SetDefault(KeyRemotePort, 54051)
	v.SetDefault(KeyRFCURL, "")
	v.SetDefault(KeyRFCHost, "localhost")
	v.SetDefault(KeyRFCPort, 55080)
	v.SetDefault(KeyRFCPassword, "")
	v.SetDefault(KeyCallTimeout, 30*time.Second)
	v.SetDefault(KeyFallbackLocal, true)
	v.SetDefault(KeyDetached, true)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyTLSCert, "")
	v.SetDefault(KeyTLSKey, "")
	v.SetDefault(KeyTLSRootCA, "")
	v.SetDefault(KeyFlagsURL, "")
	return &Settings{v: v}
}

// LoadFile layers the named configuration file under the environment.
// Environment variables still win over file values.
func (s *Settings) LoadFile(path string) error {
	s.v.SetConfigFile(path)
	if err := s.v.ReadInConfig(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

// Set overrides the named setting in the store. Overrides take precedence
// over both the environment and any file. It is intended for flag plumbing
// and tests.
func (s *Settings) Set(key string, value any) { s.v.Set(key, value) }

// NativeMode reports whether the native transport stack is requested.
func (s *Settings) NativeMode() bool { return s.v.GetBool(KeyNativeMode) }

// UseRemote reports whether the remote packet transport is requested.
func (s *Settings) UseRemote() bool { return s.v.GetBool(KeyUseRemote) }

// RemoteAvailable reports whether the remote protocol may be used. It
// defaults to true and exists as an operational escape hatch.
func (s *Settings) RemoteAvailable() bool { return s.v.GetBool(KeyRemoteAvailable) }

// RemoteAddr returns the host:port of the remote service.
func (s *Settings) RemoteAddr() string {
	return net.JoinHostPort(s.v.GetString(KeyRemoteHost), strconv.Itoa(s.v.GetInt(KeyRemotePort)))
}

// RFCURL returns the legacy endpoint URL: the explicit rfc_url setting if
// present, otherwise a URL assembled from rfc_host and rfc_port. The result
// is normalized to carry a scheme, no trailing slash, and the /rfc path.
func (s *Settings) RFCURL() string {
	url := strings.TrimSpace(s.v.GetString(KeyRFCURL))
	if url == "" {
		host := strings.TrimSpace(s.v.GetString(KeyRFCHost))
		if host == "" {
			return ""
		}
		url = net.JoinHostPort(host, strconv.Itoa(s.v.GetInt(KeyRFCPort)))
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimSuffix(url, "/")
	if !strings.HasSuffix(url, "/rfc") {
		url += "/rfc"
	}
	return url
}

// RFCPassword returns the legacy endpoint credential, or "".
func (s *Settings) RFCPassword() string { return s.v.GetString(KeyRFCPassword) }

// CallTimeout returns the time budget for blocking calls. The setting
// accepts a Go duration string or a plain number of seconds; unusable
// values fall back to 30 seconds.
func (s *Settings) CallTimeout() time.Duration {
	if d := s.v.GetDuration(KeyCallTimeout); d >= time.Millisecond {
		return d
	}
	if sec := s.v.GetInt(KeyCallTimeout); sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return 30 * time.Second
}

// FallbackLocal reports whether failed transport calls may be retried with
// local execution.
func (s *Settings) FallbackLocal() bool { return s.v.GetBool(KeyFallbackLocal) }

// Detached reports whether this process is the controlling process, running
// outside the execution environment. When false, calls are executed
// directly in-process and no transport is engaged.
func (s *Settings) Detached() bool { return s.v.GetBool(KeyDetached) }

// Debug reports whether argument-level debug logging is requested.
func (s *Settings) Debug() bool { return s.v.GetBool(KeyDebug) }

// LogLevel returns the configured log level name.
func (s *Settings) LogLevel() string { return s.v.GetString(KeyLogLevel) }

// TLSCert returns the server certificate path, or "".
func (s *Settings) TLSCert() string { return s.v.GetString(KeyTLSCert) }

// TLSKey returns the server key path, or "".
func (s *Settings) TLSKey() string { return s.v.GetString(KeyTLSKey) }

// TLSRootCA returns the client verification root path, or "".
func (s *Settings) TLSRootCA() string { return s.v.GetString(KeyTLSRootCA) }

// FlagsURL returns the remote feature-flag service URL, or "".
func (s *Settings) FlagsURL() string { return s.v.GetString(KeyFlagsURL) }

// Snapshot returns the current settings as a string map for diagnostic
// reports. The legacy credential is redacted.
func (s *Settings) Snapshot() map[string]string {
	out := map[string]string{
		KeyNativeMode:      strconv.FormatBool(s.NativeMode()),
		KeyUseRemote:       strconv.FormatBool(s.UseRemote()),
		KeyRemoteAvailable: strconv.FormatBool(s.RemoteAvailable()),
		KeyRemoteHost:      s.v.GetString(KeyRemoteHost),
		KeyRemotePort:      strconv.Itoa(s.v.GetInt(KeyRemotePort)),
		KeyRFCURL:          s.RFCURL(),
		KeyCallTimeout:     s.CallTimeout().String(),
		KeyFallbackLocal:   strconv.FormatBool(s.FallbackLocal()),
		KeyDetached:        strconv.FormatBool(s.Detached()),
		KeyDebug:           strconv.FormatBool(s.Debug()),
		KeyLogLevel:        s.LogLevel(),
	}
	if s.RFCPassword() != "" {
		out[KeyRFCPassword] = "****"
	}
	return out
}
