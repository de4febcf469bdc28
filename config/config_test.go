// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package config_test

import (
	"testing"
	"time"

	"github.com/farcall/farcall/config"
	"github.com/google/go-cmp/cmp"
)

func TestDefaults(t *testing.T) {
	s := config.New()

	if s.NativeMode() {
		t.Error("NativeMode: got true, want false")
	}
	if s.UseRemote() {
		t.Error("UseRemote: got true, want false")
	}
	if !s.RemoteAvailable() {
		t.Error("RemoteAvailable: got false, want true")
	}
	if !s.Detached() {
		t.Error("Detached: got false, want true")
	}
	if !s.FallbackLocal() {
		t.Error("FallbackLocal: got false, want true")
	}
	if got, want := s.RemoteAddr(), "localhost:54051"; got != want {
		t.Errorf("RemoteAddr: got %q, want %q", got, want)
	}
	if got, want := s.RFCURL(), "http://localhost:55080/rfc"; got != want {
		t.Errorf("RFCURL: got %q, want %q", got, want)
	}
	if got, want := s.CallTimeout(), 30*time.Second; got != want {
		t.Errorf("CallTimeout: got %v, want %v", got, want)
	}
	if got, want := s.LogLevel(), "info"; got != want {
		t.Errorf("LogLevel: got %q, want %q", got, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FARCALL_NATIVE_MODE", "true")
	t.Setenv("FARCALL_USE_REMOTE", "1")
	t.Setenv("FARCALL_REMOTE_HOST", "exec.internal")
	t.Setenv("FARCALL_REMOTE_PORT", "6060")

	s := config.New()
	if !s.NativeMode() {
		t.Error("NativeMode: got false, want true")
	}
	if !s.UseRemote() {
		t.Error("UseRemote: got false, want true")
	}
	if got, want := s.RemoteAddr(), "exec.internal:6060"; got != want {
		t.Errorf("RemoteAddr: got %q, want %q", got, want)
	}
}

// A Settings must observe environment changes made after construction.
func TestLiveness(t *testing.T) {
	t.Setenv("FARCALL_USE_REMOTE", "false")
	s := config.New()
	if s.UseRemote() {
		t.Error("UseRemote: got true, want false")
	}

	t.Setenv("FARCALL_USE_REMOTE", "true")
	if !s.UseRemote() {
		t.Error("UseRemote after env change: got false, want true")
	}
}

func TestSetOverride(t *testing.T) {
	t.Setenv("FARCALL_DEBUG", "false")
	s := config.New()
	s.Set(config.KeyDebug, true)
	if !s.Debug() {
		t.Error("Debug: explicit Set did not take precedence over environment")
	}
}

func TestRFCURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		host string
		port int
		want string
	}{
		{"HostPortDefault", "", "localhost", 55080, "http://localhost:55080/rfc"},
		{"BareHostPort", "agent.example:8000", "", 0, "http://agent.example:8000/rfc"},
		{"ExplicitHTTP", "http://agent.example:8000", "", 0, "http://agent.example:8000/rfc"},
		{"ExplicitHTTPS", "https://agent.example", "", 0, "https://agent.example/rfc"},
		{"TrailingSlash", "https://agent.example/", "", 0, "https://agent.example/rfc"},
		{"AlreadySuffixed", "http://agent.example/rfc", "", 0, "http://agent.example/rfc"},
		{"NoEndpoint", "", "", 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := config.New()
			s.Set(config.KeyRFCURL, tc.url)
			s.Set(config.KeyRFCHost, tc.host)
			if tc.port != 0 {
				s.Set(config.KeyRFCPort, tc.port)
			}
			if got := s.RFCURL(); got != tc.want {
				t.Errorf("RFCURL: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCallTimeoutForms(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"45s", 45 * time.Second},
		{"750ms", 750 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{"45", 45 * time.Second}, // plain seconds
		{"0", 30 * time.Second},  // unusable, default
		{"whatever", 30 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			t.Setenv("FARCALL_CALL_TIMEOUT", tc.input)
			s := config.New()
			if got := s.CallTimeout(); got != tc.want {
				t.Errorf("CallTimeout(%q): got %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	t.Setenv("FARCALL_RFC_PASSWORD", "hunter2")
	s := config.New()

	snap := s.Snapshot()
	if got := snap[config.KeyRFCPassword]; got != "****" {
		t.Errorf("Snapshot password: got %q, want redacted", got)
	}
	for key, val := range snap {
		if val == "hunter2" {
			t.Errorf("Snapshot leaked credential under key %q", key)
		}
	}

	want := map[string]string{
		config.KeyNativeMode: "false",
		config.KeyUseRemote:  "false",
		config.KeyDetached:   "true",
	}
	got := map[string]string{
		config.KeyNativeMode: snap[config.KeyNativeMode],
		config.KeyUseRemote:  snap[config.KeyUseRemote],
		config.KeyDetached:   snap[config.KeyDetached],
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Snapshot (-want, +got):\n%s", diff)
	}
}

func TestLoadFileMissing(t *testing.T) {
	s := config.New()
	if err := s.LoadFile("/nonexistent/farcall.yaml"); err == nil {
		t.Error("LoadFile: got nil error for missing file")
	}
}
